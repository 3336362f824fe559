package service

import (
	"time"

	"github.com/bhumika-maharjan/Chat-Application/internal/chat"
	"github.com/bhumika-maharjan/Chat-Application/internal/models"
	"gorm.io/gorm"
)

// MessageService 提供 REST 侧的消息查询，分页语义与实时回放互补。
type MessageService struct {
	db    *gorm.DB
	store *chat.Store
}

func NewMessageService(db *gorm.DB, store *chat.Store) *MessageService {
	return &MessageService{db: db, store: store}
}

// MessageDTO 对外输出的消息数据。
type MessageDTO struct {
	ID       uint      `json:"id"`
	RoomID   uint      `json:"room_id"`
	SenderID uint      `json:"sender_id"`
	Sender   string    `json:"sender"`
	Content  *string   `json:"content"`
	FileURL  *string   `json:"file_url"`
	SentAt   time.Time `json:"sent_at"`
}

// ListByRoom 分页查询房间消息，按 sent_at 升序返回。
func (s *MessageService) ListByRoom(roomID uint, limit int, beforeID uint) ([]MessageDTO, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	q := s.db.Where("room_id = ?", roomID)
	if beforeID > 0 {
		q = q.Where("id < ?", beforeID)
	}

	var msgs []models.Message
	if err := q.Order("id desc").Limit(limit).Find(&msgs).Error; err != nil {
		return nil, err
	}

	// 反转为升序
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}

	names, err := s.store.DisplayNames(msgs)
	if err != nil {
		return nil, err
	}

	out := make([]MessageDTO, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, MessageDTO{
			ID:       m.ID,
			RoomID:   *m.RoomID,
			SenderID: m.SenderID,
			Sender:   names[m.SenderID],
			Content:  m.Content,
			FileURL:  m.FileURL,
			SentAt:   m.SentAt,
		})
	}
	return out, nil
}
