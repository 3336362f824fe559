package chat

import (
	"fmt"
	"time"

	"github.com/bhumika-maharjan/Chat-Application/internal/models"
	"gorm.io/gorm"
)

// Store 是聊天核心的持久化门面：追加消息、按会话回放历史、
// 推进投递状态。所有失败都包装成 ErrPersistence 暴露给调用方。
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store { return &Store{db: db} }

// DB 暴露底层句柄给授权检查等只读路径。
func (s *Store) DB() *gorm.DB { return s.db }

// Append 持久化一条新消息，分配 id 与 sent_at。同一会话内 sent_at
// 严格递增；调用方已按会话串行化追加，这里只需在时钟分辨率不足或
// 回拨时向前顶一格。
func (s *Store) Append(conv Conversation, senderID uint, content, fileURL, fileType *string) (*models.Message, error) {
	m := models.Message{
		SenderID: senderID,
		Content:  content,
		FileURL:  fileURL,
		FileType: fileType,
		SentAt:   time.Now(),
	}
	conv.Fill(&m)
	if conv.Tracked() {
		m.Status = models.StatusSent
	}

	var last models.Message
	if err := conv.Scope(s.db).Order("sent_at desc").Limit(1).Find(&last).Error; err != nil {
		return nil, fmt.Errorf("%w: read last sent_at: %v", ErrPersistence, err)
	}
	if last.ID != 0 && !m.SentAt.After(last.SentAt) {
		m.SentAt = last.SentAt.Add(time.Microsecond)
	}

	if err := s.db.Create(&m).Error; err != nil {
		return nil, fmt.Errorf("%w: append message: %v", ErrPersistence, err)
	}
	return &m, nil
}

// History 返回会话的全部消息，按 sent_at 升序。私聊会话合并两个
// 方向。可重复调用，反映调用时刻的状态。
func (s *Store) History(conv Conversation) ([]models.Message, error) {
	var msgs []models.Message
	if err := conv.Scope(s.db).Order("sent_at asc").Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("%w: read history: %v", ErrPersistence, err)
	}
	return msgs, nil
}

func (s *Store) Get(id uint) (*models.Message, error) {
	var m models.Message
	if err := s.db.First(&m, id).Error; err != nil {
		return nil, fmt.Errorf("%w: load message %d: %v", ErrPersistence, id, err)
	}
	return &m, nil
}

// SetStatus 以比较并置换的方式推进消息状态：只有当前状态仍等于 from
// 时才更新，返回是否真的写入。并发迁移输掉竞争时返回 false，状态
// 因此永远不会被旧副本拉回去。
func (s *Store) SetStatus(id uint, from, to string) (bool, error) {
	res := s.db.Model(&models.Message{}).Where("id = ? AND status = ?", id, from).Update("status", to)
	if res.Error != nil {
		return false, fmt.Errorf("%w: update status: %v", ErrPersistence, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// SenderName 解析单个用户的展示名。
func (s *Store) SenderName(userID uint) (string, error) {
	var user models.User
	if err := s.db.Select("id", "first_name", "last_name").First(&user, userID).Error; err != nil {
		return "", fmt.Errorf("%w: load user %d: %v", ErrPersistence, userID, err)
	}
	return user.DisplayName(), nil
}

// DisplayNames 批量解析一组消息发送者的展示名，回放时避免逐条查库。
func (s *Store) DisplayNames(msgs []models.Message) (map[uint]string, error) {
	seen := make(map[uint]struct{}, len(msgs))
	ids := make([]uint, 0, len(msgs))
	for _, m := range msgs {
		if _, ok := seen[m.SenderID]; ok {
			continue
		}
		seen[m.SenderID] = struct{}{}
		ids = append(ids, m.SenderID)
	}

	names := make(map[uint]string, len(ids))
	if len(ids) > 0 {
		var users []models.User
		if err := s.db.Select("id", "first_name", "last_name").Where("id IN ?", ids).Find(&users).Error; err != nil {
			return nil, fmt.Errorf("%w: load users: %v", ErrPersistence, err)
		}
		for i := range users {
			names[users[i].ID] = users[i].DisplayName()
		}
	}
	return names, nil
}
