package service

import (
	"fmt"
	"time"

	"github.com/bhumika-maharjan/Chat-Application/internal/auth"
	"github.com/bhumika-maharjan/Chat-Application/internal/chat"
	"github.com/bhumika-maharjan/Chat-Application/internal/models"
	"gorm.io/gorm"
)

// RoomService 封装房间管理逻辑：创建、加入、退出、列表。实时广播
// 本身属于 chat 包，这里只在退出时借道注册表广播离开消息。
type RoomService struct {
	db    *gorm.DB
	store *chat.Store
	rooms *chat.RoomRegistry
}

func NewRoomService(db *gorm.DB, store *chat.Store, rooms *chat.RoomRegistry) *RoomService {
	return &RoomService{db: db, store: store, rooms: rooms}
}

// RoomDTO 对外输出的房间数据。
type RoomDTO struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	IsPrivate bool   `json:"is_private"`
	Online    int    `json:"online"`
}

// Create 创建房间并把创建者登记为管理员成员。私有房间必须携带
// 口令，口令以 bcrypt 哈希存储。
func (s *RoomService) Create(name string, private bool, key string, ownerID uint) (*RoomDTO, error) {
	room := models.Room{Name: name, OwnerID: ownerID, IsPrivate: private}
	if private {
		hash, err := auth.HashPassword(key)
		if err != nil {
			return nil, err
		}
		room.KeyHash = hash
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&room).Error; err != nil {
			return err
		}
		member := models.RoomMember{UserID: ownerID, RoomID: room.ID, IsAdmin: true, JoinedAt: time.Now()}
		return tx.Create(&member).Error
	})
	if err != nil {
		return nil, err
	}
	return &RoomDTO{ID: room.ID, Name: room.Name, IsPrivate: room.IsPrivate, Online: 0}, nil
}

// List 返回房间列表，附带各房间在线人数。
func (s *RoomService) List(limit int) ([]RoomDTO, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	var rooms []models.Room
	if err := s.db.Where("is_deleted = ?", false).Order("id desc").Limit(limit).Find(&rooms).Error; err != nil {
		return nil, err
	}
	out := make([]RoomDTO, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, RoomDTO{ID: r.ID, Name: r.Name, IsPrivate: r.IsPrivate, Online: s.rooms.Online(r.ID)})
	}
	return out, nil
}

// Exists 按 id 取房间，软删除的房间视为不存在。
func (s *RoomService) Exists(roomID uint) (*models.Room, error) {
	var room models.Room
	if err := s.db.First(&room, roomID).Error; err != nil || room.IsDeleted {
		return nil, ErrRoomNotFound
	}
	return &room, nil
}

// Join 登记成员关系；每个 (用户, 房间) 至多一行，重复加入是空操作。
func (s *RoomService) Join(userID, roomID uint) error {
	if _, err := s.Exists(roomID); err != nil {
		return err
	}
	var count int64
	if err := s.db.Model(&models.RoomMember{}).
		Where("user_id = ? AND room_id = ?", userID, roomID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	member := models.RoomMember{UserID: userID, RoomID: roomID, JoinedAt: time.Now()}
	return s.db.Create(&member).Error
}

// Leave 删除成员关系，并把离开消息持久化后广播给房间在线会话。
func (s *RoomService) Leave(user *models.User, roomID uint) error {
	var count int64
	if err := s.db.Model(&models.RoomMember{}).
		Where("user_id = ? AND room_id = ?", user.ID, roomID).
		Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrNotAMember
	}

	text := fmt.Sprintf("%s has left the chat.", user.DisplayName())
	conv := chat.RoomConversation{RoomID: roomID}
	err := s.rooms.Dispatch(roomID, func() (string, error) {
		m, err := s.store.Append(conv, user.ID, &text, nil, nil)
		if err != nil {
			return "", err
		}
		return chat.FormatLine(m, user.DisplayName()), nil
	})
	if err != nil {
		return err
	}
	return s.db.Where("user_id = ? AND room_id = ?", user.ID, roomID).
		Delete(&models.RoomMember{}).Error
}
