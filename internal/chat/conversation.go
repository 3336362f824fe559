package chat

import (
	"errors"

	"github.com/bhumika-maharjan/Chat-Application/internal/auth"
	"github.com/bhumika-maharjan/Chat-Application/internal/models"
	"gorm.io/gorm"
)

// Conversation 把房间会话与私聊会话收敛到同一份 append/回放契约上，
// 两个变体只在授权规则和是否跟踪投递状态上有差异。
type Conversation interface {
	// Authorize 校验 userID 是否允许接入；credential 是私有房间口令,
	// 私聊场景忽略。授权只在会话注册时执行一次。
	Authorize(db *gorm.DB, userID uint, credential string) error
	// Scope 过滤出属于该会话的消息。
	Scope(tx *gorm.DB) *gorm.DB
	// Fill 把会话目标写进待持久化的消息。
	Fill(m *models.Message)
	// Tracked 报告该会话的消息是否携带投递状态。
	Tracked() bool
}

// RoomConversation 是以房间为目标的会话。
type RoomConversation struct {
	RoomID uint
}

func (c RoomConversation) Authorize(db *gorm.DB, userID uint, credential string) error {
	var room models.Room
	if err := db.First(&room, c.RoomID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAccessDenied
		}
		return err
	}
	if room.IsDeleted {
		return ErrAccessDenied
	}
	var count int64
	if err := db.Model(&models.RoomMember{}).
		Where("user_id = ? AND room_id = ?", userID, c.RoomID).
		Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrNotAMember
	}
	if room.IsPrivate && !auth.VerifyPassword(room.KeyHash, credential) {
		return ErrAccessDenied
	}
	return nil
}

func (c RoomConversation) Scope(tx *gorm.DB) *gorm.DB {
	return tx.Where("room_id = ?", c.RoomID)
}

func (c RoomConversation) Fill(m *models.Message) {
	id := c.RoomID
	m.RoomID = &id
}

func (c RoomConversation) Tracked() bool { return false }

// DirectConversation 是两个用户之间的私聊会话，UserID 为发起方。
type DirectConversation struct {
	UserID uint
	PeerID uint
}

func (c DirectConversation) Authorize(db *gorm.DB, userID uint, _ string) error {
	if c.PeerID == userID {
		return ErrAccessDenied
	}
	var count int64
	if err := db.Model(&models.User{}).Where("id = ?", c.PeerID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrAccessDenied
	}
	return nil
}

// Scope 合并两个方向的消息，回放时形成一条按时间排序的流。
func (c DirectConversation) Scope(tx *gorm.DB) *gorm.DB {
	return tx.Where(
		"(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
		c.UserID, c.PeerID, c.PeerID, c.UserID,
	)
}

func (c DirectConversation) Fill(m *models.Message) {
	peer := c.PeerID
	if m.SenderID == c.PeerID {
		peer = c.UserID
	}
	m.ReceiverID = &peer
}

func (c DirectConversation) Tracked() bool { return true }
