package models

import (
	"strings"
	"time"
)

type User struct {
	ID           uint   `gorm:"primaryKey"`
	Username     string `gorm:"uniqueIndex;size:64;not null"`
	FirstName    string `gorm:"size:64;not null"`
	MiddleName   string `gorm:"size:64"`
	LastName     string `gorm:"size:64;not null"`
	Email        string `gorm:"uniqueIndex;size:128;not null"`
	PasswordHash string `gorm:"not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DisplayName 返回对外展示用的用户全名。
func (u *User) DisplayName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

type Room struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"size:128;not null"`
	OwnerID   uint   `gorm:"not null"`
	IsPrivate bool   `gorm:"not null;default:false"`
	// KeyHash 保存私有房间口令的 bcrypt 哈希，公开房间为空。
	KeyHash   string `gorm:"size:128"`
	IsDeleted bool   `gorm:"not null;default:false"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type RoomMember struct {
	ID       uint `gorm:"primaryKey"`
	UserID   uint `gorm:"uniqueIndex:idx_member_user_room;not null"`
	RoomID   uint `gorm:"uniqueIndex:idx_member_user_room;not null"`
	IsAdmin  bool `gorm:"not null;default:false"`
	JoinedAt time.Time
}

// 私聊消息的投递状态，只会沿 sent -> delivered -> read 前进。
const (
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
)

// Message 同时承载房间消息与私聊消息：RoomID 与 ReceiverID 互斥，
// 恰好一个非空。房间消息不携带投递状态。
type Message struct {
	ID         uint      `gorm:"primaryKey"`
	Content    *string   `gorm:"type:text"`
	SenderID   uint      `gorm:"index;not null"`
	RoomID     *uint     `gorm:"index"`
	ReceiverID *uint     `gorm:"index"`
	FileURL    *string   `gorm:"size:512"`
	FileType   *string   `gorm:"size:128"`
	Status     string    `gorm:"size:16"`
	SentAt     time.Time `gorm:"index;not null"`
}

type RefreshToken struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"index;not null"`
	Token     string    `gorm:"uniqueIndex;size:128;not null"`
	ExpiresAt time.Time `gorm:"index;not null"`
	RevokedAt *time.Time
	CreatedAt time.Time
}
