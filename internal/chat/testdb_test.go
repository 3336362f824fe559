package chat

import (
	"testing"

	"github.com/bhumika-maharjan/Chat-Application/internal/auth"
	"github.com/bhumika-maharjan/Chat-Application/internal/models"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// openTestDB 打开一个内存 sqlite 数据库并迁移全部表。限制单连接，
// 避免连接池把内存库拆成多个实例。
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := gdb.AutoMigrate(&models.User{}, &models.Room{}, &models.RoomMember{}, &models.Message{}, &models.RefreshToken{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

func seedUser(t *testing.T, gdb *gorm.DB, username, first, last string) *models.User {
	t.Helper()
	u := models.User{
		Username:     username,
		FirstName:    first,
		LastName:     last,
		Email:        username + "@example.com",
		PasswordHash: "x",
	}
	if err := gdb.Create(&u).Error; err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	return &u
}

func seedRoom(t *testing.T, gdb *gorm.DB, name string, ownerID uint, key string) *models.Room {
	t.Helper()
	room := models.Room{Name: name, OwnerID: ownerID}
	if key != "" {
		hash, err := auth.HashPassword(key)
		if err != nil {
			t.Fatalf("hash room key: %v", err)
		}
		room.IsPrivate = true
		room.KeyHash = hash
	}
	if err := gdb.Create(&room).Error; err != nil {
		t.Fatalf("seed room %s: %v", name, err)
	}
	return &room
}

func seedMember(t *testing.T, gdb *gorm.DB, userID, roomID uint) {
	t.Helper()
	if err := gdb.Create(&models.RoomMember{UserID: userID, RoomID: roomID}).Error; err != nil {
		t.Fatalf("seed member: %v", err)
	}
}

// drain 读空会话出站缓冲里当前积压的全部帧。
func drain(s *Session) []string {
	var out []string
	for {
		select {
		case p := <-s.send:
			out = append(out, string(p))
		default:
			return out
		}
	}
}
