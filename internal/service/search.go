package service

import (
	"strings"

	"github.com/bhumika-maharjan/Chat-Application/internal/models"
	"gorm.io/gorm"
)

const searchLimit = 10

// SearchService 提供用户与房间的前缀搜索。
type SearchService struct {
	db *gorm.DB
}

func NewSearchService(db *gorm.DB) *SearchService {
	return &SearchService{db: db}
}

// UserDTO 搜索结果里的用户条目。
type UserDTO struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

func prefixPattern(q string) string {
	q = strings.ToLower(strings.TrimSpace(q))
	q = strings.NewReplacer("%", `\%`, "_", `\_`).Replace(q)
	return q + "%"
}

// Users 按用户名前缀搜索用户。
func (s *SearchService) Users(query string) ([]UserDTO, error) {
	var users []models.User
	err := s.db.Where("lower(username) LIKE ?", prefixPattern(query)).
		Limit(searchLimit).Find(&users).Error
	if err != nil {
		return nil, err
	}
	out := make([]UserDTO, 0, len(users))
	for i := range users {
		out = append(out, UserDTO{ID: users[i].ID, Username: users[i].Username, Name: users[i].DisplayName()})
	}
	return out, nil
}

// Rooms 按房间名前缀搜索未删除的房间。
func (s *SearchService) Rooms(query string) ([]RoomDTO, error) {
	var rooms []models.Room
	err := s.db.Where("is_deleted = ? AND lower(name) LIKE ?", false, prefixPattern(query)).
		Limit(searchLimit).Find(&rooms).Error
	if err != nil {
		return nil, err
	}
	out := make([]RoomDTO, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, RoomDTO{ID: r.ID, Name: r.Name, IsPrivate: r.IsPrivate})
	}
	return out, nil
}

// UsersInRoom 在指定房间的成员里按用户名前缀搜索。
func (s *SearchService) UsersInRoom(roomID uint, query string) ([]UserDTO, error) {
	var users []models.User
	err := s.db.Joins("JOIN room_members ON room_members.user_id = users.id").
		Where("room_members.room_id = ? AND lower(users.username) LIKE ?", roomID, prefixPattern(query)).
		Limit(searchLimit).Find(&users).Error
	if err != nil {
		return nil, err
	}
	out := make([]UserDTO, 0, len(users))
	for i := range users {
		out = append(out, UserDTO{ID: users[i].ID, Username: users[i].Username, Name: users[i].DisplayName()})
	}
	return out, nil
}
