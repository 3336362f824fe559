package service

import (
	"github.com/bhumika-maharjan/Chat-Application/internal/auth"
	"github.com/bhumika-maharjan/Chat-Application/internal/models"
	"gorm.io/gorm"
)

// ProfileService 封装个人资料相关逻辑。
type ProfileService struct {
	db *gorm.DB
}

func NewProfileService(db *gorm.DB) *ProfileService {
	return &ProfileService{db: db}
}

// ProfileDTO 对外输出的个人资料。
type ProfileDTO struct {
	ID         uint   `json:"id"`
	Username   string `json:"username"`
	FirstName  string `json:"first_name"`
	MiddleName string `json:"middle_name,omitempty"`
	LastName   string `json:"last_name"`
	Email      string `json:"email"`
}

func toProfileDTO(u *models.User) *ProfileDTO {
	return &ProfileDTO{
		ID:         u.ID,
		Username:   u.Username,
		FirstName:  u.FirstName,
		MiddleName: u.MiddleName,
		LastName:   u.LastName,
		Email:      u.Email,
	}
}

func (s *ProfileService) Get(userID uint) (*ProfileDTO, error) {
	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		return nil, err
	}
	return toProfileDTO(&user), nil
}

// UpdateInput 可更新的资料字段，nil 表示不修改。
type UpdateInput struct {
	FirstName  *string
	MiddleName *string
	LastName   *string
	Email      *string
}

// Update 按字段更新资料，返回更新后的完整资料。
func (s *ProfileService) Update(userID uint, in UpdateInput) (*ProfileDTO, error) {
	fields := map[string]any{}
	if in.FirstName != nil {
		fields["first_name"] = *in.FirstName
	}
	if in.MiddleName != nil {
		fields["middle_name"] = *in.MiddleName
	}
	if in.LastName != nil {
		fields["last_name"] = *in.LastName
	}
	if in.Email != nil {
		fields["email"] = *in.Email
	}
	if len(fields) > 0 {
		if err := s.db.Model(&models.User{}).Where("id = ?", userID).Updates(fields).Error; err != nil {
			return nil, err
		}
	}
	return s.Get(userID)
}

// ChangePassword 校验旧密码后替换为新密码的哈希。
func (s *ProfileService) ChangePassword(userID uint, oldPassword, newPassword string) error {
	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		return err
	}
	if !auth.VerifyPassword(user.PasswordHash, oldPassword) {
		return ErrWrongPassword
	}
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.db.Model(&models.User{}).Where("id = ?", userID).Update("password_hash", hash).Error
}
