package service

import (
	"errors"

	"quizhub_backend/internal/model"
	"quizhub_backend/internal/repository"
	"quizhub_backend/internal/util"

	"gorm.io/gorm"
)

type UserService struct {
	UserRepo *repository.UserRepository
}

func NewUserService(userRepo *repository.UserRepository) *UserService {
	return &UserService{UserRepo: userRepo}
}

func (s *UserService) GetUser(id uint) (*model.User, error) {
	user, err := s.UserRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *UserService) ListUsers(page, limit int) ([]model.User, int64, error) {
	return s.UserRepo.List(page, limit)
}

// UpdateRole 管理员调整用户角色
func (s *UserService) UpdateRole(userID uint, role model.UserRole) error {
	switch role {
	case model.Student, model.Teacher, model.Admin:
	default:
		return errors.New("无效的角色")
	}
	if _, err := s.GetUser(userID); err != nil {
		return err
	}
	return s.UserRepo.UpdateRole(userID, role)
}

// SetDisabled 禁用/启用账号，禁用后无法登录和刷新令牌
func (s *UserService) SetDisabled(userID uint, disabled bool) error {
	user, err := s.GetUser(userID)
	if err != nil {
		return err
	}
	user.Disabled = disabled
	return s.UserRepo.Update(user)
}
