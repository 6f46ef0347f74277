package service

import (
	"errors"
	"time"

	"quizhub_backend/internal/config"
	"quizhub_backend/internal/model"
	"quizhub_backend/internal/repository"
	"quizhub_backend/internal/util"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type AuthService struct {
	UserRepo  *repository.UserRepository
	TokenRepo *repository.RefreshTokenRepository
	Cfg       *config.Config
}

func NewAuthService(userRepo *repository.UserRepository, tokenRepo *repository.RefreshTokenRepository, cfg *config.Config) *AuthService {
	return &AuthService{UserRepo: userRepo, TokenRepo: tokenRepo, Cfg: cfg}
}

type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// TokenPair 登录/刷新返回的令牌对
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
}

func (s *AuthService) Register(req *RegisterRequest) (*model.User, error) {
	if _, err := s.UserRepo.FindByEmail(req.Email); err == nil {
		return nil, util.ErrEmailRegistered
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Name:     req.Name,
		Email:    req.Email,
		Password: string(hashed),
		Role:     model.Student,
	}
	if err := s.UserRepo.Create(user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *AuthService) Login(req *LoginRequest) (*TokenPair, *model.User, error) {
	user, err := s.UserRepo.FindByEmail(req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, util.ErrInvalidCredential
		}
		return nil, nil, err
	}
	if user.Disabled {
		return nil, nil, util.ErrInvalidCredential
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		return nil, nil, util.ErrInvalidCredential
	}

	user.LastLogin = time.Now()
	user.LastSeen = user.LastLogin
	if err := s.UserRepo.Update(user); err != nil {
		return nil, nil, err
	}

	pair, err := s.issueTokens(user)
	if err != nil {
		return nil, nil, err
	}
	return pair, user, nil
}

// Refresh 刷新令牌轮换：旧令牌吊销，换发新的令牌对
// 已吊销或过期的刷新令牌一律拒绝
func (s *AuthService) Refresh(refreshToken string) (*TokenPair, error) {
	rt, err := s.TokenRepo.Find(refreshToken)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrInvalidRefresh
		}
		return nil, err
	}
	if rt.Revoked || time.Now().After(rt.ExpiresAt) {
		return nil, util.ErrInvalidRefresh
	}

	user, err := s.UserRepo.FindByID(rt.UserID)
	if err != nil {
		return nil, util.ErrInvalidRefresh
	}
	if user.Disabled {
		return nil, util.ErrInvalidRefresh
	}

	access, err := util.GenerateJWT(user, s.Cfg.JWT.Secret, s.Cfg.JWT.ExpireTime)
	if err != nil {
		return nil, err
	}

	newToken := model.GenerateUUID()
	if err := s.TokenRepo.Rotate(rt, newToken, time.Now().Add(s.Cfg.JWT.RefreshExpireTime)); err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: access, RefreshToken: newToken, TokenType: "bearer"}, nil
}

func (s *AuthService) Logout(refreshToken string) error {
	return s.TokenRepo.Revoke(refreshToken)
}

func (s *AuthService) GetCurrentUser(userID uint) (*model.User, error) {
	user, err := s.UserRepo.FindByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *AuthService) issueTokens(user *model.User) (*TokenPair, error) {
	access, err := util.GenerateJWT(user, s.Cfg.JWT.Secret, s.Cfg.JWT.ExpireTime)
	if err != nil {
		return nil, err
	}
	refresh := model.GenerateUUID()
	if err := s.TokenRepo.Save(user.ID, refresh, time.Now().Add(s.Cfg.JWT.RefreshExpireTime)); err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh, TokenType: "bearer"}, nil
}
