package repository

import (
	"time"

	"quizhub_backend/internal/model"

	"gorm.io/gorm"
)

type RefreshTokenRepository struct {
	DB *gorm.DB
}

func NewRefreshTokenRepository(db *gorm.DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{DB: db}
}

func (r *RefreshTokenRepository) Save(userID uint, token string, expiresAt time.Time) error {
	return r.DB.Create(&model.RefreshToken{
		UserID:    userID,
		Token:     token,
		ExpiresAt: expiresAt,
	}).Error
}

func (r *RefreshTokenRepository) Find(token string) (*model.RefreshToken, error) {
	var rt model.RefreshToken
	err := r.DB.Where("token = ?", token).First(&rt).Error
	if err != nil {
		return nil, err
	}
	return &rt, nil
}

// Rotate 吊销旧令牌并写入新令牌，同一事务内完成
func (r *RefreshTokenRepository) Rotate(old *model.RefreshToken, newToken string, expiresAt time.Time) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(old).Update("revoked", true).Error; err != nil {
			return err
		}
		return tx.Create(&model.RefreshToken{
			UserID:    old.UserID,
			Token:     newToken,
			ExpiresAt: expiresAt,
		}).Error
	})
}

func (r *RefreshTokenRepository) Revoke(token string) error {
	return r.DB.Model(&model.RefreshToken{}).
		Where("token = ?", token).
		Update("revoked", true).
		Error
}
