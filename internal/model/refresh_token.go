package model

import "time"

// RefreshToken 持久化的刷新令牌，支持轮换与吊销
type RefreshToken struct {
	BaseModel
	UserID    uint      `gorm:"index;not null" json:"userId"`
	Token     string    `gorm:"size:64;uniqueIndex;not null" json:"-"`
	ExpiresAt time.Time `gorm:"not null" json:"expiresAt"`
	Revoked   bool      `gorm:"default:false" json:"revoked"`
}

func (RefreshToken) TableName() string {
	return "refresh_tokens"
}
