package model

import "time"

// Quiz 测验，拥有一组题目；TotalTime 为答题时长（分钟）
// 删除测验时级联删除其题目与作答记录（数据库外键 CASCADE）
// swagger:model Quiz
type Quiz struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	TotalTime   int       `gorm:"not null" json:"totalTime"`
	MaxAttempts *int      `json:"maxAttempts"` // nil = 不限次数
	IsActive    bool      `gorm:"default:true" json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`

	Questions []Question    `gorm:"constraint:OnDelete:CASCADE" json:"questions,omitempty"`
	Attempts  []QuizAttempt `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (Quiz) TableName() string {
	return "quizzes"
}
