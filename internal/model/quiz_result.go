package model

import "time"

// QuizResult 交卷后生成的成绩，每次作答至多一条，生成后不再重算
// swagger:model QuizResult
type QuizResult struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	AttemptID uint      `gorm:"not null;uniqueIndex" json:"attemptId"`
	Score     int       `gorm:"not null" json:"score"`
	MaxScore  int       `gorm:"not null" json:"maxScore"`
	GradedAt  time.Time `gorm:"not null" json:"gradedAt"`
}

func (QuizResult) TableName() string {
	return "quiz_results"
}
