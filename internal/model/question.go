package model

// Question 测验题目，Marks 为该题分值
// swagger:model Question
type Question struct {
	ID     uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	QuizID uint   `gorm:"index;not null" json:"quizId"`
	Text   string `gorm:"type:text;not null" json:"text"`
	Marks  int    `gorm:"default:1" json:"marks"`

	Options []Option `gorm:"constraint:OnDelete:CASCADE" json:"options,omitempty"`
}

func (Question) TableName() string {
	return "questions"
}
