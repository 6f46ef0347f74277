package model

// Option 题目选项；每题预期只有一个 IsCorrect=true 的选项（出题端负责，核心不校验）
// swagger:model Option
type Option struct {
	ID         uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	QuestionID uint   `gorm:"index;not null" json:"questionId"`
	Text       string `gorm:"type:text;not null" json:"text"`
	IsCorrect  bool   `gorm:"default:false" json:"isCorrect,omitempty"`
}

func (Option) TableName() string {
	return "options"
}
