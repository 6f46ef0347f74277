package model

// QuizAnswer 学生对某题的作答；(attempt_id, question_id) 唯一，重复提交覆盖原选项
// SelectedOptionID 为空表示放弃作答
// swagger:model QuizAnswer
type QuizAnswer struct {
	ID               uint  `gorm:"primaryKey;autoIncrement" json:"id"`
	AttemptID        uint  `gorm:"not null;uniqueIndex:uq_answer_attempt_question,priority:1" json:"attemptId"`
	QuestionID       uint  `gorm:"not null;uniqueIndex:uq_answer_attempt_question,priority:2" json:"questionId"`
	SelectedOptionID *uint `json:"selectedOptionId"`
	IsCorrect        bool  `gorm:"default:false" json:"isCorrect"`
}

func (QuizAnswer) TableName() string {
	return "quiz_answers"
}
