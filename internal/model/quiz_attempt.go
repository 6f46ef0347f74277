package model

import "time"

// ShuffleData 每次作答固定的乱序顺序，创建时生成一次后不再变化
// Options 的 key 是题目ID的十进制字符串（JSON 对象键）
type ShuffleData struct {
	Questions []uint            `json:"questions"`
	Options   map[string][]uint `json:"options"`
}

// QuizAttempt 一次计时作答
// (quiz_id, user_id, attempt_number) 唯一，编号从 1 开始连续递增
// SubmittedAt 为空表示进行中；一旦写入不再改动，且同事务内必有 QuizResult
// swagger:model QuizAttempt
type QuizAttempt struct {
	ID            uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	QuizID        uint       `gorm:"not null;uniqueIndex:uq_attempt_number,priority:1" json:"quizId"`
	UserID        uint       `gorm:"not null;uniqueIndex:uq_attempt_number,priority:2" json:"userId"`
	AttemptNumber int        `gorm:"default:1;uniqueIndex:uq_attempt_number,priority:3" json:"attemptNumber"`
	StartedAt     time.Time  `gorm:"not null" json:"startedAt"`
	SubmittedAt   *time.Time `json:"submittedAt"`
	Deadline      *time.Time `json:"deadline"`
	ShuffleData   string     `gorm:"type:json" json:"shuffleData,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`

	Quiz    *Quiz        `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Answers []QuizAnswer `gorm:"foreignKey:AttemptID;constraint:OnDelete:CASCADE" json:"answers,omitempty"`
	Result  *QuizResult  `gorm:"foreignKey:AttemptID;constraint:OnDelete:CASCADE" json:"result,omitempty"`
}

func (QuizAttempt) TableName() string {
	return "quiz_attempts"
}

// Submitted 是否已交卷（终态）
func (a *QuizAttempt) Submitted() bool {
	return a.SubmittedAt != nil
}

// DeadlinePassed 截止时间是否已过（now 由调用方传入，便于测试）
func (a *QuizAttempt) DeadlinePassed(now time.Time) bool {
	return a.Deadline != nil && now.After(*a.Deadline)
}
