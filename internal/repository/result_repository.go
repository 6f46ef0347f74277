package repository

import (
	"errors"
	"time"

	"quizhub_backend/internal/model"
	"quizhub_backend/internal/util"

	"gorm.io/gorm"
)

type ResultRepository struct {
	DB *gorm.DB
}

func NewResultRepository(db *gorm.DB) *ResultRepository {
	return &ResultRepository{DB: db}
}

func (r *ResultRepository) FindByAttempt(attemptID uint) (*model.QuizResult, error) {
	var result model.QuizResult
	err := r.DB.Where("attempt_id = ?", attemptID).First(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrResultNotFound
		}
		return nil, err
	}
	return &result, nil
}

// ResultRow 管理端成绩列表的联表行
type ResultRow struct {
	ID          uint       `json:"id"`
	Score       int        `json:"score"`
	MaxScore    int        `json:"maxScore"`
	GradedAt    time.Time  `json:"gradedAt"`
	AttemptID   uint       `json:"attemptId"`
	QuizID      uint       `json:"quizId"`
	QuizTitle   string     `json:"quizTitle"`
	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt"`
	UserID      uint       `json:"userId"`
	UserName    string     `json:"userName"`
	UserEmail   string     `json:"userEmail"`
}

func (r *ResultRepository) joined() *gorm.DB {
	return r.DB.Model(&model.QuizResult{}).
		Joins("JOIN quiz_attempts ON quiz_attempts.id = quiz_results.attempt_id").
		Joins("JOIN quizzes ON quizzes.id = quiz_attempts.quiz_id").
		Joins("JOIN users ON users.id = quiz_attempts.user_id")
}

func (r *ResultRepository) ListAll(page, limit int) ([]ResultRow, int64, error) {
	var total int64
	if err := r.joined().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []ResultRow
	err := r.joined().
		Select(`quiz_results.id, quiz_results.score, quiz_results.max_score, quiz_results.graded_at,
			quiz_attempts.id AS attempt_id, quiz_attempts.quiz_id, quizzes.title AS quiz_title,
			quiz_attempts.started_at, quiz_attempts.submitted_at AS completed_at,
			users.id AS user_id, users.name AS user_name, users.email AS user_email`).
		Order("quiz_results.id DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Scan(&rows).Error
	return rows, total, err
}
