package service

import (
	"quizhub_backend/internal/model"
	"quizhub_backend/internal/repository"
	"quizhub_backend/internal/util"
)

type ResultService struct {
	ResultRepo  *repository.ResultRepository
	AttemptRepo *repository.AttemptRepository
}

func NewResultService(resultRepo *repository.ResultRepository, attemptRepo *repository.AttemptRepository) *ResultService {
	return &ResultService{ResultRepo: resultRepo, AttemptRepo: attemptRepo}
}

// GetResultForUser 查询指定作答的成绩，只允许查询本人的
func (s *ResultService) GetResultForUser(attemptID, userID uint) (*model.QuizResult, error) {
	attempt, err := s.AttemptRepo.FindByID(attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.UserID != userID {
		return nil, util.ErrAttemptNotFound
	}
	return s.ResultRepo.FindByAttempt(attemptID)
}

// ListResults 管理端成绩列表，联表带出测验与学生信息
func (s *ResultService) ListResults(page, limit int) ([]repository.ResultRow, int64, error) {
	return s.ResultRepo.ListAll(page, limit)
}
