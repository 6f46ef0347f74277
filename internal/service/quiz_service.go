package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"quizhub_backend/internal/model"
	"quizhub_backend/internal/repository"
	"quizhub_backend/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// QuizService 测验、题目、选项的管理，以及作答路径使用的题目快照缓存
// 答题期间题目内容视为只读（见 AttemptService），因此快照可以安全缓存，
// 任何题目变更都会使对应测验的缓存失效
type QuizService struct {
	QuizRepo     *repository.QuizRepository
	QuestionRepo *repository.QuestionRepository
	OptionRepo   *repository.OptionRepository
	Redis        *redis.Client
	CacheTTL     time.Duration
}

func NewQuizService(
	quizRepo *repository.QuizRepository,
	questionRepo *repository.QuestionRepository,
	optionRepo *repository.OptionRepository,
	rdb *redis.Client,
	cacheTTL time.Duration,
) *QuizService {
	return &QuizService{
		QuizRepo:     quizRepo,
		QuestionRepo: questionRepo,
		OptionRepo:   optionRepo,
		Redis:        rdb,
		CacheTTL:     cacheTTL,
	}
}

const quizCacheKeyPrefix = "quiz:payload:"

type OptionCreateRequest struct {
	Text      string `json:"text" binding:"required"`
	IsCorrect bool   `json:"isCorrect"`
}

type QuestionCreateRequest struct {
	Text    string                `json:"text" binding:"required"`
	Marks   int                   `json:"marks"`
	Options []OptionCreateRequest `json:"options"`
}

type QuizCreateRequest struct {
	Title       string                  `json:"title" binding:"required"`
	Description string                  `json:"description"`
	TotalTime   int                     `json:"totalTime" binding:"required,gt=0"`
	MaxAttempts *int                    `json:"maxAttempts"`
	IsActive    *bool                   `json:"isActive"`
	Questions   []QuestionCreateRequest `json:"questions"`
}

// QuizUpdateRequest 显式的可选字段更新，未提供的字段保持原值
// MaxAttempts 传 0 表示取消次数限制
type QuizUpdateRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	TotalTime   *int    `json:"totalTime"`
	MaxAttempts *int    `json:"maxAttempts"`
	IsActive    *bool   `json:"isActive"`
}

func (s *QuizService) CreateQuiz(req QuizCreateRequest) (*model.Quiz, error) {
	quiz := &model.Quiz{
		Title:       req.Title,
		Description: req.Description,
		TotalTime:   req.TotalTime,
		MaxAttempts: req.MaxAttempts,
		IsActive:    true,
	}
	if req.IsActive != nil {
		quiz.IsActive = *req.IsActive
	}
	for _, q := range req.Questions {
		marks := q.Marks
		if marks <= 0 {
			marks = 1
		}
		question := model.Question{Text: q.Text, Marks: marks}
		for _, o := range q.Options {
			question.Options = append(question.Options, model.Option{
				Text:      o.Text,
				IsCorrect: o.IsCorrect,
			})
		}
		quiz.Questions = append(quiz.Questions, question)
	}

	if err := s.QuizRepo.Create(quiz); err != nil {
		return nil, err
	}
	return quiz, nil
}

func (s *QuizService) GetQuiz(id uint) (*model.Quiz, error) {
	return s.QuizRepo.FindByID(id)
}

func (s *QuizService) ListQuizzes(page, limit int, activeOnly bool) ([]model.Quiz, int64, error) {
	return s.QuizRepo.List(page, limit, activeOnly)
}

func (s *QuizService) UpdateQuiz(id uint, req QuizUpdateRequest) (*model.Quiz, error) {
	quiz, err := s.QuizRepo.FindByID(id)
	if err != nil {
		return nil, err
	}
	if req.Title != nil {
		quiz.Title = *req.Title
	}
	if req.Description != nil {
		quiz.Description = *req.Description
	}
	if req.TotalTime != nil {
		quiz.TotalTime = *req.TotalTime
	}
	if req.MaxAttempts != nil {
		if *req.MaxAttempts <= 0 {
			quiz.MaxAttempts = nil
		} else {
			quiz.MaxAttempts = req.MaxAttempts
		}
	}
	if req.IsActive != nil {
		quiz.IsActive = *req.IsActive
	}
	if err := s.QuizRepo.Update(quiz); err != nil {
		return nil, err
	}
	s.invalidate(id)
	return quiz, nil
}

func (s *QuizService) DeleteQuiz(id uint) error {
	if err := s.QuizRepo.Delete(id); err != nil {
		return err
	}
	s.invalidate(id)
	return nil
}

// GetQuizContent 作答路径使用的完整题目快照（含选项正确性，禁止直接下发给客户端）
// 先查 Redis，未命中回源数据库并写回
func (s *QuizService) GetQuizContent(ctx context.Context, quizID uint) (*model.Quiz, error) {
	key := fmt.Sprintf("%s%d", quizCacheKeyPrefix, quizID)

	if s.Redis != nil {
		val, err := s.Redis.Get(ctx, key).Result()
		if err == nil {
			var quiz model.Quiz
			if jsonErr := json.Unmarshal([]byte(val), &quiz); jsonErr == nil {
				return &quiz, nil
			}
			// 缓存损坏则删除后回源
			s.Redis.Del(ctx, key)
		} else if err != redis.Nil {
			logger.Log.Warn("quiz cache read failed", zap.Uint("quizId", quizID), zap.Error(err))
		}
	}

	quiz, err := s.QuizRepo.FindWithQuestions(quizID)
	if err != nil {
		return nil, err
	}

	if s.Redis != nil {
		if b, jsonErr := json.Marshal(quiz); jsonErr == nil {
			if err := s.Redis.Set(ctx, key, b, s.CacheTTL).Err(); err != nil {
				logger.Log.Warn("quiz cache write failed", zap.Uint("quizId", quizID), zap.Error(err))
			}
		}
	}
	return quiz, nil
}

func (s *QuizService) invalidate(quizID uint) {
	if s.Redis == nil {
		return
	}
	key := fmt.Sprintf("%s%d", quizCacheKeyPrefix, quizID)
	if err := s.Redis.Del(context.Background(), key).Err(); err != nil {
		logger.Log.Warn("quiz cache invalidation failed", zap.Uint("quizId", quizID), zap.Error(err))
	}
}

// ===============================
// 题目管理
// ===============================

func (s *QuizService) AddQuestion(quizID uint, req QuestionCreateRequest) (*model.Question, error) {
	if _, err := s.QuizRepo.FindByID(quizID); err != nil {
		return nil, err
	}
	marks := req.Marks
	if marks <= 0 {
		marks = 1
	}
	question := &model.Question{
		QuizID: quizID,
		Text:   req.Text,
		Marks:  marks,
	}
	for _, o := range req.Options {
		question.Options = append(question.Options, model.Option{
			Text:      o.Text,
			IsCorrect: o.IsCorrect,
		})
	}
	if err := s.QuestionRepo.Create(question); err != nil {
		return nil, err
	}
	s.invalidate(quizID)
	return question, nil
}

func (s *QuizService) ListQuestions(quizID uint) ([]model.Question, error) {
	if _, err := s.QuizRepo.FindByID(quizID); err != nil {
		return nil, err
	}
	return s.QuestionRepo.ListByQuiz(quizID)
}

// QuestionUpdateRequest 显式可选字段更新
type QuestionUpdateRequest struct {
	Text  *string `json:"text"`
	Marks *int    `json:"marks"`
}

func (s *QuizService) UpdateQuestion(questionID uint, req QuestionUpdateRequest) (*model.Question, error) {
	question, err := s.QuestionRepo.FindByID(questionID)
	if err != nil {
		return nil, err
	}
	if req.Text != nil {
		question.Text = *req.Text
	}
	if req.Marks != nil && *req.Marks > 0 {
		question.Marks = *req.Marks
	}
	if err := s.QuestionRepo.Update(question); err != nil {
		return nil, err
	}
	s.invalidate(question.QuizID)
	return question, nil
}

func (s *QuizService) DeleteQuestion(questionID uint) error {
	question, err := s.QuestionRepo.FindByID(questionID)
	if err != nil {
		return err
	}
	if err := s.QuestionRepo.Delete(questionID); err != nil {
		return err
	}
	s.invalidate(question.QuizID)
	return nil
}

// ===============================
// 选项管理
// ===============================

func (s *QuizService) AddOption(questionID uint, req OptionCreateRequest) (*model.Option, error) {
	question, err := s.QuestionRepo.FindByID(questionID)
	if err != nil {
		return nil, err
	}
	option := &model.Option{
		QuestionID: questionID,
		Text:       req.Text,
		IsCorrect:  req.IsCorrect,
	}
	if err := s.OptionRepo.Create(option); err != nil {
		return nil, err
	}
	s.invalidate(question.QuizID)
	return option, nil
}

// OptionUpdateRequest 显式可选字段更新
type OptionUpdateRequest struct {
	Text      *string `json:"text"`
	IsCorrect *bool   `json:"isCorrect"`
}

func (s *QuizService) UpdateOption(optionID uint, req OptionUpdateRequest) (*model.Option, error) {
	option, err := s.OptionRepo.FindByID(optionID)
	if err != nil {
		return nil, err
	}
	if req.Text != nil {
		option.Text = *req.Text
	}
	if req.IsCorrect != nil {
		option.IsCorrect = *req.IsCorrect
	}
	if err := s.OptionRepo.Update(option); err != nil {
		return nil, err
	}
	question, err := s.QuestionRepo.FindByID(option.QuestionID)
	if err == nil {
		s.invalidate(question.QuizID)
	}
	return option, nil
}

func (s *QuizService) DeleteOption(optionID uint) error {
	option, err := s.OptionRepo.FindByID(optionID)
	if err != nil {
		return err
	}
	if err := s.OptionRepo.Delete(optionID); err != nil {
		return err
	}
	if question, err := s.QuestionRepo.FindByID(option.QuestionID); err == nil {
		s.invalidate(question.QuizID)
	}
	return nil
}
