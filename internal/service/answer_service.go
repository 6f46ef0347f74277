package service

import (
	"context"
	"time"

	"quizhub_backend/internal/model"
	"quizhub_backend/internal/repository"
	"quizhub_backend/internal/util"
	"quizhub_backend/pkg/monitoring"

	"gorm.io/gorm"
)

// AnswerService 作答过程中的单题答案记录
// 同一 (attempt, question) 只保留一行，重复提交走原子 upsert
type AnswerService struct {
	AttemptRepo *repository.AttemptRepository
	QuizSvc     *QuizService
	AttemptSvc  *AttemptService
	DB          *gorm.DB
	TxRetries   int
}

func NewAnswerService(attemptRepo *repository.AttemptRepository, quizSvc *QuizService, attemptSvc *AttemptService, db *gorm.DB, txRetries int) *AnswerService {
	return &AnswerService{
		AttemptRepo: attemptRepo,
		QuizSvc:     quizSvc,
		AttemptSvc:  attemptSvc,
		DB:          db,
		TxRetries:   txRetries,
	}
}

// SaveAnswer 记录或更新一道题的选择
// 截止时间已过时先在同一事务内被动交卷，再拒绝本次写入；
// 正确性在写入时判定并落库，选项传 nil 表示清除选择
func (s *AnswerService) SaveAnswer(ctx context.Context, attemptID, userID, questionID uint, selectedOptionID *uint) (*AnswerView, error) {
	// 归属校验和测验快照都放在事务外，事务内读主库会占用第二个连接
	existing, err := s.AttemptRepo.FindByID(attemptID)
	if err != nil {
		return nil, err
	}
	if existing.UserID != userID {
		return nil, util.ErrAttemptNotFound
	}
	quiz, err := s.QuizSvc.GetQuizContent(ctx, existing.QuizID)
	if err != nil {
		return nil, err
	}

	var saved model.QuizAnswer
	closed := false
	err = repository.RunInTxWithRetry(s.DB, s.TxRetries, func(tx *gorm.DB) error {
		closed = false
		attempt, err := s.AttemptRepo.FindForUpdate(tx, attemptID)
		if err != nil {
			return err
		}
		if attempt.UserID != userID {
			return util.ErrAttemptNotFound
		}
		if attempt.Submitted() {
			return util.ErrAttemptSubmitted
		}

		// 过期：先在本事务内结算（必须随事务提交），写入拒绝在事务外报告
		if attempt.DeadlinePassed(time.Now().UTC()) {
			closed = true
			return s.AttemptSvc.forceSubmit(tx, attempt, quiz)
		}

		var question *model.Question
		for i := range quiz.Questions {
			if quiz.Questions[i].ID == questionID {
				question = &quiz.Questions[i]
				break
			}
		}
		if question == nil {
			return util.ErrQuestionNotFound
		}
		if selectedOptionID != nil {
			found := false
			for _, o := range question.Options {
				if o.ID == *selectedOptionID {
					found = true
					break
				}
			}
			if !found {
				return util.ErrOptionNotFound
			}
		}

		saved = model.QuizAnswer{
			AttemptID:        attempt.ID,
			QuestionID:       questionID,
			SelectedOptionID: selectedOptionID,
			IsCorrect:        answerCorrect(question, selectedOptionID),
		}
		return s.AttemptRepo.UpsertAnswer(tx, &saved)
	})
	if err != nil {
		return nil, err
	}
	if closed {
		monitoring.ForceSubmitCounter.WithLabelValues("answer").Inc()
		return nil, util.ErrAttemptClosed
	}

	view := &AnswerView{
		ID:               saved.ID,
		AttemptID:        saved.AttemptID,
		QuestionID:       saved.QuestionID,
		SelectedOptionID: saved.SelectedOptionID,
	}
	if saved.SelectedOptionID != nil {
		correct := saved.IsCorrect
		view.IsCorrect = &correct
	}
	return view, nil
}

// GetAnswers 当前作答的全部答案（本人）
func (s *AnswerService) GetAnswers(attemptID, userID uint) ([]model.QuizAnswer, error) {
	attempt, err := s.AttemptRepo.FindByID(attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.UserID != userID {
		return nil, util.ErrAttemptNotFound
	}
	return s.AttemptRepo.GetAnswers(s.DB, attemptID)
}
