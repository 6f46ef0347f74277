package service

import (
	"context"
	"errors"
	"time"

	"quizhub_backend/internal/model"
	"quizhub_backend/internal/repository"
	"quizhub_backend/internal/util"
	"quizhub_backend/pkg/logger"
	"quizhub_backend/pkg/monitoring"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AttemptService 作答生命周期编排
// 状态机：无记录 → 进行中 → (过期，瞬态) → 已交卷（终态）
// 过期作答没有后台常驻状态，默认只在下次访问时被动结算；
// 所有改变生命周期的操作都在行锁事务内完成，锁范围是该 (quiz, user) 的作答集合
type AttemptService struct {
	AttemptRepo *repository.AttemptRepository
	QuizSvc     *QuizService
	DB          *gorm.DB
	TxRetries   int
}

func NewAttemptService(attemptRepo *repository.AttemptRepository, quizSvc *QuizService, db *gorm.DB, txRetries int) *AttemptService {
	return &AttemptService{
		AttemptRepo: attemptRepo,
		QuizSvc:     quizSvc,
		DB:          db,
		TxRetries:   txRetries,
	}
}

type AttemptOptionView struct {
	ID   uint   `json:"id"`
	Text string `json:"text"`
}

// AttemptQuestionView 按乱序排列的题目，选项不携带正确性标记
type AttemptQuestionView struct {
	ID      uint                `json:"id"`
	Text    string              `json:"text"`
	Marks   int                 `json:"marks"`
	Options []AttemptOptionView `json:"options"`
}

type AnswerView struct {
	ID               uint  `json:"id"`
	AttemptID        uint  `json:"attemptId"`
	QuestionID       uint  `json:"questionId"`
	SelectedOptionID *uint `json:"selectedOptionId"`
	IsCorrect        *bool `json:"isCorrect"`
}

// swagger:model AttemptView
type AttemptView struct {
	ID               uint                  `json:"id"`
	QuizID           uint                  `json:"quizId"`
	UserID           uint                  `json:"userId"`
	AttemptNumber    int                   `json:"attemptNumber"`
	StartedAt        time.Time             `json:"startedAt"`
	SubmittedAt      *time.Time            `json:"submittedAt"`
	Deadline         *time.Time            `json:"deadline"`
	Score            int                   `json:"score"`
	MaxScore         int                   `json:"maxScore"`
	TimeSpentSeconds int                   `json:"timeSpentSeconds"`
	Questions        []AttemptQuestionView `json:"questions"`
	Answers          []AnswerView          `json:"answers"`
}

// AnswerSubmission 交卷时客户端提交的单题答案
type AnswerSubmission struct {
	QuestionID       uint  `json:"questionId" binding:"required"`
	SelectedOptionID *uint `json:"selectedOptionId"`
}

// GetOrCreateAttempt 返回进行中的作答，没有则新建
// 进行中作答先做过期检查，过期的在同一事务内被动交卷后再走创建分支；
// 新作答的编号 = 历史最大编号 + 1，截止时间 = 开始时间 + 测验时长
func (s *AttemptService) GetOrCreateAttempt(ctx context.Context, quizID, userID uint) (*AttemptView, error) {
	quiz, err := s.QuizSvc.GetQuizContent(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if !quiz.IsActive {
		return nil, util.ErrQuizInactive
	}

	// 第一步：处理已有的进行中作答；过期结算必须独立提交，
	// 不能和后面可能失败的创建/次数检查捆在一个事务里
	var attemptID uint
	forced := false
	err = repository.RunInTxWithRetry(s.DB, s.TxRetries, func(tx *gorm.DB) error {
		attemptID = 0
		forced = false

		attempt, err := s.AttemptRepo.FindUnfinishedForUpdate(tx, quizID, userID)
		if err != nil {
			return err
		}
		if attempt == nil {
			return nil
		}

		// 旧数据补录乱序（该字段上线前创建的作答）
		if attempt.ShuffleData == "" && len(quiz.Questions) > 0 {
			raw, err := encodeShuffle(BuildShuffle(quiz.Questions))
			if err != nil {
				return err
			}
			attempt.ShuffleData = raw
			if err := s.AttemptRepo.Save(tx, attempt); err != nil {
				return err
			}
		}

		if attempt.DeadlinePassed(time.Now().UTC()) {
			forced = true
			return s.forceSubmit(tx, attempt, quiz)
		}

		attemptID = attempt.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	if forced {
		monitoring.ForceSubmitCounter.WithLabelValues("lazy").Inc()
	}
	if attemptID != 0 {
		return s.viewByID(ctx, attemptID)
	}

	// 第二步：创建新作答
	// 并发的创建者靠 (quiz_id, user_id, attempt_number) 唯一键分出胜负，
	// 败者重试时会看到胜者的进行中作答并直接复用
	err = repository.RunInTxWithRetry(s.DB, s.TxRetries, func(tx *gorm.DB) error {
		now := time.Now().UTC()

		attempt, err := s.AttemptRepo.FindUnfinishedForUpdate(tx, quizID, userID)
		if err != nil {
			return err
		}
		if attempt != nil && !attempt.DeadlinePassed(now) {
			attemptID = attempt.ID
			return nil
		}

		count, err := s.AttemptRepo.CountByQuizAndUser(tx, quizID, userID)
		if err != nil {
			return err
		}
		if quiz.MaxAttempts != nil && count >= int64(*quiz.MaxAttempts) {
			return util.ErrMaxAttempts
		}

		last, err := s.AttemptRepo.LastAttemptNumber(tx, quizID, userID)
		if err != nil {
			return err
		}

		raw, err := encodeShuffle(BuildShuffle(quiz.Questions))
		if err != nil {
			return err
		}

		deadline := now.Add(time.Duration(quiz.TotalTime) * time.Minute)
		newAttempt := &model.QuizAttempt{
			QuizID:        quizID,
			UserID:        userID,
			AttemptNumber: last + 1,
			StartedAt:     now,
			Deadline:      &deadline,
			ShuffleData:   raw,
		}
		if err := s.AttemptRepo.Create(tx, newAttempt); err != nil {
			return err
		}
		attemptID = newAttempt.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.viewByID(ctx, attemptID)
}

// SubmitAttempt 主动交卷
// 截止时间已过时忽略客户端提交的答案，改走被动交卷（只结算已有答案）；
// 已交卷的作答返回冲突错误，成绩不变
func (s *AttemptService) SubmitAttempt(ctx context.Context, attemptID, userID uint, answers []AnswerSubmission) (*AttemptView, error) {
	// 题目快照在开启事务前读取：事务已占用连接后再向连接池要第二个连接会互相等死
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

	forced := false
	err = repository.RunInTxWithRetry(s.DB, s.TxRetries, func(tx *gorm.DB) error {
		forced = false
		now := time.Now().UTC()

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

		if attempt.DeadlinePassed(now) {
			forced = true
			return s.forceSubmit(tx, attempt, quiz)
		}

		byID := make(map[uint]*model.Question, len(quiz.Questions))
		for i := range quiz.Questions {
			byID[quiz.Questions[i].ID] = &quiz.Questions[i]
		}

		// 同一题在提交里出现多次时以最后一次为准，
		// 不能原样落库：两行会撞 (attempt_id, question_id) 唯一键
		rowIdx := make(map[uint]int, len(answers))
		var rows []model.QuizAnswer
		for _, a := range answers {
			question, ok := byID[a.QuestionID]
			if !ok {
				continue
			}
			row := model.QuizAnswer{
				AttemptID:        attempt.ID,
				QuestionID:       question.ID,
				SelectedOptionID: a.SelectedOptionID,
				IsCorrect:        answerCorrect(question, a.SelectedOptionID),
			}
			if i, seen := rowIdx[a.QuestionID]; seen {
				rows[i] = row
				continue
			}
			rowIdx[a.QuestionID] = len(rows)
			rows = append(rows, row)
		}
		if err := s.AttemptRepo.ReplaceAnswers(tx, attempt.ID, rows); err != nil {
			return err
		}

		score, maxScore := scoreAttempt(quiz.Questions, rows)
		attempt.SubmittedAt = &now
		if err := s.AttemptRepo.Save(tx, attempt); err != nil {
			return err
		}
		return s.AttemptRepo.CreateResult(tx, &model.QuizResult{
			AttemptID: attempt.ID,
			Score:     score,
			MaxScore:  maxScore,
			GradedAt:  now,
		})
	})
	if err != nil {
		return nil, err
	}
	if forced {
		monitoring.ForceSubmitCounter.WithLabelValues("submit").Inc()
	}

	return s.viewByID(ctx, attemptID)
}

// GetAttempt 查看作答详情（本人）
func (s *AttemptService) GetAttempt(ctx context.Context, attemptID, userID uint) (*AttemptView, error) {
	attempt, err := s.AttemptRepo.FindByID(attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.UserID != userID {
		return nil, util.ErrAttemptNotFound
	}
	quiz, err := s.QuizSvc.GetQuizContent(ctx, attempt.QuizID)
	if err != nil {
		return nil, err
	}
	return s.buildView(quiz, attempt), nil
}

// forceSubmit 被动交卷：按已有答案计分、写入交卷时间和成绩，同一事务内完成
// 已交卷的作答是空操作（幂等），绝不出现只有交卷时间没有成绩的中间态
// 计数指标由调用方在事务提交后上报，避免重试/回滚时虚增
func (s *AttemptService) forceSubmit(tx *gorm.DB, attempt *model.QuizAttempt, quiz *model.Quiz) error {
	if attempt.Submitted() {
		return nil
	}

	answers, err := s.AttemptRepo.GetAnswers(tx, attempt.ID)
	if err != nil {
		return err
	}
	score, maxScore := scoreAttempt(quiz.Questions, answers)

	now := time.Now().UTC()
	attempt.SubmittedAt = &now
	if err := s.AttemptRepo.Save(tx, attempt); err != nil {
		return err
	}
	if err := s.AttemptRepo.CreateResult(tx, &model.QuizResult{
		AttemptID: attempt.ID,
		Score:     score,
		MaxScore:  maxScore,
		GradedAt:  now,
	}); err != nil {
		return err
	}
	return nil
}

// SweepExpired 后台扫描过期作答并被动交卷（可选任务，见配置 attempt.sweep_interval_seconds）
// 只是惰性结算的提前触发，复用同一个 forceSubmit 原语
func (s *AttemptService) SweepExpired(ctx context.Context, limit int) error {
	ids, err := s.AttemptRepo.ExpiredIDs(time.Now().UTC(), limit)
	if err != nil {
		return err
	}

	for _, id := range ids {
		// 测验快照在开事务前读取，事务内再读会占用第二个连接
		stale, err := s.AttemptRepo.FindByID(id)
		if err != nil {
			if errors.Is(err, util.ErrAttemptNotFound) {
				continue
			}
			logger.Log.Error("sweep load attempt failed", zap.Uint("attemptId", id), zap.Error(err))
			continue
		}
		quiz, err := s.QuizSvc.GetQuizContent(ctx, stale.QuizID)
		if err != nil {
			logger.Log.Error("sweep load quiz failed", zap.Uint("attemptId", id), zap.Error(err))
			continue
		}

		forced := false
		err = repository.RunInTxWithRetry(s.DB, s.TxRetries, func(tx *gorm.DB) error {
			forced = false
			attempt, err := s.AttemptRepo.FindForUpdate(tx, id)
			if err != nil {
				return err
			}
			// 拿到锁后重新判定，可能已被请求路径结算
			if attempt.Submitted() || !attempt.DeadlinePassed(time.Now().UTC()) {
				return nil
			}
			forced = true
			return s.forceSubmit(tx, attempt, quiz)
		})
		if err != nil {
			logger.Log.Error("sweep force-submit failed", zap.Uint("attemptId", id), zap.Error(err))
			continue
		}
		if forced {
			monitoring.ForceSubmitCounter.WithLabelValues("sweeper").Inc()
		}
	}
	return nil
}

// StudentStats 学生维度的成绩聚合（只统计已交卷且有成绩的作答）
type StudentStats struct {
	TotalAttempts  int     `json:"totalAttempts"`
	AverageScore   float64 `json:"averageScore"`
	BestScore      float64 `json:"bestScore"`
	TotalTimeSpent int     `json:"totalTimeSpent"`
}

func (s *AttemptService) GetStudentStats(userID uint) (*StudentStats, error) {
	attempts, err := s.AttemptRepo.ListByUser(userID)
	if err != nil {
		return nil, err
	}

	stats := &StudentStats{}
	var totalScore, totalMax int
	for _, a := range attempts {
		if !a.Submitted() || a.Result == nil {
			continue
		}
		stats.TotalAttempts++
		totalScore += a.Result.Score
		totalMax += a.Result.MaxScore
		if a.Result.MaxScore > 0 {
			pct := float64(a.Result.Score) / float64(a.Result.MaxScore) * 100
			if pct > stats.BestScore {
				stats.BestScore = pct
			}
		}
		stats.TotalTimeSpent += int(a.SubmittedAt.Sub(a.StartedAt).Seconds())
	}
	if totalMax > 0 {
		stats.AverageScore = float64(totalScore) / float64(totalMax) * 100
	}
	return stats, nil
}

// ListAttempts 管理端作答列表
func (s *AttemptService) ListAttempts(page, limit int) ([]model.QuizAttempt, int64, error) {
	return s.AttemptRepo.ListAll(page, limit)
}

// DeleteAttempt 管理端删除作答，级联清理答案与成绩
func (s *AttemptService) DeleteAttempt(attemptID uint) error {
	return s.AttemptRepo.Delete(attemptID)
}

func (s *AttemptService) viewByID(ctx context.Context, attemptID uint) (*AttemptView, error) {
	attempt, err := s.AttemptRepo.FindByID(attemptID)
	if err != nil {
		return nil, err
	}
	quiz, err := s.QuizSvc.GetQuizContent(ctx, attempt.QuizID)
	if err != nil {
		return nil, err
	}
	return s.buildView(quiz, attempt), nil
}

// buildView 以持久化的乱序 payload 重建展示顺序，从不使用存储顺序
// 乱序里引用了已删除题目/选项时跳过对应条目
func (s *AttemptService) buildView(quiz *model.Quiz, attempt *model.QuizAttempt) *AttemptView {
	view := &AttemptView{
		ID:            attempt.ID,
		QuizID:        attempt.QuizID,
		UserID:        attempt.UserID,
		AttemptNumber: attempt.AttemptNumber,
		StartedAt:     attempt.StartedAt,
		SubmittedAt:   attempt.SubmittedAt,
		Deadline:      attempt.Deadline,
	}

	maxScore := 0
	for _, q := range quiz.Questions {
		maxScore += q.Marks
	}
	view.MaxScore = maxScore
	if attempt.Result != nil {
		view.Score = attempt.Result.Score
		view.MaxScore = attempt.Result.MaxScore
	}

	end := time.Now().UTC()
	if attempt.SubmittedAt != nil {
		end = *attempt.SubmittedAt
	}
	if elapsed := int(end.Sub(attempt.StartedAt).Seconds()); elapsed > 0 {
		view.TimeSpentSeconds = elapsed
	}

	questionByID := make(map[uint]*model.Question, len(quiz.Questions))
	for i := range quiz.Questions {
		questionByID[quiz.Questions[i].ID] = &quiz.Questions[i]
	}

	shuffle, err := decodeShuffle(attempt.ShuffleData)
	if err != nil {
		logger.Log.Warn("corrupt shuffle payload", zap.Uint("attemptId", attempt.ID), zap.Error(err))
	}

	orderedIDs := make([]uint, 0, len(quiz.Questions))
	if shuffle != nil {
		orderedIDs = append(orderedIDs, shuffle.Questions...)
	} else {
		for _, q := range quiz.Questions {
			orderedIDs = append(orderedIDs, q.ID)
		}
	}

	for _, qid := range orderedIDs {
		question, ok := questionByID[qid]
		if !ok {
			continue
		}

		optionByID := make(map[uint]*model.Option, len(question.Options))
		for i := range question.Options {
			optionByID[question.Options[i].ID] = &question.Options[i]
		}

		var optionIDs []uint
		if shuffle != nil {
			optionIDs = shuffle.Options[util.UintKey(qid)]
		}
		if optionIDs == nil {
			for _, o := range question.Options {
				optionIDs = append(optionIDs, o.ID)
			}
		}

		qv := AttemptQuestionView{
			ID:    question.ID,
			Text:  question.Text,
			Marks: question.Marks,
		}
		for _, oid := range optionIDs {
			option, ok := optionByID[oid]
			if !ok {
				continue
			}
			qv.Options = append(qv.Options, AttemptOptionView{ID: option.ID, Text: option.Text})
		}
		view.Questions = append(view.Questions, qv)
	}

	for _, a := range attempt.Answers {
		av := AnswerView{
			ID:               a.ID,
			AttemptID:        a.AttemptID,
			QuestionID:       a.QuestionID,
			SelectedOptionID: a.SelectedOptionID,
		}
		if a.SelectedOptionID != nil {
			correct := a.IsCorrect
			av.IsCorrect = &correct
		}
		view.Answers = append(view.Answers, av)
	}

	return view
}
