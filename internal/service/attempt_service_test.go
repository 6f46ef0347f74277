package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"quizhub_backend/internal/model"
	"quizhub_backend/internal/repository"
	"quizhub_backend/internal/util"
	"quizhub_backend/pkg/database"
	"quizhub_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestMain(m *testing.M) {
	logger.Log = zap.NewNop()
	m.Run()
}

type testEnv struct {
	db         *gorm.DB
	attemptSvc *AttemptService
	answerSvc  *AnswerService
	quizSvc    *QuizService
	resultRepo *repository.ResultRepository
}

// newTestEnv 基于 sqlite 的集成环境；单连接写入以贴近 MySQL 行锁下的串行语义
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "quizhub_test.db")
	db, err := gorm.Open(sqlite.Open(dbPath+"?_fk=1"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	quizRepo := repository.NewQuizRepository(db)
	questionRepo := repository.NewQuestionRepository(db)
	optionRepo := repository.NewOptionRepository(db)
	attemptRepo := repository.NewAttemptRepository(db)
	resultRepo := repository.NewResultRepository(db)

	quizSvc := NewQuizService(quizRepo, questionRepo, optionRepo, nil, time.Minute)
	attemptSvc := NewAttemptService(attemptRepo, quizSvc, db, 5)
	answerSvc := NewAnswerService(attemptRepo, quizSvc, attemptSvc, db, 5)

	return &testEnv{
		db:         db,
		attemptSvc: attemptSvc,
		answerSvc:  answerSvc,
		quizSvc:    quizSvc,
		resultRepo: resultRepo,
	}
}

func createUser(t *testing.T, db *gorm.DB, email string) *model.User {
	t.Helper()
	user := &model.User{Name: "学生", Email: email, Password: "x", Role: model.Student}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

// createQuiz 两道题：第一题 1 分，第二题 2 分
func createQuiz(t *testing.T, env *testEnv, maxAttempts *int) *model.Quiz {
	t.Helper()
	quiz, err := env.quizSvc.CreateQuiz(QuizCreateRequest{
		Title:       "并发控制小测",
		TotalTime:   30,
		MaxAttempts: maxAttempts,
		Questions: []QuestionCreateRequest{
			{Text: "1+1=?", Marks: 1, Options: []OptionCreateRequest{
				{Text: "2", IsCorrect: true},
				{Text: "3"},
			}},
			{Text: "2*3=?", Marks: 2, Options: []OptionCreateRequest{
				{Text: "5"},
				{Text: "6", IsCorrect: true},
			}},
		},
	})
	if err != nil {
		t.Fatalf("create quiz: %v", err)
	}
	return quiz
}

func correctOption(t *testing.T, quiz *model.Quiz, questionIdx int) uint {
	t.Helper()
	for _, o := range quiz.Questions[questionIdx].Options {
		if o.IsCorrect {
			return o.ID
		}
	}
	t.Fatalf("question %d has no correct option", questionIdx)
	return 0
}

func wrongOption(t *testing.T, quiz *model.Quiz, questionIdx int) uint {
	t.Helper()
	for _, o := range quiz.Questions[questionIdx].Options {
		if !o.IsCorrect {
			return o.ID
		}
	}
	t.Fatalf("question %d has no wrong option", questionIdx)
	return 0
}

func expireAttempt(t *testing.T, db *gorm.DB, attemptID uint) {
	t.Helper()
	past := time.Now().UTC().Add(-time.Minute)
	if err := db.Model(&model.QuizAttempt{}).Where("id = ?", attemptID).Update("deadline", past).Error; err != nil {
		t.Fatalf("expire attempt: %v", err)
	}
}

func TestGetOrCreateAttemptReturnsExisting(t *testing.T) {
	env := newTestEnv(t)
	quiz := createQuiz(t, env, nil)
	user := createUser(t, env.db, "a@test.io")
	ctx := context.Background()

	first, err := env.attemptSvc.GetOrCreateAttempt(ctx, quiz.ID, user.ID)
	if err != nil {
		t.Fatalf("first attempt: %v", err)
	}
	if first.AttemptNumber != 1 {
		t.Fatalf("attempt number = %d, want 1", first.AttemptNumber)
	}
	if first.Deadline == nil {
		t.Fatal("deadline not set")
	}
	if len(first.Questions) != 2 {
		t.Fatalf("questions = %d, want 2", len(first.Questions))
	}

	second, err := env.attemptSvc.GetOrCreateAttempt(ctx, quiz.ID, user.ID)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("got new attempt %d, want existing %d", second.ID, first.ID)
	}

	// 乱序在两次调用间保持不变
	for i := range first.Questions {
		if first.Questions[i].ID != second.Questions[i].ID {
			t.Fatal("question order changed between calls")
		}
	}
}

func TestGetOrCreateAttemptConcurrent(t *testing.T) {
	env := newTestEnv(t)
	quiz := createQuiz(t, env, nil)
	user := createUser(t, env.db, "b@test.io")
	ctx := context.Background()

	const workers = 8
	ids := make([]uint, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			view, err := env.attemptSvc.GetOrCreateAttempt(ctx, quiz.ID, user.ID)
			if err != nil {
				errs[i] = err
				return
			}
			ids[i] = view.ID
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("worker %d: %v", i, err)
		}
	}
	for i := 1; i < workers; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("workers got different attempts: %v", ids)
		}
	}

	var count int64
	if err := env.db.Model(&model.QuizAttempt{}).Where("quiz_id = ? AND user_id = ?", quiz.ID, user.ID).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("attempt rows = %d, want 1", count)
	}
}

func TestMaxAttemptsEnforced(t *testing.T) {
	env := newTestEnv(t)
	max := 2
	quiz := createQuiz(t, env, &max)
	user := createUser(t, env.db, "c@test.io")
	ctx := context.Background()

	for i := 1; i <= max; i++ {
		view, err := env.attemptSvc.GetOrCreateAttempt(ctx, quiz.ID, user.ID)
		if err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
		if view.AttemptNumber != i {
			t.Fatalf("attempt number = %d, want %d", view.AttemptNumber, i)
		}
		if _, err := env.attemptSvc.SubmitAttempt(ctx, view.ID, user.ID, nil); err != nil {
			t.Fatalf("submit attempt %d: %v", i, err)
		}
	}

	_, err := env.attemptSvc.GetOrCreateAttempt(ctx, quiz.ID, user.ID)
	if !errors.Is(err, util.ErrMaxAttempts) {
		t.Fatalf("err = %v, want ErrMaxAttempts", err)
	}
}

func TestSubmitAttemptScoresAndIsFinal(t *testing.T) {
	env := newTestEnv(t)
	quiz := createQuiz(t, env, nil)
	user := createUser(t, env.db, "d@test.io")
	ctx := context.Background()

	view, err := env.attemptSvc.GetOrCreateAttempt(ctx, quiz.ID, user.ID)
	if err != nil {
		t.Fatalf("get attempt: %v", err)
	}

	q1Correct := correctOption(t, quiz, 0)
	q2Wrong := wrongOption(t, quiz, 1)
	submitted, err := env.attemptSvc.SubmitAttempt(ctx, view.ID, user.ID, []AnswerSubmission{
		{QuestionID: quiz.Questions[0].ID, SelectedOptionID: &q1Correct},
		{QuestionID: quiz.Questions[1].ID, SelectedOptionID: &q2Wrong},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if submitted.SubmittedAt == nil {
		t.Fatal("submittedAt not set")
	}
	if submitted.Score != 1 || submitted.MaxScore != 3 {
		t.Fatalf("score = %d/%d, want 1/3", submitted.Score, submitted.MaxScore)
	}

	// 重复交卷：冲突错误，成绩不变
	q2Correct := correctOption(t, quiz, 1)
	_, err = env.attemptSvc.SubmitAttempt(ctx, view.ID, user.ID, []AnswerSubmission{
		{QuestionID: quiz.Questions[1].ID, SelectedOptionID: &q2Correct},
	})
	if !errors.Is(err, util.ErrAttemptSubmitted) {
		t.Fatalf("err = %v, want ErrAttemptSubmitted", err)
	}

	result, err := env.resultRepo.FindByAttempt(view.ID)
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	if result.Score != 1 || result.MaxScore != 3 {
		t.Fatalf("stored score = %d/%d, want 1/3", result.Score, result.MaxScore)
	}

	var resultCount int64
	if err := env.db.Model(&model.QuizResult{}).Where("attempt_id = ?", view.ID).Count(&resultCount).Error; err != nil {
		t.Fatalf("count results: %v", err)
	}
	if resultCount != 1 {
		t.Fatalf("result rows = %d, want 1", resultCount)
	}
}

func TestSubmitAttemptDuplicateQuestionLastWins(t *testing.T) {
	env := newTestEnv(t)
	quiz := createQuiz(t, env, nil)
	user := createUser(t, env.db, "l@test.io")
	ctx := context.Background()

	view, err := env.attemptSvc.GetOrCreateAttempt(ctx, quiz.ID, user.ID)
	if err != nil {
		t.Fatalf("get attempt: %v", err)
	}

	// 同一题出现两次：先错后对，以最后一次为准
	q1Wrong := wrongOption(t, quiz, 0)
	q1Correct := correctOption(t, quiz, 0)
	submitted, err := env.attemptSvc.SubmitAttempt(ctx, view.ID, user.ID, []AnswerSubmission{
		{QuestionID: quiz.Questions[0].ID, SelectedOptionID: &q1Wrong},
		{QuestionID: quiz.Questions[0].ID, SelectedOptionID: &q1Correct},
	})
	if err != nil {
		t.Fatalf("submit with duplicate question: %v", err)
	}
	if submitted.Score != 1 || submitted.MaxScore != 3 {
		t.Fatalf("score = %d/%d, want 1/3", submitted.Score, submitted.MaxScore)
	}

	var rows int64
	if err := env.db.Model(&model.QuizAnswer{}).
		Where("attempt_id = ? AND question_id = ?", view.ID, quiz.Questions[0].ID).
		Count(&rows).Error; err != nil {
		t.Fatalf("count answers: %v", err)
	}
	if rows != 1 {
		t.Fatalf("answer rows = %d, want 1", rows)
	}
}

func TestSubmitAfterDeadlineIgnoresClientAnswers(t *testing.T) {
	env := newTestEnv(t)
	quiz := createQuiz(t, env, nil)
	user := createUser(t, env.db, "e@test.io")
	ctx := context.Background()

	view, err := env.attemptSvc.GetOrCreateAttempt(ctx, quiz.ID, user.ID)
	if err != nil {
		t.Fatalf("get attempt: %v", err)
	}

	// 截止前只答了第一题（答对）
	q1Correct := correctOption(t, quiz, 0)
	if _, err := env.answerSvc.SaveAnswer(ctx, view.ID, user.ID, quiz.Questions[0].ID, &q1Correct); err != nil {
		t.Fatalf("save answer: %v", err)
	}

	expireAttempt(t, env.db, view.ID)

	// 迟到的交卷带着全对答案，但只有截止前的答案计分
	q2Correct := correctOption(t, quiz, 1)
	submitted, err := env.attemptSvc.SubmitAttempt(ctx, view.ID, user.ID, []AnswerSubmission{
		{QuestionID: quiz.Questions[0].ID, SelectedOptionID: &q1Correct},
		{QuestionID: quiz.Questions[1].ID, SelectedOptionID: &q2Correct},
	})
	if err != nil {
		t.Fatalf("late submit: %v", err)
	}
	if submitted.Score != 1 || submitted.MaxScore != 3 {
		t.Fatalf("score = %d/%d, want 1/3 (pre-deadline answers only)", submitted.Score, submitted.MaxScore)
	}
	if len(submitted.Answers) != 1 {
		t.Fatalf("stored answers = %d, want 1", len(submitted.Answers))
	}
}

func TestExpiredAttemptForceSubmittedOnReentry(t *testing.T) {
	env := newTestEnv(t)
	quiz := createQuiz(t, env, nil)
	user := createUser(t, env.db, "f@test.io")
	ctx := context.Background()

	first, err := env.attemptSvc.GetOrCreateAttempt(ctx, quiz.ID, user.ID)
	if err != nil {
		t.Fatalf("first attempt: %v", err)
	}
	expireAttempt(t, env.db, first.ID)

	// 再次进入：过期作答被结算，得到新的作答编号
	second, err := env.attemptSvc.GetOrCreateAttempt(ctx, quiz.ID, user.ID)
	if err != nil {
		t.Fatalf("reentry: %v", err)
	}
	if second.ID == first.ID {
		t.Fatal("expected a fresh attempt after expiry")
	}
	if second.AttemptNumber != 2 {
		t.Fatalf("attempt number = %d, want 2", second.AttemptNumber)
	}

	result, err := env.resultRepo.FindByAttempt(first.ID)
	if err != nil {
		t.Fatalf("expired attempt has no result: %v", err)
	}
	if result.Score != 0 || result.MaxScore != 3 {
		t.Fatalf("score = %d/%d, want 0/3", result.Score, result.MaxScore)
	}
}

func TestInactiveQuizRejectsAttempts(t *testing.T) {
	env := newTestEnv(t)
	quiz := createQuiz(t, env, nil)
	user := createUser(t, env.db, "g@test.io")
	ctx := context.Background()

	inactive := false
	if _, err := env.quizSvc.UpdateQuiz(quiz.ID, QuizUpdateRequest{IsActive: &inactive}); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	_, err := env.attemptSvc.GetOrCreateAttempt(ctx, quiz.ID, user.ID)
	if !errors.Is(err, util.ErrQuizInactive) {
		t.Fatalf("err = %v, want ErrQuizInactive", err)
	}
}

func TestAttemptViewHidesCorrectness(t *testing.T) {
	env := newTestEnv(t)
	quiz := createQuiz(t, env, nil)
	user := createUser(t, env.db, "h@test.io")
	ctx := context.Background()

	view, err := env.attemptSvc.GetOrCreateAttempt(ctx, quiz.ID, user.ID)
	if err != nil {
		t.Fatalf("get attempt: %v", err)
	}

	// 视图里的题目按乱序排列且覆盖全部题目
	seen := make(map[uint]bool)
	for _, q := range view.Questions {
		seen[q.ID] = true
		if len(q.Options) == 0 {
			t.Fatalf("question %d has no options", q.ID)
		}
	}
	for _, q := range quiz.Questions {
		if !seen[q.ID] {
			t.Fatalf("question %d missing from view", q.ID)
		}
	}
}

func TestGetAttemptOwnershipAndStats(t *testing.T) {
	env := newTestEnv(t)
	quiz := createQuiz(t, env, nil)
	owner := createUser(t, env.db, "i@test.io")
	other := createUser(t, env.db, "j@test.io")
	ctx := context.Background()

	view, err := env.attemptSvc.GetOrCreateAttempt(ctx, quiz.ID, owner.ID)
	if err != nil {
		t.Fatalf("get attempt: %v", err)
	}

	if _, err := env.attemptSvc.GetAttempt(ctx, view.ID, other.ID); !errors.Is(err, util.ErrAttemptNotFound) {
		t.Fatalf("foreign access err = %v, want ErrAttemptNotFound", err)
	}

	q1Correct := correctOption(t, quiz, 0)
	q2Correct := correctOption(t, quiz, 1)
	if _, err := env.attemptSvc.SubmitAttempt(ctx, view.ID, owner.ID, []AnswerSubmission{
		{QuestionID: quiz.Questions[0].ID, SelectedOptionID: &q1Correct},
		{QuestionID: quiz.Questions[1].ID, SelectedOptionID: &q2Correct},
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	stats, err := env.attemptSvc.GetStudentStats(owner.ID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalAttempts != 1 {
		t.Fatalf("total attempts = %d, want 1", stats.TotalAttempts)
	}
	if stats.BestScore != 100 {
		t.Fatalf("best score = %f, want 100", stats.BestScore)
	}
}

func TestSweepExpiredForceSubmits(t *testing.T) {
	env := newTestEnv(t)
	quiz := createQuiz(t, env, nil)
	user := createUser(t, env.db, "k@test.io")
	ctx := context.Background()

	view, err := env.attemptSvc.GetOrCreateAttempt(ctx, quiz.ID, user.ID)
	if err != nil {
		t.Fatalf("get attempt: %v", err)
	}
	expireAttempt(t, env.db, view.ID)

	if err := env.attemptSvc.SweepExpired(ctx, 10); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	result, err := env.resultRepo.FindByAttempt(view.ID)
	if err != nil {
		t.Fatalf("swept attempt has no result: %v", err)
	}
	if result.Score != 0 || result.MaxScore != 3 {
		t.Fatalf("score = %d/%d, want 0/3", result.Score, result.MaxScore)
	}

	// 幂等：再扫一遍不报错、不产生新成绩
	if err := env.attemptSvc.SweepExpired(ctx, 10); err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	var count int64
	if err := env.db.Model(&model.QuizResult{}).Where("attempt_id = ?", view.ID).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("result rows = %d, want 1", count)
	}
}
