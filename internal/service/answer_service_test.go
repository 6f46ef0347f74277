package service

import (
	"context"
	"errors"
	"testing"

	"quizhub_backend/internal/model"
	"quizhub_backend/internal/util"
	"quizhub_backend/pkg/monitoring"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSaveAnswerUpsert(t *testing.T) {
	env := newTestEnv(t)
	quiz := createQuiz(t, env, nil)
	user := createUser(t, env.db, "upsert@test.io")
	ctx := context.Background()

	view, err := env.attemptSvc.GetOrCreateAttempt(ctx, quiz.ID, user.ID)
	if err != nil {
		t.Fatalf("get attempt: %v", err)
	}

	questionID := quiz.Questions[0].ID
	wrong := wrongOption(t, quiz, 0)
	correct := correctOption(t, quiz, 0)

	first, err := env.answerSvc.SaveAnswer(ctx, view.ID, user.ID, questionID, &wrong)
	if err != nil {
		t.Fatalf("first save: %v", err)
	}
	if first.IsCorrect == nil || *first.IsCorrect {
		t.Fatal("wrong option marked correct")
	}

	// 同一题再次提交：覆盖而不是新增
	second, err := env.answerSvc.SaveAnswer(ctx, view.ID, user.ID, questionID, &correct)
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	if second.IsCorrect == nil || !*second.IsCorrect {
		t.Fatal("correct option not marked correct")
	}

	var count int64
	if err := env.db.Model(&model.QuizAnswer{}).Where("attempt_id = ? AND question_id = ?", view.ID, questionID).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("answer rows = %d, want 1", count)
	}

	var stored model.QuizAnswer
	if err := env.db.Where("attempt_id = ? AND question_id = ?", view.ID, questionID).First(&stored).Error; err != nil {
		t.Fatalf("load: %v", err)
	}
	if stored.SelectedOptionID == nil || *stored.SelectedOptionID != correct {
		t.Fatalf("stored option = %v, want %d", stored.SelectedOptionID, correct)
	}
	if !stored.IsCorrect {
		t.Fatal("stored correctness not updated")
	}
}

func TestSaveAnswerValidation(t *testing.T) {
	env := newTestEnv(t)
	quiz := createQuiz(t, env, nil)
	user := createUser(t, env.db, "valid@test.io")
	other := createUser(t, env.db, "other@test.io")
	ctx := context.Background()

	view, err := env.attemptSvc.GetOrCreateAttempt(ctx, quiz.ID, user.ID)
	if err != nil {
		t.Fatalf("get attempt: %v", err)
	}

	opt := correctOption(t, quiz, 0)

	// 他人的作答不可见
	if _, err := env.answerSvc.SaveAnswer(ctx, view.ID, other.ID, quiz.Questions[0].ID, &opt); !errors.Is(err, util.ErrAttemptNotFound) {
		t.Fatalf("foreign attempt err = %v, want ErrAttemptNotFound", err)
	}

	// 题目不属于该测验
	if _, err := env.answerSvc.SaveAnswer(ctx, view.ID, user.ID, 9999, &opt); !errors.Is(err, util.ErrQuestionNotFound) {
		t.Fatalf("unknown question err = %v, want ErrQuestionNotFound", err)
	}

	// 选项不属于该题
	q2Option := correctOption(t, quiz, 1)
	if _, err := env.answerSvc.SaveAnswer(ctx, view.ID, user.ID, quiz.Questions[0].ID, &q2Option); !errors.Is(err, util.ErrOptionNotFound) {
		t.Fatalf("foreign option err = %v, want ErrOptionNotFound", err)
	}

	// 清除选择
	cleared, err := env.answerSvc.SaveAnswer(ctx, view.ID, user.ID, quiz.Questions[0].ID, nil)
	if err != nil {
		t.Fatalf("clear selection: %v", err)
	}
	if cleared.SelectedOptionID != nil || cleared.IsCorrect != nil {
		t.Fatalf("cleared answer = %+v, want empty selection", cleared)
	}
}

func TestSaveAnswerAfterDeadlineForceSubmits(t *testing.T) {
	env := newTestEnv(t)
	quiz := createQuiz(t, env, nil)
	user := createUser(t, env.db, "late@test.io")
	ctx := context.Background()

	view, err := env.attemptSvc.GetOrCreateAttempt(ctx, quiz.ID, user.ID)
	if err != nil {
		t.Fatalf("get attempt: %v", err)
	}

	q2Correct := correctOption(t, quiz, 1)
	if _, err := env.answerSvc.SaveAnswer(ctx, view.ID, user.ID, quiz.Questions[1].ID, &q2Correct); err != nil {
		t.Fatalf("save answer: %v", err)
	}

	expireAttempt(t, env.db, view.ID)

	// 过期后的写入被拒绝，作答被顺带结算
	q1Correct := correctOption(t, quiz, 0)
	_, err = env.answerSvc.SaveAnswer(ctx, view.ID, user.ID, quiz.Questions[0].ID, &q1Correct)
	if !errors.Is(err, util.ErrAttemptClosed) {
		t.Fatalf("err = %v, want ErrAttemptClosed", err)
	}

	result, err := env.resultRepo.FindByAttempt(view.ID)
	if err != nil {
		t.Fatalf("result after force submit: %v", err)
	}
	if result.Score != 2 || result.MaxScore != 3 {
		t.Fatalf("score = %d/%d, want 2/3 (only pre-deadline answer)", result.Score, result.MaxScore)
	}

	// 结算后继续写入：冲突
	if _, err := env.answerSvc.SaveAnswer(ctx, view.ID, user.ID, quiz.Questions[0].ID, &q1Correct); !errors.Is(err, util.ErrAttemptSubmitted) {
		t.Fatalf("err = %v, want ErrAttemptSubmitted", err)
	}
}

func TestForceSubmitMetricCountsOncePerSettlement(t *testing.T) {
	env := newTestEnv(t)
	quiz := createQuiz(t, env, nil)
	user := createUser(t, env.db, "metric@test.io")
	ctx := context.Background()

	view, err := env.attemptSvc.GetOrCreateAttempt(ctx, quiz.ID, user.ID)
	if err != nil {
		t.Fatalf("get attempt: %v", err)
	}
	expireAttempt(t, env.db, view.ID)

	counter := monitoring.ForceSubmitCounter.WithLabelValues("answer")
	before := testutil.ToFloat64(counter)

	opt := correctOption(t, quiz, 0)
	if _, err := env.answerSvc.SaveAnswer(ctx, view.ID, user.ID, quiz.Questions[0].ID, &opt); !errors.Is(err, util.ErrAttemptClosed) {
		t.Fatalf("err = %v, want ErrAttemptClosed", err)
	}

	// 结算恰好计一次
	if got := testutil.ToFloat64(counter); got != before+1 {
		t.Fatalf("counter after settlement = %v, want %v", got, before+1)
	}

	// 已交卷的后续写入不再计数
	if _, err := env.answerSvc.SaveAnswer(ctx, view.ID, user.ID, quiz.Questions[0].ID, &opt); !errors.Is(err, util.ErrAttemptSubmitted) {
		t.Fatalf("err = %v, want ErrAttemptSubmitted", err)
	}
	if got := testutil.ToFloat64(counter); got != before+1 {
		t.Fatalf("counter after rejected write = %v, want %v", got, before+1)
	}
}
