package service

import (
	"testing"

	"quizhub_backend/internal/model"
)

func uptr(v uint) *uint { return &v }

func TestScoreAttempt(t *testing.T) {
	questions := []model.Question{
		{ID: 1, Marks: 1, Options: []model.Option{
			{ID: 11, IsCorrect: true},
			{ID: 12},
		}},
		{ID: 2, Marks: 2, Options: []model.Option{
			{ID: 21},
			{ID: 22, IsCorrect: true},
		}},
	}

	tests := []struct {
		name      string
		answers   []model.QuizAnswer
		wantScore int
		wantMax   int
	}{
		{
			name: "一对一错",
			answers: []model.QuizAnswer{
				{QuestionID: 1, SelectedOptionID: uptr(11)},
				{QuestionID: 2, SelectedOptionID: uptr(21)},
			},
			wantScore: 1,
			wantMax:   3,
		},
		{
			name: "全对",
			answers: []model.QuizAnswer{
				{QuestionID: 1, SelectedOptionID: uptr(11)},
				{QuestionID: 2, SelectedOptionID: uptr(22)},
			},
			wantScore: 3,
			wantMax:   3,
		},
		{
			name:      "未作答",
			answers:   nil,
			wantScore: 0,
			wantMax:   3,
		},
		{
			name: "部分作答",
			answers: []model.QuizAnswer{
				{QuestionID: 2, SelectedOptionID: uptr(22)},
			},
			wantScore: 2,
			wantMax:   3,
		},
		{
			name: "清除了选择",
			answers: []model.QuizAnswer{
				{QuestionID: 1, SelectedOptionID: nil},
				{QuestionID: 2, SelectedOptionID: uptr(22)},
			},
			wantScore: 2,
			wantMax:   3,
		},
		{
			name: "选项已不存在",
			answers: []model.QuizAnswer{
				{QuestionID: 1, SelectedOptionID: uptr(99)},
			},
			wantScore: 0,
			wantMax:   3,
		},
		{
			name: "答案指向已删除的题目",
			answers: []model.QuizAnswer{
				{QuestionID: 42, SelectedOptionID: uptr(11)},
				{QuestionID: 1, SelectedOptionID: uptr(11)},
			},
			wantScore: 1,
			wantMax:   3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, maxScore := scoreAttempt(questions, tt.answers)
			if score != tt.wantScore || maxScore != tt.wantMax {
				t.Fatalf("scoreAttempt() = (%d, %d), want (%d, %d)", score, maxScore, tt.wantScore, tt.wantMax)
			}
		})
	}
}

func TestAnswerCorrect(t *testing.T) {
	q := &model.Question{ID: 1, Options: []model.Option{
		{ID: 11, IsCorrect: true},
		{ID: 12},
	}}

	if !answerCorrect(q, uptr(11)) {
		t.Fatal("correct option should be correct")
	}
	if answerCorrect(q, uptr(12)) {
		t.Fatal("wrong option should not be correct")
	}
	if answerCorrect(q, uptr(99)) {
		t.Fatal("unknown option should not be correct")
	}
	if answerCorrect(q, nil) {
		t.Fatal("nil selection should not be correct")
	}
}
