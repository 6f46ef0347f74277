package service

import "quizhub_backend/internal/model"

// scoreAttempt 纯计分：已答且所选选项标记为正确的题目按分值累加
// 未作答、选项已被删除、或 SelectedOptionID 为空的题目记 0 分
// 本函数无副作用，成绩入库只发生在交卷路径
func scoreAttempt(questions []model.Question, answers []model.QuizAnswer) (score, maxScore int) {
	byQuestion := make(map[uint]*model.QuizAnswer, len(answers))
	for i := range answers {
		byQuestion[answers[i].QuestionID] = &answers[i]
	}

	for _, q := range questions {
		maxScore += q.Marks

		ans, ok := byQuestion[q.ID]
		if !ok || ans.SelectedOptionID == nil {
			continue
		}
		for _, o := range q.Options {
			if o.ID == *ans.SelectedOptionID && o.IsCorrect {
				score += q.Marks
				break
			}
		}
	}
	return score, maxScore
}

// answerCorrect 判断某个选项在该题下是否正确；选项不存在视为错误
func answerCorrect(q *model.Question, selectedOptionID *uint) bool {
	if selectedOptionID == nil {
		return false
	}
	for _, o := range q.Options {
		if o.ID == *selectedOptionID {
			return o.IsCorrect
		}
	}
	return false
}
