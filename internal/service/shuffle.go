package service

import (
	"encoding/json"
	"math/rand"

	"quizhub_backend/internal/model"
	"quizhub_backend/internal/util"
)

// BuildShuffle 为一次作答生成题目和选项的乱序
// 只在创建作答（或为历史作答补录）时调用一次，结果持久化后不再重新生成，
// 展示顺序完全以持久化的 payload 为准
func BuildShuffle(questions []model.Question) *model.ShuffleData {
	questionIDs := make([]uint, len(questions))
	for i, q := range questions {
		questionIDs[i] = q.ID
	}
	rand.Shuffle(len(questionIDs), func(i, j int) {
		questionIDs[i], questionIDs[j] = questionIDs[j], questionIDs[i]
	})

	optionMap := make(map[string][]uint, len(questions))
	for _, q := range questions {
		optionIDs := make([]uint, len(q.Options))
		for i, o := range q.Options {
			optionIDs[i] = o.ID
		}
		rand.Shuffle(len(optionIDs), func(i, j int) {
			optionIDs[i], optionIDs[j] = optionIDs[j], optionIDs[i]
		})
		optionMap[util.UintKey(q.ID)] = optionIDs
	}

	return &model.ShuffleData{
		Questions: questionIDs,
		Options:   optionMap,
	}
}

func encodeShuffle(s *model.ShuffleData) (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeShuffle(raw string) (*model.ShuffleData, error) {
	if raw == "" {
		return nil, nil
	}
	var s model.ShuffleData
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, err
	}
	return &s, nil
}
