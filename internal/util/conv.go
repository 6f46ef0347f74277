package util

import (
	"strconv"
)

// MustParseUint 将字符串转换为无符号整数，解析失败时返回 0
func MustParseUint(s string) uint {
	id, _ := strconv.ParseUint(s, 10, 32)
	return uint(id)
}

// UintKey 题目ID转为 JSON 对象键（shuffle payload 的 options 键）
func UintKey(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
