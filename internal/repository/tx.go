package repository

import (
	"fmt"
	"strings"
	"time"

	"quizhub_backend/internal/util"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LockForUpdate 在 MySQL 上追加 FOR UPDATE 行锁
// sqlite（测试库）不支持该语法，由其单写事务模型保证串行
func LockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "mysql" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// RunInTxWithRetry 执行事务，锁冲突或唯一键竞争时整体重试
// 冲突出现在两个请求同时对同一 (quiz, user) 做 check-then-create 时：
// 败者回滚重试后会看到胜者创建的进行中作答并直接复用，不会产生重复编号
func RunInTxWithRetry(db *gorm.DB, retries int, fn func(tx *gorm.DB) error) error {
	if retries < 1 {
		retries = 1
	}
	var err error
	for i := 0; i < retries; i++ {
		err = db.Transaction(fn)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		time.Sleep(time.Duration(i+1) * 20 * time.Millisecond)
	}
	return fmt.Errorf("%w: %v", util.ErrTxContention, err)
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, s := range []string{
		"Deadlock found",       // MySQL 1213
		"Lock wait timeout",    // MySQL 1205
		"Duplicate entry",      // MySQL 1062，attempt_number 唯一键竞争
		"database is locked",   // sqlite busy
		"database table is locked",
		"UNIQUE constraint failed",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
