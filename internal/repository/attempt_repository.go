package repository

import (
	"errors"
	"time"

	"quizhub_backend/internal/model"
	"quizhub_backend/internal/util"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AttemptRepository 作答与答案的存取
// 带 tx 参数的方法必须在调用方事务内执行，配合行锁保证
// 同一 (quiz, user) 的 check-then-create / 读改写不交错
type AttemptRepository struct {
	DB *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: db}
}

// FindUnfinishedForUpdate 锁定并返回进行中的作答，没有则返回 nil
func (r *AttemptRepository) FindUnfinishedForUpdate(tx *gorm.DB, quizID, userID uint) (*model.QuizAttempt, error) {
	var attempt model.QuizAttempt
	err := LockForUpdate(tx).
		Where("quiz_id = ? AND user_id = ? AND submitted_at IS NULL", quizID, userID).
		Order("attempt_number DESC").
		First(&attempt).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if err := tx.Where("attempt_id = ?", attempt.ID).Find(&attempt.Answers).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

// FindForUpdate 按ID锁定作答
func (r *AttemptRepository) FindForUpdate(tx *gorm.DB, attemptID uint) (*model.QuizAttempt, error) {
	var attempt model.QuizAttempt
	err := LockForUpdate(tx).First(&attempt, attemptID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrAttemptNotFound
		}
		return nil, err
	}
	return &attempt, nil
}

func (r *AttemptRepository) CountByQuizAndUser(tx *gorm.DB, quizID, userID uint) (int64, error) {
	var count int64
	err := tx.Model(&model.QuizAttempt{}).
		Where("quiz_id = ? AND user_id = ?", quizID, userID).
		Count(&count).Error
	return count, err
}

// LastAttemptNumber 当前最大编号，没有历史作答时返回 0
func (r *AttemptRepository) LastAttemptNumber(tx *gorm.DB, quizID, userID uint) (int, error) {
	var last int
	err := tx.Model(&model.QuizAttempt{}).
		Where("quiz_id = ? AND user_id = ?", quizID, userID).
		Select("COALESCE(MAX(attempt_number), 0)").
		Scan(&last).Error
	return last, err
}

func (r *AttemptRepository) Create(tx *gorm.DB, attempt *model.QuizAttempt) error {
	return tx.Create(attempt).Error
}

func (r *AttemptRepository) Save(tx *gorm.DB, attempt *model.QuizAttempt) error {
	return tx.Save(attempt).Error
}

// UpsertAnswer 原子化的插入或更新，依赖 (attempt_id, question_id) 唯一索引
// 并发同题提交时后写者胜，不会产生重复行
func (r *AttemptRepository) UpsertAnswer(tx *gorm.DB, answer *model.QuizAnswer) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "attempt_id"}, {Name: "question_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"selected_option_id", "is_correct"}),
	}).Create(answer).Error
}

// ReplaceAnswers 删旧插新，必须与交卷写入同一事务
func (r *AttemptRepository) ReplaceAnswers(tx *gorm.DB, attemptID uint, answers []model.QuizAnswer) error {
	if err := tx.Where("attempt_id = ?", attemptID).Delete(&model.QuizAnswer{}).Error; err != nil {
		return err
	}
	if len(answers) == 0 {
		return nil
	}
	return tx.Create(&answers).Error
}

func (r *AttemptRepository) GetAnswers(tx *gorm.DB, attemptID uint) ([]model.QuizAnswer, error) {
	var answers []model.QuizAnswer
	err := tx.Where("attempt_id = ?", attemptID).Find(&answers).Error
	return answers, err
}

func (r *AttemptRepository) CreateResult(tx *gorm.DB, result *model.QuizResult) error {
	return tx.Create(result).Error
}

// FindByID 普通读取，预加载答案和成绩
func (r *AttemptRepository) FindByID(id uint) (*model.QuizAttempt, error) {
	var attempt model.QuizAttempt
	err := r.DB.Preload("Answers").Preload("Result").First(&attempt, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrAttemptNotFound
		}
		return nil, err
	}
	return &attempt, nil
}

func (r *AttemptRepository) ListByUser(userID uint) ([]model.QuizAttempt, error) {
	var attempts []model.QuizAttempt
	err := r.DB.Where("user_id = ?", userID).Preload("Result").Order("id").Find(&attempts).Error
	return attempts, err
}

func (r *AttemptRepository) ListAll(page, limit int) ([]model.QuizAttempt, int64, error) {
	var total int64
	if err := r.DB.Model(&model.QuizAttempt{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var attempts []model.QuizAttempt
	err := r.DB.Preload("Result").Order("id DESC").Offset((page - 1) * limit).Limit(limit).Find(&attempts).Error
	return attempts, total, err
}

// Delete 硬删除，级联清理答案与成绩
func (r *AttemptRepository) Delete(id uint) error {
	res := r.DB.Delete(&model.QuizAttempt{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return util.ErrAttemptNotFound
	}
	return nil
}

// ExpiredIDs 过期未交卷的作答ID，供后台扫描任务使用
func (r *AttemptRepository) ExpiredIDs(now time.Time, limit int) ([]uint, error) {
	var ids []uint
	err := r.DB.Model(&model.QuizAttempt{}).
		Where("submitted_at IS NULL AND deadline IS NOT NULL AND deadline < ?", now).
		Order("deadline").
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}
