package repository

import (
	"errors"

	"quizhub_backend/internal/model"
	"quizhub_backend/internal/util"

	"gorm.io/gorm"
)

type OptionRepository struct {
	DB *gorm.DB
}

func NewOptionRepository(db *gorm.DB) *OptionRepository {
	return &OptionRepository{DB: db}
}

func (r *OptionRepository) Create(option *model.Option) error {
	return r.DB.Create(option).Error
}

func (r *OptionRepository) FindByID(id uint) (*model.Option, error) {
	var o model.Option
	if err := r.DB.First(&o, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrOptionNotFound
		}
		return nil, err
	}
	return &o, nil
}

func (r *OptionRepository) ListByQuestion(questionID uint) ([]model.Option, error) {
	var options []model.Option
	err := r.DB.Where("question_id = ?", questionID).Order("id").Find(&options).Error
	return options, err
}

func (r *OptionRepository) Update(option *model.Option) error {
	return r.DB.Save(option).Error
}

func (r *OptionRepository) Delete(id uint) error {
	res := r.DB.Delete(&model.Option{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return util.ErrOptionNotFound
	}
	return nil
}
