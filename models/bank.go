package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mmdatafocus/kasmoni_backend/config"
	"github.com/mmdatafocus/kasmoni_backend/utils"
	"gorm.io/gorm"
)

type Bank struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:100;not null;uniqueIndex" json:"name" binding:"required"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewBank struct {
	Name string `json:"name" binding:"required"`
}

func CreateBank(ctx context.Context, input *NewBank) (*Bank, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, validationError("bank name is required")
	}

	bank := Bank{Name: strings.TrimSpace(input.Name)}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&bank).Error; err != nil {
		return nil, err
	}
	return &bank, nil
}

func GetBankById(ctx context.Context, id int) (*Bank, error) {
	db := config.GetDB()
	var bank Bank
	if err := db.WithContext(ctx).First(&bank, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &bank, nil
}

func ListBanks(ctx context.Context) ([]*Bank, error) {
	db := config.GetDB()
	var banks []*Bank
	if err := db.WithContext(ctx).Order("name").Find(&banks).Error; err != nil {
		return nil, err
	}
	return banks, nil
}

// DeleteBank refuses while members or payments still reference the bank.
func DeleteBank(ctx context.Context, id int) error {
	db := config.GetDB()

	var refs int64
	if err := db.WithContext(ctx).Model(&Member{}).Where("bank_id = ?", id).Count(&refs).Error; err != nil {
		return err
	}
	if refs == 0 {
		if err := db.WithContext(ctx).Model(&Payment{}).
			Where("sender_bank_id = ? OR receiver_bank_id = ?", id, id).
			Count(&refs).Error; err != nil {
			return err
		}
	}
	if refs > 0 {
		return validationError("bank is still referenced and cannot be deleted")
	}

	res := db.WithContext(ctx).Delete(&Bank{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.ErrorRecordNotFound
	}
	return nil
}
