package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mmdatafocus/kasmoni_backend/config"
	"github.com/mmdatafocus/kasmoni_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Group is one rotating-savings circle. Members pay MonthlyAmount into it
// every month and each slot's holder takes the pool in their receive month.
type Group struct {
	ID            int             `gorm:"primary_key" json:"id"`
	Name          string          `gorm:"size:100;not null" json:"name" binding:"required"`
	MonthlyAmount decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"monthly_amount" binding:"required"`
	StartMonth    MonthString     `gorm:"size:7;not null" json:"start_month" binding:"required"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewGroup struct {
	Name          string          `json:"name" binding:"required"`
	MonthlyAmount decimal.Decimal `json:"monthly_amount" binding:"required"`
	StartMonth    MonthString     `json:"start_month" binding:"required"`
}

func (input *NewGroup) validate() error {
	if strings.TrimSpace(input.Name) == "" {
		return validationError("group name is required")
	}
	if !input.MonthlyAmount.IsPositive() {
		return validationError("monthly amount must be positive")
	}
	if !input.StartMonth.Valid() {
		return validationError("start month must be YYYY-MM")
	}
	return nil
}

func CreateGroup(ctx context.Context, input *NewGroup) (*Group, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	group := Group{
		Name:          strings.TrimSpace(input.Name),
		MonthlyAmount: input.MonthlyAmount,
		StartMonth:    input.StartMonth,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&group).Error; err != nil {
		return nil, err
	}
	return &group, nil
}

func UpdateGroup(ctx context.Context, id int, input *NewGroup) (*Group, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	db := config.GetDB()
	var group Group
	if err := db.WithContext(ctx).First(&group, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}

	group.Name = strings.TrimSpace(input.Name)
	group.MonthlyAmount = input.MonthlyAmount
	group.StartMonth = input.StartMonth

	if err := db.WithContext(ctx).Save(&group).Error; err != nil {
		return nil, err
	}
	return &group, nil
}

func GetGroupById(ctx context.Context, id int) (*Group, error) {
	db := config.GetDB()
	var group Group
	if err := db.WithContext(ctx).First(&group, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &group, nil
}

func ListGroups(ctx context.Context) ([]*Group, error) {
	db := config.GetDB()
	var groups []*Group
	if err := db.WithContext(ctx).Order("name").Find(&groups).Error; err != nil {
		return nil, err
	}
	return groups, nil
}

// DeleteGroup refuses while slots exist; slots must be unassigned first,
// which in turn requires their payment rows to be gone.
func DeleteGroup(ctx context.Context, id int) error {
	db := config.GetDB()

	slots, err := utils.ResourceCountWhere[Slot](ctx, "group_id = ?", id)
	if err != nil {
		return err
	}
	if slots > 0 {
		return validationError("group still has slot assignments and cannot be deleted")
	}

	res := db.WithContext(ctx).Delete(&Group{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.ErrorRecordNotFound
	}
	return nil
}
