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

type Member struct {
	ID            int       `gorm:"primary_key" json:"id"`
	FirstName     string    `gorm:"size:100;not null" json:"first_name" binding:"required"`
	LastName      string    `gorm:"size:100;not null" json:"last_name" binding:"required"`
	Email         string    `gorm:"size:255" json:"email"`
	Phone         string    `gorm:"size:50" json:"phone"`
	BankId        *int      `gorm:"index" json:"bank_id"`
	AccountNumber string    `gorm:"size:50" json:"account_number"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewMember struct {
	FirstName     string `json:"first_name" binding:"required"`
	LastName      string `json:"last_name" binding:"required"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	BankId        *int   `json:"bank_id"`
	AccountNumber string `json:"account_number"`
}

func (m Member) FullName() string {
	return strings.TrimSpace(m.FirstName + " " + m.LastName)
}

func (input *NewMember) validate(ctx context.Context) error {
	if strings.TrimSpace(input.FirstName) == "" || strings.TrimSpace(input.LastName) == "" {
		return validationError("first and last name are required")
	}
	if input.Email != "" && !utils.IsValidEmail(input.Email) {
		return validationError("invalid email address")
	}
	if input.BankId != nil {
		if err := utils.ValidateResourceId[Bank](ctx, *input.BankId); err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				return validationError("bank not found")
			}
			return err
		}
	}
	return nil
}

func CreateMember(ctx context.Context, input *NewMember) (*Member, error) {
	if err := input.validate(ctx); err != nil {
		return nil, err
	}

	member := Member{
		FirstName:     strings.TrimSpace(input.FirstName),
		LastName:      strings.TrimSpace(input.LastName),
		Email:         input.Email,
		Phone:         input.Phone,
		BankId:        input.BankId,
		AccountNumber: input.AccountNumber,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&member).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

func UpdateMember(ctx context.Context, id int, input *NewMember) (*Member, error) {
	if err := input.validate(ctx); err != nil {
		return nil, err
	}

	db := config.GetDB()
	var member Member
	if err := db.WithContext(ctx).First(&member, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}

	member.FirstName = strings.TrimSpace(input.FirstName)
	member.LastName = strings.TrimSpace(input.LastName)
	member.Email = input.Email
	member.Phone = input.Phone
	member.BankId = input.BankId
	member.AccountNumber = input.AccountNumber

	if err := db.WithContext(ctx).Save(&member).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

func GetMemberById(ctx context.Context, id int) (*Member, error) {
	db := config.GetDB()
	var member Member
	if err := db.WithContext(ctx).First(&member, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &member, nil
}

func ListMembers(ctx context.Context) ([]*Member, error) {
	db := config.GetDB()
	var members []*Member
	if err := db.WithContext(ctx).Order("last_name, first_name").Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

// DeleteMember refuses while the member holds slots or payment rows exist
// for them (including trashed/archived ones).
func DeleteMember(ctx context.Context, id int) error {
	db := config.GetDB()

	slots, err := utils.ResourceCountWhere[Slot](ctx, "member_id = ?", id)
	if err != nil {
		return err
	}
	if slots > 0 {
		return validationError("member still holds group slots and cannot be deleted")
	}
	payments, err := utils.ResourceCountWhere[Payment](ctx, "member_id = ?", id)
	if err != nil {
		return err
	}
	if payments > 0 {
		return validationError("member still has payment records and cannot be deleted")
	}

	res := db.WithContext(ctx).Delete(&Member{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.ErrorRecordNotFound
	}
	return nil
}
