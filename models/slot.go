package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/kasmoni_backend/config"
	"github.com/mmdatafocus/kasmoni_backend/utils"
	"gorm.io/gorm"
)

// Slot assigns one member to one receive month within a group: the month
// the pooled amount goes to them. The slot set is the aggregator's
// denominator, so slots are never deleted while payment rows reference
// them (in any lifecycle state).
type Slot struct {
	ID           int         `gorm:"primary_key" json:"id"`
	GroupId      int         `gorm:"index;not null;uniqueIndex:uniq_group_receive_month" json:"group_id" binding:"required"`
	MemberId     int         `gorm:"index;not null" json:"member_id" binding:"required"`
	ReceiveMonth MonthString `gorm:"size:7;not null;uniqueIndex:uniq_group_receive_month" json:"receive_month" binding:"required"`
	CreatedAt    time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewSlot struct {
	GroupId      int         `json:"group_id" binding:"required"`
	MemberId     int         `json:"member_id" binding:"required"`
	ReceiveMonth MonthString `json:"receive_month" binding:"required"`
}

// SlotWithMember is the slot list row shown on a group page.
type SlotWithMember struct {
	Slot
	MemberName string `json:"member_name"`
}

func (input *NewSlot) validate(ctx context.Context) error {
	if !input.ReceiveMonth.Valid() {
		return validationError("receive month must be YYYY-MM")
	}
	if err := utils.ValidateResourceId[Group](ctx, input.GroupId); err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return validationError("group not found")
		}
		return err
	}
	if err := utils.ValidateResourceId[Member](ctx, input.MemberId); err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return validationError("member not found")
		}
		return err
	}
	return nil
}

func CreateSlot(ctx context.Context, input *NewSlot) (*Slot, error) {
	if err := input.validate(ctx); err != nil {
		return nil, err
	}

	slot := Slot{
		GroupId:      input.GroupId,
		MemberId:     input.MemberId,
		ReceiveMonth: input.ReceiveMonth,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&slot).Error; err != nil {
		if isDuplicateKey(err) {
			return nil, validationError("receive month %s is already assigned in this group", input.ReceiveMonth)
		}
		return nil, err
	}
	return &slot, nil
}

// UpdateSlot is the administrative edit; a slot is otherwise immutable.
func UpdateSlot(ctx context.Context, id int, input *NewSlot) (*Slot, error) {
	if err := input.validate(ctx); err != nil {
		return nil, err
	}

	db := config.GetDB()
	var slot Slot
	if err := db.WithContext(ctx).First(&slot, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}

	// Changing the receive month under existing payments would orphan them.
	if slot.ReceiveMonth != input.ReceiveMonth || slot.GroupId != input.GroupId {
		refs, err := utils.ResourceCountWhere[Payment](ctx,
			"group_id = ? AND slot = ?", slot.GroupId, slot.ReceiveMonth)
		if err != nil {
			return nil, err
		}
		if refs > 0 {
			return nil, validationError("slot has payment records; its group and receive month cannot change")
		}
	}

	slot.GroupId = input.GroupId
	slot.MemberId = input.MemberId
	slot.ReceiveMonth = input.ReceiveMonth

	if err := db.WithContext(ctx).Save(&slot).Error; err != nil {
		if isDuplicateKey(err) {
			return nil, validationError("receive month %s is already assigned in this group", input.ReceiveMonth)
		}
		return nil, err
	}
	return &slot, nil
}

func ListGroupSlots(ctx context.Context, groupId int) ([]*SlotWithMember, error) {
	db := config.GetDB()
	var slots []*SlotWithMember
	err := db.WithContext(ctx).Model(&Slot{}).
		Select("slots.*, CONCAT(members.first_name, ' ', members.last_name) AS member_name").
		Joins("JOIN members ON members.id = slots.member_id").
		Where("slots.group_id = ?", groupId).
		Order("slots.receive_month").
		Scan(&slots).Error
	if err != nil {
		return nil, err
	}
	return slots, nil
}

// CurrentRecipient returns the slot whose receive month equals the
// reference month, when the group has one.
func CurrentRecipient(ctx context.Context, groupId int, month MonthString) (*SlotWithMember, error) {
	db := config.GetDB()
	var slot SlotWithMember
	err := db.WithContext(ctx).Model(&Slot{}).
		Select("slots.*, CONCAT(members.first_name, ' ', members.last_name) AS member_name").
		Joins("JOIN members ON members.id = slots.member_id").
		Where("slots.group_id = ? AND slots.receive_month = ?", groupId, month).
		First(&slot).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &slot, nil
}

// DeleteSlot refuses while any payment row (active, trashed or archived)
// references the slot.
func DeleteSlot(ctx context.Context, id int) error {
	db := config.GetDB()

	var slot Slot
	if err := db.WithContext(ctx).First(&slot, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorRecordNotFound
		}
		return err
	}

	refs, err := utils.ResourceCountWhere[Payment](ctx,
		"group_id = ? AND slot = ?", slot.GroupId, slot.ReceiveMonth)
	if err != nil {
		return err
	}
	if refs > 0 {
		return validationError("slot has payment records and cannot be deleted")
	}

	return db.WithContext(ctx).Delete(&Slot{}, id).Error
}
