package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mmdatafocus/kasmoni_backend/config"
	"github.com/mmdatafocus/kasmoni_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var validate = validator.New()

// Payment is one member's contribution row: the amount they paid (or still
// owe) for PaymentMonth, counted toward the Slot receive month. Lifecycle
// markers put the row in exactly one of active, trashed or archived;
// purging removes the row entirely.
type Payment struct {
	ID             int             `gorm:"primary_key" json:"id"`
	GroupId        int             `gorm:"index;not null" json:"group_id"`
	MemberId       int             `gorm:"index;not null" json:"member_id"`
	Slot           MonthString     `gorm:"size:7;not null;index" json:"slot"`
	PaymentMonth   MonthString     `gorm:"size:7;not null;index" json:"payment_month"`
	Amount         decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	PaymentDate    time.Time       `gorm:"not null" json:"payment_date"`
	PaymentType    PaymentType     `gorm:"size:20;not null" json:"payment_type"`
	SenderBankId   *int            `json:"sender_bank_id,omitempty"`
	ReceiverBankId *int            `json:"receiver_bank_id,omitempty"`
	Status         PaymentStatus   `gorm:"size:20;not null;index" json:"status"`

	DeletedAt       *time.Time `gorm:"index" json:"deleted_at,omitempty"`
	DeletedByUserId *int       `json:"deleted_by_user_id,omitempty"`

	ArchivedAt       *time.Time `gorm:"index" json:"archived_at,omitempty"`
	ArchivedByUserId *int       `json:"archived_by_user_id,omitempty"`
	ArchiveReason    string     `gorm:"type:text" json:"archive_reason,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *Payment) State() LifecycleState {
	switch {
	case p.DeletedAt != nil:
		return LifecycleTrashed
	case p.ArchivedAt != nil:
		return LifecycleArchived
	default:
		return LifecycleActive
	}
}

// scopeActive narrows a payments query to rows the aggregator and the
// normal listings may see.
func scopeActive(db *gorm.DB) *gorm.DB {
	return db.Where("deleted_at IS NULL AND archived_at IS NULL")
}

type NewPayment struct {
	GroupId        int             `json:"group_id" validate:"required,gt=0"`
	MemberId       int             `json:"member_id" validate:"required,gt=0"`
	Slot           MonthString     `json:"slot" validate:"required"`
	PaymentMonth   MonthString     `json:"payment_month" validate:"required"`
	Amount         decimal.Decimal `json:"amount"`
	PaymentDate    *time.Time      `json:"payment_date" validate:"required"`
	PaymentType    PaymentType     `json:"payment_type" validate:"required"`
	SenderBankId   *int            `json:"sender_bank_id"`
	ReceiverBankId *int            `json:"receiver_bank_id"`
	Status         PaymentStatus   `json:"status"`
}

// UpdatePaymentInput carries only the fields being changed; nil means
// "leave as is".
type UpdatePaymentInput struct {
	Amount         *decimal.Decimal `json:"amount"`
	PaymentDate    *time.Time       `json:"payment_date"`
	PaymentType    *PaymentType     `json:"payment_type"`
	SenderBankId   *int             `json:"sender_bank_id"`
	ReceiverBankId *int             `json:"receiver_bank_id"`
	Status         *PaymentStatus   `json:"status"`
}

func (input *NewPayment) validateInput(ctx context.Context) error {
	if err := validate.Struct(input); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if !input.Slot.Valid() {
		return validationError("slot must be YYYY-MM")
	}
	if !input.PaymentMonth.Valid() {
		return validationError("payment month must be YYYY-MM")
	}
	if !input.Amount.IsPositive() {
		return validationError("amount must be positive")
	}
	if !input.PaymentType.Valid() {
		return validationError("payment type must be cash or bank_transfer")
	}
	if input.Status != "" && !input.Status.Valid() {
		return validationError("unknown payment status %q", input.Status)
	}
	if input.PaymentType == PaymentTypeBankTransfer {
		if input.SenderBankId == nil || input.ReceiverBankId == nil {
			return validationError("bank transfer requires sender and receiver bank")
		}
	}

	// Referential checks come after the shape checks; they hit the store.
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
	slots, err := utils.ResourceCountWhere[Slot](ctx,
		"group_id = ? AND member_id = ? AND receive_month = ?",
		input.GroupId, input.MemberId, input.Slot)
	if err != nil {
		return err
	}
	if slots <= 0 {
		return validationError("no slot assigns member %d to receive month %s in group %d",
			input.MemberId, input.Slot, input.GroupId)
	}
	for _, bankId := range []*int{input.SenderBankId, input.ReceiverBankId} {
		if bankId == nil {
			continue
		}
		if err := utils.ValidateResourceId[Bank](ctx, *bankId); err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				return validationError("bank %d not found", *bankId)
			}
			return err
		}
	}
	return nil
}

// CreatePayment inserts a new active payment. At most one active row may
// exist per (group, member, slot, payment month); trashed and archived
// copies do not count against that.
func CreatePayment(ctx context.Context, input *NewPayment) (*Payment, error) {
	if err := input.validateInput(ctx); err != nil {
		return nil, err
	}

	status := input.Status
	if status == "" {
		status = PaymentStatusNotPaid
	}

	db := config.GetDB()
	tx := db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	var active int64
	err := scopeActive(tx.WithContext(ctx).Model(&Payment{})).
		Where("group_id = ? AND member_id = ? AND slot = ? AND payment_month = ?",
			input.GroupId, input.MemberId, input.Slot, input.PaymentMonth).
		Count(&active).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if active > 0 {
		tx.Rollback()
		return nil, fmt.Errorf("%w: active payment already exists for group %d, member %d, slot %s, month %s",
			ErrDuplicatePayment, input.GroupId, input.MemberId, input.Slot, input.PaymentMonth)
	}

	payment := Payment{
		GroupId:        input.GroupId,
		MemberId:       input.MemberId,
		Slot:           input.Slot,
		PaymentMonth:   input.PaymentMonth,
		Amount:         input.Amount,
		PaymentDate:    *input.PaymentDate,
		PaymentType:    input.PaymentType,
		SenderBankId:   input.SenderBankId,
		ReceiverBankId: input.ReceiverBankId,
		Status:         status,
	}

	if err := tx.WithContext(ctx).Create(&payment).Error; err != nil {
		tx.Rollback()
		if isDuplicateKey(err) {
			return nil, fmt.Errorf("%w: concurrent create for the same tuple", ErrDuplicatePayment)
		}
		return nil, err
	}

	after := payment.snapshot()
	if err := createAudit(tx.WithContext(ctx), AuditActionCreated, &payment, nil, &after, ""); err != nil {
		tx.Rollback()
		config.LogError(config.GetLogger(), "payment.go", "CreatePayment", "createAudit", payment.ID, err)
		return nil, fmt.Errorf("%w: %v", ErrAuditWrite, err)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

// UpdatePayment changes fields of an active payment and records the old
// and new values of everything that actually changed. A change touching
// only the status is logged as status_changed.
func UpdatePayment(ctx context.Context, id int, input *UpdatePaymentInput) (*Payment, error) {
	if input.Status != nil && !input.Status.Valid() {
		return nil, validationError("unknown payment status %q", *input.Status)
	}
	if input.PaymentType != nil && !input.PaymentType.Valid() {
		return nil, validationError("payment type must be cash or bank_transfer")
	}
	if input.Amount != nil && !input.Amount.IsPositive() {
		return nil, validationError("amount must be positive")
	}

	db := config.GetDB()
	tx := db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	payment, err := paymentForUpdate(tx.WithContext(ctx), id)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if payment.State() != LifecycleActive {
		tx.Rollback()
		return nil, fmt.Errorf("%w: only active payments can be updated (payment %d is %s)",
			ErrInvalidTransition, id, payment.State())
	}

	before, after := PaymentSnapshot{}, PaymentSnapshot{}
	changed, statusOnly := applyUpdate(payment, input, &before, &after)
	if !changed {
		tx.Rollback()
		return payment, nil
	}

	resultingType := payment.PaymentType
	if resultingType == PaymentTypeBankTransfer &&
		(payment.SenderBankId == nil || payment.ReceiverBankId == nil) {
		tx.Rollback()
		return nil, validationError("bank transfer requires sender and receiver bank")
	}

	if err := tx.WithContext(ctx).Save(payment).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	action := AuditActionUpdated
	if statusOnly {
		action = AuditActionStatusChanged
	}
	if err := createAudit(tx.WithContext(ctx), action, payment, &before, &after, ""); err != nil {
		tx.Rollback()
		config.LogError(config.GetLogger(), "payment.go", "UpdatePayment", "createAudit", payment.ID, err)
		return nil, fmt.Errorf("%w: %v", ErrAuditWrite, err)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return payment, nil
}

// applyUpdate mutates payment in place and fills before/after with the
// changed fields only. Reports whether anything changed and whether the
// status was the only change.
func applyUpdate(payment *Payment, input *UpdatePaymentInput, before, after *PaymentSnapshot) (changed bool, statusOnly bool) {
	var otherChanged bool

	if input.Amount != nil && !input.Amount.Equal(payment.Amount) {
		old := payment.Amount
		before.Amount, after.Amount = &old, input.Amount
		payment.Amount = *input.Amount
		otherChanged = true
	}
	if input.PaymentDate != nil && !input.PaymentDate.Equal(payment.PaymentDate) {
		old := payment.PaymentDate
		before.PaymentDate, after.PaymentDate = &old, input.PaymentDate
		payment.PaymentDate = *input.PaymentDate
		otherChanged = true
	}
	if input.PaymentType != nil && *input.PaymentType != payment.PaymentType {
		old := payment.PaymentType
		before.PaymentType, after.PaymentType = &old, input.PaymentType
		payment.PaymentType = *input.PaymentType
		otherChanged = true
	}
	if input.SenderBankId != nil && !intPtrEqual(input.SenderBankId, payment.SenderBankId) {
		before.SenderBankId, after.SenderBankId = payment.SenderBankId, input.SenderBankId
		payment.SenderBankId = input.SenderBankId
		otherChanged = true
	}
	if input.ReceiverBankId != nil && !intPtrEqual(input.ReceiverBankId, payment.ReceiverBankId) {
		before.ReceiverBankId, after.ReceiverBankId = payment.ReceiverBankId, input.ReceiverBankId
		payment.ReceiverBankId = input.ReceiverBankId
		otherChanged = true
	}

	var statusChanged bool
	if input.Status != nil && *input.Status != payment.Status {
		old := payment.Status
		before.Status, after.Status = &old, input.Status
		payment.Status = *input.Status
		statusChanged = true
	}

	return otherChanged || statusChanged, statusChanged && !otherChanged
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

type PaymentFilter struct {
	GroupId  *int
	MemberId *int
	Month    *MonthString
}

// ListPayments returns active payments matching the filter.
func ListPayments(ctx context.Context, filter PaymentFilter) ([]*Payment, error) {
	db := config.GetDB()
	dbCtx := scopeActive(db.WithContext(ctx).Model(&Payment{}))
	if filter.GroupId != nil {
		dbCtx = dbCtx.Where("group_id = ?", *filter.GroupId)
	}
	if filter.MemberId != nil {
		dbCtx = dbCtx.Where("member_id = ?", *filter.MemberId)
	}
	if filter.Month != nil {
		dbCtx = dbCtx.Where("payment_month = ?", *filter.Month)
	}

	var payments []*Payment
	if err := dbCtx.Order("payment_month, slot").Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

// GetPaymentById returns the row regardless of lifecycle state; purged
// rows are simply gone.
func GetPaymentById(ctx context.Context, id int) (*Payment, error) {
	db := config.GetDB()
	var payment Payment
	if err := db.WithContext(ctx).First(&payment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &payment, nil
}
