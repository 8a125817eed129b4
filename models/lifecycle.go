package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmdatafocus/kasmoni_backend/config"
	"github.com/mmdatafocus/kasmoni_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Lifecycle transitions. Every single-record transition runs as one
// transaction: lock the row, check the current state, mutate, write the
// audit entry. Two concurrent transitions on the same record serialize on
// the row lock; the loser sees the new state and fails its guard.

func paymentForUpdate(tx *gorm.DB, id int) (*Payment, error) {
	var payment Payment
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&payment, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &payment, nil
}

// TrashPayment moves an active payment to the trashbox. The row keeps all
// its data; it just stops counting toward status aggregation and listings.
// details, when set, goes into the audit entry (archive-to-trash moves pass
// an explanation through here).
func TrashPayment(ctx context.Context, id int, details string) (*Payment, error) {
	return transition(ctx, id, func(tx *gorm.DB, payment *Payment) (AuditAction, *PaymentSnapshot, *PaymentSnapshot, string, error) {
		if payment.State() != LifecycleActive {
			return "", nil, nil, "", fmt.Errorf("%w: payment %d is %s, only active payments can be trashed",
				ErrInvalidTransition, id, payment.State())
		}

		before := payment.snapshot()
		now := time.Now()
		userId, _ := utils.GetUserIdFromContext(tx.Statement.Context)
		payment.DeletedAt = &now
		payment.DeletedByUserId = &userId

		return AuditActionDeleted, &before, nil, details, nil
	})
}

// TrashArchivedPayment moves an archived payment to the trashbox.
func TrashArchivedPayment(ctx context.Context, id int, details string) (*Payment, error) {
	return transition(ctx, id, func(tx *gorm.DB, payment *Payment) (AuditAction, *PaymentSnapshot, *PaymentSnapshot, string, error) {
		if payment.State() != LifecycleArchived {
			return "", nil, nil, "", fmt.Errorf("%w: payment %d is %s, expected archived",
				ErrInvalidTransition, id, payment.State())
		}

		before := payment.snapshot()
		now := time.Now()
		userId, _ := utils.GetUserIdFromContext(tx.Statement.Context)
		payment.ArchivedAt = nil
		payment.ArchivedByUserId = nil
		payment.ArchiveReason = ""
		payment.DeletedAt = &now
		payment.DeletedByUserId = &userId

		if details == "" {
			details = "moved from archive to trash"
		}
		return AuditActionDeleted, &before, nil, details, nil
	})
}

// RestorePayment re-activates a trashed or archived payment. The same row
// comes back under its original id. If another active payment occupied the
// tuple in the meantime, the restore fails instead of reviving a duplicate.
func RestorePayment(ctx context.Context, id int) (*Payment, error) {
	return transition(ctx, id, func(tx *gorm.DB, payment *Payment) (AuditAction, *PaymentSnapshot, *PaymentSnapshot, string, error) {
		if payment.State() == LifecycleActive {
			return "", nil, nil, "", fmt.Errorf("%w: payment %d is already active", ErrInvalidTransition, id)
		}

		var occupied int64
		err := scopeActive(tx.Model(&Payment{})).
			Where("group_id = ? AND member_id = ? AND slot = ? AND payment_month = ? AND id <> ?",
				payment.GroupId, payment.MemberId, payment.Slot, payment.PaymentMonth, payment.ID).
			Count(&occupied).Error
		if err != nil {
			return "", nil, nil, "", err
		}
		if occupied > 0 {
			return "", nil, nil, "", fmt.Errorf("%w: another active payment exists for group %d, member %d, slot %s, month %s",
				ErrConflictingActiveRecord, payment.GroupId, payment.MemberId, payment.Slot, payment.PaymentMonth)
		}

		payment.DeletedAt = nil
		payment.DeletedByUserId = nil
		payment.ArchivedAt = nil
		payment.ArchivedByUserId = nil
		payment.ArchiveReason = ""

		after := payment.snapshot()
		return AuditActionRestored, nil, &after, "", nil
	})
}

// ArchivePayment moves an active payment to the archive. The reason may be
// empty but is always recorded.
func ArchivePayment(ctx context.Context, id int, reason string) (*Payment, error) {
	return transition(ctx, id, func(tx *gorm.DB, payment *Payment) (AuditAction, *PaymentSnapshot, *PaymentSnapshot, string, error) {
		if payment.State() != LifecycleActive {
			return "", nil, nil, "", fmt.Errorf("%w: payment %d is %s, only active payments can be archived",
				ErrInvalidTransition, id, payment.State())
		}

		now := time.Now()
		userId, _ := utils.GetUserIdFromContext(tx.Statement.Context)
		payment.ArchivedAt = &now
		payment.ArchivedByUserId = &userId
		payment.ArchiveReason = reason

		after := payment.snapshot()
		return AuditActionArchived, nil, &after, reason, nil
	})
}

// transition wraps the shared tx plumbing: lock, guard+mutate via fn,
// persist, audit, commit. fn returns the audit action plus the snapshots
// and detail text for the entry.
func transition(ctx context.Context, id int,
	fn func(tx *gorm.DB, payment *Payment) (AuditAction, *PaymentSnapshot, *PaymentSnapshot, string, error),
) (*Payment, error) {
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

	action, before, after, details, err := fn(tx.WithContext(ctx), payment)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	// Save writes every field, so cleared markers persist as NULL.
	if err := tx.WithContext(ctx).Save(payment).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := createAudit(tx.WithContext(ctx), action, payment, before, after, details); err != nil {
		tx.Rollback()
		config.LogError(config.GetLogger(), "lifecycle.go", "transition", string(action), payment.ID, err)
		return nil, fmt.Errorf("%w: %v", ErrAuditWrite, err)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return payment, nil
}

// PurgePayment permanently deletes a trashed payment. The audit entry is
// written in the same transaction before the row goes; audit rows never
// cascade with the payment.
func PurgePayment(ctx context.Context, id int) error {
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
		return err
	}
	if payment.State() != LifecycleTrashed {
		tx.Rollback()
		return fmt.Errorf("%w: payment %d is %s, only trashed payments can be permanently deleted",
			ErrInvalidTransition, id, payment.State())
	}

	before := payment.snapshot()
	if err := createAudit(tx.WithContext(ctx), AuditActionPurged, payment, &before, nil, ""); err != nil {
		tx.Rollback()
		config.LogError(config.GetLogger(), "lifecycle.go", "PurgePayment", "createAudit", payment.ID, err)
		return fmt.Errorf("%w: %v", ErrAuditWrite, err)
	}

	if err := tx.WithContext(ctx).Delete(&Payment{}, payment.ID).Error; err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}

// BulkResult reports one item's outcome in a bulk operation.
type BulkResult struct {
	PaymentId int    `json:"payment_id"`
	Error     string `json:"error,omitempty"`
}

func (r BulkResult) Ok() bool { return r.Error == "" }

// Bulk variants run each item in its own transaction; one failure never
// rolls back the others. After the batch a single summary audit entry
// records the outcome counts.

func BulkTrashPayments(ctx context.Context, ids []int, details string) ([]BulkResult, error) {
	return runBulk(ctx, ids, AuditActionBulkDeleted, func(id int) error {
		_, err := TrashPayment(ctx, id, details)
		return err
	})
}

func BulkRestorePayments(ctx context.Context, ids []int) ([]BulkResult, error) {
	return runBulk(ctx, ids, AuditActionBulkRestored, func(id int) error {
		_, err := RestorePayment(ctx, id)
		return err
	})
}

func BulkArchivePayments(ctx context.Context, ids []int, reason string) ([]BulkResult, error) {
	return runBulk(ctx, ids, AuditActionBulkArchived, func(id int) error {
		_, err := ArchivePayment(ctx, id, reason)
		return err
	})
}

func BulkPurgePayments(ctx context.Context, ids []int) ([]BulkResult, error) {
	return runBulk(ctx, ids, AuditActionBulkPurged, func(id int) error {
		return PurgePayment(ctx, id)
	})
}

func runBulk(ctx context.Context, ids []int, action AuditAction, op func(id int) error) ([]BulkResult, error) {
	ids = utils.UniqueSlice(ids)
	if len(ids) == 0 {
		return nil, validationError("no payment ids given")
	}

	results := make([]BulkResult, 0, len(ids))
	succeeded := 0
	for _, id := range ids {
		res := BulkResult{PaymentId: id}
		if err := op(id); err != nil {
			res.Error = err.Error()
		} else {
			succeeded++
		}
		results = append(results, res)
	}

	summary := fmt.Sprintf("%d of %d payments processed", succeeded, len(ids))
	if err := createBulkAudit(ctx, action, summary); err != nil {
		config.LogError(config.GetLogger(), "lifecycle.go", "runBulk", string(action), ids, err)
		return results, fmt.Errorf("%w: %v", ErrAuditWrite, err)
	}
	return results, nil
}

// TrashboxEntry is what the trashbox view shows: the payment plus who
// trashed it.
type TrashboxEntry struct {
	Payment
	DeletedBy string `json:"deleted_by"`
}

// ArchiveEntry is the archive view row.
type ArchiveEntry struct {
	Payment
	ArchivedBy string `json:"archived_by"`
}

func ListTrashbox(ctx context.Context) ([]*TrashboxEntry, error) {
	db := config.GetDB()
	var entries []*TrashboxEntry
	err := db.WithContext(ctx).Model(&Payment{}).
		Select("payments.*, COALESCE(users.display_name, '') AS deleted_by").
		Joins("LEFT JOIN users ON users.id = payments.deleted_by_user_id").
		Where("payments.deleted_at IS NOT NULL").
		Order("payments.deleted_at DESC").
		Scan(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func ListArchive(ctx context.Context) ([]*ArchiveEntry, error) {
	db := config.GetDB()
	var entries []*ArchiveEntry
	err := db.WithContext(ctx).Model(&Payment{}).
		Select("payments.*, COALESCE(users.display_name, '') AS archived_by").
		Joins("LEFT JOIN users ON users.id = payments.archived_by_user_id").
		Where("payments.archived_at IS NOT NULL AND payments.deleted_at IS NULL").
		Order("payments.archived_at DESC").
		Scan(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
