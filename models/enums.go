package models

import (
	"database/sql/driver"
	"fmt"
	"regexp"
	"time"
)

type PaymentStatus string

const (
	PaymentStatusNotPaid  PaymentStatus = "not_paid"
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusReceived PaymentStatus = "received"
	PaymentStatusSettled  PaymentStatus = "settled"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusNotPaid, PaymentStatusPending, PaymentStatusReceived, PaymentStatusSettled:
		return true
	}
	return false
}

type PaymentType string

const (
	PaymentTypeCash         PaymentType = "cash"
	PaymentTypeBankTransfer PaymentType = "bank_transfer"
)

func (t PaymentType) Valid() bool {
	switch t {
	case PaymentTypeCash, PaymentTypeBankTransfer:
		return true
	}
	return false
}

// GroupStatus is derived per group for a reference month. It is never
// stored; consumers always get it from the aggregator.
type GroupStatus string

const (
	GroupStatusNotPaid   GroupStatus = "not_paid"
	GroupStatusPending   GroupStatus = "pending"
	GroupStatusFullyPaid GroupStatus = "fully_paid"
)

// LifecycleState is derived from a payment's deleted/archived markers.
// A row is in exactly one state; purged rows no longer exist.
type LifecycleState string

const (
	LifecycleActive   LifecycleState = "active"
	LifecycleTrashed  LifecycleState = "trashed"
	LifecycleArchived LifecycleState = "archived"
)

type AuditAction string

const (
	AuditActionCreated       AuditAction = "created"
	AuditActionUpdated       AuditAction = "updated"
	AuditActionStatusChanged AuditAction = "status_changed"
	AuditActionDeleted       AuditAction = "deleted"
	AuditActionRestored      AuditAction = "restored"
	AuditActionArchived      AuditAction = "archived"
	AuditActionPurged        AuditAction = "permanently_deleted"

	AuditActionBulkDeleted  AuditAction = "bulk_deleted"
	AuditActionBulkRestored AuditAction = "bulk_restored"
	AuditActionBulkArchived AuditAction = "bulk_archived"
	AuditActionBulkPurged   AuditAction = "bulk_permanently_deleted"
)

// MonthString is a calendar month in "YYYY-MM" form. Payment months,
// slot receive months and the aggregator's reference month all use it.
type MonthString string

var monthPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

func (m MonthString) Valid() bool {
	return monthPattern.MatchString(string(m))
}

func (m MonthString) Time() (time.Time, error) {
	return time.Parse("2006-01", string(m))
}

// Next returns the month after m. Panics on an invalid month; validate first.
func (m MonthString) Next() MonthString {
	t, err := m.Time()
	if err != nil {
		panic(err)
	}
	return MonthString(t.AddDate(0, 1, 0).Format("2006-01"))
}

func CurrentMonth() MonthString {
	return MonthString(time.Now().Format("2006-01"))
}

// Value implements the driver.Valuer interface
func (m MonthString) Value() (driver.Value, error) {
	return string(m), nil
}

// Scan implements the sql.Scanner interface
func (m *MonthString) Scan(value interface{}) error {
	if value == nil {
		*m = ""
		return nil
	}
	switch v := value.(type) {
	case string:
		*m = MonthString(v)
	case []byte:
		*m = MonthString(v)
	default:
		return fmt.Errorf("cannot convert %T to MonthString", value)
	}
	return nil
}
