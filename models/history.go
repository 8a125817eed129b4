package models

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/kasmoni_backend/config"
	"github.com/mmdatafocus/kasmoni_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentAudit is the append-only trail of payment mutations. Rows are
// written inside the mutating transaction and never updated or deleted;
// purging a payment leaves its audit rows behind.
type PaymentAudit struct {
	ID        int         `gorm:"primary_key" json:"id"`
	PaymentId *int        `gorm:"index" json:"payment_id,omitempty"`
	Action    AuditAction `gorm:"size:40;not null;index" json:"action"`
	GroupId   *int        `gorm:"index" json:"group_id,omitempty"`
	MemberId  *int        `gorm:"index" json:"member_id,omitempty"`

	// Before/After hold a JSON PaymentSnapshot of the changed fields.
	// Empty string means "no snapshot for this action", and fields absent
	// from the snapshot were not touched; nothing is stored as a null
	// placeholder.
	Before string `gorm:"type:text" json:"before,omitempty"`
	After  string `gorm:"type:text" json:"after,omitempty"`

	UserId        int       `gorm:"index;not null" json:"user_id"`
	UserName      string    `gorm:"size:100" json:"user_name"`
	ClientIp      string    `gorm:"size:45" json:"client_ip,omitempty"`
	UserAgent     string    `gorm:"size:255" json:"user_agent,omitempty"`
	Details       string    `gorm:"type:text" json:"details,omitempty"`
	CorrelationId string    `gorm:"size:36" json:"correlation_id,omitempty"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (PaymentAudit) TableName() string { return "payment_audits" }

// PaymentSnapshot is the typed before/after payload. Every field is
// optional; an action only fills what it touched, and json omitempty drops
// the rest.
type PaymentSnapshot struct {
	Status         *PaymentStatus   `json:"status,omitempty"`
	Amount         *decimal.Decimal `json:"amount,omitempty"`
	PaymentDate    *time.Time       `json:"payment_date,omitempty"`
	PaymentType    *PaymentType     `json:"payment_type,omitempty"`
	SenderBankId   *int             `json:"sender_bank_id,omitempty"`
	ReceiverBankId *int             `json:"receiver_bank_id,omitempty"`
	PaymentMonth   *MonthString     `json:"payment_month,omitempty"`
	Slot           *MonthString     `json:"slot,omitempty"`
}

// snapshot captures the full current field values of the payment.
func (p *Payment) snapshot() PaymentSnapshot {
	status := p.Status
	amount := p.Amount
	date := p.PaymentDate
	ptype := p.PaymentType
	month := p.PaymentMonth
	slot := p.Slot
	return PaymentSnapshot{
		Status:         &status,
		Amount:         &amount,
		PaymentDate:    &date,
		PaymentType:    &ptype,
		SenderBankId:   p.SenderBankId,
		ReceiverBankId: p.ReceiverBankId,
		PaymentMonth:   &month,
		Slot:           &slot,
	}
}

// createAudit appends one entry inside the caller's transaction. Actor
// identity and client metadata come from the transaction's context; a
// missing user is an error, not a silent anonymous entry.
func createAudit(tx *gorm.DB, action AuditAction, payment *Payment, before, after *PaymentSnapshot, details string) error {
	ctx := tx.Statement.Context

	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok {
		return errors.New("user id is required")
	}
	userName, ok := utils.GetUserNameFromContext(ctx)
	if !ok {
		return errors.New("user name is required")
	}

	entry := PaymentAudit{
		PaymentId:     &payment.ID,
		Action:        action,
		GroupId:       &payment.GroupId,
		MemberId:      &payment.MemberId,
		UserId:        userId,
		UserName:      userName,
		Details:       details,
		CorrelationId: correlationIdFromContextOrNew(ctx),
	}
	entry.ClientIp, _ = utils.GetClientIpFromContext(ctx)
	entry.UserAgent, _ = utils.GetUserAgentFromContext(ctx)

	if before != nil {
		b, err := json.Marshal(before)
		if err != nil {
			return err
		}
		entry.Before = string(b)
	}
	if after != nil {
		a, err := json.Marshal(after)
		if err != nil {
			return err
		}
		entry.After = string(a)
	}

	return tx.Create(&entry).Error
}

// createBulkAudit appends the one summary entry a bulk operation leaves in
// addition to its per-item entries. No payment id; the details text carries
// the outcome counts.
func createBulkAudit(ctx context.Context, action AuditAction, details string) error {
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok {
		return errors.New("user id is required")
	}
	userName, ok := utils.GetUserNameFromContext(ctx)
	if !ok {
		return errors.New("user name is required")
	}

	entry := PaymentAudit{
		Action:        action,
		UserId:        userId,
		UserName:      userName,
		Details:       details,
		CorrelationId: correlationIdFromContextOrNew(ctx),
	}
	entry.ClientIp, _ = utils.GetClientIpFromContext(ctx)
	entry.UserAgent, _ = utils.GetUserAgentFromContext(ctx)

	db := config.GetDB()
	return db.WithContext(ctx).Create(&entry).Error
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

// ListPaymentAudit returns the full trail for one payment, oldest first.
// Entries outlive the payment row itself.
func ListPaymentAudit(ctx context.Context, paymentId int) ([]*PaymentAudit, error) {
	db := config.GetDB()
	var entries []*PaymentAudit
	err := db.WithContext(ctx).
		Where("payment_id = ?", paymentId).
		Order("created_at, id").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

type PaymentAuditsEdge Edge[PaymentAudit]
type PaymentAuditsConnection struct {
	Edges    []*PaymentAuditsEdge `json:"edges"`
	PageInfo *PageInfo            `json:"pageInfo"`
}

func (a PaymentAudit) GetId() int {
	return a.ID
}

func (a PaymentAudit) GetCursor() string {
	return a.CreatedAt.UTC().Format("2006-01-02 15:04:05.000000")
}

// ListAuditTrail pages through the whole trail, newest first.
func ListAuditTrail(ctx context.Context, limit int, after *string) (*PaymentAuditsConnection, error) {
	if limit <= 0 || limit > 100 {
		limit = config.SearchLimit
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&PaymentAudit{})

	edges, pageInfo, err := FetchPageCompositeCursor[PaymentAudit](dbCtx, limit, after, "created_at", "<")
	if err != nil {
		return nil, err
	}

	conn := PaymentAuditsConnection{PageInfo: pageInfo}
	for i := range edges {
		edge := PaymentAuditsEdge(edges[i])
		conn.Edges = append(conn.Edges, &edge)
	}
	return &conn, nil
}
