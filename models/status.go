package models

import (
	"context"

	"github.com/mmdatafocus/kasmoni_backend/config"
	"github.com/shopspring/decimal"
)

// Status aggregation. One routine derives a group's payment status for a
// reference month from the slot ledger and the active payment rows; the
// dashboard, the group list and the single-group view all go through it,
// so they can never disagree. Nothing here is cached: every call reflects
// the latest committed state.

// GroupStatusResult is the aggregate for one group and one month.
// MemberCount is the number of slots, one per member-cycle.
type GroupStatusResult struct {
	GroupId      int         `json:"group_id"`
	Month        MonthString `json:"month"`
	Status       GroupStatus `json:"status"`
	PendingCount int         `json:"pending_count"`
	MemberCount  int         `json:"member_count"`
}

// GroupStatusSummary is the group-list row: the aggregate plus the group's
// own fields.
type GroupStatusSummary struct {
	GroupStatusResult
	GroupName     string          `json:"group_name"`
	MonthlyAmount decimal.Decimal `json:"monthly_amount"`
}

// DashboardSummary totals the per-group aggregates for one month.
type DashboardSummary struct {
	Month            MonthString `json:"month"`
	GroupCount       int         `json:"group_count"`
	FullyPaidGroups  int         `json:"fully_paid_groups"`
	PendingGroups    int         `json:"pending_groups"`
	NotPaidGroups    int         `json:"not_paid_groups"`
	OpenSlots        int         `json:"open_slots"`
	TotalMemberSlots int         `json:"total_member_slots"`
}

type slotClass int

const (
	slotNotPaid slotClass = iota
	slotPending
	slotReceived
)

// classifySlot buckets one slot by its active payment row for the month.
// No row, or a not_paid row, counts as not paid; a received row counts as
// received; anything else (pending, settled) is still in flight.
func classifySlot(payment *Payment) slotClass {
	if payment == nil {
		return slotNotPaid
	}
	switch payment.Status {
	case PaymentStatusReceived:
		return slotReceived
	case PaymentStatusNotPaid:
		return slotNotPaid
	default:
		return slotPending
	}
}

// classifySlots derives the group status and pending count from the slot
// set and the active payments of the reference month. Pure function; both
// the single-group and the batch path end up here.
func classifySlots(slots []MonthString, paymentsBySlot map[MonthString]*Payment) (GroupStatus, int) {
	if len(slots) == 0 {
		return GroupStatusNotPaid, 0
	}

	var received, notPaid int
	for _, slot := range slots {
		switch classifySlot(paymentsBySlot[slot]) {
		case slotReceived:
			received++
		case slotNotPaid:
			notPaid++
		}
	}

	pendingCount := len(slots) - received

	switch {
	case received == len(slots):
		return GroupStatusFullyPaid, pendingCount
	case notPaid == len(slots):
		return GroupStatusNotPaid, pendingCount
	default:
		// Mixed slot states report as pending; there is no separate
		// mixed status.
		return GroupStatusPending, pendingCount
	}
}

// GetGroupStatus computes one group's aggregate for the reference month.
func GetGroupStatus(ctx context.Context, groupId int, month MonthString) (*GroupStatusResult, error) {
	if !month.Valid() {
		return nil, validationError("reference month must be YYYY-MM")
	}
	if _, err := GetGroupById(ctx, groupId); err != nil {
		return nil, err
	}

	db := config.GetDB()

	var slots []MonthString
	err := db.WithContext(ctx).Model(&Slot{}).
		Where("group_id = ?", groupId).
		Order("receive_month").
		Pluck("receive_month", &slots).Error
	if err != nil {
		return nil, err
	}

	var payments []*Payment
	err = scopeActive(db.WithContext(ctx).Model(&Payment{})).
		Where("group_id = ? AND payment_month = ?", groupId, month).
		Find(&payments).Error
	if err != nil {
		return nil, err
	}

	status, pending := classifySlots(slots, indexBySlot(payments))
	return &GroupStatusResult{
		GroupId:      groupId,
		Month:        month,
		Status:       status,
		PendingCount: pending,
		MemberCount:  len(slots),
	}, nil
}

// ListGroupStatuses computes every group's aggregate for the month in one
// pass: one slots query, one payments query, then the same classification
// per group as the single-group path.
func ListGroupStatuses(ctx context.Context, month MonthString) ([]*GroupStatusSummary, error) {
	if !month.Valid() {
		return nil, validationError("reference month must be YYYY-MM")
	}

	db := config.GetDB()

	groups, err := ListGroups(ctx)
	if err != nil {
		return nil, err
	}

	var slots []Slot
	if err := db.WithContext(ctx).Order("group_id, receive_month").Find(&slots).Error; err != nil {
		return nil, err
	}
	slotsByGroup := make(map[int][]MonthString)
	for _, s := range slots {
		slotsByGroup[s.GroupId] = append(slotsByGroup[s.GroupId], s.ReceiveMonth)
	}

	var payments []*Payment
	err = scopeActive(db.WithContext(ctx).Model(&Payment{})).
		Where("payment_month = ?", month).
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	paymentsByGroup := make(map[int][]*Payment)
	for _, p := range payments {
		paymentsByGroup[p.GroupId] = append(paymentsByGroup[p.GroupId], p)
	}

	summaries := make([]*GroupStatusSummary, 0, len(groups))
	for _, g := range groups {
		groupSlots := slotsByGroup[g.ID]
		status, pending := classifySlots(groupSlots, indexBySlot(paymentsByGroup[g.ID]))
		summaries = append(summaries, &GroupStatusSummary{
			GroupStatusResult: GroupStatusResult{
				GroupId:      g.ID,
				Month:        month,
				Status:       status,
				PendingCount: pending,
				MemberCount:  len(groupSlots),
			},
			GroupName:     g.Name,
			MonthlyAmount: g.MonthlyAmount,
		})
	}
	return summaries, nil
}

// GetDashboardSummary folds the batch aggregates into dashboard totals.
func GetDashboardSummary(ctx context.Context, month MonthString) (*DashboardSummary, error) {
	statuses, err := ListGroupStatuses(ctx, month)
	if err != nil {
		return nil, err
	}

	summary := DashboardSummary{Month: month, GroupCount: len(statuses)}
	for _, s := range statuses {
		switch s.Status {
		case GroupStatusFullyPaid:
			summary.FullyPaidGroups++
		case GroupStatusPending:
			summary.PendingGroups++
		case GroupStatusNotPaid:
			summary.NotPaidGroups++
		}
		summary.OpenSlots += s.PendingCount
		summary.TotalMemberSlots += s.MemberCount
	}
	return &summary, nil
}

func indexBySlot(payments []*Payment) map[MonthString]*Payment {
	bySlot := make(map[MonthString]*Payment, len(payments))
	for _, p := range payments {
		// At most one active row per slot/month tuple; received wins if a
		// legacy duplicate slips through.
		if existing, ok := bySlot[p.Slot]; ok && existing.Status == PaymentStatusReceived {
			continue
		}
		bySlot[p.Slot] = p
	}
	return bySlot
}
