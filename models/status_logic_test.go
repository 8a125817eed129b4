package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestClassifySlot(t *testing.T) {
	cases := []struct {
		name    string
		payment *Payment
		want    slotClass
	}{
		{"no payment row", nil, slotNotPaid},
		{"not paid row", &Payment{Status: PaymentStatusNotPaid}, slotNotPaid},
		{"pending row", &Payment{Status: PaymentStatusPending}, slotPending},
		{"received row", &Payment{Status: PaymentStatusReceived}, slotReceived},
		{"settled row still in flight", &Payment{Status: PaymentStatusSettled}, slotPending},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := classifySlot(tc.payment); got != tc.want {
				t.Fatalf("classifySlot = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestClassifySlots(t *testing.T) {
	slots := []MonthString{"2026-01", "2026-02", "2026-03"}
	pay := func(status PaymentStatus) *Payment { return &Payment{Status: status} }

	cases := []struct {
		name        string
		slots       []MonthString
		payments    map[MonthString]*Payment
		wantStatus  GroupStatus
		wantPending int
	}{
		{
			name:        "no slots",
			slots:       nil,
			payments:    nil,
			wantStatus:  GroupStatusNotPaid,
			wantPending: 0,
		},
		{
			name:        "no payments at all",
			slots:       slots,
			payments:    map[MonthString]*Payment{},
			wantStatus:  GroupStatusNotPaid,
			wantPending: 3,
		},
		{
			name:  "all received",
			slots: slots,
			payments: map[MonthString]*Payment{
				"2026-01": pay(PaymentStatusReceived),
				"2026-02": pay(PaymentStatusReceived),
				"2026-03": pay(PaymentStatusReceived),
			},
			wantStatus:  GroupStatusFullyPaid,
			wantPending: 0,
		},
		{
			name:  "one pending",
			slots: slots,
			payments: map[MonthString]*Payment{
				"2026-01": pay(PaymentStatusReceived),
				"2026-02": pay(PaymentStatusPending),
				"2026-03": pay(PaymentStatusReceived),
			},
			wantStatus:  GroupStatusPending,
			wantPending: 1,
		},
		{
			name:  "mixed received and missing",
			slots: slots,
			payments: map[MonthString]*Payment{
				"2026-01": pay(PaymentStatusReceived),
			},
			wantStatus:  GroupStatusPending,
			wantPending: 2,
		},
		{
			name:  "all not paid rows",
			slots: slots,
			payments: map[MonthString]*Payment{
				"2026-01": pay(PaymentStatusNotPaid),
				"2026-02": pay(PaymentStatusNotPaid),
				"2026-03": pay(PaymentStatusNotPaid),
			},
			wantStatus:  GroupStatusNotPaid,
			wantPending: 3,
		},
		{
			name:  "settled counts toward pending",
			slots: slots,
			payments: map[MonthString]*Payment{
				"2026-01": pay(PaymentStatusSettled),
				"2026-02": pay(PaymentStatusReceived),
				"2026-03": pay(PaymentStatusReceived),
			},
			wantStatus:  GroupStatusPending,
			wantPending: 1,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, pending := classifySlots(tc.slots, tc.payments)
			if status != tc.wantStatus || pending != tc.wantPending {
				t.Fatalf("classifySlots = (%s, %d), want (%s, %d)",
					status, pending, tc.wantStatus, tc.wantPending)
			}
			// Same inputs, same answer.
			status2, pending2 := classifySlots(tc.slots, tc.payments)
			if status2 != status || pending2 != pending {
				t.Fatalf("classifySlots is not deterministic: (%s, %d) then (%s, %d)",
					status, pending, status2, pending2)
			}
		})
	}
}

func TestIndexBySlotReceivedWins(t *testing.T) {
	received := &Payment{ID: 1, Slot: "2026-01", Status: PaymentStatusReceived}
	pending := &Payment{ID: 2, Slot: "2026-01", Status: PaymentStatusPending}

	for name, order := range map[string][]*Payment{
		"received first": {received, pending},
		"received last":  {pending, received},
	} {
		t.Run(name, func(t *testing.T) {
			bySlot := indexBySlot(order)
			got := bySlot["2026-01"]
			if got == nil || got.ID != received.ID {
				t.Fatalf("expected received row to win the slot, got %+v", got)
			}
		})
	}
}

func TestMonthString(t *testing.T) {
	valid := []MonthString{"2026-01", "1999-12", "2026-09"}
	for _, m := range valid {
		if !m.Valid() {
			t.Errorf("expected %q to be valid", m)
		}
	}
	invalid := []MonthString{"", "2026-13", "2026-00", "2026-1", "26-01", "2026/01", "2026-01-15"}
	for _, m := range invalid {
		if m.Valid() {
			t.Errorf("expected %q to be invalid", m)
		}
	}

	if next := MonthString("2025-12").Next(); next != "2026-01" {
		t.Fatalf("Next() across year boundary = %s, want 2026-01", next)
	}
}

func TestPaymentState(t *testing.T) {
	now := time.Now()
	var p Payment
	if p.State() != LifecycleActive {
		t.Fatalf("fresh payment state = %s, want active", p.State())
	}
	p.ArchivedAt = &now
	if p.State() != LifecycleArchived {
		t.Fatalf("archived payment state = %s, want archived", p.State())
	}
	// Trash markers take precedence; an archived row moved to trash reads
	// trashed even before the archive markers are cleared.
	p.DeletedAt = &now
	if p.State() != LifecycleTrashed {
		t.Fatalf("trashed payment state = %s, want trashed", p.State())
	}
}

func TestApplyUpdate(t *testing.T) {
	base := func() *Payment {
		return &Payment{
			ID:           7,
			Amount:       decimal.NewFromInt(500),
			PaymentDate:  time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC),
			PaymentType:  PaymentTypeCash,
			Status:       PaymentStatusPending,
			PaymentMonth: "2026-03",
			Slot:         "2026-06",
		}
	}
	statusReceived := PaymentStatusReceived
	samePending := PaymentStatusPending
	newAmount := decimal.NewFromInt(750)

	t.Run("status only", func(t *testing.T) {
		p := base()
		var before, after PaymentSnapshot
		changed, statusOnly := applyUpdate(p, &UpdatePaymentInput{Status: &statusReceived}, &before, &after)
		if !changed || !statusOnly {
			t.Fatalf("changed=%v statusOnly=%v, want true/true", changed, statusOnly)
		}
		if p.Status != PaymentStatusReceived {
			t.Fatalf("status not applied: %s", p.Status)
		}
		if before.Status == nil || *before.Status != PaymentStatusPending {
			t.Fatalf("before.Status = %v, want pending", before.Status)
		}
		if after.Status == nil || *after.Status != PaymentStatusReceived {
			t.Fatalf("after.Status = %v, want received", after.Status)
		}
		if before.Amount != nil || after.Amount != nil {
			t.Fatalf("amount must not appear in snapshots of a status-only change")
		}
	})

	t.Run("status plus amount is not status only", func(t *testing.T) {
		p := base()
		var before, after PaymentSnapshot
		changed, statusOnly := applyUpdate(p, &UpdatePaymentInput{Status: &statusReceived, Amount: &newAmount}, &before, &after)
		if !changed || statusOnly {
			t.Fatalf("changed=%v statusOnly=%v, want true/false", changed, statusOnly)
		}
		if before.Amount == nil || !before.Amount.Equal(decimal.NewFromInt(500)) {
			t.Fatalf("before.Amount = %v, want 500", before.Amount)
		}
		if after.Amount == nil || !after.Amount.Equal(newAmount) {
			t.Fatalf("after.Amount = %v, want 750", after.Amount)
		}
	})

	t.Run("no-op values report unchanged", func(t *testing.T) {
		p := base()
		sameAmount := decimal.NewFromInt(500)
		var before, after PaymentSnapshot
		changed, _ := applyUpdate(p, &UpdatePaymentInput{Status: &samePending, Amount: &sameAmount}, &before, &after)
		if changed {
			t.Fatalf("setting fields to their current values must not count as a change")
		}
	})

	t.Run("nil fields are left alone", func(t *testing.T) {
		p := base()
		var before, after PaymentSnapshot
		changed, _ := applyUpdate(p, &UpdatePaymentInput{}, &before, &after)
		if changed {
			t.Fatalf("empty input must not change anything")
		}
		if !p.Amount.Equal(decimal.NewFromInt(500)) || p.Status != PaymentStatusPending {
			t.Fatalf("payment mutated by empty input: %+v", p)
		}
	})
}

func TestPaymentSnapshotOmitsAbsentFields(t *testing.T) {
	status := PaymentStatusReceived
	partial := PaymentSnapshot{Status: &status}

	b, err := json.Marshal(partial)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"status":"received"}` {
		t.Fatalf("partial snapshot JSON = %s, want only the status field", b)
	}
	if strings.Contains(string(b), "null") {
		t.Fatalf("absent fields must be omitted, not stored as null: %s", b)
	}

	p := Payment{
		Amount:       decimal.NewFromInt(500),
		PaymentDate:  time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC),
		PaymentType:  PaymentTypeCash,
		Status:       PaymentStatusPending,
		PaymentMonth: "2026-03",
		Slot:         "2026-06",
	}
	full := p.snapshot()
	fb, err := json.Marshal(full)
	if err != nil {
		t.Fatalf("marshal full snapshot: %v", err)
	}
	for _, key := range []string{"status", "amount", "payment_date", "payment_type", "payment_month", "slot"} {
		if !strings.Contains(string(fb), `"`+key+`"`) {
			t.Errorf("full snapshot missing %q: %s", key, fb)
		}
	}
	// Cash payment has no banks; they stay out of the snapshot.
	if strings.Contains(string(fb), "sender_bank_id") || strings.Contains(string(fb), "receiver_bank_id") {
		t.Fatalf("unset bank ids leaked into snapshot: %s", fb)
	}
}
