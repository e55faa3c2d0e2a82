package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/looplab/fsm"
	"github.com/shopspring/decimal"
)

// InstallmentStatus is the lifecycle state of a loan installment.
type InstallmentStatus string

const (
	InstallmentPlanned       InstallmentStatus = "planned"
	InstallmentPending       InstallmentStatus = "pending"
	InstallmentPosted        InstallmentStatus = "posted"
	InstallmentPaid          InstallmentStatus = "paid"
	InstallmentPartiallyPaid InstallmentStatus = "partially_paid"
	InstallmentOverdue       InstallmentStatus = "overdue"
	InstallmentCancelled     InstallmentStatus = "cancelled"
	InstallmentLate          InstallmentStatus = "late"
)

// ParseInstallmentStatus returns the status for s or ErrInvalidInstallmentStatus.
func ParseInstallmentStatus(s string) (InstallmentStatus, error) {
	switch st := InstallmentStatus(s); st {
	case InstallmentPlanned, InstallmentPending, InstallmentPosted, InstallmentPaid,
		InstallmentPartiallyPaid, InstallmentOverdue, InstallmentCancelled, InstallmentLate:
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidInstallmentStatus, s)
}

// IsSettled reports whether the installment has been realized as a payment.
func (s InstallmentStatus) IsSettled() bool {
	return s == InstallmentPosted || s == InstallmentPaid || s == InstallmentLate
}

// IsTerminal reports whether no further transition is allowed.
func (s InstallmentStatus) IsTerminal() bool {
	return s.IsSettled() || s == InstallmentCancelled
}

// InstallmentEvent names a status transition.
type InstallmentEvent string

const (
	EventActivate    InstallmentEvent = "activate"
	EventPost        InstallmentEvent = "post"
	EventPay         InstallmentEvent = "pay"
	EventPayPartial  InstallmentEvent = "pay_partial"
	EventMarkOverdue InstallmentEvent = "mark_overdue"
	EventPayLate     InstallmentEvent = "pay_late"
	EventCancel      InstallmentEvent = "cancel"
)

func installmentEvents() fsm.Events {
	s := func(states ...InstallmentStatus) []string {
		out := make([]string, len(states))
		for i, st := range states {
			out[i] = string(st)
		}
		return out
	}

	return fsm.Events{
		{Name: string(EventActivate), Src: s(InstallmentPlanned), Dst: string(InstallmentPending)},
		{Name: string(EventPost), Src: s(InstallmentPlanned, InstallmentPending), Dst: string(InstallmentPosted)},
		{Name: string(EventPay), Src: s(InstallmentPending, InstallmentPartiallyPaid), Dst: string(InstallmentPaid)},
		{Name: string(EventPayPartial), Src: s(InstallmentPending, InstallmentOverdue), Dst: string(InstallmentPartiallyPaid)},
		{Name: string(EventMarkOverdue), Src: s(InstallmentPlanned, InstallmentPending, InstallmentPartiallyPaid), Dst: string(InstallmentOverdue)},
		{Name: string(EventPayLate), Src: s(InstallmentOverdue), Dst: string(InstallmentLate)},
		{Name: string(EventCancel), Src: s(InstallmentPlanned, InstallmentPending, InstallmentOverdue), Dst: string(InstallmentCancelled)},
	}
}

// LoanInstallment is one persisted row of a loan's repayment plan.
type LoanInstallment struct {
	ID              string
	LoanID          string
	AccountID       string
	InstallmentNo   int
	DueDate         time.Time
	PrincipalAmount decimal.Decimal
	InterestAmount  decimal.Decimal
	FeeAmount       decimal.Decimal
	TotalAmount     decimal.Decimal
	Status          InstallmentStatus
	TransferID      *string
	PaidOn          *time.Time
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// RecalculateTotal sets TotalAmount from its parts.
func (i *LoanInstallment) RecalculateTotal() {
	i.TotalAmount = i.PrincipalAmount.Add(i.InterestAmount).Add(i.FeeAmount)
}

// PostingEvent returns the transition applied when the installment is paid in
// full, or ErrInstallmentNotPostable.
func (i *LoanInstallment) PostingEvent() (InstallmentEvent, error) {
	switch i.Status {
	case InstallmentPlanned:
		return EventPost, nil
	case InstallmentPending, InstallmentPartiallyPaid:
		return EventPay, nil
	case InstallmentOverdue:
		return EventPayLate, nil
	}
	return "", fmt.Errorf("%w: status %s", ErrInstallmentNotPostable, i.Status)
}

// InstallmentFSM wraps an installment with its state machine.
type InstallmentFSM struct {
	installment *LoanInstallment
	fsm         *fsm.FSM
}

// NewInstallmentFSM creates a state machine positioned at the installment's status.
func NewInstallmentFSM(installment *LoanInstallment) *InstallmentFSM {
	return &InstallmentFSM{
		installment: installment,
		fsm:         fsm.NewFSM(string(installment.Status), installmentEvents(), fsm.Callbacks{}),
	}
}

// Can reports whether event is allowed from the current status.
func (m *InstallmentFSM) Can(event InstallmentEvent) bool {
	return m.fsm.Can(string(event))
}

// Fire applies event and writes the resulting status back to the installment.
func (m *InstallmentFSM) Fire(ctx context.Context, event InstallmentEvent) error {
	if !m.Can(event) {
		return fmt.Errorf("%w: %s from %s", ErrInvalidStatusTransition, event, m.installment.Status)
	}

	if err := m.fsm.Event(ctx, string(event)); err != nil {
		var noTransition fsm.NoTransitionError
		if !errors.As(err, &noTransition) {
			return fmt.Errorf("failed to %s installment: %w", event, err)
		}
	}

	m.installment.Status = InstallmentStatus(m.fsm.Current())
	return nil
}

// Current returns the machine's state.
func (m *InstallmentFSM) Current() InstallmentStatus {
	return InstallmentStatus(m.fsm.Current())
}
