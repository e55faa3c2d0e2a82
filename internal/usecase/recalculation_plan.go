package usecase

import (
	"fmt"
	"time"

	"github.com/iho/ledgerbook/internal/domain"
)

// PlanMode says whether a pass recomputes everything or only a window.
type PlanMode string

const (
	PlanModeFull     PlanMode = "full"
	PlanModeWindowed PlanMode = "windowed"
)

// PlanReason records why a plan has its mode.
type PlanReason string

const (
	PlanReasonRequested       PlanReason = "requested"
	PlanReasonNoAnchor        PlanReason = "no_anchor"
	PlanReasonEmptyResult     PlanReason = "empty_result"
	PlanReasonDeltaSpike      PlanReason = "delta_spike"
	PlanReasonReverseStrategy PlanReason = "reverse_strategy"
)

// RecalculationPlan describes one materialization pass. Plans are values: a
// pass that needs a different plan builds a new one.
type RecalculationPlan struct {
	Mode        PlanMode
	WindowStart *time.Time
	WindowEnd   *time.Time
	Reason      PlanReason
}

// FullPlan returns a plan that rebuilds the account's whole history.
func FullPlan(reason PlanReason) RecalculationPlan {
	return RecalculationPlan{Mode: PlanModeFull, Reason: reason}
}

// WindowedPlan returns a plan that recomputes from start, through end when set.
func WindowedPlan(start time.Time, end *time.Time) RecalculationPlan {
	s := domain.DateOf(start)
	p := RecalculationPlan{Mode: PlanModeWindowed, WindowStart: &s, Reason: PlanReasonRequested}
	if end != nil {
		e := domain.DateOf(*end)
		p.WindowEnd = &e
	}
	return p
}

// IsFull reports whether the plan rebuilds everything.
func (p RecalculationPlan) IsFull() bool {
	return p.Mode == PlanModeFull
}

// Request returns the calculator input for the plan.
func (p RecalculationPlan) Request() CalculateRequest {
	if p.IsFull() {
		return CalculateRequest{}
	}
	return CalculateRequest{WindowStart: p.WindowStart, WindowEnd: p.WindowEnd}
}

func (p RecalculationPlan) String() string {
	if p.IsFull() || p.WindowStart == nil {
		return fmt.Sprintf("full(%s)", p.Reason)
	}

	end := "latest"
	if p.WindowEnd != nil {
		end = domain.FormatDate(*p.WindowEnd)
	}
	return fmt.Sprintf("windowed(%s..%s, %s)", domain.FormatDate(*p.WindowStart), end, p.Reason)
}
