package domain

import (
	"fmt"
	"strings"
	"time"
)

type Plan string

const (
	PlanBasic      Plan = "basic"
	PlanPro        Plan = "pro"
	PlanEnterprise Plan = "enterprise"
)

func ParsePlan(s string) (Plan, error) {
	switch p := Plan(strings.ToLower(strings.TrimSpace(s))); p {
	case PlanBasic, PlanPro, PlanEnterprise:
		return p, nil
	}
	return "", fmt.Errorf("%w: unknown plan %q", ErrInvalidInput, s)
}

// TrialState is the stored trial framing of a tenant.
type TrialState struct {
	InTrial   bool       `json:"in_trial"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	EndsAt    *time.Time `json:"ends_at,omitempty"`
}

// TrialStatus is derived from TrialState at evaluation time and never stored.
type TrialStatus string

const (
	TrialNone    TrialStatus = "no_trial"
	TrialActive  TrialStatus = "trial_active"
	TrialExpired TrialStatus = "trial_expired"
)

// DeriveTrialState is the single place trial expiry is computed.
// An in-trial tenant without an end date is treated as an open trial.
func DeriveTrialState(trial TrialState, now time.Time) TrialStatus {
	if !trial.InTrial {
		return TrialNone
	}
	if trial.EndsAt != nil && trial.EndsAt.Before(now) {
		return TrialExpired
	}
	return TrialActive
}

// LifecycleState is the full derived state of a tenant, used for reporting.
type LifecycleState string

const (
	StateNoTrial      LifecycleState = "no_trial"
	StateTrialActive  LifecycleState = "trial_active"
	StateTrialExpired LifecycleState = "trial_expired"
	StateConverted    LifecycleState = "converted"
	StateInactive     LifecycleState = "inactive"
)

// Tenant is a customer organization ("empresa").
type Tenant struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	DisplayCode string     `json:"display_code"`
	Active      bool       `json:"active"`
	Plan        Plan       `json:"plan"`
	Trial       TrialState `json:"trial"`
	ConvertedAt *time.Time `json:"converted_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (t *Tenant) State(now time.Time) LifecycleState {
	if !t.Active {
		return StateInactive
	}
	switch DeriveTrialState(t.Trial, now) {
	case TrialActive:
		return StateTrialActive
	case TrialExpired:
		return StateTrialExpired
	}
	if t.ConvertedAt != nil {
		return StateConverted
	}
	return StateNoTrial
}

// CheckAccess is the per-request gate. It only looks at stored fields and the clock.
func (t *Tenant) CheckAccess(now time.Time) error {
	if !t.Active {
		return fmt.Errorf("%w: account inactive", ErrTenantBlocked)
	}
	if DeriveTrialState(t.Trial, now) == TrialExpired {
		return fmt.Errorf("%w: trial expired", ErrTenantBlocked)
	}
	return nil
}

func invalidTransition(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidLifecycleTransition}, args...)...)
}

func (t *Tenant) requireActive(action string) error {
	if !t.Active {
		return invalidTransition("%s on inactive tenant", action)
	}
	return nil
}

// StartTrial moves NoTrial -> TrialActive for days days from now.
func (t *Tenant) StartTrial(now time.Time, days int) error {
	if days <= 0 {
		return invalidTransition("trial days must be positive, got %d", days)
	}
	if err := t.requireActive("start trial"); err != nil {
		return err
	}
	if state := t.State(now); state != StateNoTrial {
		return invalidTransition("cannot start trial from %s", state)
	}
	start := now.UTC()
	end := start.AddDate(0, 0, days)
	t.Trial = TrialState{InTrial: true, StartedAt: &start, EndsAt: &end}
	return nil
}

// ExtendTrial adds days to the existing end date, never to now.
func (t *Tenant) ExtendTrial(now time.Time, days int) error {
	if days <= 0 {
		return invalidTransition("trial days must be positive, got %d", days)
	}
	if err := t.requireActive("extend trial"); err != nil {
		return err
	}
	if !t.Trial.InTrial {
		return invalidTransition("no trial in progress")
	}
	base := now.UTC()
	if t.Trial.EndsAt != nil {
		base = *t.Trial.EndsAt
	}
	end := base.AddDate(0, 0, days)
	t.Trial.EndsAt = &end
	if t.Trial.StartedAt == nil {
		start := now.UTC()
		t.Trial.StartedAt = &start
	}
	return nil
}

// EndTrial leaves trial framing without converting; the tenant stays active.
func (t *Tenant) EndTrial(now time.Time) error {
	if err := t.requireActive("end trial"); err != nil {
		return err
	}
	if !t.Trial.InTrial {
		return invalidTransition("no trial in progress")
	}
	t.Trial.InTrial = false
	return nil
}

// ConvertTrial terminates the trial and records the chosen plan.
func (t *Tenant) ConvertTrial(now time.Time, plan Plan) error {
	if _, err := ParsePlan(string(plan)); err != nil {
		return invalidTransition("unknown plan %q", plan)
	}
	if err := t.requireActive("convert trial"); err != nil {
		return err
	}
	if !t.Trial.InTrial {
		return invalidTransition("no trial in progress")
	}
	converted := now.UTC()
	t.Trial.InTrial = false
	t.Plan = plan
	t.ConvertedAt = &converted
	return nil
}

// Deactivate blocks the tenant. Trial fields are kept so reactivation can resume them.
func (t *Tenant) Deactivate() error {
	if !t.Active {
		return invalidTransition("tenant already inactive")
	}
	t.Active = false
	return nil
}

func (t *Tenant) Reactivate() error {
	if t.Active {
		return invalidTransition("tenant already active")
	}
	t.Active = true
	return nil
}

// CanHardDelete checks the second step of the two-step destruction.
func (t *Tenant) CanHardDelete(confirmation string) error {
	if t.Active {
		return invalidTransition("tenant must be deactivated before deletion")
	}
	if strings.TrimSpace(confirmation) == "" || strings.TrimSpace(confirmation) != t.DisplayCode {
		return invalidTransition("confirmation does not match tenant code")
	}
	return nil
}
