package model

import (
	"time"

	"github.com/stratalab/strata/internal/store"
)

// ActivityDomainID returns the path-like domain id for an activity id.
func ActivityDomainID(id string) string { return "/activities/" + id }

// Activity records one execution of a Plan: when it ran and which
// datasets it generated. Activities reference their plan rather than
// copying it, so a plan shared by many runs stays a single record.
type Activity struct {
	store.Entity

	id        string
	plan      *Plan
	startedAt time.Time
	endedAt   time.Time
	generated []*Dataset
}

// NewActivity creates an activity for one run of plan.
func NewActivity(id string, plan *Plan, startedAt, endedAt time.Time) *Activity {
	return &Activity{id: id, plan: plan, startedAt: startedAt.UTC(), endedAt: endedAt.UTC()}
}

// TypeTag implements store.Object.
func (a *Activity) TypeTag() string { return TagActivity }

// DomainID implements store.Object.
func (a *Activity) DomainID() string { return ActivityDomainID(a.id) }

// ID returns the activity id, loading the record if needed.
func (a *Activity) ID() (string, error) {
	if err := store.Ensure(a); err != nil {
		return "", err
	}
	return a.id, nil
}

// Plan returns the executed plan. May be a ghost until touched.
func (a *Activity) Plan() (*Plan, error) {
	if err := store.Ensure(a); err != nil {
		return nil, err
	}
	return a.plan, nil
}

// StartedAt returns when the run started.
func (a *Activity) StartedAt() (time.Time, error) {
	if err := store.Ensure(a); err != nil {
		return time.Time{}, err
	}
	return a.startedAt, nil
}

// EndedAt returns when the run ended.
func (a *Activity) EndedAt() (time.Time, error) {
	if err := store.Ensure(a); err != nil {
		return time.Time{}, err
	}
	return a.endedAt, nil
}

// Generated returns the datasets this run produced.
func (a *Activity) Generated() ([]*Dataset, error) {
	if err := store.Ensure(a); err != nil {
		return nil, err
	}
	return a.generated, nil
}

// AddGenerated links a produced dataset and re-registers the record.
func (a *Activity) AddGenerated(d *Dataset) error {
	if err := store.Ensure(a); err != nil {
		return err
	}
	a.generated = append(a.generated, d)
	if db := a.Meta().Database(); db != nil {
		return db.Register(a)
	}
	return nil
}

// State implements store.Object.
func (a *Activity) State() (map[string]any, error) {
	generated := make([]any, len(a.generated))
	for i, d := range a.generated {
		generated[i] = d
	}
	state := map[string]any{
		"id":         a.id,
		"started_at": a.startedAt,
		"ended_at":   a.endedAt,
		"generated":  generated,
	}
	if a.plan != nil {
		state["plan"] = a.plan
	}
	return state, nil
}

// SetState implements store.Object.
func (a *Activity) SetState(state map[string]any) error {
	a.id, _ = state["id"].(string)
	a.startedAt, _ = state["started_at"].(time.Time)
	a.endedAt, _ = state["ended_at"].(time.Time)
	if plan, ok := state["plan"].(*Plan); ok {
		a.plan = plan
	} else {
		a.plan = nil
	}
	rawGenerated, _ := state["generated"].([]any)
	a.generated = a.generated[:0]
	for _, raw := range rawGenerated {
		if d, ok := raw.(*Dataset); ok {
			a.generated = append(a.generated, d)
		}
	}
	return nil
}
