package model

import (
	"time"

	"github.com/stratalab/strata/internal/store"
)

// PlanDomainID returns the path-like domain id for a plan name.
func PlanDomainID(name string) string { return "/plans/" + name }

// Plan is a reusable recipe: the command template an activity executes.
type Plan struct {
	store.Entity

	name      string
	command   string
	createdAt time.Time
}

// NewPlan creates a plan record.
func NewPlan(name, command string) *Plan {
	return &Plan{name: name, command: command, createdAt: time.Now().UTC()}
}

// TypeTag implements store.Object.
func (p *Plan) TypeTag() string { return TagPlan }

// DomainID implements store.Object.
func (p *Plan) DomainID() string { return PlanDomainID(p.name) }

// Name returns the plan name, loading the record if needed.
func (p *Plan) Name() (string, error) {
	if err := store.Ensure(p); err != nil {
		return "", err
	}
	return p.name, nil
}

// Command returns the command template.
func (p *Plan) Command() (string, error) {
	if err := store.Ensure(p); err != nil {
		return "", err
	}
	return p.command, nil
}

// CreatedAt returns the creation timestamp.
func (p *Plan) CreatedAt() (time.Time, error) {
	if err := store.Ensure(p); err != nil {
		return time.Time{}, err
	}
	return p.createdAt, nil
}

// State implements store.Object.
func (p *Plan) State() (map[string]any, error) {
	return map[string]any{
		"name":       p.name,
		"command":    p.command,
		"created_at": p.createdAt,
	}, nil
}

// SetState implements store.Object.
func (p *Plan) SetState(state map[string]any) error {
	p.name, _ = state["name"].(string)
	p.command, _ = state["command"].(string)
	p.createdAt, _ = state["created_at"].(time.Time)
	return nil
}
