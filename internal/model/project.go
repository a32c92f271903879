package model

import (
	"time"

	"github.com/stratalab/strata/internal/store"
)

// ProjectDomainID is the fixed domain id of the project singleton; every
// repository holds exactly one project record.
const ProjectDomainID = "/project"

// ProjectOID is the storage key of the project singleton, attached
// directly under the root mapping.
var ProjectOID = store.OIDFromDomainID(ProjectDomainID)

// Project is the single per-repository record describing the project.
type Project struct {
	store.Entity

	name        string
	creator     string
	description string
	createdAt   time.Time
}

// NewProject creates a project record.
func NewProject(name, creator, description string) *Project {
	return &Project{
		name:        name,
		creator:     creator,
		description: description,
		createdAt:   time.Now().UTC(),
	}
}

// TypeTag implements store.Object.
func (p *Project) TypeTag() string { return TagProject }

// DomainID implements store.Object.
func (p *Project) DomainID() string { return ProjectDomainID }

// Name returns the project name, loading the record if needed.
func (p *Project) Name() (string, error) {
	if err := store.Ensure(p); err != nil {
		return "", err
	}
	return p.name, nil
}

// Creator returns the project creator.
func (p *Project) Creator() (string, error) {
	if err := store.Ensure(p); err != nil {
		return "", err
	}
	return p.creator, nil
}

// Description returns the project description.
func (p *Project) Description() (string, error) {
	if err := store.Ensure(p); err != nil {
		return "", err
	}
	return p.description, nil
}

// CreatedAt returns the creation timestamp.
func (p *Project) CreatedAt() (time.Time, error) {
	if err := store.Ensure(p); err != nil {
		return time.Time{}, err
	}
	return p.createdAt, nil
}

// SetDescription updates the description and re-registers the record.
func (p *Project) SetDescription(description string) error {
	if err := store.Ensure(p); err != nil {
		return err
	}
	p.description = description
	if db := p.Meta().Database(); db != nil {
		return db.Register(p)
	}
	return nil
}

// State implements store.Object.
func (p *Project) State() (map[string]any, error) {
	return map[string]any{
		"name":        p.name,
		"creator":     p.creator,
		"description": p.description,
		"created_at":  p.createdAt,
	}, nil
}

// SetState implements store.Object.
func (p *Project) SetState(state map[string]any) error {
	p.name, _ = state["name"].(string)
	p.creator, _ = state["creator"].(string)
	p.description, _ = state["description"].(string)
	p.createdAt, _ = state["created_at"].(time.Time)
	return nil
}
