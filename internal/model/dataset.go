package model

import (
	"time"

	"github.com/stratalab/strata/internal/store"
)

// DatasetDomainID returns the path-like domain id for a dataset name.
func DatasetDomainID(name string) string { return "/datasets/" + name }

// Dataset is a named collection of tracked files with provenance links.
type Dataset struct {
	store.Entity

	name      string
	title     string
	keywords  store.Tuple
	createdAt time.Time

	files []*DatasetFile

	// derivedFrom links a dataset to the dataset it was derived from,
	// forming provenance chains across commits.
	derivedFrom *Dataset
}

// NewDataset creates a dataset record.
func NewDataset(name, title string, keywords ...string) *Dataset {
	kw := make(store.Tuple, len(keywords))
	for i, k := range keywords {
		kw[i] = k
	}
	return &Dataset{
		name:      name,
		title:     title,
		keywords:  kw,
		createdAt: time.Now().UTC(),
	}
}

// TypeTag implements store.Object.
func (d *Dataset) TypeTag() string { return TagDataset }

// DomainID implements store.Object.
func (d *Dataset) DomainID() string { return DatasetDomainID(d.name) }

// Name returns the dataset name, loading the record if needed.
func (d *Dataset) Name() (string, error) {
	if err := store.Ensure(d); err != nil {
		return "", err
	}
	return d.name, nil
}

// Title returns the dataset title.
func (d *Dataset) Title() (string, error) {
	if err := store.Ensure(d); err != nil {
		return "", err
	}
	return d.title, nil
}

// Keywords returns the dataset keywords.
func (d *Dataset) Keywords() (store.Tuple, error) {
	if err := store.Ensure(d); err != nil {
		return nil, err
	}
	return d.keywords, nil
}

// CreatedAt returns the creation timestamp.
func (d *Dataset) CreatedAt() (time.Time, error) {
	if err := store.Ensure(d); err != nil {
		return time.Time{}, err
	}
	return d.createdAt, nil
}

// Files returns the dataset's file values.
func (d *Dataset) Files() ([]*DatasetFile, error) {
	if err := store.Ensure(d); err != nil {
		return nil, err
	}
	return d.files, nil
}

// DerivedFrom returns the dataset this one was derived from, or nil.
// The returned dataset may be a ghost until its fields are accessed.
func (d *Dataset) DerivedFrom() (*Dataset, error) {
	if err := store.Ensure(d); err != nil {
		return nil, err
	}
	return d.derivedFrom, nil
}

// AddFile appends a file value and re-registers the record.
func (d *Dataset) AddFile(f *DatasetFile) error {
	if err := store.Ensure(d); err != nil {
		return err
	}
	d.files = append(d.files, f)
	return d.registerChange()
}

// SetDerivedFrom links the provenance parent and re-registers the record.
func (d *Dataset) SetDerivedFrom(parent *Dataset) error {
	if err := store.Ensure(d); err != nil {
		return err
	}
	d.derivedFrom = parent
	return d.registerChange()
}

func (d *Dataset) registerChange() error {
	if db := d.Meta().Database(); db != nil {
		return db.Register(d)
	}
	return nil
}

// State implements store.Object.
func (d *Dataset) State() (map[string]any, error) {
	files := make([]any, len(d.files))
	for i, f := range d.files {
		files[i] = f
	}
	state := map[string]any{
		"name":       d.name,
		"title":      d.title,
		"keywords":   d.keywords,
		"created_at": d.createdAt,
		"files":      files,
	}
	if d.derivedFrom != nil {
		state["derived_from"] = d.derivedFrom
	}
	return state, nil
}

// SetState implements store.Object.
func (d *Dataset) SetState(state map[string]any) error {
	d.name, _ = state["name"].(string)
	d.title, _ = state["title"].(string)
	d.keywords, _ = state["keywords"].(store.Tuple)
	d.createdAt, _ = state["created_at"].(time.Time)

	rawFiles, _ := state["files"].([]any)
	d.files = d.files[:0]
	for _, raw := range rawFiles {
		if f, ok := raw.(*DatasetFile); ok {
			d.files = append(d.files, f)
		}
	}
	if parent, ok := state["derived_from"].(*Dataset); ok {
		d.derivedFrom = parent
	} else {
		d.derivedFrom = nil
	}
	return nil
}
