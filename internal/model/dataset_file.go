package model

import (
	"time"

	"github.com/stratalab/strata/internal/store"
)

// DatasetFile is an immutable value describing one tracked file inside a
// dataset. Fully defined by its fields, never mutated after construction,
// and deduplicated by id: the same file loaded through two datasets
// yields one shared instance.
type DatasetFile struct {
	id      string
	path    string
	size    int64
	addedAt time.Time
}

// NewDatasetFile creates a file value. The id is conventionally the
// repository-relative path, which doubles as the dedup key.
func NewDatasetFile(id, path string, size int64, addedAt time.Time) *DatasetFile {
	return &DatasetFile{id: id, path: path, size: size, addedAt: addedAt.UTC()}
}

// TypeTag implements store.Immutable.
func (f *DatasetFile) TypeTag() string { return TagDatasetFile }

// ImmutableID implements store.Immutable.
func (f *DatasetFile) ImmutableID() string { return f.id }

// Path returns the file's repository-relative path.
func (f *DatasetFile) Path() string { return f.path }

// Size returns the file size in bytes.
func (f *DatasetFile) Size() int64 { return f.size }

// AddedAt returns when the file was added to its dataset.
func (f *DatasetFile) AddedAt() time.Time { return f.addedAt }

// State implements store.Immutable.
func (f *DatasetFile) State() (map[string]any, error) {
	return map[string]any{
		"id":       f.id,
		"path":     f.path,
		"size":     f.size,
		"added_at": f.addedAt,
	}, nil
}

// datasetFileFromState is the registry factory for DatasetFile.
func datasetFileFromState(fields map[string]any) (store.Immutable, error) {
	f := &DatasetFile{}
	f.id, _ = fields["id"].(string)
	f.path, _ = fields["path"].(string)
	f.size, _ = fields["size"].(int64)
	f.addedAt, _ = fields["added_at"].(time.Time)
	return f, nil
}
