package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/stratalab/strata/internal/config"
	"github.com/stratalab/strata/internal/model"
	"github.com/stratalab/strata/internal/store"
)

// Repository layout under the project root.
const (
	strataDir    = ".strata"
	configFile   = "config.yaml"
	metadataDir  = "metadata"
	metadataFile = "metadata.db"
)

// workspace is an opened repository: its root directory, configuration
// and metadata database.
type workspace struct {
	root string
	cfg  *config.Config
	db   *store.Database
}

// openWorkspace locates the repository containing dir (walking upwards
// until a .strata directory is found) and opens its metadata database.
func openWorkspace(dir string) (*workspace, error) {
	root, err := findRoot(dir)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(filepath.Join(root, strataDir, configFile))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load configuration", err)
	}
	db, err := openDatabase(root, cfg)
	if err != nil {
		return nil, err
	}
	slog.Debug("workspace opened", "root", root, "storage", cfg.Storage)
	return &workspace{root: root, cfg: cfg, db: db}, nil
}

// close releases the workspace's database.
func (ws *workspace) close() {
	if err := ws.db.Close(); err != nil {
		slog.Debug("close database", "err", err)
	}
}

// openDatabase builds the configured storage backend and opens the
// object store over it with the domain type registry.
func openDatabase(root string, cfg *config.Config) (*store.Database, error) {
	var (
		storage store.Storage
		err     error
	)
	switch cfg.Storage {
	case config.StorageSQLite:
		storage, err = store.OpenSQLiteStorage(filepath.Join(root, strataDir, metadataFile))
	default:
		storage, err = store.NewFileStorage(filepath.Join(root, strataDir, metadataDir))
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open storage", err)
	}
	db, err := store.Open(storage, model.Registry())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open metadata database", err)
	}
	return db, nil
}

// findRoot walks upwards from dir looking for a .strata directory.
func findRoot(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", WrapExitError(ExitCommandError, "resolve directory", err)
	}
	for current := abs; ; current = filepath.Dir(current) {
		info, err := os.Stat(filepath.Join(current, strataDir))
		if err == nil && info.IsDir() {
			return current, nil
		}
		if filepath.Dir(current) == current {
			return "", WrapExitError(ExitCommandError,
				fmt.Sprintf("no strata repository found in %s or any parent", abs), nil)
		}
	}
}

// project fetches the project singleton.
func (ws *workspace) project() (*model.Project, error) {
	obj, err := ws.db.Get(model.ProjectOID)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load project record", err)
	}
	p, ok := obj.(*model.Project)
	if !ok {
		return nil, WrapExitError(ExitCommandError, "project record has unexpected type", nil)
	}
	return p, nil
}
