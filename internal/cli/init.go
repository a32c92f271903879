package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/stratalab/strata/internal/config"
	"github.com/stratalab/strata/internal/model"
)

// InitOptions holds flags for the init command.
type InitOptions struct {
	*RootOptions
	Name    string
	Author  string
	Storage string
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a strata repository in the current directory",
		Long: `Initialize a strata repository.

Creates the .strata directory with a configuration file, the metadata
store, the standard indexes (datasets, plans, activities) and the project
record.

Example:
  strata init --name my-analysis --author "Ada L."`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "project name (defaults to the directory name)")
	cmd.Flags().StringVar(&opts.Author, "author", "", "project creator")
	cmd.Flags().StringVar(&opts.Storage, "storage", config.StorageFile, "metadata backend (file|sqlite)")

	return cmd
}

func runInit(opts *InitOptions, cmd *cobra.Command) error {
	root, err := filepath.Abs(opts.Dir)
	if err != nil {
		return WrapExitError(ExitCommandError, "resolve directory", err)
	}

	dir := filepath.Join(root, strataDir)
	if _, err := os.Stat(dir); err == nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("repository already initialized at %s", root), nil)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return WrapExitError(ExitCommandError, "create .strata directory", err)
	}

	name := opts.Name
	if name == "" {
		name = filepath.Base(root)
	}
	cfg := config.Default(name, opts.Author)
	cfg.Storage = opts.Storage
	if err := cfg.Save(filepath.Join(dir, configFile)); err != nil {
		return WrapExitError(ExitCommandError, "write configuration", err)
	}

	db, err := openDatabase(root, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// Standard indexes. Datasets and plans key by name, activities by id.
	if _, err := db.AddIndex(model.IndexDatasets, model.TagDataset, "name", ""); err != nil {
		return WrapExitError(ExitCommandError, "create datasets index", err)
	}
	if _, err := db.AddIndex(model.IndexPlans, model.TagPlan, "name", ""); err != nil {
		return WrapExitError(ExitCommandError, "create plans index", err)
	}
	if _, err := db.AddIndex(model.IndexActivities, model.TagActivity, "id", ""); err != nil {
		return WrapExitError(ExitCommandError, "create activities index", err)
	}

	project := model.NewProject(name, opts.Author, "")
	if err := db.Add(project, model.ProjectOID); err != nil {
		return WrapExitError(ExitCommandError, "attach project record", err)
	}

	if err := db.Commit(); err != nil {
		return WrapExitError(ExitCommandError, "commit metadata", err)
	}
	slog.Debug("repository initialized", "root", root, "project", name)

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	return out.Success(fmt.Sprintf("Initialized strata project %q in %s", name, root))
}
