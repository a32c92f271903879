package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/stratalab/strata/internal/model"
	"github.com/stratalab/strata/internal/store"
)

// NewDatasetCommand creates the dataset command group.
func NewDatasetCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dataset",
		Short: "Manage datasets",
	}
	cmd.AddCommand(newDatasetAddCommand(rootOpts))
	cmd.AddCommand(newDatasetLsCommand(rootOpts))
	cmd.AddCommand(newDatasetShowCommand(rootOpts))
	return cmd
}

// DatasetAddOptions holds flags for dataset add.
type DatasetAddOptions struct {
	*RootOptions
	Title    string
	Keywords []string
	Files    []string
}

func newDatasetAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DatasetAddOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Create a dataset and optionally track files in it",
		Example: `  strata dataset add measurements --title "Raw measurements"
  strata dataset add measurements --file data/jan.csv --file data/feb.csv`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDatasetAdd(opts, cmd, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Title, "title", "", "human-readable title")
	cmd.Flags().StringSliceVar(&opts.Keywords, "keyword", nil, "keyword (repeatable)")
	cmd.Flags().StringSliceVar(&opts.Files, "file", nil, "file to track, relative to the repository root (repeatable)")

	return cmd
}

func runDatasetAdd(opts *DatasetAddOptions, cmd *cobra.Command, name string) error {
	ws, err := openWorkspace(opts.Dir)
	if err != nil {
		return err
	}
	defer ws.close()

	if _, err := ws.db.GetByID(model.DatasetDomainID(name)); err == nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("dataset %q already exists", name), nil)
	} else if !store.IsNotFound(err) {
		return WrapExitError(ExitCommandError, "look up dataset", err)
	}

	dataset := model.NewDataset(name, opts.Title, opts.Keywords...)
	if err := ws.db.Register(dataset); err != nil {
		return WrapExitError(ExitCommandError, "register dataset", err)
	}
	for _, rel := range opts.Files {
		file, err := trackFile(ws.root, rel)
		if err != nil {
			return err
		}
		if err := dataset.AddFile(file); err != nil {
			return WrapExitError(ExitCommandError, "add file to dataset", err)
		}
	}

	idx, err := ws.db.Index(model.IndexDatasets)
	if err != nil {
		return WrapExitError(ExitCommandError, "load datasets index", err)
	}
	if err := idx.Add(dataset); err != nil {
		return WrapExitError(ExitCommandError, "index dataset", err)
	}
	if err := ws.db.Commit(); err != nil {
		return WrapExitError(ExitCommandError, "commit metadata", err)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	return out.Success(fmt.Sprintf("Added dataset %q with %d file(s)", name, len(opts.Files)))
}

// trackFile stats a repository-relative path and builds its file value.
// The relative path doubles as the value's dedup id.
func trackFile(root, rel string) (*model.DatasetFile, error) {
	rel = filepath.ToSlash(filepath.Clean(rel))
	info, err := os.Stat(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("stat %s", rel), err)
	}
	if info.IsDir() {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("%s is a directory", rel), nil)
	}
	return model.NewDatasetFile(rel, rel, info.Size(), time.Now().UTC()), nil
}

// DatasetLsOptions holds flags for dataset ls.
type DatasetLsOptions struct {
	*RootOptions
	Prefix string
}

func newDatasetLsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DatasetLsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "ls",
		Short:         "List datasets by name",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDatasetLs(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Prefix, "prefix", "", "only list datasets whose name starts with this prefix")

	return cmd
}

func runDatasetLs(opts *DatasetLsOptions, cmd *cobra.Command) error {
	ws, err := openWorkspace(opts.Dir)
	if err != nil {
		return err
	}
	defer ws.close()

	idx, err := ws.db.Index(model.IndexDatasets)
	if err != nil {
		return WrapExitError(ExitCommandError, "load datasets index", err)
	}
	var names []string
	if opts.Prefix != "" {
		names, err = idx.KeysRange(opts.Prefix, opts.Prefix+"\xff")
	} else {
		names, err = idx.Keys()
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "list datasets", err)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if opts.Format == "json" {
		return out.Success(map[string]any{"datasets": names})
	}
	return out.Success(names)
}

// datasetFileData is the JSON shape of one tracked file.
type datasetFileData struct {
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	AddedAt time.Time `json:"added_at"`
}

// datasetData is the JSON payload of dataset show.
type datasetData struct {
	Name        string            `json:"name"`
	Title       string            `json:"title,omitempty"`
	Keywords    []string          `json:"keywords,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	Files       []datasetFileData `json:"files"`
	DerivedFrom string            `json:"derived_from,omitempty"`
}

func newDatasetShowCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "show NAME",
		Short:         "Show one dataset and its tracked files",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDatasetShow(rootOpts, cmd, args[0])
		},
	}
	return cmd
}

func runDatasetShow(opts *RootOptions, cmd *cobra.Command, name string) error {
	ws, err := openWorkspace(opts.Dir)
	if err != nil {
		return err
	}
	defer ws.close()

	dataset, err := lookupDataset(ws, name)
	if err != nil {
		return err
	}
	data, err := describeDataset(dataset)
	if err != nil {
		return err
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if opts.Format == "json" {
		return out.Success(data)
	}

	lines := []string{
		fmt.Sprintf("Name:    %s", data.Name),
	}
	if data.Title != "" {
		lines = append(lines, fmt.Sprintf("Title:   %s", data.Title))
	}
	if len(data.Keywords) > 0 {
		lines = append(lines, fmt.Sprintf("Keywords: %v", data.Keywords))
	}
	lines = append(lines, fmt.Sprintf("Created: %s", data.CreatedAt.Format(time.RFC3339)))
	if data.DerivedFrom != "" {
		lines = append(lines, fmt.Sprintf("Derived from: %s", data.DerivedFrom))
	}
	lines = append(lines, fmt.Sprintf("Files (%d):", len(data.Files)))
	for _, f := range data.Files {
		lines = append(lines, fmt.Sprintf("  %s (%d bytes)", f.Path, f.Size))
	}
	return out.Success(lines)
}

// lookupDataset resolves a dataset by name through the datasets index.
func lookupDataset(ws *workspace, name string) (*model.Dataset, error) {
	idx, err := ws.db.Index(model.IndexDatasets)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load datasets index", err)
	}
	obj, err := idx.Get(name)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, WrapExitError(ExitCommandError, fmt.Sprintf("dataset %q not found", name), nil)
		}
		return nil, WrapExitError(ExitCommandError, "look up dataset", err)
	}
	dataset, ok := obj.(*model.Dataset)
	if !ok {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("index entry %q has unexpected type", name), nil)
	}
	return dataset, nil
}

func describeDataset(dataset *model.Dataset) (*datasetData, error) {
	name, err := dataset.Name()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "read dataset record", err)
	}
	title, err := dataset.Title()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "read dataset record", err)
	}
	keywords, err := dataset.Keywords()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "read dataset record", err)
	}
	createdAt, err := dataset.CreatedAt()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "read dataset record", err)
	}
	files, err := dataset.Files()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "read dataset record", err)
	}
	parent, err := dataset.DerivedFrom()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "read dataset record", err)
	}

	data := &datasetData{
		Name:      name,
		Title:     title,
		CreatedAt: createdAt,
		Files:     make([]datasetFileData, 0, len(files)),
	}
	for _, kw := range keywords {
		if s, ok := kw.(string); ok {
			data.Keywords = append(data.Keywords, s)
		}
	}
	for _, f := range files {
		data.Files = append(data.Files, datasetFileData{Path: f.Path(), Size: f.Size(), AddedAt: f.AddedAt()})
	}
	if parent != nil {
		parentName, err := parent.Name()
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "read parent dataset", err)
		}
		data.DerivedFrom = parentName
	}
	return data, nil
}
