package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// statusData is the JSON payload of the status command.
type statusData struct {
	Project string         `json:"project"`
	Creator string         `json:"creator,omitempty"`
	Storage string         `json:"storage"`
	Indexes map[string]int `json:"indexes"`
	Pending int            `json:"pending"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "status",
		Short:         "Show the project and its metadata indexes",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(rootOpts, cmd)
		},
	}
	return cmd
}

func runStatus(opts *RootOptions, cmd *cobra.Command) error {
	ws, err := openWorkspace(opts.Dir)
	if err != nil {
		return err
	}
	defer ws.close()

	project, err := ws.project()
	if err != nil {
		return err
	}
	name, err := project.Name()
	if err != nil {
		return WrapExitError(ExitCommandError, "read project record", err)
	}
	creator, err := project.Creator()
	if err != nil {
		return WrapExitError(ExitCommandError, "read project record", err)
	}

	data := statusData{
		Project: name,
		Creator: creator,
		Storage: ws.cfg.Storage,
		Indexes: make(map[string]int),
		Pending: ws.db.Pending(),
	}
	for _, idxName := range ws.db.IndexNames() {
		idx, err := ws.db.Index(idxName)
		if err != nil {
			return WrapExitError(ExitCommandError, "load index "+idxName, err)
		}
		n, err := idx.Len()
		if err != nil {
			return WrapExitError(ExitCommandError, "load index "+idxName, err)
		}
		data.Indexes[idxName] = n
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if opts.Format == "json" {
		return out.Success(data)
	}

	lines := []string{
		fmt.Sprintf("Project: %s", data.Project),
		fmt.Sprintf("Storage: %s", data.Storage),
	}
	if data.Creator != "" {
		lines = append(lines, fmt.Sprintf("Creator: %s", data.Creator))
	}
	for _, idxName := range ws.db.IndexNames() {
		lines = append(lines, fmt.Sprintf("Index %s: %d entries", idxName, data.Indexes[idxName]))
	}
	return out.Success(lines)
}
