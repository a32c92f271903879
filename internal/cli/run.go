package cli

import (
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/stratalab/strata/internal/model"
	"github.com/stratalab/strata/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Generated []string
	NoExec    bool
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run PLAN",
		Short: "Execute a plan and record the activity",
		Long: `Execute a plan's command and record the run as an activity.

The activity links the plan it executed and any datasets it generated,
building the provenance chain. With --no-exec the command is skipped and
only the activity is recorded.`,
		Example:       `  strata run clean-data --generated measurements`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(opts, cmd, args[0])
		},
	}

	cmd.Flags().StringSliceVar(&opts.Generated, "generated", nil, "dataset generated by this run (repeatable)")
	cmd.Flags().BoolVar(&opts.NoExec, "no-exec", false, "record the activity without executing the command")

	return cmd
}

func runRun(opts *RunOptions, cmd *cobra.Command, planName string) error {
	ws, err := openWorkspace(opts.Dir)
	if err != nil {
		return err
	}
	defer ws.close()

	obj, err := ws.db.GetByID(model.PlanDomainID(planName))
	if err != nil {
		if store.IsNotFound(err) {
			return WrapExitError(ExitCommandError, fmt.Sprintf("plan %q not found", planName), nil)
		}
		return WrapExitError(ExitCommandError, "look up plan", err)
	}
	plan, ok := obj.(*model.Plan)
	if !ok {
		return WrapExitError(ExitCommandError, fmt.Sprintf("record for plan %q has unexpected type", planName), nil)
	}
	command, err := plan.Command()
	if err != nil {
		return WrapExitError(ExitCommandError, "read plan record", err)
	}

	startedAt := time.Now().UTC()
	if !opts.NoExec {
		slog.Debug("executing plan", "plan", planName, "command", command)
		run := exec.Command("sh", "-c", command)
		run.Dir = ws.root
		run.Stdout = cmd.OutOrStdout()
		run.Stderr = cmd.ErrOrStderr()
		if err := run.Run(); err != nil {
			return WrapExitError(ExitFailure, fmt.Sprintf("plan %q failed", planName), err)
		}
	}
	endedAt := time.Now().UTC()

	activity := model.NewActivity(uuid.NewString(), plan, startedAt, endedAt)
	if err := ws.db.Register(activity); err != nil {
		return WrapExitError(ExitCommandError, "register activity", err)
	}
	for _, name := range opts.Generated {
		dataset, err := lookupDataset(ws, name)
		if err != nil {
			return err
		}
		if err := activity.AddGenerated(dataset); err != nil {
			return WrapExitError(ExitCommandError, "link generated dataset", err)
		}
	}

	idx, err := ws.db.Index(model.IndexActivities)
	if err != nil {
		return WrapExitError(ExitCommandError, "load activities index", err)
	}
	if err := idx.Add(activity); err != nil {
		return WrapExitError(ExitCommandError, "index activity", err)
	}
	if err := ws.db.Commit(); err != nil {
		return WrapExitError(ExitCommandError, "commit metadata", err)
	}

	id, err := activity.ID()
	if err != nil {
		return WrapExitError(ExitCommandError, "read activity record", err)
	}
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if opts.Format == "json" {
		return out.Success(map[string]any{
			"activity":   id,
			"plan":       planName,
			"started_at": startedAt,
			"ended_at":   endedAt,
			"generated":  opts.Generated,
		})
	}
	return out.Success(fmt.Sprintf("Recorded activity %s for plan %q", id, planName))
}
