package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/stratalab/strata/internal/model"
	"github.com/stratalab/strata/internal/store"
)

// NewPlanCommand creates the plan command group.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Manage plans",
	}
	cmd.AddCommand(newPlanAddCommand(rootOpts))
	cmd.AddCommand(newPlanLsCommand(rootOpts))
	return cmd
}

func newPlanAddCommand(rootOpts *RootOptions) *cobra.Command {
	var command string

	cmd := &cobra.Command{
		Use:           "add NAME",
		Short:         "Create a plan with a command template",
		Example:       `  strata plan add clean-data --command "python clean.py {input} {output}"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlanAdd(rootOpts, cmd, args[0], command)
		},
	}

	cmd.Flags().StringVar(&command, "command", "", "command template the plan executes")
	cmd.MarkFlagRequired("command")

	return cmd
}

func runPlanAdd(opts *RootOptions, cmd *cobra.Command, name, command string) error {
	ws, err := openWorkspace(opts.Dir)
	if err != nil {
		return err
	}
	defer ws.close()

	if _, err := ws.db.GetByID(model.PlanDomainID(name)); err == nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("plan %q already exists", name), nil)
	} else if !store.IsNotFound(err) {
		return WrapExitError(ExitCommandError, "look up plan", err)
	}

	plan := model.NewPlan(name, command)
	if err := ws.db.Register(plan); err != nil {
		return WrapExitError(ExitCommandError, "register plan", err)
	}
	idx, err := ws.db.Index(model.IndexPlans)
	if err != nil {
		return WrapExitError(ExitCommandError, "load plans index", err)
	}
	if err := idx.Add(plan); err != nil {
		return WrapExitError(ExitCommandError, "index plan", err)
	}
	if err := ws.db.Commit(); err != nil {
		return WrapExitError(ExitCommandError, "commit metadata", err)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	return out.Success(fmt.Sprintf("Added plan %q", name))
}

// planData is the JSON shape of one plan in plan ls.
type planData struct {
	Name      string    `json:"name"`
	Command   string    `json:"command"`
	CreatedAt time.Time `json:"created_at"`
}

func newPlanLsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ls",
		Short:         "List plans by name",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlanLs(rootOpts, cmd)
		},
	}
	return cmd
}

func runPlanLs(opts *RootOptions, cmd *cobra.Command) error {
	ws, err := openWorkspace(opts.Dir)
	if err != nil {
		return err
	}
	defer ws.close()

	idx, err := ws.db.Index(model.IndexPlans)
	if err != nil {
		return WrapExitError(ExitCommandError, "load plans index", err)
	}
	values, err := idx.Values()
	if err != nil {
		return WrapExitError(ExitCommandError, "list plans", err)
	}

	plans := make([]planData, 0, len(values))
	for _, obj := range values {
		plan, ok := obj.(*model.Plan)
		if !ok {
			return WrapExitError(ExitCommandError, "plans index entry has unexpected type", nil)
		}
		name, err := plan.Name()
		if err != nil {
			return WrapExitError(ExitCommandError, "read plan record", err)
		}
		command, err := plan.Command()
		if err != nil {
			return WrapExitError(ExitCommandError, "read plan record", err)
		}
		createdAt, err := plan.CreatedAt()
		if err != nil {
			return WrapExitError(ExitCommandError, "read plan record", err)
		}
		plans = append(plans, planData{Name: name, Command: command, CreatedAt: createdAt})
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if opts.Format == "json" {
		return out.Success(map[string]any{"plans": plans})
	}
	lines := make([]string, 0, len(plans))
	for _, p := range plans {
		lines = append(lines, fmt.Sprintf("%s\t%s", p.Name, p.Command))
	}
	return out.Success(lines)
}
