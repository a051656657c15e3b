package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/mmynk/savingcircle/internal/engine"
	"github.com/mmynk/savingcircle/internal/models"
)

// ContributeOptions holds flags for the contribute command.
type ContributeOptions struct {
	*RootOptions
	Description string
}

// NewContributeCommand creates the contribute command.
func NewContributeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ContributeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:     "contribute <group-id> <amount>",
		Short:   "Deposit into a group's pool",
		Example: `  circle contribute 3f2a... 100 --description "March"`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			app, err := loaded(cmd, rootOpts)
			if err != nil {
				return err
			}
			if _, err := app.engine.ContributeToGroup(cmd.Context(), args[0], amount, opts.Description); err != nil {
				return engineError("contribution failed", err)
			}
			return printCurrent(app, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Description, "description", "", "note shown in the ledger")

	return cmd
}

// WithdrawOptions holds flags for the withdraw command.
type WithdrawOptions struct {
	*RootOptions
	Reason string
}

// NewWithdrawCommand creates the withdraw command.
func NewWithdrawCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WithdrawOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "withdraw <group-id> <amount>",
		Short: "Request a withdrawal for an administrator to decide",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			app, err := loaded(cmd, rootOpts)
			if err != nil {
				return err
			}
			if _, err := app.engine.RequestWithdrawal(cmd.Context(), args[0], amount, opts.Reason); err != nil {
				return engineError("withdrawal request failed", err)
			}
			return printCurrent(app, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Reason, "reason", "", "why the money is needed")

	return cmd
}

// NewApproveCommand creates the approve command.
func NewApproveCommand(rootOpts *RootOptions) *cobra.Command {
	return newDecisionCommand(rootOpts, "approve", "Approve a pending withdrawal request", models.StatusApproved)
}

// NewRejectCommand creates the reject command.
func NewRejectCommand(rootOpts *RootOptions) *cobra.Command {
	return newDecisionCommand(rootOpts, "reject", "Reject a pending withdrawal request", models.StatusRejected)
}

func newDecisionCommand(rootOpts *RootOptions, use, short string, status models.WithdrawalStatus) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <group-id> <request-id>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loaded(cmd, rootOpts)
			if err != nil {
				return err
			}
			err = app.engine.DecideWithdrawal(cmd.Context(), args[0], args[1], status)
			switch {
			case errors.Is(err, engine.ErrDecidedLocally):
				// Shown as decided; the next load reconciles with the service.
				app.logger.Warn("Decision not confirmed by the service", "request", args[1], "error", err)
			case err != nil:
				return engineError(use+" failed", err)
			}
			return printCurrent(app, args[0])
		},
	}
}

// printCurrent prints the visible state of a group after a change.
func printCurrent(app *app, groupID string) error {
	g, _, ok := app.store.Lookup(groupID)
	if !ok {
		return NewExitError(ExitFailure, "group "+groupID+" is no longer visible")
	}
	return printGroup(app, g)
}
