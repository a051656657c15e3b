package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/mmynk/savingcircle/internal/engine"
	"github.com/mmynk/savingcircle/internal/groupstore"
	"github.com/mmynk/savingcircle/internal/models"
)

// NewGroupsCommand creates the groups command, listing the caller's groups.
func NewGroupsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "groups",
		Aliases: []string{"ls"},
		Short:   "List the groups you belong to",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loaded(cmd, rootOpts)
			if err != nil {
				return err
			}
			return printGroups(app, app.store.Mine())
		},
	}
}

// NewDiscoverCommand creates the discover command, listing groups open to join.
func NewDiscoverCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "discover",
		Short: "List groups you can join",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loaded(cmd, rootOpts)
			if err != nil {
				return err
			}
			return printGroups(app, app.store.Discoverable())
		},
	}
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <group-id>",
		Short: "Show a group with its members and ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loaded(cmd, rootOpts)
			if err != nil {
				return err
			}
			g, collection, ok := app.store.Lookup(args[0])
			if ok && collection == groupstore.Discoverable {
				// Non-members only see the summary.
				return app.out.Success(newGroupView(g, false), func(w io.Writer) {
					writeGroupTable(w, []models.Group{g})
				})
			}
			if !ok {
				g, err = app.store.Find(cmd.Context(), args[0])
				if err != nil {
					return engineError("failed to load group", err)
				}
			}
			return printGroup(app, g)
		},
	}
}

// CreateOptions holds flags for the create command.
type CreateOptions struct {
	*RootOptions
	Target      string
	Description string
}

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CreateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a savings group you administer",
		Example: `  circle create "Summer trip" --target 1500 --description "Flights and hotel"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := decimal.Zero
			if opts.Target != "" {
				var err error
				if target, err = parseAmount(opts.Target); err != nil {
					return err
				}
			}
			app, err := loaded(cmd, rootOpts)
			if err != nil {
				return err
			}
			g, err := app.engine.CreateGroup(cmd.Context(), args[0], opts.Description, target)
			if err != nil {
				return engineError("failed to create group", err)
			}
			if visible, _, ok := app.store.Lookup(g.ID); ok {
				g = visible
			}
			return printGroup(app, g)
		},
	}

	cmd.Flags().StringVar(&opts.Target, "target", "", "savings target, e.g. 1500.00")
	cmd.Flags().StringVar(&opts.Description, "description", "", "group description")

	return cmd
}

// NewJoinCommand creates the join command.
func NewJoinCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "join <group-id>",
		Short: "Join a discoverable group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loaded(cmd, rootOpts)
			if err != nil {
				return err
			}
			if err := app.engine.JoinGroup(cmd.Context(), args[0]); err != nil {
				return engineError("failed to join group", err)
			}
			g, _, ok := app.store.Lookup(args[0])
			if !ok {
				return app.out.Success(map[string]string{"id": args[0]}, func(w io.Writer) {
					fmt.Fprintf(w, "Joined group %s\n", args[0])
				})
			}
			return printGroup(app, g)
		},
	}
}

// loaded returns the invocation's app after a full load of both collections.
func loaded(cmd *cobra.Command, rootOpts *RootOptions) (*app, error) {
	app := rootOpts.app
	if err := app.requireSession(); err != nil {
		return nil, err
	}
	if err := app.engine.Load(cmd.Context()); err != nil {
		return nil, engineError("failed to load groups", err)
	}
	return app, nil
}

func printGroups(app *app, groups []models.Group) error {
	return app.out.Success(newGroupViews(groups), func(w io.Writer) {
		writeGroupTable(w, groups)
	})
}

func printGroup(app *app, g models.Group) error {
	return app.out.Success(newGroupView(g, true), func(w io.Writer) {
		writeGroupDetail(w, g)
	})
}

func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, WrapExitError(ExitCommandError, fmt.Sprintf("invalid amount %q", s), err)
	}
	return d, nil
}

// engineError maps an engine failure to an exit code.
func engineError(message string, err error) error {
	switch {
	case errors.Is(err, engine.ErrNotAuthenticated):
		return WrapExitError(ExitAuthError, message, err)
	case errors.Is(err, engine.ErrInvalidAmount),
		errors.Is(err, engine.ErrInvalidInput),
		errors.Is(err, engine.ErrInvalidStatus):
		return WrapExitError(ExitCommandError, message, err)
	}
	return serviceError(message, err)
}
