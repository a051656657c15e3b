// Package cli implements the circle command line, a front end to the ledger
// engine.
package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "text" | "json" | "yaml"
	ConfigFile string
	Server     string
	TokenFile  string

	app *app
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json", "yaml"}

// NewRootCommand creates the root command for the circle CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "circle",
		Short: "circle - shared savings groups",
		Long: `Manage shared savings groups: contribute to a pool, request withdrawals
and approve or reject them as an administrator.

Changes are shown immediately and reconciled with the ledger service.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			app, err := newApp(opts, cmd)
			if err != nil {
				return err
			}
			opts.app = app
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			opts.closeApp()
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json|yaml)")
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "client config file (default: user config dir)")
	cmd.PersistentFlags().StringVar(&opts.Server, "server", "", "ledger service URL (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.TokenFile, "token-file", "", "session token file (overrides config)")

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return WrapExitError(ExitCommandError, "invalid flags", err)
	})

	cmd.AddCommand(NewRegisterCommand(opts))
	cmd.AddCommand(NewLoginCommand(opts))
	cmd.AddCommand(NewLogoutCommand(opts))
	cmd.AddCommand(NewWhoAmICommand(opts))
	cmd.AddCommand(NewProfileCommand(opts))
	cmd.AddCommand(NewGroupsCommand(opts))
	cmd.AddCommand(NewDiscoverCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewCreateCommand(opts))
	cmd.AddCommand(NewJoinCommand(opts))
	cmd.AddCommand(NewContributeCommand(opts))
	cmd.AddCommand(NewWithdrawCommand(opts))
	cmd.AddCommand(NewApproveCommand(opts))
	cmd.AddCommand(NewRejectCommand(opts))

	// PersistentPostRun is skipped when RunE fails.
	for _, sub := range cmd.Commands() {
		if run := sub.RunE; run != nil {
			sub.RunE = func(cmd *cobra.Command, args []string) error {
				err := run(cmd, args)
				if err != nil {
					opts.closeApp()
				}
				return err
			}
		}
	}

	return cmd
}

func (o *RootOptions) closeApp() {
	if o.app != nil {
		o.app.close()
		o.app = nil
	}
}
