package cli

import (
	"fmt"
	"io"

	"connectrpc.com/connect"
	"github.com/spf13/cobra"

	"github.com/mmynk/savingcircle/internal/models"
	"github.com/mmynk/savingcircle/internal/remote"
)

// RegisterOptions holds flags for the register command.
type RegisterOptions struct {
	*RootOptions
	Name     string
	Email    string
	Password string
	Avatar   string
}

// NewRegisterCommand creates the register command.
func NewRegisterCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RegisterOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and log in",
		Example: `  circle register --name Ana --email ana@example.com --password 's3cret-pass'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := opts.app
			user, token, err := app.client.Register(cmd.Context(), opts.Name, opts.Email, opts.Password, opts.Avatar)
			if err != nil {
				return serviceError("registration failed", err)
			}
			return signIn(app, token, user)
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "display name (required)")
	cmd.Flags().StringVar(&opts.Email, "email", "", "email address (required)")
	cmd.Flags().StringVar(&opts.Password, "password", "", "password, at least 8 characters (required)")
	cmd.Flags().StringVar(&opts.Avatar, "avatar", "", "avatar URL")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

// LoginOptions holds flags for the login command.
type LoginOptions struct {
	*RootOptions
	Email    string
	Password string
}

// NewLoginCommand creates the login command.
func NewLoginCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoginOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := opts.app
			user, token, err := app.client.Login(cmd.Context(), opts.Email, opts.Password)
			if err != nil {
				return serviceError("login failed", err)
			}
			return signIn(app, token, user)
		},
	}

	cmd.Flags().StringVar(&opts.Email, "email", "", "email address (required)")
	cmd.Flags().StringVar(&opts.Password, "password", "", "password (required)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

// NewLogoutCommand creates the logout command.
func NewLogoutCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := rootOpts.app
			if err := app.session.End(); err != nil {
				return WrapExitError(ExitFailure, "failed to clear session", err)
			}
			app.engine.Reset()
			return app.out.Success(map[string]string{"message": "Logged out"}, func(w io.Writer) {
				fmt.Fprintln(w, "Logged out.")
			})
		},
	}
}

// NewWhoAmICommand creates the whoami command.
func NewWhoAmICommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := rootOpts.app
			if err := app.requireSession(); err != nil {
				return err
			}
			user, err := app.client.Profile(cmd.Context())
			if err != nil {
				return serviceError("failed to fetch profile", err)
			}
			app.session.UpdateUser(user)
			return app.out.Success(newUserView(user), func(w io.Writer) {
				fmt.Fprintf(w, "%s <%s>\n", user.Name, user.Email)
			})
		},
	}
}

// ProfileOptions holds flags for the profile command.
type ProfileOptions struct {
	*RootOptions
	Name     string
	Email    string
	Password string
	Avatar   string
}

// NewProfileCommand creates the profile command.
func NewProfileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ProfileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:     "profile",
		Short:   "Update your name, email, password or avatar",
		Example: `  circle profile --name "Ana Maria" --avatar https://example.com/ana.png`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := opts.app
			if err := app.requireSession(); err != nil {
				return err
			}
			if opts.Name == "" && opts.Email == "" && opts.Password == "" && opts.Avatar == "" {
				return NewExitError(ExitCommandError, "nothing to update: pass --name, --email, --password or --avatar")
			}
			user, token, err := app.client.UpdateProfile(cmd.Context(), opts.Name, opts.Email, opts.Password, opts.Avatar)
			if err != nil {
				return serviceError("profile update failed", err)
			}
			if err := app.session.Start(token, user); err != nil {
				return WrapExitError(ExitFailure, "failed to store session", err)
			}
			return app.out.Success(newUserView(user), func(w io.Writer) {
				fmt.Fprintf(w, "Profile updated: %s <%s>\n", user.Name, user.Email)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "new display name")
	cmd.Flags().StringVar(&opts.Email, "email", "", "new email address")
	cmd.Flags().StringVar(&opts.Password, "password", "", "new password, at least 8 characters")
	cmd.Flags().StringVar(&opts.Avatar, "avatar", "", "new avatar URL")

	return cmd
}

func signIn(app *app, token string, user models.User) error {
	if err := app.session.Start(token, user); err != nil {
		return WrapExitError(ExitFailure, "failed to store session", err)
	}
	app.out.VerboseLog("session stored in %s", app.cfg.TokenFile)
	return app.out.Success(newUserView(user), func(w io.Writer) {
		fmt.Fprintf(w, "Logged in as %s <%s>\n", user.Name, user.Email)
	})
}

// serviceError maps a service failure to an exit code.
func serviceError(message string, err error) error {
	switch remote.CodeOf(err) {
	case connect.CodeUnauthenticated:
		return WrapExitError(ExitAuthError, message, err)
	case connect.CodeInvalidArgument, connect.CodeAlreadyExists:
		return WrapExitError(ExitCommandError, message, err)
	}
	return WrapExitError(ExitFailure, message, err)
}
