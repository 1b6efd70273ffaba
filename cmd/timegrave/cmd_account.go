package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nhle/timegrave/internal/render"
	"github.com/nhle/timegrave/internal/service"
	"github.com/nhle/timegrave/internal/session"
	"github.com/nhle/timegrave/internal/wizard"
)

var (
	accountEmail    string
	accountUsername string
	accountPassword string
	assumeYes       bool
)

var signUpCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account",
	Long: `Registers a new account. Missing details are asked for interactively.
Without a terminal, the password is read from standard input.`,
	Args: cobra.NoArgs,
	RunE: runSignUp,
}

var signInCmd = &cobra.Command{
	Use:   "signin",
	Short: "Sign in and remember the session",
	Args:  cobra.NoArgs,
	RunE:  runSignIn,
}

var signOutCmd = &cobra.Command{
	Use:   "signout",
	Short: "End the current session",
	Args:  cobra.NoArgs,
	RunE:  runSignOut,
}

var deleteAccountCmd = &cobra.Command{
	Use:   "delete-account",
	Short: "Permanently delete your account and every capsule in it",
	Args:  cobra.NoArgs,
	RunE:  runDeleteAccount,
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in account",
	Args:  cobra.NoArgs,
	RunE:  runWhoami,
}

func init() {
	for _, c := range []*cobra.Command{signUpCmd, signInCmd} {
		c.Flags().StringVarP(&accountEmail, "email", "e", "", "Account email")
		c.Flags().StringVarP(&accountPassword, "password", "p", "", "Account password (prompted when omitted)")
	}
	signUpCmd.Flags().StringVarP(&accountUsername, "username", "u", "", "Display name")
	deleteAccountCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Do not ask for confirmation")
}

func runSignUp(cmd *cobra.Command, args []string) error {
	in := service.SignUpInput{Email: accountEmail, Username: accountUsername, Password: accountPassword}

	if in.Email == "" || in.Username == "" {
		if !interactive() {
			return fmt.Errorf("--email and --username are required when not running in a terminal")
		}
		form := wizard.NewSignUpForm(in.Email, in.Username)
		if err := form.Run(cmd.Context()); err != nil {
			return err
		}
		var err error
		if in, err = form.SignUp(); err != nil {
			return err
		}
	} else if in.Password == "" {
		pw, err := readPassword(cmd, "Password: ")
		if err != nil {
			return err
		}
		in.Password = pw
	}

	u, err := env.session.SignUp(cmd.Context(), in)
	if err != nil {
		return err
	}
	say(cmd, render.SuccessStyle.Render(fmt.Sprintf("Welcome, %s. Sign in with `timegrave signin`.", u.Username)))
	return nil
}

func runSignIn(cmd *cobra.Command, args []string) error {
	in := service.SignInInput{Email: accountEmail, Password: accountPassword}

	if in.Email == "" {
		if !interactive() {
			return fmt.Errorf("--email is required when not running in a terminal")
		}
		form := wizard.NewSignInForm("")
		if err := form.Run(cmd.Context()); err != nil {
			return err
		}
		var err error
		if in, err = form.SignIn(); err != nil {
			return err
		}
	} else if in.Password == "" {
		pw, err := readPassword(cmd, "Password: ")
		if err != nil {
			return err
		}
		in.Password = pw
	}

	u, err := env.session.SignIn(cmd.Context(), in)
	if err != nil {
		return err
	}
	say(cmd, render.User(*u))
	return nil
}

func runSignOut(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if _, err := env.session.Restore(ctx); err != nil {
		if errors.Is(err, session.ErrNoSession) {
			say(cmd, render.HelpStyle.Render("Not signed in."))
			return nil
		}
		return err
	}

	// Local state is gone either way; a server failure is only worth a warning.
	if err := env.session.SignOut(ctx); err != nil {
		env.logger.Warn("server sign-out failed", zap.Error(err))
	}
	say(cmd, render.SuccessStyle.Render("Signed out."))
	return nil
}

func runDeleteAccount(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	u, err := requireSession(ctx)
	if err != nil {
		return err
	}

	if !assumeYes {
		if !interactive() {
			return fmt.Errorf("refusing to delete %s without --yes", u.Email)
		}
		ok, err := wizard.Confirm(ctx, fmt.Sprintf("Delete %s and every capsule in it?", u.Email), false)
		if err != nil {
			return err
		}
		if !ok {
			say(cmd, render.HelpStyle.Render("Nothing deleted."))
			return nil
		}
	}

	if err := env.session.DeleteAccount(ctx); err != nil {
		return fmt.Errorf("deleting account: %w", err)
	}
	say(cmd, render.SuccessStyle.Render("Account deleted."))
	return nil
}

func runWhoami(cmd *cobra.Command, args []string) error {
	u, err := requireSession(cmd.Context())
	if err != nil {
		return err
	}
	say(cmd, render.User(*u))
	if exp, ok := env.tokens.ExpiresAt(); ok {
		say(cmd, render.SessionExpiry(exp, env.now()))
	}
	return nil
}
