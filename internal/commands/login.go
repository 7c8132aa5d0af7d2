package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// sessionView is the printed form of a signed-in session
type sessionView struct {
	Subject   string     `json:"subject,omitempty"`
	Role      string     `json:"role,omitempty"`
	OrgID     string     `json:"orgId,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// NewLoginCommand creates the login command
func NewLoginCommand(opts *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		Long: `Signs in with --username and --password and stores the returned tokens in the
configured token backend. Use the cookie or redis backend to keep the session
between invocations.`,
		Example: `  hrmsctl login -u manager@fnb.example -p secret
  HRMS_TOKENS_BACKEND=redis hrmsctl login -u manager@fnb.example -p secret`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if username, _ := opts.credentials(); username == "" {
				return errors.New("username is required (use --username or $" + EnvUsername + ")")
			}

			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			defer s.close()

			signedIn, err := s.signIn(cmd.Context(), opts)
			if err != nil {
				return report(cmd, err)
			}
			view := sessionView{Subject: signedIn.Subject, Role: signedIn.Role, OrgID: signedIn.OrgID}
			if !signedIn.ExpiresAt.IsZero() {
				view.ExpiresAt = &signedIn.ExpiresAt
			}
			return printJSON(cmd.OutOrStdout(), view)
		},
	}
}

// NewLogoutCommand creates the logout command
func NewLogoutCommand(opts *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the stored session",
		Long:  "Calls the logout endpoint once and clears the stored tokens, even when the call fails.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			defer s.close()

			if _, err := s.signIn(cmd.Context(), opts); err != nil {
				return report(cmd, err)
			}
			if err := s.api.Logout(cmd.Context()); err != nil {
				return report(cmd, err)
			}
			fmt.Fprintln(cmd.ErrOrStderr(), "Signed out")
			return nil
		},
	}
}

// NewMeCommand creates the me command
func NewMeCommand(opts *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			defer s.close()

			if _, err := s.signIn(cmd.Context(), opts); err != nil {
				return report(cmd, err)
			}
			var user map[string]any
			if err := s.api.CurrentUser(cmd.Context(), &user); err != nil {
				return report(cmd, err)
			}
			return printJSON(cmd.OutOrStdout(), user)
		},
	}
}
