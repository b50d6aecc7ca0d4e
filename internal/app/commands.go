package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/authsession/pkg/authsdk"
	"github.com/aussiebroadwan/authsession/pkg/authsession"
	"github.com/aussiebroadwan/authsession/pkg/cryptox"
	"github.com/aussiebroadwan/authsession/pkg/socialauth"
	"github.com/spf13/cobra"
)

// cli holds the lazily built Application shared by one command run.
type cli struct {
	console *Console
	load    func() (Config, error)
	opts    []Option
	app     *Application
}

// Execute runs the command line in args. load supplies the configuration;
// it is only called by commands that talk to the backend.
func Execute(ctx context.Context, console *Console, load func() (Config, error), args []string, opts ...Option) error {
	root, c := newRootCommand(console, load, opts...)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if c.app != nil {
		err = errors.Join(err, c.app.Close())
	}
	return err
}

func newRootCommand(console *Console, load func() (Config, error), opts ...Option) (*cobra.Command, *cli) {
	c := &cli{console: console, load: load, opts: append([]Option{WithConsole(console)}, opts...)}

	root := &cobra.Command{
		Use:   "authsession",
		Short: "Sign in to the auth backend and manage the stored session",
		Long: `authsession signs in against the auth backend and keeps the resulting
tokens in the configured credential store.

Example usage:
  authsession login -u ada@example.com     # Password login, prompts for a passcode if asked
  authsession signin microsoft             # Web sign-in through the browser
  authsession refresh                      # Print a valid access token
  authsession whoami --json                # Show the signed-in user
  authsession logout                       # Sign out everywhere this store is used`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(console.out)
	root.SetErr(console.out)

	root.AddCommand(
		c.loginCmd(),
		c.verifyOTPCmd(),
		c.signinCmd(),
		c.refreshCmd(),
		c.logoutCmd(),
		c.whoamiCmd(),
		c.registerCmd(),
		c.resetPasswordCmd(),
		c.verifyEmailCmd(),
		c.inviteCmd(),
		sealKeyCmd(),
	)
	return root, c
}

// session builds the Application on first use and restores any stored
// session into the manager.
func (c *cli) session(ctx context.Context) (*authsession.Manager, error) {
	if c.app == nil {
		cfg, err := c.load()
		if err != nil {
			return nil, err
		}
		app, err := New(ctx, cfg, c.opts...)
		if err != nil {
			return nil, err
		}
		c.app = app
	}

	m := c.app.Manager()
	if err := m.Restore(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *cli) ask(value *string, label string) error {
	if *value != "" {
		return nil
	}
	v, err := c.console.Prompt(label)
	if err != nil {
		return fmt.Errorf("reading %s: %w", strings.ToLower(label), err)
	}
	*value = v
	return nil
}

func printUser(cmd *cobra.Command, prefix string, u *authsdk.User) {
	if u == nil {
		cmd.Println(prefix)
		return
	}
	who := u.Email
	if who == "" {
		who = u.ID
	}
	cmd.Printf("%s as %s\n", prefix, who)
}

// ============================================================================
// Password login
// ============================================================================

func (c *cli) loginCmd() *cobra.Command {
	var (
		req authsdk.LoginRequest
		otp string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with an identifier and password",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m, err := c.session(ctx)
			if err != nil {
				return err
			}

			if err := c.ask(&req.Identifier, "Email or phone"); err != nil {
				return err
			}
			if err := c.ask(&req.Password, "Password"); err != nil {
				return err
			}

			res, err := m.LoginStart(ctx, req)
			if err != nil {
				return err
			}

			if res.OTPRequired() {
				cmd.Printf("A one-time passcode was sent for %s.\n", m.PendingIdentifier())
				if err := c.ask(&otp, "Passcode"); err != nil {
					return err
				}
				if _, err := m.VerifyOTP(ctx, "", otp); err != nil {
					return err
				}
			}

			printUser(cmd, "Signed in", m.CurrentUser())
			return nil
		},
	}

	cmd.Flags().StringVarP(&req.Identifier, "identifier", "u", "", "email or phone number")
	cmd.Flags().StringVarP(&req.Password, "password", "p", "", "password (prompted when empty)")
	cmd.Flags().BoolVar(&req.RememberMe, "remember-me", false, "ask the backend to trust this device")
	cmd.Flags().StringVar(&req.TenantID, "tenant", "", "tenant to sign in to")
	cmd.Flags().StringVar(&otp, "otp", "", "one-time passcode, if one is requested")
	return cmd
}

func (c *cli) verifyOTPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify-otp <identifier> <code>",
		Short: "Complete a passcode challenge from an earlier login",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := c.session(cmd.Context())
			if err != nil {
				return err
			}

			user, err := m.VerifyOTP(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			printUser(cmd, "Signed in", user)
			return nil
		},
	}
}

// ============================================================================
// Provider sign-in
// ============================================================================

func (c *cli) signinCmd() *cobra.Command {
	var native bool

	cmd := &cobra.Command{
		Use:   "signin <provider>",
		Short: "Sign in with Microsoft, Google or Facebook",
		Long: `Sign in through a third-party provider.

By default the backend drives the provider flow and redirects back to the
app's callback URL. With --native the provider's OAuth flow runs locally
and the resulting credential is exchanged with the backend.`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"microsoft", "google", "facebook"},
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := authsdk.ParseProvider(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			m, err := c.session(ctx)
			if err != nil {
				return err
			}

			var user *authsdk.User
			if native {
				user, err = c.nativeSignIn(ctx, m, provider)
			} else {
				user, err = m.SignInWithProvider(ctx, provider)
			}
			if err != nil {
				return err
			}

			printUser(cmd, "Signed in", user)
			return nil
		},
	}

	cmd.Flags().BoolVar(&native, "native", false, "run the provider OAuth flow locally")
	return cmd
}

func (c *cli) nativeSignIn(ctx context.Context, m *authsession.Manager, p authsdk.Provider) (*authsdk.User, error) {
	if !m.ProviderEnabled(p) {
		return nil, &authsdk.FeatureDisabledError{Feature: p.String() + " sign-in"}
	}

	ex, ok := c.app.Exchanger(p)
	if !ok {
		return nil, fmt.Errorf("%w: native %s sign-in has no client registration", authsdk.ErrInvalidConfiguration, p)
	}

	state, err := socialauth.NewState()
	if err != nil {
		return nil, err
	}
	verifier := socialauth.NewVerifier()

	c.console.Printf("Open this URL in your browser to sign in:\n\n  %s\n\n", ex.AuthCodeURL(state, verifier))
	callback, err := c.console.ReadCallback("")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", authsdk.ErrUnauthorized, err)
	}

	code, err := socialauth.ParseCallback(callback, state)
	if err != nil {
		return nil, err
	}

	cred, err := ex.Exchange(ctx, code, verifier)
	if err != nil {
		return nil, err
	}
	return m.SignInWithCredential(ctx, cred)
}

// ============================================================================
// Session
// ============================================================================

func (c *cli) refreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Print an access token, refreshing it when close to expiry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := c.session(cmd.Context())
			if err != nil {
				return err
			}

			token, err := m.RefreshIfNeeded(cmd.Context())
			if err != nil {
				return err
			}
			if token == "" {
				return fmt.Errorf("%w: backend issued no access token", authsdk.ErrUnauthorized)
			}
			cmd.Println(token)
			return nil
		},
	}
}

func (c *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := c.session(cmd.Context())
			if err != nil {
				return err
			}

			res, err := m.Logout(cmd.Context())
			if err != nil {
				return err
			}
			if res.NotifyErr != nil {
				cmd.Printf("Signed out locally; the backend was not notified: %v\n", res.NotifyErr)
				return nil
			}
			cmd.Println("Signed out")
			return nil
		},
	}
}

// whoami is the --json shape.
type whoami struct {
	ID          string     `json:"id"`
	Email       string     `json:"email,omitempty"`
	Name        string     `json:"name,omitempty"`
	TenantID    string     `json:"tenantId,omitempty"`
	Roles       []string   `json:"roles,omitempty"`
	Permissions []string   `json:"permissions,omitempty"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	Expired     bool       `json:"expired"`
}

func (c *cli) whoamiCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user from the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := c.session(cmd.Context())
			if err != nil {
				return err
			}

			u := m.CurrentUser()
			if m.State() != authsession.StateAuthenticated || u == nil {
				return fmt.Errorf("%w: not signed in", authsdk.ErrUnauthorized)
			}

			out := whoami{
				ID:          u.ID,
				Email:       u.Email,
				Name:        u.Name,
				TenantID:    u.TenantID,
				Roles:       u.Roles,
				Permissions: u.Permissions,
			}
			if claims, ok := m.Claims(); ok && claims.Expiry != nil {
				exp := claims.Expiry.Time.UTC()
				out.ExpiresAt = &exp
				out.Expired = claims.ExpiredAt(time.Now(), 0)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}

			cmd.Printf("id:      %s\n", out.ID)
			cmd.Printf("email:   %s\n", out.Email)
			if out.Name != "" {
				cmd.Printf("name:    %s\n", out.Name)
			}
			if out.TenantID != "" {
				cmd.Printf("tenant:  %s\n", out.TenantID)
			}
			if len(out.Roles) > 0 {
				cmd.Printf("roles:   %s\n", strings.Join(out.Roles, ", "))
			}
			if out.ExpiresAt != nil {
				suffix := ""
				if out.Expired {
					suffix = " (expired)"
				}
				cmd.Printf("expires: %s%s\n", out.ExpiresAt.Format(time.RFC3339), suffix)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

// ============================================================================
// Accounts
// ============================================================================

func (c *cli) registerCmd() *cobra.Command {
	var req authsdk.RegisterRequest

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := c.session(cmd.Context())
			if err != nil {
				return err
			}

			if err := c.ask(&req.Email, "Email"); err != nil {
				return err
			}
			if err := c.ask(&req.Password, "Password"); err != nil {
				return err
			}

			res, err := m.Register(cmd.Context(), req)
			if err != nil {
				return err
			}

			if res.Tokens != nil {
				printUser(cmd, "Registered and signed in", m.CurrentUser())
				return nil
			}
			if res.Message != "" {
				cmd.Println(res.Message)
			} else {
				cmd.Println("Registered; verify your email before signing in")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Email, "email", "", "account email")
	cmd.Flags().StringVarP(&req.Password, "password", "p", "", "password (prompted when empty)")
	cmd.Flags().StringVar(&req.Name, "name", "", "display name")
	cmd.Flags().StringVar(&req.Username, "username", "", "username")
	cmd.Flags().StringVar(&req.PhoneNumber, "phone", "", "phone number")
	cmd.Flags().StringVar(&req.TenantID, "tenant", "", "tenant to join")
	return cmd
}

func (c *cli) resetPasswordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Request or confirm a password reset",
	}

	var req authsdk.PasswordResetRequest
	request := &cobra.Command{
		Use:   "request",
		Short: "Email a password reset link",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := c.session(cmd.Context())
			if err != nil {
				return err
			}
			if err := c.ask(&req.Email, "Email"); err != nil {
				return err
			}

			res, err := m.RequestPasswordReset(cmd.Context(), req)
			if err != nil {
				return err
			}
			cmd.Println(orDefault(res.Message, "Password reset requested"))
			if res.Token != "" {
				cmd.Printf("reset token: %s\n", res.Token)
			}
			return nil
		},
	}
	request.Flags().StringVar(&req.Email, "email", "", "account email")
	request.Flags().StringVar(&req.Type, "type", "", "account kind (default \""+authsdk.DefaultResetType+"\")")

	var token, password string
	confirm := &cobra.Command{
		Use:   "confirm",
		Short: "Set a new password with a reset token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := c.session(cmd.Context())
			if err != nil {
				return err
			}
			if err := c.ask(&token, "Reset token"); err != nil {
				return err
			}
			if err := c.ask(&password, "New password"); err != nil {
				return err
			}

			msg, err := m.ResetPassword(cmd.Context(), token, password)
			if err != nil {
				return err
			}
			cmd.Println(orDefault(msg, "Password updated"))
			return nil
		},
	}
	confirm.Flags().StringVar(&token, "token", "", "reset token from the email")
	confirm.Flags().StringVarP(&password, "password", "p", "", "new password (prompted when empty)")

	cmd.AddCommand(request, confirm)
	return cmd
}

func (c *cli) verifyEmailCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify-email <token>",
		Short: "Redeem an email verification token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := c.session(cmd.Context())
			if err != nil {
				return err
			}

			msg, _, err := m.VerifyEmail(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			cmd.Println(orDefault(msg, "Email verified"))
			return nil
		},
	}
}

func (c *cli) inviteCmd() *cobra.Command {
	var req authsdk.InviteRequest

	cmd := &cobra.Command{
		Use:   "invite",
		Short: "Invite someone into a tenant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := c.session(cmd.Context())
			if err != nil {
				return err
			}
			if req.Email == "" || req.TenantID == "" {
				return errors.New("--email and --tenant are required")
			}

			msg, err := m.InviteUser(cmd.Context(), req)
			if err != nil {
				return err
			}
			cmd.Println(orDefault(msg, "Invitation sent"))
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Email, "email", "", "invitee email")
	cmd.Flags().StringVar(&req.Name, "name", "", "invitee name")
	cmd.Flags().StringVar(&req.TenantID, "tenant", "", "tenant to invite into")
	return cmd
}

// ============================================================================
// Utilities
// ============================================================================

func sealKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seal-key",
		Short: "Generate a value for AUTH_STORAGE_SEAL_KEY",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := cryptox.GenerateToken(cryptox.TokenSize256)
			if err != nil {
				return err
			}
			cmd.Println(key)
			return nil
		},
	}
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
