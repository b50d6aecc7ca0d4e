package authsdk

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/authsession/pkg/credstore"
	"github.com/aussiebroadwan/authsession/pkg/cryptox"
)

// Endpoint paths on the auth backend.
const (
	PathLogin                = "/api/auth/login"
	PathVerifyOTP            = "/api/auth/verify-otp"
	PathRegister             = "/api/auth/register"
	PathLogout               = "/api/auth/logout"
	PathRefresh              = "/api/auth/refresh"
	PathRequestPasswordReset = "/api/auth/request-password-reset"
	PathResetPassword        = "/api/auth/reset-password"
	PathSocialLogin          = "/api/auth/social-login"
	PathInviteUser           = "/api/users/invite"
	PathVerifyEmail          = "/api/verify/verify-email"
	PathCheckToken           = "/api/verify/check-token"
)

// RefreshMode selects how the refresh token reaches the backend.
type RefreshMode string

const (
	// RefreshCookie sends no body; the backend reads an HTTP-only cookie.
	RefreshCookie RefreshMode = "cookie"
	// RefreshBody sends the stored refresh token in the request body.
	RefreshBody RefreshMode = "body"
)

// ParseRefreshMode accepts "cookie" or "body"; empty means cookie.
func ParseRefreshMode(s string) (RefreshMode, error) {
	switch RefreshMode(s) {
	case "", RefreshCookie:
		return RefreshCookie, nil
	case RefreshBody:
		return RefreshBody, nil
	default:
		return "", fmt.Errorf("%w: unknown refresh mode %q", ErrInvalidConfiguration, s)
	}
}

// Config holds SDKClient options.
type Config struct {
	RefreshMode RefreshMode
	Logger      *slog.Logger
}

// SDKClient implements the endpoint services. Each method is one backend
// call; none retries. Calls that establish a session persist the resulting
// token pair in the store.
type SDKClient struct {
	sender      RequestSender
	store       credstore.Store
	refreshMode RefreshMode
	logger      *slog.Logger
}

// NewSDKClient creates a client over sender and store.
func NewSDKClient(sender RequestSender, store credstore.Store, cfg Config) *SDKClient {
	if cfg.RefreshMode == "" {
		cfg.RefreshMode = RefreshCookie
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &SDKClient{
		sender:      sender,
		store:       store,
		refreshMode: cfg.RefreshMode,
		logger:      cfg.Logger,
	}
}

// Store returns the credential store the client persists into.
func (c *SDKClient) Store() credstore.Store { return c.store }

// RefreshMode returns the configured refresh mode.
func (c *SDKClient) RefreshMode() RefreshMode { return c.refreshMode }

// persist saves the pair built from access and refresh.
func (c *SDKClient) persist(ctx context.Context, access, refresh string) (credstore.TokenPair, error) {
	pair := NewTokenPair(access, refresh)
	if err := c.store.Save(ctx, pair); err != nil {
		return pair, &StoreError{Op: "save", Err: err}
	}

	c.logger.Debug("token pair persisted",
		"access_fp", cryptox.FingerprintToken(pair.Access),
		"has_refresh", pair.Refresh != "",
	)
	return pair, nil
}

// storedAccessToken returns the persisted access token, or ErrUnauthorized
// when there is none.
func (c *SDKClient) storedAccessToken(ctx context.Context) (string, error) {
	pair, err := c.store.Load(ctx)
	if err != nil {
		return "", &StoreError{Op: "load", Err: err}
	}
	if pair == nil {
		return "", fmt.Errorf("%w: no stored session", ErrUnauthorized)
	}
	return pair.Access, nil
}
