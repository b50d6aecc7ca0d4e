package authsession

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aussiebroadwan/authsession/pkg/authsdk"
	"github.com/aussiebroadwan/authsession/pkg/credstore"
	"github.com/aussiebroadwan/authsession/pkg/jwtx"
	"golang.org/x/sync/singleflight"
)

// DefaultRefreshSkew is how close to expiry a cached access token is still
// handed out without refreshing.
const DefaultRefreshSkew = 30 * time.Second

// DefaultRefreshTimeout bounds a shared refresh, which outlives the caller
// that started it.
const DefaultRefreshTimeout = 30 * time.Second

// State is the login state machine position.
type State int

const (
	StateUnauthenticated State = iota
	StateOTPPending
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateOTPPending:
		return "otp_pending"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

// Endpoints is the backend surface the Manager drives. *authsdk.SDKClient
// implements it.
type Endpoints interface {
	Store() credstore.Store
	Login(ctx context.Context, req authsdk.LoginRequest) (*authsdk.LoginResult, error)
	VerifyOTP(ctx context.Context, identifier, otp string) (*authsdk.AuthResult, error)
	Register(ctx context.Context, req authsdk.RegisterRequest) (*authsdk.RegisterResult, error)
	RequestPasswordReset(ctx context.Context, req authsdk.PasswordResetRequest) (*authsdk.PasswordResetResult, error)
	ResetPassword(ctx context.Context, token, newPassword string) (string, error)
	Refresh(ctx context.Context) (string, error)
	Logout(ctx context.Context) (*authsdk.LogoutResult, error)
	SocialLogin(ctx context.Context, cred authsdk.SocialCredential) (*authsdk.AuthResult, error)
	InviteUser(ctx context.Context, req authsdk.InviteRequest) (string, error)
	VerifyEmail(ctx context.Context, token string) (string, *authsdk.User, error)
	CheckToken(ctx context.Context) (*authsdk.User, error)
}

var _ Endpoints = (*authsdk.SDKClient)(nil)

// WebSignIn runs an interactive provider sign-in. *webauth.Bridge
// implements it.
type WebSignIn interface {
	SignIn(ctx context.Context, provider authsdk.Provider) (credstore.TokenPair, error)
}

// Config holds Manager options.
type Config struct {
	// Providers lists the enabled sign-in providers. A provider that is
	// absent or false is disabled.
	Providers map[authsdk.Provider]bool

	// RefreshSkew defaults to DefaultRefreshSkew.
	RefreshSkew time.Duration

	// RefreshTimeout defaults to DefaultRefreshTimeout.
	RefreshTimeout time.Duration

	Logger *slog.Logger
	Now    func() time.Time
}

// session is the in-memory view of the current sign-in. It is replaced
// wholesale, never mutated in place.
type session struct {
	state      State
	identifier string // set while OTP pending
	user       *authsdk.User
	tokens     *credstore.TokenPair
}

// Manager is the session orchestrator. It is safe for concurrent use;
// authenticating operations run one at a time.
type Manager struct {
	client         Endpoints
	web            WebSignIn
	providers      map[authsdk.Provider]bool
	skew           time.Duration
	refreshTimeout time.Duration
	logger         *slog.Logger
	now            func() time.Time

	// ops serialises operations that change the session. It is taken
	// before mu.
	ops sync.Mutex

	mu  sync.RWMutex
	cur session

	refreshes singleflight.Group
}

// New creates a Manager. web may be nil when no interactive sign-in is
// available; provider sign-in then fails with ErrInvalidConfiguration.
func New(client Endpoints, web WebSignIn, cfg Config) *Manager {
	if cfg.RefreshSkew <= 0 {
		cfg.RefreshSkew = DefaultRefreshSkew
	}
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = DefaultRefreshTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	providers := make(map[authsdk.Provider]bool, len(cfg.Providers))
	for p, enabled := range cfg.Providers {
		providers[p] = enabled
	}

	return &Manager{
		client:         client,
		web:            web,
		providers:      providers,
		skew:           cfg.RefreshSkew,
		refreshTimeout: cfg.RefreshTimeout,
		logger:         cfg.Logger,
		now:            cfg.Now,
	}
}

// ============================================================================
// Read-only accessors
// ============================================================================

func (m *Manager) snapshot() session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cur
}

// State returns the state machine position.
func (m *Manager) State() State {
	return m.snapshot().state
}

// PendingIdentifier returns the account awaiting a passcode, or "".
func (m *Manager) PendingIdentifier() string {
	return m.snapshot().identifier
}

// CurrentUser returns a copy of the signed-in user, or nil.
func (m *Manager) CurrentUser() *authsdk.User {
	u := m.snapshot().user
	if u == nil {
		return nil
	}
	c := *u
	c.Roles = append([]string(nil), u.Roles...)
	c.Permissions = append([]string(nil), u.Permissions...)
	return &c
}

// AccessToken returns the current access token, or "" when signed out. It
// never refreshes; see RefreshIfNeeded.
func (m *Manager) AccessToken() string {
	if t := m.snapshot().tokens; t != nil {
		return t.Access
	}
	return ""
}

// Claims decodes the current access token. The signature is not verified.
func (m *Manager) Claims() (*jwtx.Claims, bool) {
	access := m.AccessToken()
	if access == "" {
		return nil, false
	}
	return jwtx.Decode(access)
}

// ProviderEnabled reports whether provider sign-in is turned on.
func (m *Manager) ProviderEnabled(p authsdk.Provider) bool {
	return m.providers[p]
}

// ============================================================================
// Transitions
// ============================================================================

// commit replaces the session. Callers hold m.ops.
func (m *Manager) commit(next session) {
	m.mu.Lock()
	m.cur = next
	m.mu.Unlock()
}

func (m *Manager) authenticated(user *authsdk.User, pair credstore.TokenPair) session {
	return session{
		state:  StateAuthenticated,
		user:   user,
		tokens: &pair,
	}
}

// resolveUser picks the user record for a new session: the backend's,
// then one projected from the access token, then a bare record carrying
// the sign-in identifier.
func resolveUser(from *authsdk.User, access, identifier string) *authsdk.User {
	if from != nil {
		return from
	}
	if claims, ok := jwtx.Decode(access); ok {
		return authsdk.UserFromClaims(claims)
	}
	return &authsdk.User{Email: identifier}
}
