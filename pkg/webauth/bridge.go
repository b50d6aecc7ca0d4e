// Package webauth turns a callback-driven interactive sign-in into a single
// blocking call.
package webauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/aussiebroadwan/authsession/pkg/authsdk"
	"github.com/aussiebroadwan/authsession/pkg/credstore"
	"github.com/aussiebroadwan/authsession/pkg/cryptox"
	"github.com/aussiebroadwan/authsession/pkg/idx"
	"github.com/aussiebroadwan/authsession/pkg/slogx"
)

// CallbackHost and CallbackPath complete "<scheme>://auth/callback".
const (
	CallbackHost = "auth"
	CallbackPath = "/callback"
)

// Config configures a Bridge.
type Config struct {
	// BaseURL is the auth backend; provider start paths hang off it.
	BaseURL string

	// RedirectScheme is the app's registered URL scheme. SignIn fails with
	// ErrInvalidConfiguration while it is empty.
	RedirectScheme string

	PreferEphemeral bool
	Logger          *slog.Logger
}

// Bridge runs at most one interactive sign-in at a time.
type Bridge struct {
	base            *url.URL
	scheme          string
	preferEphemeral bool
	factory         SessionFactory
	store           credstore.Store
	logger          *slog.Logger

	mu sync.Mutex
	// active stays set from SignIn until the session reports completion,
	// even when the caller has already given up. current keeps the handle
	// alive for that long.
	active  bool
	current Session
	gen     uint64
}

// NewBridge validates the base URL. The redirect scheme is checked per call.
func NewBridge(cfg Config, factory SessionFactory, store credstore.Store) (*Bridge, error) {
	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: base URL %q", authsdk.ErrInvalidConfiguration, cfg.BaseURL)
	}
	if base.Path == "" {
		base.Path = "/"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Bridge{
		base:            base,
		scheme:          cfg.RedirectScheme,
		preferEphemeral: cfg.PreferEphemeral,
		factory:         factory,
		store:           store,
		logger:          cfg.Logger,
	}, nil
}

// CallbackURL returns "<scheme>://auth/callback".
func CallbackURL(scheme string) string {
	return (&url.URL{Scheme: scheme, Host: CallbackHost, Path: CallbackPath}).String()
}

// StartURL returns the backend URL that begins sign-in with provider.
func StartURL(base *url.URL, provider authsdk.Provider, scheme string) *url.URL {
	u := base.JoinPath("api", "auth", provider.String())
	if !strings.HasPrefix(u.Path, "/") {
		u.Path = "/" + u.Path
	}
	u.RawQuery = url.Values{
		"redirect": {CallbackURL(scheme)},
		"prompt":   {"select_account"},
	}.Encode()
	return u
}

// InFlight reports whether a sign-in is waiting for completion.
func (b *Bridge) InFlight() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active
}

type outcome struct {
	callback *url.URL
	err      error
}

// SignIn presents the provider's sign-in and blocks until it completes or
// ctx is done. Cancelling ctx cancels the session and returns
// ErrUnauthorized; the Bridge stays busy until the cancelled session has
// reported its completion.
//
// The returned pair is persisted in the store. A persistence failure is
// logged and does not fail the sign-in.
func (b *Bridge) SignIn(ctx context.Context, provider authsdk.Provider) (credstore.TokenPair, error) {
	if b.scheme == "" {
		return credstore.TokenPair{}, fmt.Errorf("%w: redirect scheme is not configured", authsdk.ErrInvalidConfiguration)
	}

	b.mu.Lock()
	if b.active {
		b.mu.Unlock()
		return credstore.TokenPair{}, ErrSignInInProgress
	}
	b.active = true
	b.gen++
	gen := b.gen
	b.mu.Unlock()

	ctx = slogx.WithFlowID(slogx.WithContext(ctx, slogx.FromContextOr(ctx, b.logger)), idx.New().String())
	logger := slogx.FromContext(ctx).With("provider", provider.String())

	results := make(chan outcome, 1)
	var once sync.Once
	done := func(callback *url.URL, err error) {
		once.Do(func() {
			b.release(gen)
			results <- outcome{callback: callback, err: err}
		})
	}

	session := b.factory.NewSession(SessionRequest{
		URL:             StartURL(b.base, provider, b.scheme),
		CallbackScheme:  b.scheme,
		PreferEphemeral: b.preferEphemeral,
	}, done)

	b.mu.Lock()
	if b.active && b.gen == gen {
		b.current = session
	}
	b.mu.Unlock()

	logger.Info("web sign-in started")
	if err := session.Start(); err != nil {
		b.release(gen)
		logger.Warn("web sign-in failed to start", "error", err)
		return credstore.TokenPair{}, fmt.Errorf("%w: starting sign-in: %w", authsdk.ErrUnknown, err)
	}

	var res outcome
	select {
	case res = <-results:
	case <-ctx.Done():
		session.Cancel()
		logger.Info("web sign-in cancelled by caller")
		return credstore.TokenPair{}, fmt.Errorf("%w: %w", authsdk.ErrUnauthorized, ctx.Err())
	}

	pair, err := pairFromCallback(res)
	if err != nil {
		logger.Info("web sign-in rejected", "error", err)
		return credstore.TokenPair{}, err
	}

	// The caller gets the tokens even when they cannot be stored
	if err := b.store.Save(ctx, pair); err != nil {
		logger.Warn("web sign-in tokens not persisted", "error", err)
	}

	logger.Info("web sign-in completed", "access_fp", cryptox.FingerprintToken(pair.Access))
	return pair, nil
}

// release frees the Bridge for the sign-in numbered gen. Later sign-ins are
// never released by a stale completion.
func (b *Bridge) release(gen uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.gen == gen {
		b.active = false
		b.current = nil
	}
}

// pairFromCallback classifies a completion.
func pairFromCallback(res outcome) (credstore.TokenPair, error) {
	switch {
	case errors.Is(res.err, ErrUserCanceled):
		return credstore.TokenPair{}, fmt.Errorf("%w: %w", authsdk.ErrUnauthorized, res.err)
	case res.err != nil:
		return credstore.TokenPair{}, fmt.Errorf("%w: %w", authsdk.ErrUnknown, res.err)
	case res.callback == nil:
		return credstore.TokenPair{}, fmt.Errorf("%w: no callback URL", authsdk.ErrUnauthorized)
	}

	q := res.callback.Query()
	access := q.Get("accessToken")
	if access == "" {
		return credstore.TokenPair{}, fmt.Errorf("%w: callback has no access token", authsdk.ErrUnauthorized)
	}

	return authsdk.NewTokenPair(access, q.Get("refreshToken")), nil
}
