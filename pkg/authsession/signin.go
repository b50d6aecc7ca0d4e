package authsession

import (
	"context"
	"errors"
	"fmt"

	"github.com/aussiebroadwan/authsession/pkg/authsdk"
	"github.com/aussiebroadwan/authsession/pkg/cryptox"
)

// gate fails with *authsdk.FeatureDisabledError for a disabled provider.
func (m *Manager) gate(p authsdk.Provider) error {
	if !m.providers[p] {
		return &authsdk.FeatureDisabledError{Feature: p.String() + " sign-in"}
	}
	return nil
}

// SignInWithProvider runs the interactive web sign-in for provider. A
// disabled provider fails before anything is shown. The user is projected
// from the access token claims.
//
// The interactive part runs without blocking other operations; only the
// final session swap is serialised.
func (m *Manager) SignInWithProvider(ctx context.Context, provider authsdk.Provider) (*authsdk.User, error) {
	if err := m.gate(provider); err != nil {
		return nil, err
	}
	if m.web == nil {
		return nil, fmt.Errorf("%w: web sign-in is not available", authsdk.ErrInvalidConfiguration)
	}

	pair, err := m.web.SignIn(ctx, provider)
	if err != nil {
		return nil, err
	}

	m.ops.Lock()
	defer m.ops.Unlock()

	m.commit(m.authenticated(resolveUser(nil, pair.Access, ""), pair))
	m.logger.Info("provider sign-in succeeded",
		"provider", provider.String(),
		"access_fp", cryptox.FingerprintToken(pair.Access),
	)
	return m.CurrentUser(), nil
}

// SignInWithCredential exchanges a provider credential obtained natively,
// for example by socialauth.Exchanger. It is gated like SignInWithProvider.
// A store failure after a successful exchange is logged and the session is
// still established.
func (m *Manager) SignInWithCredential(ctx context.Context, cred authsdk.SocialCredential) (*authsdk.User, error) {
	if err := m.gate(cred.Provider); err != nil {
		return nil, err
	}

	m.ops.Lock()
	defer m.ops.Unlock()

	res, err := m.client.SocialLogin(ctx, cred)
	var storeErr *authsdk.StoreError
	switch {
	case err == nil:
	case res != nil && errors.As(err, &storeErr):
		m.logger.Warn("social sign-in tokens not persisted", "provider", cred.Provider.String(), "error", err)
	default:
		return nil, err
	}

	m.commit(m.authenticated(resolveUser(res.User, res.Tokens.Access, ""), res.Tokens))
	m.logger.Info("social sign-in succeeded",
		"provider", cred.Provider.String(),
		"access_fp", cryptox.FingerprintToken(res.Tokens.Access),
	)
	return m.CurrentUser(), nil
}
