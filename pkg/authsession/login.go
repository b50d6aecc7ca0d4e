package authsession

import (
	"context"
	"fmt"

	"github.com/aussiebroadwan/authsession/pkg/authsdk"
	"github.com/aussiebroadwan/authsession/pkg/cryptox"
)

// LoginStart submits credentials. On a trusted device the session is
// established and the state becomes Authenticated; otherwise the state
// becomes OTPPending for the challenged account and the store is untouched.
// Callers inspect the result's OTPRequired.
func (m *Manager) LoginStart(ctx context.Context, req authsdk.LoginRequest) (*authsdk.LoginResult, error) {
	m.ops.Lock()
	defer m.ops.Unlock()

	res, err := m.client.Login(ctx, req)
	if err != nil {
		m.logger.Info("login rejected", "error", err)
		return nil, err
	}

	if res.OTPRequired() {
		identifier := req.Identifier
		if res.User != nil && res.User.Email != "" {
			identifier = res.User.Email
		}
		m.commit(session{state: StateOTPPending, identifier: identifier})
		m.logger.Info("login awaiting one-time passcode")
		return res, nil
	}

	pair := authsdk.NewTokenPair(res.AccessToken, res.RefreshToken)
	m.commit(m.authenticated(resolveUser(res.User, res.AccessToken, req.Identifier), pair))
	m.logger.Info("login succeeded on trusted device", "access_fp", cryptox.FingerprintToken(pair.Access))
	return res, nil
}

// Login is LoginStart for callers that treat a passcode challenge as an
// error: it returns *authsdk.OTPRequiredError in that case, and the
// Manager stays in OTPPending for a following VerifyOTP.
func (m *Manager) Login(ctx context.Context, req authsdk.LoginRequest) (*authsdk.User, error) {
	res, err := m.LoginStart(ctx, req)
	if err != nil {
		return nil, err
	}
	if res.OTPRequired() {
		return nil, &authsdk.OTPRequiredError{Identifier: m.PendingIdentifier(), Message: res.Message}
	}
	return m.CurrentUser(), nil
}

// VerifyOTP completes a passcode challenge. An empty identifier uses the
// pending one. A failed verification leaves the challenge pending.
func (m *Manager) VerifyOTP(ctx context.Context, identifier, code string) (*authsdk.User, error) {
	m.ops.Lock()
	defer m.ops.Unlock()

	if identifier == "" {
		identifier = m.snapshot().identifier
	}
	if identifier == "" {
		return nil, fmt.Errorf("%w: no pending passcode challenge", authsdk.ErrUnauthorized)
	}

	res, err := m.client.VerifyOTP(ctx, identifier, code)
	if err != nil {
		m.logger.Info("passcode rejected", "error", err)
		return nil, err
	}

	m.commit(m.authenticated(resolveUser(res.User, res.Tokens.Access, identifier), res.Tokens))
	m.logger.Info("passcode verified", "access_fp", cryptox.FingerprintToken(res.Tokens.Access))
	return m.CurrentUser(), nil
}

// Register creates an account. When the backend signs the account in
// straight away the Manager becomes Authenticated.
func (m *Manager) Register(ctx context.Context, req authsdk.RegisterRequest) (*authsdk.RegisterResult, error) {
	m.ops.Lock()
	defer m.ops.Unlock()

	res, err := m.client.Register(ctx, req)
	if err != nil {
		return nil, err
	}

	if res.Tokens != nil {
		m.commit(m.authenticated(resolveUser(res.User, res.Tokens.Access, req.Email), *res.Tokens))
		m.logger.Info("registered and signed in")
	}
	return res, nil
}

// RequestPasswordReset starts a reset. It has no session side effects.
func (m *Manager) RequestPasswordReset(ctx context.Context, req authsdk.PasswordResetRequest) (*authsdk.PasswordResetResult, error) {
	return m.client.RequestPasswordReset(ctx, req)
}

// ResetPassword confirms a reset with its token.
func (m *Manager) ResetPassword(ctx context.Context, token, newPassword string) (string, error) {
	return m.client.ResetPassword(ctx, token, newPassword)
}

// InviteUser invites someone into a tenant on behalf of the signed-in user.
func (m *Manager) InviteUser(ctx context.Context, req authsdk.InviteRequest) (string, error) {
	return m.client.InviteUser(ctx, req)
}

// VerifyEmail redeems an email verification token.
func (m *Manager) VerifyEmail(ctx context.Context, token string) (string, *authsdk.User, error) {
	return m.client.VerifyEmail(ctx, token)
}

// CheckToken asks the backend whether the stored token is still accepted
// and refreshes the cached user from its answer.
func (m *Manager) CheckToken(ctx context.Context) (*authsdk.User, error) {
	m.ops.Lock()
	defer m.ops.Unlock()

	user, err := m.client.CheckToken(ctx)
	if err != nil {
		return nil, err
	}

	if cur := m.snapshot(); cur.state == StateAuthenticated && user != nil {
		cur.user = user
		m.commit(cur)
	}
	return user, nil
}
