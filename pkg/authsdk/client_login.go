package authsdk

import (
	"context"
	"net/http"
)

// Login submits credentials. A trusted device gets tokens straight away and
// they are persisted; otherwise the result carries the passcode challenge
// and the store is left untouched.
func (c *SDKClient) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	var env Envelope
	if err := c.sender.Send(ctx, Request{Method: http.MethodPost, Path: PathLogin, Body: req}, &env); err != nil {
		return nil, err
	}

	result := &LoginResult{
		Message:      env.Message,
		User:         env.User.User(),
		OTPCode:      env.OTPCode,
		RememberMe:   env.RememberMe != nil && *env.RememberMe,
		AccessToken:  env.AccessToken,
		RefreshToken: env.RefreshToken,
	}

	if result.AccessToken != "" {
		if _, err := c.persist(ctx, env.AccessToken, env.RefreshToken); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// VerifyOTP completes a passcode challenge and persists the session.
func (c *SDKClient) VerifyOTP(ctx context.Context, identifier, otp string) (*AuthResult, error) {
	var env Envelope
	req := Request{
		Method: http.MethodPost,
		Path:   PathVerifyOTP,
		Body:   OTPRequest{Identifier: identifier, OTP: otp},
	}
	if err := c.sender.Send(ctx, req, &env); err != nil {
		return nil, err
	}

	return c.establish(ctx, env)
}

// establish persists the envelope's tokens. An envelope without an access
// token did not establish a session.
func (c *SDKClient) establish(ctx context.Context, env Envelope) (*AuthResult, error) {
	if env.AccessToken == "" {
		return nil, ErrUnauthorized
	}

	pair, err := c.persist(ctx, env.AccessToken, env.RefreshToken)
	if err != nil {
		return nil, err
	}

	return &AuthResult{
		Message: env.Message,
		User:    env.User.User(),
		Tokens:  pair,
	}, nil
}
