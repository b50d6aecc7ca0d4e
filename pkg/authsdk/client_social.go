package authsdk

import (
	"context"
	"fmt"
	"net/http"
)

// SocialLogin exchanges a provider credential for a session.
//
// If only persisting the tokens fails, the result is still returned together
// with a *StoreError so the caller can decide whether the session is usable.
func (c *SDKClient) SocialLogin(ctx context.Context, cred SocialCredential) (*AuthResult, error) {
	if cred.IDToken == "" && cred.AccessToken == "" {
		return nil, fmt.Errorf("%w: %s credential has no token", ErrInvalidConfiguration, cred.Provider)
	}

	var env Envelope
	r := Request{
		Method: http.MethodPost,
		Path:   PathSocialLogin,
		Body: socialLoginRequest{
			Provider:    cred.Provider,
			IDToken:     cred.IDToken,
			AccessToken: cred.AccessToken,
		},
	}
	if err := c.sender.Send(ctx, r, &env); err != nil {
		return nil, err
	}

	if env.AccessToken == "" {
		return nil, ErrUnauthorized
	}

	result := &AuthResult{Message: env.Message, User: env.User.User()}
	pair, err := c.persist(ctx, env.AccessToken, env.RefreshToken)
	result.Tokens = pair
	if err != nil {
		return result, err
	}

	return result, nil
}
