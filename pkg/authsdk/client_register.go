package authsdk

import (
	"context"
	"net/http"
)

// Register creates an account. Backends that sign new accounts in straight
// away return tokens, which are persisted.
func (c *SDKClient) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	var env Envelope
	if err := c.sender.Send(ctx, Request{Method: http.MethodPost, Path: PathRegister, Body: req}, &env); err != nil {
		return nil, err
	}

	result := &RegisterResult{
		Message:           env.Message,
		User:              env.User.User(),
		VerificationToken: env.Token,
	}

	if env.AccessToken != "" {
		pair, err := c.persist(ctx, env.AccessToken, env.RefreshToken)
		if err != nil {
			return nil, err
		}
		result.Tokens = &pair
	}

	return result, nil
}

// InviteUser asks the backend to invite someone into a tenant. It is
// authorised with the stored access token.
func (c *SDKClient) InviteUser(ctx context.Context, req InviteRequest) (string, error) {
	access, err := c.storedAccessToken(ctx)
	if err != nil {
		return "", err
	}

	var env Envelope
	r := Request{
		Method: http.MethodPost,
		Path:   PathInviteUser,
		Header: bearer(access),
		Body:   req,
	}
	if err := c.sender.Send(ctx, r, &env); err != nil {
		return "", err
	}

	return env.Message, nil
}
