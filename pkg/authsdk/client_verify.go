package authsdk

import (
	"context"
	"net/http"
	"net/url"
)

// VerifyEmail redeems an email verification token.
func (c *SDKClient) VerifyEmail(ctx context.Context, token string) (string, *User, error) {
	var env Envelope
	r := Request{
		Method: http.MethodGet,
		Path:   PathVerifyEmail,
		Query:  url.Values{"token": {token}},
	}
	if err := c.sender.Send(ctx, r, &env); err != nil {
		return "", nil, err
	}

	return env.Message, env.User.User(), nil
}

// CheckToken asks the backend whether the stored access token is still
// accepted and returns the user it belongs to.
func (c *SDKClient) CheckToken(ctx context.Context) (*User, error) {
	access, err := c.storedAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	var env Envelope
	r := Request{Method: http.MethodGet, Path: PathCheckToken, Header: bearer(access)}
	if err := c.sender.Send(ctx, r, &env); err != nil {
		return nil, err
	}

	return env.User.User(), nil
}
