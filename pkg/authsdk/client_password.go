package authsdk

import (
	"context"
	"net/http"
)

// DefaultResetType is the account kind sent when a reset request names none.
const DefaultResetType = "client"

// RequestPasswordReset starts a reset for email. It has no session side
// effects.
func (c *SDKClient) RequestPasswordReset(ctx context.Context, req PasswordResetRequest) (*PasswordResetResult, error) {
	if req.Type == "" {
		req.Type = DefaultResetType
	}

	var env Envelope
	r := Request{Method: http.MethodPost, Path: PathRequestPasswordReset, Body: req}
	if err := c.sender.Send(ctx, r, &env); err != nil {
		return nil, err
	}

	return &PasswordResetResult{Message: env.Message, Token: env.Token}, nil
}

// ResetPassword confirms a reset with the emailed token.
func (c *SDKClient) ResetPassword(ctx context.Context, token, newPassword string) (string, error) {
	var env Envelope
	r := Request{
		Method: http.MethodPost,
		Path:   PathResetPassword,
		Body:   ResetPasswordRequest{Token: token, NewPassword: newPassword},
	}
	if err := c.sender.Send(ctx, r, &env); err != nil {
		return "", err
	}

	return env.Message, nil
}
