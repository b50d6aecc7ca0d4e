package authsdk

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aussiebroadwan/authsession/pkg/cryptox"
)

// Refresh exchanges the refresh credential for a new access token and
// overwrites the stored pair.
//
// The stored refresh token is kept unless the response carries a new one. A
// response without an access token is a no-op: it returns "" and leaves the
// store untouched. In body mode a missing stored refresh token is
// ErrUnauthorized.
func (c *SDKClient) Refresh(ctx context.Context) (string, error) {
	current, err := c.store.Load(ctx)
	if err != nil {
		return "", &StoreError{Op: "load", Err: err}
	}

	req := Request{Method: http.MethodPost, Path: PathRefresh}
	if c.refreshMode == RefreshBody {
		if current == nil || current.Refresh == "" {
			return "", fmt.Errorf("%w: no stored refresh token", ErrUnauthorized)
		}
		req.Body = RefreshRequest{RefreshToken: current.Refresh}
	}

	var env Envelope
	if err := c.sender.Send(ctx, req, &env); err != nil {
		return "", err
	}

	if env.AccessToken == "" {
		c.logger.Debug("refresh response without access token")
		return "", nil
	}

	refresh := env.RefreshToken
	if refresh == "" && current != nil {
		refresh = current.Refresh
	}

	if _, err := c.persist(ctx, env.AccessToken, refresh); err != nil {
		return "", err
	}

	c.logger.Info("access token refreshed",
		"access_fp", cryptox.FingerprintToken(env.AccessToken),
		"refresh_rotated", env.RefreshToken != "",
	)
	return env.AccessToken, nil
}

// Logout notifies the backend and clears the store. Clearing happens
// whatever the notification outcome; a failed notification is reported in
// LogoutResult.NotifyErr, and only a failed clear is returned as an error.
func (c *SDKClient) Logout(ctx context.Context) (*LogoutResult, error) {
	result := &LogoutResult{}

	current, err := c.store.Load(ctx)
	if err != nil {
		c.logger.Warn("logout could not read stored session", "error", err)
	}

	req := Request{Method: http.MethodPost, Path: PathLogout}
	if current != nil {
		req.Header = bearer(current.Access)
	}

	var env Envelope
	if err := c.sender.Send(ctx, req, &env); err != nil {
		result.NotifyErr = err
	} else {
		result.Message = env.Message
	}

	// The clear must not inherit a cancelled or expired caller context
	clearCtx := context.WithoutCancel(ctx)
	if err := c.store.Clear(clearCtx); err != nil {
		return result, &StoreError{Op: "clear", Err: err}
	}

	return result, nil
}
