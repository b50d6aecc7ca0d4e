/*
Package authsdk is the client side of the auth backend's HTTP API.

# Overview

The package has three layers:

  - RequestSender: sends one Request and decodes the JSON response. HTTPSender
    is the net/http implementation.
  - SDKClient: one method per backend endpoint (login, passcode verification,
    registration, password reset, refresh, logout, social exchange, invites,
    email verification, token check).
  - Types and errors shared with the web sign-in bridge and the session
    manager.

SDKClient methods do not keep any session state themselves. Calls that
establish a session persist the token pair in the credstore.Store handed to
NewSDKClient; the session manager layers the login state machine on top.

	sender, err := authsdk.NewHTTPSender(authsdk.SenderConfig{
		BaseURL: "https://auth.example.com",
	})
	client := authsdk.NewSDKClient(sender, credstore.NewMemoryStore(), authsdk.Config{})

	res, err := client.Login(ctx, authsdk.LoginRequest{Identifier: "a@b.com", Password: pw})
	if res.OTPRequired() {
		auth, err := client.VerifyOTP(ctx, "a@b.com", code)
	}

# Refresh

Refresh supports two modes. In cookie mode (the default) no body is sent and
the backend reads an HTTP-only cookie kept in HTTPSender's cookie jar. In
body mode the stored refresh token is posted. Either way the stored refresh
token survives a response that does not rotate it.

# Errors

Errors are matched with errors.Is and errors.As:

	switch {
	case errors.Is(err, authsdk.ErrUnauthorized):
		// bad credentials or rejected token
	case errors.As(err, &serverErr):
		// non-2xx response, serverErr.StatusCode and serverErr.Message
	case errors.As(err, &netErr):
		// transport failure, retry policy is up to the caller
	}

Logout never fails because the backend is unreachable: the local store is
cleared regardless and the notification error is reported in
LogoutResult.NotifyErr.
*/
package authsdk
