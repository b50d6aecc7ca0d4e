/*
Package authsession is the session facade an application talks to.

A Manager owns the login state machine:

	Unauthenticated -> OTPPending(identifier) -> Authenticated(user) -> Unauthenticated

Authenticated is also reached straight from Unauthenticated when the backend
trusts the device, after a web or native provider sign-in, or when Restore
finds a stored session at startup.

Every authenticating call persists the token pair (through authsdk) and then
swaps the Manager's in-memory session in one step, so CurrentUser,
AccessToken and Claims always describe the same sign-in.

	m := authsession.New(client, bridge, authsession.Config{
		Providers: map[authsdk.Provider]bool{authsdk.ProviderMicrosoft: true},
	})
	if err := m.Restore(ctx); err != nil { ... }

	user, err := m.Login(ctx, authsdk.LoginRequest{Identifier: email, Password: pw})
	var otp *authsdk.OTPRequiredError
	if errors.As(err, &otp) {
		user, err = m.VerifyOTP(ctx, otp.Identifier, code)
	}

	token, err := m.RefreshIfNeeded(ctx)

Two failures are deliberately not returned: a credential store failure after
a successful provider sign-in, and a failed server notification during
Logout. Both are logged at warn.
*/
package authsession
