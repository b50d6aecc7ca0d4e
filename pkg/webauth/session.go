package webauth

import (
	"errors"
	"net/url"
)

// ErrUserCanceled is the completion error a SessionFactory reports when the
// user dismissed the sign-in UI.
var ErrUserCanceled = errors.New("webauth: user canceled sign-in")

// ErrSignInInProgress is returned when SignIn is called while another
// sign-in on the same Bridge has not completed.
var ErrSignInInProgress = errors.New("webauth: sign-in already in progress")

// SessionRequest describes one interactive sign-in.
type SessionRequest struct {
	// URL is the provider start URL on the auth backend.
	URL *url.URL

	// CallbackScheme is the app scheme the session must intercept.
	CallbackScheme string

	// PreferEphemeral asks the session not to share cookies with the
	// system browser.
	PreferEphemeral bool
}

// CompletionFunc receives the intercepted callback URL or the error that
// ended the session. Sessions call it at most once; extra calls are ignored.
type CompletionFunc func(callback *url.URL, err error)

// Session is a handle on one interactive sign-in, typically a system
// browser sheet.
type Session interface {
	// Start presents the sign-in UI. It must not block until completion.
	Start() error

	// Cancel dismisses the UI. The session reports completion afterwards,
	// usually with ErrUserCanceled.
	Cancel()
}

// SessionFactory creates sessions. Implementations capture whatever
// presentation context the host platform needs when they are constructed.
type SessionFactory interface {
	NewSession(req SessionRequest, done CompletionFunc) Session
}

// SessionFactoryFunc adapts a function to SessionFactory.
type SessionFactoryFunc func(req SessionRequest, done CompletionFunc) Session

func (f SessionFactoryFunc) NewSession(req SessionRequest, done CompletionFunc) Session {
	return f(req, done)
}
