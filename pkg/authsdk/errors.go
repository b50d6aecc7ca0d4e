package authsdk

import (
	"errors"
	"fmt"

	"github.com/aussiebroadwan/authsession/pkg/credstore"
)

// ============================================================================
// Sentinel Errors
// ============================================================================

var (
	// ErrInvalidConfiguration is returned when the client is missing
	// configuration an operation needs, e.g. an empty redirect scheme.
	ErrInvalidConfiguration = errors.New("authsdk: invalid configuration")

	// ErrUnauthorized is returned for rejected credentials (HTTP 401), a
	// cancelled interactive sign-in, a callback without an access token, or
	// a storage backend that refused access.
	ErrUnauthorized = errors.New("authsdk: unauthorized")

	// ErrFeatureDisabled is returned when a disabled provider is used.
	ErrFeatureDisabled = errors.New("authsdk: feature disabled")

	// ErrUnknown is returned for failures that fit no other category.
	ErrUnknown = errors.New("authsdk: unknown error")
)

// ============================================================================
// Typed Errors
// ============================================================================

// ServerError is a non-2xx, non-401 backend response.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("authsdk: server error %d", e.StatusCode)
	}
	return fmt.Sprintf("authsdk: server error %d: %s", e.StatusCode, e.Message)
}

// DecodingError is a 2xx response whose body could not be decoded.
type DecodingError struct {
	Err error
}

func (e *DecodingError) Error() string { return "authsdk: decoding response: " + e.Err.Error() }
func (e *DecodingError) Unwrap() error { return e.Err }

// NetworkError is a transport failure: DNS, connection, TLS, timeouts and
// cancellation all land here.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return "authsdk: network: " + e.Err.Error() }
func (e *NetworkError) Unwrap() error { return e.Err }

// FeatureDisabledError names the feature that is turned off. It matches both
// ErrFeatureDisabled and ErrInvalidConfiguration.
type FeatureDisabledError struct {
	Feature string
}

func (e *FeatureDisabledError) Error() string {
	return fmt.Sprintf("authsdk: %s is disabled", e.Feature)
}

func (e *FeatureDisabledError) Is(target error) bool {
	return target == ErrFeatureDisabled || target == ErrInvalidConfiguration
}

// OTPRequiredError is returned by a direct login when the backend answers
// with a one-time passcode challenge instead of tokens.
type OTPRequiredError struct {
	// Identifier is the account the passcode was issued for
	Identifier string

	// Message is the backend's message, if any
	Message string
}

func (e *OTPRequiredError) Error() string {
	return fmt.Sprintf("authsdk: one-time passcode required for %s", e.Identifier)
}

// StoreError wraps a credential store failure that followed a successful
// backend call. It matches ErrUnauthorized when the store refused access.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("authsdk: credential store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool {
	return target == ErrUnauthorized && errors.Is(e.Err, credstore.ErrUnauthorized)
}
