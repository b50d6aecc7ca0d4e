package authsdk

import (
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/authsession/pkg/credstore"
	"github.com/aussiebroadwan/authsession/pkg/jwtx"
	"github.com/google/uuid"
)

// ============================================================================
// Domain Types
// ============================================================================

// User is the account identity returned by authenticating calls.
type User struct {
	ID          string
	Email       string
	Name        string // empty when the backend sent none
	TenantID    string // empty when the backend sent none
	Roles       []string
	Permissions []string
}

// Provider identifies a third-party identity provider.
type Provider string

const (
	ProviderMicrosoft Provider = "microsoft"
	ProviderGoogle    Provider = "google"
	ProviderFacebook  Provider = "facebook"
)

// Providers lists every supported provider.
var Providers = []Provider{ProviderMicrosoft, ProviderGoogle, ProviderFacebook}

// ParseProvider accepts a provider name case-insensitively.
func ParseProvider(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Providers {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: unknown provider %q", ErrInvalidConfiguration, s)
}

func (p Provider) String() string { return string(p) }

// SocialCredential is a provider-issued credential exchanged with the
// backend for a session. It is never stored.
type SocialCredential struct {
	Provider    Provider
	IDToken     string
	AccessToken string
}

// NewTokenPair builds the pair to persist. Expiry comes from the access
// token's exp claim when it can be decoded.
func NewTokenPair(access, refresh string) credstore.TokenPair {
	pair := credstore.TokenPair{Access: access, Refresh: refresh}
	if claims, ok := jwtx.Decode(access); ok && claims.Expiry != nil {
		exp := claims.Expiry.Time.Truncate(time.Second)
		pair.Expiry = &exp
	}
	return pair
}

// UserFromClaims projects a User out of decoded access token claims. It is
// used when a flow yields tokens without a user record.
func UserFromClaims(c *jwtx.Claims) *User {
	if c == nil {
		return nil
	}

	name, _ := c.Raw["name"].Str()
	return &User{
		ID:          c.Subject,
		Email:       c.Email,
		Name:        name,
		TenantID:    c.TenantID,
		Roles:       c.Roles,
		Permissions: c.Permissions,
	}
}

// ============================================================================
// Results
// ============================================================================

// LoginResult is the raw outcome of a login call. Either AccessToken is set
// (trusted device) or the backend issued a passcode challenge.
type LoginResult struct {
	Message      string
	User         *User
	OTPCode      string
	RememberMe   bool
	AccessToken  string
	RefreshToken string
}

// OTPRequired reports whether the backend withheld tokens pending a passcode.
func (r *LoginResult) OTPRequired() bool { return r.AccessToken == "" }

// AuthResult is the outcome of a call that established a session.
type AuthResult struct {
	Message string
	User    *User
	Tokens  credstore.TokenPair
}

// RegisterResult is the outcome of a registration. Tokens is nil unless the
// backend signs the new account in immediately.
type RegisterResult struct {
	Message           string
	User              *User
	VerificationToken string
	Tokens            *credstore.TokenPair
}

// PasswordResetResult is the outcome of a reset request. Token is only
// present for deep-link flows.
type PasswordResetResult struct {
	Message string
	Token   string
}

// LogoutResult reports the server notification outcome. The local store is
// cleared regardless of NotifyErr.
type LogoutResult struct {
	Message   string
	NotifyErr error
}

// ============================================================================
// Wire Types
// ============================================================================

// FullnameDTO is the structured name some backend versions send.
type FullnameDTO struct {
	First string `json:"fname"`
	Last  string `json:"lname"`
}

// UserDTO is the backend's user record. Older backends use _id and fullname.
type UserDTO struct {
	ID          string       `json:"id,omitempty"`
	LegacyID    string       `json:"_id,omitempty"`
	Email       string       `json:"email"`
	Name        string       `json:"name,omitempty"`
	Fullname    *FullnameDTO `json:"fullname,omitempty"`
	Username    string       `json:"username,omitempty"`
	TenantID    string       `json:"tenantId,omitempty"`
	Roles       []string     `json:"roles,omitempty"`
	Permissions []string     `json:"permissions,omitempty"`
}

// User maps the wire record. A record without any id gets a random one so
// callers always have a stable key for the lifetime of the session.
func (d *UserDTO) User() *User {
	if d == nil {
		return nil
	}

	id := d.ID
	if id == "" {
		id = d.LegacyID
	}
	if id == "" {
		id = uuid.NewString()
	}

	name := d.Name
	if name == "" && d.Fullname != nil {
		name = strings.TrimSpace(d.Fullname.First + " " + d.Fullname.Last)
	}

	return &User{
		ID:          id,
		Email:       d.Email,
		Name:        name,
		TenantID:    d.TenantID,
		Roles:       append([]string{}, d.Roles...),
		Permissions: append([]string{}, d.Permissions...),
	}
}

// Envelope is the response shape shared by every auth endpoint.
type Envelope struct {
	Message      string   `json:"message,omitempty"`
	User         *UserDTO `json:"user,omitempty"`
	OTPCode      string   `json:"otpCode,omitempty"`
	RememberMe   *bool    `json:"rememberMe,omitempty"`
	AccessToken  string   `json:"accessToken,omitempty"`
	RefreshToken string   `json:"refreshToken,omitempty"`
	Token        string   `json:"token,omitempty"`
}

// ============================================================================
// Request Bodies
// ============================================================================

// RequestBody is implemented only by the request types in this package, so
// every wire body is one of a fixed set of shapes.
type RequestBody interface {
	requestBody()
}

type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
	TenantID   string `json:"tenantId,omitempty"`
}

type OTPRequest struct {
	Identifier string `json:"identifier"`
	OTP        string `json:"otp"`
}

type RegisterRequest struct {
	Email       string       `json:"email"`
	Password    string       `json:"password"`
	Name        string       `json:"name,omitempty"`
	Fullname    *FullnameDTO `json:"fullname,omitempty"`
	Username    string       `json:"username,omitempty"`
	PhoneNumber string       `json:"phoneNumber,omitempty"`
	TenantID    string       `json:"tenantId,omitempty"`
	Roles       []string     `json:"roles,omitempty"`
}

type PasswordResetRequest struct {
	Email string `json:"email"`
	// Type is the account kind; the backend defaults to "client".
	Type string `json:"type,omitempty"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type InviteRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	TenantID string `json:"tenantId"`
}

type socialLoginRequest struct {
	Provider    Provider `json:"provider"`
	IDToken     string   `json:"idToken,omitempty"`
	AccessToken string   `json:"accessToken,omitempty"`
}

func (LoginRequest) requestBody()         {}
func (OTPRequest) requestBody()           {}
func (RegisterRequest) requestBody()      {}
func (PasswordResetRequest) requestBody() {}
func (ResetPasswordRequest) requestBody() {}
func (RefreshRequest) requestBody()       {}
func (InviteRequest) requestBody()        {}
func (socialLoginRequest) requestBody()   {}
