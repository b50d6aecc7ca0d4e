// Package socialauth obtains provider credentials natively with the OAuth2
// authorization code flow and PKCE, for hosts that do not go through the
// backend's web sign-in.
package socialauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/aussiebroadwan/authsession/pkg/authsdk"
	"github.com/aussiebroadwan/authsession/pkg/cryptox"
	"github.com/aussiebroadwan/authsession/pkg/slogx"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// ProviderConfig holds the app registration for one provider.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string // empty for public clients
	RedirectURL  string
	Scopes       []string // provider defaults when empty

	// Tenant selects the Microsoft Entra tenant; "common" when empty.
	Tenant string
}

// Option customises an Exchanger.
type Option func(*Exchanger)

// WithEndpoint overrides the provider's OAuth2 endpoint.
func WithEndpoint(ep oauth2.Endpoint) Option {
	return func(e *Exchanger) { e.config.Endpoint = ep }
}

// WithLogger sets the logger used for token endpoint requests.
func WithLogger(l *slog.Logger) Option {
	return func(e *Exchanger) { e.logger = l }
}

// Exchanger runs the code flow for one provider.
type Exchanger struct {
	provider authsdk.Provider
	config   *oauth2.Config
	logger   *slog.Logger
	client   *http.Client
}

// NewExchanger builds an Exchanger for provider.
func NewExchanger(provider authsdk.Provider, cfg ProviderConfig, opts ...Option) (*Exchanger, error) {
	if cfg.ClientID == "" || cfg.RedirectURL == "" {
		return nil, fmt.Errorf("%w: %s client id and redirect URL are required", authsdk.ErrInvalidConfiguration, provider)
	}

	endpoint, scopes, err := providerDefaults(provider, cfg.Tenant)
	if err != nil {
		return nil, err
	}
	if len(cfg.Scopes) > 0 {
		scopes = cfg.Scopes
	}

	e := &Exchanger{
		provider: provider,
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint:     endpoint,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.client = &http.Client{Transport: slogx.NewTransport(nil, e.logger)}

	return e, nil
}

func providerDefaults(p authsdk.Provider, tenant string) (oauth2.Endpoint, []string, error) {
	switch p {
	case authsdk.ProviderGoogle:
		return endpoints.Google, []string{"openid", "email", "profile"}, nil
	case authsdk.ProviderMicrosoft:
		if tenant == "" {
			tenant = "common"
		}
		return endpoints.AzureAD(tenant), []string{"openid", "email", "profile", "offline_access"}, nil
	case authsdk.ProviderFacebook:
		return endpoints.Facebook, []string{"email", "public_profile"}, nil
	default:
		return oauth2.Endpoint{}, nil, fmt.Errorf("%w: unsupported provider %q", authsdk.ErrInvalidConfiguration, p)
	}
}

func (e *Exchanger) Provider() authsdk.Provider { return e.provider }

// NewState returns a random state value for AuthCodeURL.
func NewState() (string, error) {
	return cryptox.GenerateToken(cryptox.TokenSize128)
}

// NewVerifier returns a PKCE code verifier.
func NewVerifier() string {
	return oauth2.GenerateVerifier()
}

// AuthCodeURL returns the provider consent URL with an S256 challenge for
// verifier.
func (e *Exchanger) AuthCodeURL(state, verifier string) string {
	return e.config.AuthCodeURL(state,
		oauth2.S256ChallengeOption(verifier),
		oauth2.SetAuthURLParam("prompt", "select_account"),
	)
}

// ParseCallback extracts the authorization code from the redirect and
// checks state. A provider error or state mismatch is ErrUnauthorized.
func ParseCallback(callback *url.URL, wantState string) (string, error) {
	q := callback.Query()

	if e := q.Get("error"); e != "" {
		return "", fmt.Errorf("%w: provider returned %s: %s", authsdk.ErrUnauthorized, e, q.Get("error_description"))
	}
	if q.Get("state") != wantState {
		return "", fmt.Errorf("%w: state mismatch", authsdk.ErrUnauthorized)
	}

	code := q.Get("code")
	if code == "" {
		return "", fmt.Errorf("%w: callback has no authorization code", authsdk.ErrUnauthorized)
	}
	return code, nil
}

// Exchange redeems code and returns the credential to hand to the backend.
func (e *Exchanger) Exchange(ctx context.Context, code, verifier string) (authsdk.SocialCredential, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, e.client)

	tok, err := e.config.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return authsdk.SocialCredential{}, classify(err)
	}

	idToken, _ := tok.Extra("id_token").(string)
	if idToken == "" && tok.AccessToken == "" {
		return authsdk.SocialCredential{}, fmt.Errorf("%w: %s returned no token", authsdk.ErrUnauthorized, e.provider)
	}

	e.logger.Debug("provider credential obtained",
		"provider", e.provider.String(),
		"has_id_token", idToken != "",
	)

	return authsdk.SocialCredential{
		Provider:    e.provider,
		IDToken:     idToken,
		AccessToken: tok.AccessToken,
	}, nil
}

// classify maps token endpoint failures onto the authsdk taxonomy.
func classify(err error) error {
	var retrieve *oauth2.RetrieveError
	if errors.As(err, &retrieve) {
		status := 0
		if retrieve.Response != nil {
			status = retrieve.Response.StatusCode
		}

		switch {
		case retrieve.ErrorCode == "invalid_grant",
			status == http.StatusBadRequest,
			status == http.StatusUnauthorized:
			return fmt.Errorf("%w: %v", authsdk.ErrUnauthorized, err)
		default:
			return &authsdk.ServerError{StatusCode: status, Message: retrieve.ErrorDescription}
		}
	}

	return &authsdk.NetworkError{Err: err}
}
