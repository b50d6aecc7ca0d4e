package socialauth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/aussiebroadwan/authsession/pkg/authsdk"
	"github.com/aussiebroadwan/authsession/pkg/httpx/httpxtest"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func tokenServer(t *testing.T, handler http.HandlerFunc) oauth2.Endpoint {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return oauth2.Endpoint{
		AuthURL:   srv.URL + "/authorize",
		TokenURL:  srv.URL + "/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
}

func testConfig() ProviderConfig {
	return ProviderConfig{
		ClientID:    "client-id",
		RedirectURL: "myapp://auth/callback",
	}
}

func TestNewExchanger(t *testing.T) {
	t.Parallel()

	t.Run("rejects missing client id", func(t *testing.T) {
		t.Parallel()

		_, err := NewExchanger(authsdk.ProviderGoogle, ProviderConfig{RedirectURL: "x://cb"})
		require.ErrorIs(t, err, authsdk.ErrInvalidConfiguration)
	})

	t.Run("rejects unknown provider", func(t *testing.T) {
		t.Parallel()

		_, err := NewExchanger(authsdk.Provider("myspace"), testConfig())
		require.ErrorIs(t, err, authsdk.ErrInvalidConfiguration)
	})

	t.Run("microsoft uses the tenant endpoint", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig()
		cfg.Tenant = "contoso"
		ex, err := NewExchanger(authsdk.ProviderMicrosoft, cfg)
		require.NoError(t, err)

		u, err := url.Parse(ex.AuthCodeURL("s", NewVerifier()))
		require.NoError(t, err)
		require.Equal(t, "/contoso/oauth2/v2.0/authorize", u.Path)
		require.Contains(t, u.Query().Get("scope"), "offline_access")
	})

	t.Run("custom scopes replace defaults", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig()
		cfg.Scopes = []string{"email"}
		ex, err := NewExchanger(authsdk.ProviderFacebook, cfg)
		require.NoError(t, err)
		require.Equal(t, authsdk.ProviderFacebook, ex.Provider())

		u, err := url.Parse(ex.AuthCodeURL("s", NewVerifier()))
		require.NoError(t, err)
		require.Equal(t, "email", u.Query().Get("scope"))
	})
}

func TestAuthCodeURL(t *testing.T) {
	t.Parallel()

	ex, err := NewExchanger(authsdk.ProviderGoogle, testConfig())
	require.NoError(t, err)

	state, err := NewState()
	require.NoError(t, err)

	u, err := url.Parse(ex.AuthCodeURL(state, NewVerifier()))
	require.NoError(t, err)

	q := u.Query()
	require.Equal(t, "accounts.google.com", u.Host)
	require.Equal(t, state, q.Get("state"))
	require.Equal(t, "client-id", q.Get("client_id"))
	require.Equal(t, "myapp://auth/callback", q.Get("redirect_uri"))
	require.Equal(t, "S256", q.Get("code_challenge_method"))
	require.NotEmpty(t, q.Get("code_challenge"))
	require.Equal(t, "select_account", q.Get("prompt"))
}

func TestParseCallback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		callback string
		wantCode string
		wantErr  bool
	}{
		{"code and matching state", "myapp://auth/callback?code=abc&state=s1", "abc", false},
		{"provider error", "myapp://auth/callback?error=access_denied&state=s1", "", true},
		{"state mismatch", "myapp://auth/callback?code=abc&state=other", "", true},
		{"missing code", "myapp://auth/callback?state=s1", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			u, err := url.Parse(tt.callback)
			require.NoError(t, err)

			code, err := ParseCallback(u, "s1")
			if tt.wantErr {
				require.ErrorIs(t, err, authsdk.ErrUnauthorized)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.wantCode, code)
		})
	}
}

func TestExchange(t *testing.T) {
	t.Parallel()

	t.Run("returns id token and access token", func(t *testing.T) {
		t.Parallel()

		verifier := NewVerifier()
		ep := tokenServer(t, func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			require.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
			require.Equal(t, "the-code", r.PostForm.Get("code"))
			require.Equal(t, verifier, r.PostForm.Get("code_verifier"))
			require.NotEmpty(t, r.Header.Get("X-Request-ID"))

			httpxtest.WriteJSON(w, http.StatusOK, map[string]any{
				"access_token": "provider-access",
				"token_type":   "Bearer",
				"id_token":     "provider-id-token",
				"expires_in":   3600,
			})
		})

		ex, err := NewExchanger(authsdk.ProviderGoogle, testConfig(), WithEndpoint(ep))
		require.NoError(t, err)

		cred, err := ex.Exchange(context.Background(), "the-code", verifier)
		require.NoError(t, err)
		require.Equal(t, authsdk.SocialCredential{
			Provider:    authsdk.ProviderGoogle,
			IDToken:     "provider-id-token",
			AccessToken: "provider-access",
		}, cred)
	})

	t.Run("invalid grant is unauthorized", func(t *testing.T) {
		t.Parallel()

		ep := tokenServer(t, func(w http.ResponseWriter, r *http.Request) {
			httpxtest.WriteJSON(w, http.StatusBadRequest, map[string]string{
				"error":             "invalid_grant",
				"error_description": "code expired",
			})
		})

		ex, err := NewExchanger(authsdk.ProviderGoogle, testConfig(), WithEndpoint(ep))
		require.NoError(t, err)

		_, err = ex.Exchange(context.Background(), "stale", NewVerifier())
		require.ErrorIs(t, err, authsdk.ErrUnauthorized)
	})

	t.Run("provider outage is a server error", func(t *testing.T) {
		t.Parallel()

		ep := tokenServer(t, func(w http.ResponseWriter, r *http.Request) {
			httpxtest.WriteJSON(w, http.StatusBadGateway, map[string]string{"error": "upstream"})
		})

		ex, err := NewExchanger(authsdk.ProviderGoogle, testConfig(), WithEndpoint(ep))
		require.NoError(t, err)

		_, err = ex.Exchange(context.Background(), "code", NewVerifier())
		var serverErr *authsdk.ServerError
		require.True(t, errors.As(err, &serverErr))
		require.Equal(t, http.StatusBadGateway, serverErr.StatusCode)
	})

	t.Run("unreachable endpoint is a network error", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.NotFoundHandler())
		ep := oauth2.Endpoint{TokenURL: srv.URL + "/token", AuthStyle: oauth2.AuthStyleInParams}
		srv.Close()

		ex, err := NewExchanger(authsdk.ProviderGoogle, testConfig(), WithEndpoint(ep))
		require.NoError(t, err)

		_, err = ex.Exchange(context.Background(), "code", NewVerifier())
		var netErr *authsdk.NetworkError
		require.True(t, errors.As(err, &netErr))
	})
}
