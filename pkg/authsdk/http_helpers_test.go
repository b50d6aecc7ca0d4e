package authsdk

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/aussiebroadwan/authsession/pkg/httpx/httpxtest"
	"github.com/stretchr/testify/require"
)

func TestNewHTTPSender(t *testing.T) {
	t.Parallel()

	for _, base := range []string{"", "not a url", "/relative/only", "auth.example.com"} {
		_, err := NewHTTPSender(SenderConfig{BaseURL: base})
		require.ErrorIs(t, err, ErrInvalidConfiguration, base)
	}

	sender, err := NewHTTPSender(SenderConfig{BaseURL: "https://auth.example.com/"})
	require.NoError(t, err)
	require.Equal(t, "https://auth.example.com/", sender.BaseURL().String())
	require.Equal(t, "/api/auth/login", sender.BaseURL().JoinPath(PathLogin).Path)
}

func TestHTTPSenderSend(t *testing.T) {
	t.Parallel()

	fb := newFakeBackend(t)
	fb.handle("/ok", func(w http.ResponseWriter, r *http.Request) {
		httpxtest.WriteJSON(w, http.StatusOK, map[string]string{"message": "hello"})
	})
	fb.handle("/empty", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	fb.handle("/unauthorized", func(w http.ResponseWriter, r *http.Request) {
		httpxtest.WriteJSON(w, http.StatusUnauthorized, map[string]string{"message": "bad password"})
	})
	fb.handle("/teapot", func(w http.ResponseWriter, r *http.Request) {
		httpxtest.WriteJSON(w, http.StatusTeapot, map[string]string{"error": "short and stout"})
	})
	fb.handle("/plain", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	})
	fb.handle("/garbage", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("<html>"))
	})
	fb.handle("/slow", func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	sender := newTestSender(t, fb.URL)
	ctx := context.Background()

	t.Run("decodes 2xx", func(t *testing.T) {
		var env Envelope
		require.NoError(t, sender.Send(ctx, Request{Method: http.MethodGet, Path: "/ok"}, &env))
		require.Equal(t, "hello", env.Message)
	})

	t.Run("empty body leaves out untouched", func(t *testing.T) {
		env := Envelope{Message: "untouched"}
		require.NoError(t, sender.Send(ctx, Request{Method: http.MethodPost, Path: "/empty"}, &env))
		require.Equal(t, "untouched", env.Message)
	})

	t.Run("401 is unauthorized", func(t *testing.T) {
		err := sender.Send(ctx, Request{Method: http.MethodPost, Path: "/unauthorized"}, nil)
		require.ErrorIs(t, err, ErrUnauthorized)
		require.Contains(t, err.Error(), "bad password")
	})

	t.Run("other statuses are server errors", func(t *testing.T) {
		var serverErr *ServerError

		err := sender.Send(ctx, Request{Method: http.MethodGet, Path: "/teapot"}, nil)
		require.ErrorAs(t, err, &serverErr)
		require.Equal(t, http.StatusTeapot, serverErr.StatusCode)
		require.Equal(t, "short and stout", serverErr.Message)

		err = sender.Send(ctx, Request{Method: http.MethodGet, Path: "/plain"}, nil)
		require.ErrorAs(t, err, &serverErr)
		require.Equal(t, "upstream exploded", serverErr.Message)

		err = sender.Send(ctx, Request{Method: http.MethodGet, Path: "/missing"}, nil)
		require.ErrorAs(t, err, &serverErr)
		require.Equal(t, http.StatusNotFound, serverErr.StatusCode)
	})

	t.Run("undecodable body is a decoding error", func(t *testing.T) {
		var env Envelope
		var decErr *DecodingError
		require.ErrorAs(t, sender.Send(ctx, Request{Method: http.MethodGet, Path: "/garbage"}, &env), &decErr)
	})

	t.Run("cancellation is a network error", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()

		err := sender.Send(ctx, Request{Method: http.MethodGet, Path: "/slow"}, nil)
		var netErr *NetworkError
		require.ErrorAs(t, err, &netErr)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("sends json body, query and headers", func(t *testing.T) {
		req := Request{
			Method: http.MethodPost,
			Path:   "/ok",
			Header: bearer("tok"),
			Body:   OTPRequest{Identifier: "a@b.com", OTP: "123456"},
		}
		require.NoError(t, sender.Send(ctx, req, nil))

		got := fb.last(t)
		require.Equal(t, "application/json", got.Header.Get("Content-Type"))
		require.Equal(t, "Bearer tok", got.Header.Get("Authorization"))
		require.NotEmpty(t, got.Header.Get("X-Request-ID"))
		require.Equal(t, map[string]any{"identifier": "a@b.com", "otp": "123456"}, got.Body)
	})
}

func TestHTTPSenderNetworkFailure(t *testing.T) {
	t.Parallel()

	fb := newFakeBackend(t)
	sender := newTestSender(t, fb.URL)
	fb.Close()

	err := sender.Send(context.Background(), Request{Method: http.MethodGet, Path: "/ok"}, nil)
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	require.False(t, errors.Is(err, ErrUnauthorized))
}

func TestHTTPSenderKeepsBasePath(t *testing.T) {
	t.Parallel()

	fb := newFakeBackend(t)
	fb.handle("/gateway/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	sender := newTestSender(t, fb.URL+"/gateway")
	require.NoError(t, sender.Send(context.Background(), Request{Method: http.MethodPost, Path: PathLogin}, nil))
	require.Equal(t, "/gateway/api/auth/login", fb.last(t).Path)
}

func TestHTTPSenderCookieJar(t *testing.T) {
	t.Parallel()

	fb := newFakeBackend(t)
	fb.handle("/set", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "refresh", Value: "cookie-rt", Path: "/", HttpOnly: true})
		w.WriteHeader(http.StatusNoContent)
	})
	fb.handle("/echo", func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie("refresh")
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		httpxtest.WriteJSON(w, http.StatusOK, map[string]string{"message": c.Value})
	})

	sender := newTestSender(t, fb.URL)
	ctx := context.Background()

	require.NoError(t, sender.Send(ctx, Request{Method: http.MethodPost, Path: "/set"}, nil))

	var env Envelope
	require.NoError(t, sender.Send(ctx, Request{Method: http.MethodPost, Path: "/echo"}, &env))
	require.Equal(t, "cookie-rt", env.Message)
}
