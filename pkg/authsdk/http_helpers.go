package authsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/aussiebroadwan/authsession/pkg/httpx"
	"github.com/aussiebroadwan/authsession/pkg/slogx"
	"golang.org/x/net/publicsuffix"
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 1 << 20

// Request is one call to the auth backend.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   RequestBody // nil sends no body
}

// RequestSender performs a Request and decodes a 2xx JSON response into out.
//
// Implementations report HTTP 401 as ErrUnauthorized, other non-2xx
// responses as *ServerError, undecodable bodies as *DecodingError and
// transport failures as *NetworkError. They never retry.
type RequestSender interface {
	Send(ctx context.Context, req Request, out any) error
}

// SenderConfig configures an HTTPSender.
type SenderConfig struct {
	BaseURL   string
	Timeout   time.Duration         // zero means 10s
	RateLimit httpx.RateLimitConfig // zero value disables limiting
	Logger    *slog.Logger

	// Transport is the innermost round tripper; http.DefaultTransport when nil.
	Transport http.RoundTripper
}

// HTTPSender is the net/http RequestSender. It keeps a cookie jar so
// cookie-mode refresh works across calls.
type HTTPSender struct {
	baseURL *url.URL
	client  *http.Client
}

var _ RequestSender = (*HTTPSender)(nil)

// NewHTTPSender validates the base URL and builds the client stack:
// rate limit, then request logging, then the transport.
func NewHTTPSender(cfg SenderConfig) (*HTTPSender, error) {
	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: base URL %q", ErrInvalidConfiguration, cfg.BaseURL)
	}
	if base.Path == "" {
		base.Path = "/"
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	transport := slogx.NewTransport(cfg.Transport, cfg.Logger)

	return &HTTPSender{
		baseURL: base,
		client: &http.Client{
			Timeout:   timeout,
			Jar:       jar,
			Transport: httpx.NewRateLimitTransport(transport, cfg.RateLimit, nil),
		},
	}, nil
}

// BaseURL returns a copy of the configured base URL.
func (s *HTTPSender) BaseURL() *url.URL {
	u := *s.baseURL
	return &u
}

// Send implements RequestSender.
func (s *HTTPSender) Send(ctx context.Context, r Request, out any) error {
	u := s.baseURL.JoinPath(r.Path)
	if len(r.Query) > 0 {
		u.RawQuery = r.Query.Encode()
	}

	var body io.Reader
	if r.Body != nil {
		payload, err := json.Marshal(r.Body)
		if err != nil {
			return fmt.Errorf("%w: encoding request: %v", ErrUnknown, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, u.String(), body)
	if err != nil {
		return fmt.Errorf("%w: building request: %v", ErrInvalidConfiguration, err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for key, values := range r.Header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &NetworkError{Err: err}
	}

	if err := statusError(resp.StatusCode, payload); err != nil {
		return err
	}

	return decodeJSON(payload, out)
}

// statusError maps a response status onto the error taxonomy. It returns
// nil for 2xx.
func statusError(status int, body []byte) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized:
		if msg := errorMessage(body); msg != "" {
			return fmt.Errorf("%w: %s", ErrUnauthorized, msg)
		}
		return ErrUnauthorized
	default:
		return &ServerError{StatusCode: status, Message: errorMessage(body)}
	}
}

// errorMessage prefers the JSON "message" or "error" field and falls back to
// the raw body text.
func errorMessage(body []byte) string {
	var fields struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &fields); err == nil {
		if fields.Message != "" {
			return fields.Message
		}
		if fields.Error != "" {
			return fields.Error
		}
	}
	return strings.TrimSpace(string(body))
}

// decodeJSON decodes a 2xx body. An empty body leaves out untouched.
func decodeJSON(body []byte, out any) error {
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &DecodingError{Err: err}
	}
	return nil
}

// bearer returns an Authorization header for token.
func bearer(token string) http.Header {
	h := make(http.Header, 1)
	h.Set("Authorization", "Bearer "+token)
	return h
}
