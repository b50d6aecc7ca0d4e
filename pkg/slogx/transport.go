package slogx

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/authsession/pkg/idx"
)

// Transport is an http.RoundTripper that stamps outbound requests with an
// X-Request-ID and logs each round trip. The logger from the request context
// wins over Base so flow-scoped attributes carry through.
type Transport struct {
	Next http.RoundTripper
	Base *slog.Logger
}

// NewTransport wraps next (http.DefaultTransport when nil).
func NewTransport(next http.RoundTripper, base *slog.Logger) *Transport {
	if next == nil {
		next = http.DefaultTransport
	}
	if base == nil {
		base = slog.Default()
	}
	return &Transport{Next: next, Base: base}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	reqID := req.Header.Get("X-Request-ID")
	if reqID == "" {
		reqID = idx.New().String()

		// RoundTrippers must not mutate the caller's request
		req = req.Clone(req.Context())
		req.Header.Set("X-Request-ID", reqID)
	}

	logger := t.Base
	if l, ok := req.Context().Value(ctxKey{}).(*slog.Logger); ok {
		logger = l
	}
	logger = logger.With(
		"req_id", reqID,
		"method", req.Method,
		"path", req.URL.Path,
	)

	resp, err := t.Next.RoundTrip(req)
	duration := time.Since(start).Milliseconds()
	if err != nil {
		logger.Warn("http_client_request", "error", err, "duration_ms", duration)
		return nil, err
	}

	logger.Debug("http_client_request",
		"status", resp.StatusCode,
		"duration_ms", duration,
	)
	return resp, nil
}
