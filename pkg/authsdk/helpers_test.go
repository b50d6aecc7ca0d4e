package authsdk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/authsession/pkg/credstore"
	"github.com/aussiebroadwan/authsession/pkg/slogx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

// mintToken signs a token carrying claims; the signature is never checked
// by this package, it only needs a well-formed payload.
func mintToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

// recorded is one request seen by the fake backend.
type recorded struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   map[string]any
}

// fakeBackend is an httptest server with per-path handlers that records
// every request.
type fakeBackend struct {
	*httptest.Server

	mu       sync.Mutex
	requests []recorded
	mux      *http.ServeMux
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()

	fb := &fakeBackend{mux: http.NewServeMux()}
	fb.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Header: r.Header.Clone()}
		_ = json.NewDecoder(r.Body).Decode(&rec.Body)

		fb.mu.Lock()
		fb.requests = append(fb.requests, rec)
		fb.mu.Unlock()

		fb.mux.ServeHTTP(w, r)
	}))
	t.Cleanup(fb.Close)
	return fb
}

func (fb *fakeBackend) handle(pattern string, h http.HandlerFunc) {
	fb.mux.HandleFunc(pattern, h)
}

func (fb *fakeBackend) last(t *testing.T) recorded {
	t.Helper()

	fb.mu.Lock()
	defer fb.mu.Unlock()
	require.NotEmpty(t, fb.requests)
	return fb.requests[len(fb.requests)-1]
}

func (fb *fakeBackend) count() int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return len(fb.requests)
}

func newTestSender(t *testing.T, baseURL string) *HTTPSender {
	t.Helper()

	sender, err := NewHTTPSender(SenderConfig{
		BaseURL: baseURL,
		Timeout: 5 * time.Second,
		Logger:  slogx.Discard(),
	})
	require.NoError(t, err)
	return sender
}

func newTestClient(t *testing.T, fb *fakeBackend, store credstore.Store, mode RefreshMode) *SDKClient {
	t.Helper()

	return NewSDKClient(newTestSender(t, fb.URL), store, Config{RefreshMode: mode, Logger: slogx.Discard()})
}

// flakyStore fails the configured operations and otherwise behaves like a
// MemoryStore.
type flakyStore struct {
	*credstore.MemoryStore
	saveErr  error
	loadErr  error
	clearErr error
}

func newFlakyStore() *flakyStore {
	return &flakyStore{MemoryStore: credstore.NewMemoryStore()}
}

func (s *flakyStore) Save(ctx context.Context, p credstore.TokenPair) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	return s.MemoryStore.Save(ctx, p)
}

func (s *flakyStore) Load(ctx context.Context) (*credstore.TokenPair, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.MemoryStore.Load(ctx)
}

func (s *flakyStore) Clear(ctx context.Context) error {
	if s.clearErr != nil {
		return s.clearErr
	}
	return s.MemoryStore.Clear(ctx)
}

var errStoreDown = errors.Join(credstore.ErrUnavailable, errors.New("keychain locked"))

func loadPair(t *testing.T, store credstore.Store) *credstore.TokenPair {
	t.Helper()

	pair, err := store.Load(context.Background())
	require.NoError(t, err)
	return pair
}
