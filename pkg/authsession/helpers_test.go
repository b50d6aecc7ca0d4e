package authsession_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/authsession/pkg/authsdk"
	"github.com/aussiebroadwan/authsession/pkg/authsession"
	"github.com/aussiebroadwan/authsession/pkg/credstore"
	"github.com/aussiebroadwan/authsession/pkg/slogx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func mintToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

// userToken mints an access token for sub that expires after ttl.
func userToken(t *testing.T, sub string, ttl time.Duration) string {
	t.Helper()

	return mintToken(t, jwt.MapClaims{
		"sub":      sub,
		"email":    sub + "@example.com",
		"tenantId": "t1",
		"roles":    []string{"member"},
		"exp":      time.Now().Add(ttl).Unix(),
	})
}

// backend is a fake auth backend counting requests per route.
type backend struct {
	*httptest.Server

	mux    *http.ServeMux
	mu     sync.Mutex
	counts map[string]int
}

func newBackend(t *testing.T) *backend {
	t.Helper()

	b := &backend{mux: http.NewServeMux(), counts: map[string]int{}}
	b.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.counts[r.Method+" "+r.URL.Path]++
		b.mu.Unlock()
		b.mux.ServeHTTP(w, r)
	}))
	t.Cleanup(b.Close)
	return b
}

func (b *backend) handle(pattern string, h http.HandlerFunc) {
	b.mux.HandleFunc(pattern, h)
}

func (b *backend) calls(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts[route]
}

func (b *backend) total() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.counts {
		n += c
	}
	return n
}

type harness struct {
	backend *backend
	store   credstore.Store
	client  *authsdk.SDKClient
}

func newHarness(t *testing.T, store credstore.Store, mode authsdk.RefreshMode) *harness {
	t.Helper()

	b := newBackend(t)
	sender, err := authsdk.NewHTTPSender(authsdk.SenderConfig{
		BaseURL: b.URL,
		Timeout: 5 * time.Second,
		Logger:  slogx.Discard(),
	})
	require.NoError(t, err)

	if store == nil {
		store = credstore.NewMemoryStore()
	}
	return &harness{
		backend: b,
		store:   store,
		client:  authsdk.NewSDKClient(sender, store, authsdk.Config{RefreshMode: mode, Logger: slogx.Discard()}),
	}
}

func (h *harness) manager(web authsession.WebSignIn, providers ...authsdk.Provider) *authsession.Manager {
	enabled := map[authsdk.Provider]bool{}
	for _, p := range providers {
		enabled[p] = true
	}
	return authsession.New(h.client, web, authsession.Config{
		Providers: enabled,
		Logger:    slogx.Discard(),
	})
}

func (h *harness) stored(t *testing.T) *credstore.TokenPair {
	t.Helper()

	pair, err := h.store.Load(context.Background())
	require.NoError(t, err)
	return pair
}

// fakeWeb stands in for the web bridge.
type fakeWeb struct {
	pair  credstore.TokenPair
	err   error
	calls atomic.Int32
}

func (f *fakeWeb) SignIn(context.Context, authsdk.Provider) (credstore.TokenPair, error) {
	f.calls.Add(1)
	return f.pair, f.err
}

// flakyStore fails the configured operations and otherwise keeps the pair
// in memory.
type flakyStore struct {
	*credstore.MemoryStore
	saveErr  error
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

func (s *flakyStore) Clear(ctx context.Context) error {
	if s.clearErr != nil {
		return s.clearErr
	}
	return s.MemoryStore.Clear(ctx)
}

var errStoreDown = errors.Join(credstore.ErrUnavailable, errors.New("keychain locked"))
