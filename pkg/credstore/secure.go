package credstore

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aussiebroadwan/authsession/pkg/cryptox"
	"github.com/aussiebroadwan/authsession/pkg/slogx"
)

// Key identifies one stored item in a backend.
type Key struct {
	Service string
	Account string
}

func (k Key) String() string { return k.Service + "/" + k.Account }

// Backend is an opaque secure item store. Implementations translate their
// native failures into ErrDuplicateItem, ErrItemNotFound, ErrUnauthorized,
// ErrUnavailable or *UnknownError. Writes must replace the item atomically.
type Backend interface {
	// Add creates the item and fails with ErrDuplicateItem if it exists.
	Add(ctx context.Context, key Key, data []byte) error
	// Update replaces the item and fails with ErrItemNotFound if it is missing.
	Update(ctx context.Context, key Key, data []byte) error
	// Get fails with ErrItemNotFound if the item is missing.
	Get(ctx context.Context, key Key) ([]byte, error)
	// Delete fails with ErrItemNotFound if the item is missing.
	Delete(ctx context.Context, key Key) error
}

// SecureStore implements Store on top of a Backend with create-or-update
// semantics, optional sealing and corrupt-as-absent loading.
type SecureStore struct {
	backend Backend
	key     Key
	sealer  *cryptox.Sealer
	logger  *slog.Logger
}

var _ Store = (*SecureStore)(nil)

type Option func(*SecureStore)

// WithSealer encrypts records before they reach the backend.
func WithSealer(s *cryptox.Sealer) Option {
	return func(st *SecureStore) { st.sealer = s }
}

func WithLogger(l *slog.Logger) Option {
	return func(st *SecureStore) { st.logger = l }
}

func NewSecureStore(backend Backend, key Key, opts ...Option) *SecureStore {
	st := &SecureStore{
		backend: backend,
		key:     key,
		logger:  slogx.Discard(),
	}
	for _, opt := range opts {
		opt(st)
	}
	st.logger = st.logger.With("component", "credstore", "key", key.String())
	return st
}

// Save writes pair, updating the item when it already exists. A create that
// loses a race against an existing item is retried as an update, and an
// update that loses a race against a delete is retried once as a create.
func (s *SecureStore) Save(ctx context.Context, pair TokenPair) error {
	if err := pair.Validate(); err != nil {
		return err
	}

	data, err := encodeRecord(pair)
	if err != nil {
		return Unknown("encode", err)
	}

	if s.sealer != nil {
		data, err = s.sealer.Seal(data, []byte(s.key.String()))
		if err != nil {
			return Unknown("seal", err)
		}
	}

	err = s.backend.Add(ctx, s.key, data)
	if errors.Is(err, ErrDuplicateItem) {
		err = s.backend.Update(ctx, s.key, data)
		if errors.Is(err, ErrItemNotFound) {
			err = s.backend.Add(ctx, s.key, data)
		}
	}
	if err != nil {
		return classify("save", err)
	}

	s.logger.Debug("credentials saved",
		"access_fp", cryptox.FingerprintToken(pair.Access),
		"has_refresh", pair.Refresh != "",
	)
	return nil
}

// Load returns the stored pair, or nil when nothing usable is stored.
func (s *SecureStore) Load(ctx context.Context) (*TokenPair, error) {
	data, err := s.backend.Get(ctx, s.key)
	if errors.Is(err, ErrItemNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, classify("load", err)
	}

	if s.sealer != nil {
		data, err = s.sealer.Open(data, []byte(s.key.String()))
		if err != nil {
			s.logger.Warn("stored credentials could not be unsealed, treating as absent", "error", err)
			return nil, nil
		}
	}

	pair, ok := decodeRecord(data)
	if !ok {
		s.logger.Warn("stored credentials are unreadable, treating as absent")
		return nil, nil
	}
	return pair, nil
}

// Clear removes the stored pair. Clearing an empty store succeeds.
func (s *SecureStore) Clear(ctx context.Context) error {
	err := s.backend.Delete(ctx, s.key)
	if err != nil && !errors.Is(err, ErrItemNotFound) {
		return classify("clear", err)
	}
	return nil
}
