package credstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// TokenPair is the credential persisted between launches.
type TokenPair struct {
	Access  string
	Refresh string     // empty when the backend keeps the refresh token in a cookie
	Expiry  *time.Time // nil when unknown
}

// ErrEmptyAccessToken is returned by Save for a pair without an access token.
var ErrEmptyAccessToken = errors.New("credstore: access token must not be empty")

// Validate checks the invariant that a stored pair always has an access token.
func (p TokenPair) Validate() error {
	if p.Access == "" {
		return ErrEmptyAccessToken
	}
	return nil
}

// ValidAt reports whether the pair has a known expiry later than now+skew.
func (p TokenPair) ValidAt(now time.Time, skew time.Duration) bool {
	return p.Expiry != nil && now.Add(skew).Before(*p.Expiry)
}

// Store persists a single TokenPair.
//
// Load returns (nil, nil) when nothing usable is stored; corrupt records are
// treated as absent. Clear is idempotent.
type Store interface {
	Save(ctx context.Context, pair TokenPair) error
	Load(ctx context.Context) (*TokenPair, error)
	Clear(ctx context.Context) error
}

// record is the serialized form. Expiry is whole seconds since the epoch.
type record struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	Expiry       *int64 `json:"expiry,omitempty"`
}

func encodeRecord(p TokenPair) ([]byte, error) {
	rec := record{AccessToken: p.Access, RefreshToken: p.Refresh}
	if p.Expiry != nil {
		sec := p.Expiry.Unix()
		rec.Expiry = &sec
	}
	return json.Marshal(rec)
}

// decodeRecord returns false for anything that is not a usable record.
func decodeRecord(data []byte) (*TokenPair, bool) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, false
	}
	if rec.AccessToken == "" {
		return nil, false
	}

	pair := &TokenPair{Access: rec.AccessToken, Refresh: rec.RefreshToken}
	if rec.Expiry != nil {
		exp := time.Unix(*rec.Expiry, 0)
		pair.Expiry = &exp
	}
	return pair, true
}

// clone deep-copies p so callers never share the Expiry pointer with a store.
func (p TokenPair) clone() TokenPair {
	if p.Expiry != nil {
		exp := *p.Expiry
		p.Expiry = &exp
	}
	return p
}
