// Package keyring stores credentials in the operating system's secure
// storage: Keychain on macOS, the Secret Service on Linux and the Credential
// Manager on Windows.
package keyring

import (
	"context"
	"encoding/base64"
	"errors"

	"github.com/aussiebroadwan/authsession/pkg/credstore"
	"github.com/zalando/go-keyring"
)

// Backend implements credstore.Backend with go-keyring. The OS APIs only
// offer set semantics, so Add and Update check for existence first; the
// platform serializes access to a single item.
type Backend struct{}

var _ credstore.Backend = Backend{}

func New() Backend { return Backend{} }

func (Backend) Add(_ context.Context, key credstore.Key, data []byte) error {
	if _, err := keyring.Get(key.Service, key.Account); err == nil {
		return credstore.ErrDuplicateItem
	} else if !errors.Is(err, keyring.ErrNotFound) {
		return mapError(err)
	}

	return mapError(keyring.Set(key.Service, key.Account, encode(data)))
}

func (Backend) Update(_ context.Context, key credstore.Key, data []byte) error {
	if _, err := keyring.Get(key.Service, key.Account); err != nil {
		return mapError(err)
	}

	return mapError(keyring.Set(key.Service, key.Account, encode(data)))
}

func (Backend) Get(_ context.Context, key credstore.Key) ([]byte, error) {
	secret, err := keyring.Get(key.Service, key.Account)
	if err != nil {
		return nil, mapError(err)
	}

	data, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		// Written by something else; hand it over and let the record decoder decide
		return []byte(secret), nil
	}
	return data, nil
}

func (Backend) Delete(_ context.Context, key credstore.Key) error {
	return mapError(keyring.Delete(key.Service, key.Account))
}

// Values are stored as text, sealed records are binary.
func encode(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, keyring.ErrNotFound):
		return credstore.ErrItemNotFound
	case errors.Is(err, keyring.ErrUnsupportedPlatform):
		return errors.Join(credstore.ErrUnavailable, err)
	case errors.Is(err, keyring.ErrSetDataTooBig):
		return credstore.Unknown("data_too_big", err)
	default:
		return credstore.Unknown("keyring", err)
	}
}
