// Package credstoretest holds a conformance suite every credstore.Backend
// must pass.
package credstoretest

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/authsession/pkg/credstore"
	"github.com/stretchr/testify/require"
)

// RunBackendSuite exercises the Backend contract and the SecureStore
// behaviour on top of it. newBackend must return an empty backend.
func RunBackendSuite(t *testing.T, newBackend func(t *testing.T) credstore.Backend) {
	t.Helper()

	key := credstore.Key{Service: "authsession-test", Account: "default"}

	t.Run("add get update delete", func(t *testing.T) {
		ctx := context.Background()
		b := newBackend(t)

		_, err := b.Get(ctx, key)
		require.ErrorIs(t, err, credstore.ErrItemNotFound)

		require.ErrorIs(t, b.Update(ctx, key, []byte("x")), credstore.ErrItemNotFound)
		require.ErrorIs(t, b.Delete(ctx, key), credstore.ErrItemNotFound)

		require.NoError(t, b.Add(ctx, key, []byte("first")))
		require.ErrorIs(t, b.Add(ctx, key, []byte("second")), credstore.ErrDuplicateItem)

		got, err := b.Get(ctx, key)
		require.NoError(t, err)
		require.Equal(t, []byte("first"), got)

		require.NoError(t, b.Update(ctx, key, []byte("second")))
		got, err = b.Get(ctx, key)
		require.NoError(t, err)
		require.Equal(t, []byte("second"), got)

		require.NoError(t, b.Delete(ctx, key))
		_, err = b.Get(ctx, key)
		require.ErrorIs(t, err, credstore.ErrItemNotFound)
	})

	t.Run("keys are isolated", func(t *testing.T) {
		ctx := context.Background()
		b := newBackend(t)
		other := credstore.Key{Service: key.Service, Account: "other"}

		require.NoError(t, b.Add(ctx, key, []byte("mine")))
		require.NoError(t, b.Add(ctx, other, []byte("theirs")))

		got, err := b.Get(ctx, other)
		require.NoError(t, err)
		require.Equal(t, []byte("theirs"), got)
	})

	t.Run("binary safe", func(t *testing.T) {
		ctx := context.Background()
		b := newBackend(t)
		blob := []byte{0x00, 0xff, 0x10, '\n', 0x80}

		require.NoError(t, b.Add(ctx, key, blob))
		got, err := b.Get(ctx, key)
		require.NoError(t, err)
		require.Equal(t, blob, got)
	})

	t.Run("secure store round trip", func(t *testing.T) {
		ctx := context.Background()
		store := credstore.NewSecureStore(newBackend(t), key)

		exp := time.Unix(1900000000, 0)
		require.NoError(t, store.Save(ctx, credstore.TokenPair{Access: "a1", Refresh: "r1", Expiry: &exp}))
		require.NoError(t, store.Save(ctx, credstore.TokenPair{Access: "a2"}))

		got, err := store.Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, got)
		require.Equal(t, "a2", got.Access)
		require.Empty(t, got.Refresh)
		require.Nil(t, got.Expiry)

		require.NoError(t, store.Clear(ctx))
		require.NoError(t, store.Clear(ctx))

		got, err = store.Load(ctx)
		require.NoError(t, err)
		require.Nil(t, got)
	})
}
