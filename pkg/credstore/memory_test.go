package credstore_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/authsession/pkg/credstore"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("round trip preserves expiry", func(t *testing.T) {
		store := credstore.NewMemoryStore()
		exp := time.Unix(1900000000, 123)

		require.NoError(t, store.Save(ctx, credstore.TokenPair{Access: "at", Refresh: "rt", Expiry: &exp}))

		got, err := store.Load(ctx)
		require.NoError(t, err)
		require.Equal(t, "at", got.Access)
		require.Equal(t, "rt", got.Refresh)
		require.True(t, exp.Equal(*got.Expiry))
	})

	t.Run("copies are isolated", func(t *testing.T) {
		store := credstore.NewMemoryStore()
		exp := time.Unix(100, 0)
		require.NoError(t, store.Save(ctx, credstore.TokenPair{Access: "at", Expiry: &exp}))

		exp = time.Unix(200, 0)
		got, err := store.Load(ctx)
		require.NoError(t, err)
		require.Equal(t, int64(100), got.Expiry.Unix())

		*got.Expiry = time.Unix(300, 0)
		again, err := store.Load(ctx)
		require.NoError(t, err)
		require.Equal(t, int64(100), again.Expiry.Unix())
	})

	t.Run("clear is idempotent", func(t *testing.T) {
		store := credstore.NewMemoryStore()
		require.NoError(t, store.Clear(ctx))
		require.NoError(t, store.Save(ctx, credstore.TokenPair{Access: "at"}))
		require.NoError(t, store.Clear(ctx))
		require.NoError(t, store.Clear(ctx))

		got, err := store.Load(ctx)
		require.NoError(t, err)
		require.Nil(t, got)
	})

	t.Run("rejects empty access", func(t *testing.T) {
		store := credstore.NewMemoryStore()
		require.ErrorIs(t, store.Save(ctx, credstore.TokenPair{}), credstore.ErrEmptyAccessToken)
	})

	t.Run("concurrent use", func(t *testing.T) {
		store := credstore.NewMemoryStore()

		var wg sync.WaitGroup
		for range 8 {
			wg.Add(2)
			go func() {
				defer wg.Done()
				_ = store.Save(ctx, credstore.TokenPair{Access: "at"})
			}()
			go func() {
				defer wg.Done()
				_, _ = store.Load(ctx)
			}()
		}
		wg.Wait()
	})
}
