package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aussiebroadwan/authsession/pkg/credstore"
	"github.com/aussiebroadwan/authsession/pkg/slogx"
	"github.com/stretchr/testify/require"
)

func TestOpenStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	pair := credstore.TokenPair{Access: "AT", Refresh: "RT"}

	roundTrip := func(t *testing.T, store credstore.Store) {
		t.Helper()

		require.NoError(t, store.Save(ctx, pair))
		got, err := store.Load(ctx)
		require.NoError(t, err)
		require.Equal(t, &pair, got)
		require.NoError(t, store.Clear(ctx))
	}

	t.Run("memory", func(t *testing.T) {
		t.Parallel()

		store, closer, err := OpenStore(ctx, StorageConfig{Driver: DriverMemory}, slogx.Discard())
		require.NoError(t, err)
		require.Nil(t, closer)
		require.IsType(t, &credstore.MemoryStore{}, store)
		roundTrip(t, store)
	})

	t.Run("sealed sqlite", func(t *testing.T) {
		t.Parallel()

		cfg := StorageConfig{
			Driver:     DriverSQLite,
			Service:    "svc",
			Account:    "acct",
			SQLitePath: filepath.Join(t.TempDir(), "creds.db"),
			SealKey:    "0123456789abcdefghijklmnopqrstuvwxyzABCDEFG",
		}
		store, closer, err := OpenStore(ctx, cfg, slogx.Discard())
		require.NoError(t, err)
		require.NotNil(t, closer)
		t.Cleanup(func() { _ = closer.Close() })

		roundTrip(t, store)
	})

	t.Run("redis", func(t *testing.T) {
		t.Parallel()

		mr := miniredis.RunT(t)
		cfg := StorageConfig{
			Driver:      DriverRedis,
			Service:     "svc",
			Account:     "acct",
			RedisAddr:   mr.Addr(),
			RedisPrefix: "test",
		}
		store, closer, err := OpenStore(ctx, cfg, slogx.Discard())
		require.NoError(t, err)
		t.Cleanup(func() { _ = closer.Close() })

		require.NoError(t, store.Save(ctx, pair))
		require.True(t, mr.Exists("test:svc:acct"))
		roundTrip(t, store)
	})

	t.Run("kubesecret without a reachable config", func(t *testing.T) {
		t.Parallel()

		cfg := StorageConfig{
			Driver:     DriverKubeSecret,
			Service:    "svc",
			Account:    "acct",
			KubeConfig: filepath.Join(t.TempDir(), "missing-kubeconfig"),
		}
		_, _, err := OpenStore(ctx, cfg, slogx.Discard())
		require.Error(t, err)
	})

	t.Run("unknown driver", func(t *testing.T) {
		t.Parallel()

		_, _, err := OpenStore(ctx, StorageConfig{Driver: "etcd"}, slogx.Discard())
		require.Error(t, err)
	})
}
