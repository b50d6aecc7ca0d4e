package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aussiebroadwan/authsession/pkg/credstore"
	"github.com/aussiebroadwan/authsession/pkg/credstore/keyring"
	"github.com/aussiebroadwan/authsession/pkg/credstore/kubesecret"
	"github.com/aussiebroadwan/authsession/pkg/credstore/redis"
	"github.com/aussiebroadwan/authsession/pkg/credstore/sqlite"
	"github.com/aussiebroadwan/authsession/pkg/cryptox"
)

// OpenStore opens the credential store for cfg.Driver. The closer is nil
// for drivers without a connection.
func OpenStore(ctx context.Context, cfg StorageConfig, logger *slog.Logger) (credstore.Store, io.Closer, error) {
	if cfg.Driver == DriverMemory {
		logger.Warn("memory credential store selected, sessions end with the process")
		return credstore.NewMemoryStore(), nil, nil
	}

	var (
		backend credstore.Backend
		closer  io.Closer
	)

	switch cfg.Driver {
	case DriverKeyring:
		backend = keyring.New()

	case DriverSQLite:
		b, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		backend, closer = b, b
		logger.Info("sqlite credential store opened", "path", cfg.SQLitePath)

	case DriverRedis:
		b, err := redis.Dial(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisPrefix)
		if err != nil {
			return nil, nil, err
		}
		backend, closer = b, b
		logger.Info("redis credential store connected", "addr", cfg.RedisAddr)

	case DriverKubeSecret:
		b, err := kubesecret.NewFromConfig(cfg.KubeConfig, cfg.KubeNamespace)
		if err != nil {
			return nil, nil, err
		}
		backend = b

	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}

	opts := []credstore.Option{credstore.WithLogger(logger)}

	material, err := cfg.SealKeyMaterial()
	if err != nil {
		closeQuietly(closer)
		return nil, nil, err
	}
	if material != nil {
		sealer, err := cryptox.NewSealer(material)
		if err != nil {
			closeQuietly(closer)
			return nil, nil, err
		}
		opts = append(opts, credstore.WithSealer(sealer))
	}

	key := credstore.Key{Service: cfg.Service, Account: cfg.Account}
	return credstore.NewSecureStore(backend, key, opts...), closer, nil
}

func closeQuietly(c io.Closer) {
	if c != nil {
		_ = c.Close()
	}
}
