// Package redis stores credentials in Redis so several processes on
// different hosts can share one session.
package redis

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/aussiebroadwan/authsession/pkg/credstore"
	goredis "github.com/redis/go-redis/v9"
)

const DefaultPrefix = "authsession"

type Backend struct {
	client goredis.UniversalClient
	prefix string
}

var _ credstore.Backend = (*Backend)(nil)

// New wraps an existing client. An empty prefix uses DefaultPrefix.
func New(client goredis.UniversalClient, prefix string) *Backend {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Backend{client: client, prefix: prefix}
}

// Dial connects to addr and pings it once.
func Dial(ctx context.Context, addr, password string, db int, prefix string) (*Backend, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, mapError(err)
	}

	return New(client, prefix), nil
}

func (b *Backend) Close() error { return b.client.Close() }

func (b *Backend) key(k credstore.Key) string {
	return strings.Join([]string{b.prefix, k.Service, k.Account}, ":")
}

func (b *Backend) Add(ctx context.Context, key credstore.Key, data []byte) error {
	ok, err := b.client.SetNX(ctx, b.key(key), data, 0).Result()
	if err != nil {
		return mapError(err)
	}
	if !ok {
		return credstore.ErrDuplicateItem
	}
	return nil
}

func (b *Backend) Update(ctx context.Context, key credstore.Key, data []byte) error {
	ok, err := b.client.SetXX(ctx, b.key(key), data, 0).Result()
	if err != nil {
		return mapError(err)
	}
	if !ok {
		return credstore.ErrItemNotFound
	}
	return nil
}

func (b *Backend) Get(ctx context.Context, key credstore.Key) ([]byte, error) {
	data, err := b.client.Get(ctx, b.key(key)).Bytes()
	if err != nil {
		return nil, mapError(err)
	}
	return data, nil
}

func (b *Backend) Delete(ctx context.Context, key credstore.Key) error {
	n, err := b.client.Del(ctx, b.key(key)).Result()
	if err != nil {
		return mapError(err)
	}
	if n == 0 {
		return credstore.ErrItemNotFound
	}
	return nil
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, goredis.Nil) {
		return credstore.ErrItemNotFound
	}

	if goredis.IsAuthError(err) || goredis.IsPermissionError(err) {
		return errors.Join(credstore.ErrUnauthorized, err)
	}

	var netErr net.Error
	switch {
	case errors.As(err, &netErr),
		errors.Is(err, goredis.ErrPoolTimeout),
		errors.Is(err, goredis.ErrClosed),
		errors.Is(err, context.DeadlineExceeded),
		goredis.IsLoadingError(err),
		goredis.IsMaxClientsError(err):
		return errors.Join(credstore.ErrUnavailable, err)
	}

	return credstore.Unknown("redis", err)
}
