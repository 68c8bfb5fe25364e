package redis

import (
	"context"
	"flavorai-client/core"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type redisStore struct {
	client *goredis.Client
	prefix string
}

// NewStore wraps an existing client. The token lives under prefix+core.TokenKey.
func NewStore(client *goredis.Client, prefix string) *redisStore {
	return &redisStore{client: client, prefix: prefix}
}

// Dial parses url, pings the server and returns a store on top of it.
func Dial(url, prefix string) (*redisStore, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	client := goredis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return NewStore(client, prefix), nil
}

func (r *redisStore) key() string {
	return r.prefix + core.TokenKey
}

func (r *redisStore) Get(ctx context.Context) (string, bool, error) {
	val, err := r.client.Get(ctx, r.key()).Result()
	if err == goredis.Nil {
		return "", false, nil
	}
	if err != nil {
		logrus.WithError(err).WithField("key", r.key()).Error("Failed to read token")
		return "", false, err
	}
	return val, val != "", nil
}

func (r *redisStore) Set(ctx context.Context, token string) error {
	if err := r.client.Set(ctx, r.key(), token, 0).Err(); err != nil {
		logrus.WithError(err).WithField("key", r.key()).Error("Failed to store token")
		return err
	}
	logrus.WithField("key", r.key()).Debug("Token stored")
	return nil
}

func (r *redisStore) Clear(ctx context.Context) error {
	return r.client.Del(ctx, r.key()).Err()
}

// Close releases the underlying client.
func (r *redisStore) Close() error {
	return r.client.Close()
}
