package stores

import (
	"flavorai-client/config"
	"flavorai-client/core"
	"flavorai-client/stores/filesystem"
	"flavorai-client/stores/memory"
	"flavorai-client/stores/redis"
	"flavorai-client/stores/sqlite"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

// GetTokenStore builds the token store selected by cfg.Type. The returned
// closer releases backend resources and is never nil.
func GetTokenStore(cfg config.StoreConfig) (core.TokenStore, io.Closer, error) {
	storageField := logrus.Fields{
		"storageType": cfg.Type,
	}

	var (
		store  core.TokenStore
		closer io.Closer = nopCloser{}
	)

	switch cfg.Type {
	case "", "filesystem":
		storageField["basePath"] = cfg.Dir
		s, err := filesystem.NewStore(cfg.Dir)
		if err != nil {
			return nil, nil, err
		}
		store = s
	case "sqlite":
		storageField["dataSourceName"] = cfg.DSN
		s, err := sqlite.NewStore(cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		store, closer = s, s
	case "redis":
		storageField["prefix"] = cfg.RedisPrefix
		s, err := redis.Dial(cfg.RedisURL, cfg.RedisPrefix)
		if err != nil {
			return nil, nil, err
		}
		store, closer = s, s
	case "memory":
		store = memory.NewStore()
		storageField["storageType"] = "in-memory"
	default:
		return nil, nil, fmt.Errorf("unknown token store type %q", cfg.Type)
	}

	logrus.WithFields(storageField).Debug("Use token storage")
	return store, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
