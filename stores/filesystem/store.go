package filesystem

import (
	"context"
	"flavorai-client/core"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

type fsStore struct {
	basePath string
}

// NewStore creates a token store that keeps the token in a single file named
// after core.TokenKey inside basePath.
func NewStore(basePath string) (*fsStore, error) {
	if err := os.MkdirAll(basePath, 0700); err != nil {
		return nil, fmt.Errorf("failed to create token directory: %w", err)
	}
	return &fsStore{basePath: basePath}, nil
}

func (s *fsStore) path() string {
	return filepath.Join(s.basePath, core.TokenKey)
}

func (s *fsStore) Get(ctx context.Context) (string, bool, error) {
	log := logrus.WithField("path", s.path())

	data, err := os.ReadFile(s.path())
	if err != nil {
		if os.IsNotExist(err) {
			log.Debug("No persisted token")
			return "", false, nil
		}
		log.WithError(err).Error("Failed to read token file")
		return "", false, err
	}

	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", false, nil
	}
	return token, true, nil
}

// Set writes the token through a temp file and rename so a crash never leaves
// a half-written token behind.
func (s *fsStore) Set(ctx context.Context, token string) error {
	log := logrus.WithField("path", s.path())

	tmp, err := os.CreateTemp(s.basePath, core.TokenKey+".*")
	if err != nil {
		log.WithError(err).Error("Failed to create temp token file")
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.WriteString(token); err != nil {
		tmp.Close()
		log.WithError(err).Error("Failed to write token")
		return err
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, s.path()); err != nil {
		log.WithError(err).Error("Failed to move token into place")
		return err
	}

	log.Debug("Token stored")
	return nil
}

func (s *fsStore) Clear(ctx context.Context) error {
	log := logrus.WithField("path", s.path())

	err := os.Remove(s.path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		log.WithError(err).Error("Failed to delete token file")
		return err
	}

	log.Debug("Token cleared")
	return nil
}
