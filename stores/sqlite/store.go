package sqlite

import (
	"context"
	"database/sql"
	"flavorai-client/core"
	"fmt"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

type sqliteStore struct {
	db *sql.DB
}

// NewStore opens (or creates) the sqlite database and its key/value table.
func NewStore(dataSourceName string) (*sqliteStore, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	kvTableStmt := `CREATE TABLE IF NOT EXISTS kv (key TEXT PRIMARY KEY, value TEXT NOT NULL);`
	if _, err = db.Exec(kvTableStmt); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create kv table: %w", err)
	}

	return &sqliteStore{db}, nil
}

func (s *sqliteStore) Get(ctx context.Context) (string, bool, error) {
	var token string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", core.TokenKey).Scan(&token)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		logrus.WithError(err).Error("Failed to read token")
		return "", false, err
	}
	return token, token != "", nil
}

func (s *sqliteStore) Set(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		core.TokenKey, token)
	if err != nil {
		logrus.WithError(err).Error("Failed to store token")
		return err
	}
	logrus.WithField("store", "sqlite").Debug("Token stored")
	return nil
}

func (s *sqliteStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", core.TokenKey)
	return err
}

// Close releases the database handle.
func (s *sqliteStore) Close() error {
	return s.db.Close()
}
