package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/voxup/internal/shared"
)

const ownerIDKey = "owner_id"

// Settings persists installation-wide key/value pairs.
type Settings struct {
	db *sql.DB
}

// NewSettings creates a [Settings] store with the given database connection.
func NewSettings(db *sql.DB) *Settings {
	return &Settings{db: db}
}

// Get returns the value for key and whether it was present.
func (s *Settings) Get(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: failed to read setting %s: %v", shared.ErrDatabase, key, err)
	}
	return value, true, nil
}

// Set upserts key.
func (s *Settings) Set(key, value string) error {
	query := `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	if _, err := s.db.Exec(query, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("%w: failed to write setting %s: %v", shared.ErrDatabase, key, err)
	}
	return nil
}

// OwnerID resolves the owner identity once per installation.
//
// A configured value wins and is persisted; otherwise the stored value is reused; otherwise
// an anonymous identity "anonymous-<millis>-<uuid>" is generated and stored.
func (s *Settings) OwnerID(configured string) (string, error) {
	if configured != "" {
		if err := s.Set(ownerIDKey, configured); err != nil {
			return "", err
		}
		return configured, nil
	}

	stored, ok, err := s.Get(ownerIDKey)
	if err != nil {
		return "", err
	}
	if ok && stored != "" {
		return stored, nil
	}

	generated := "anonymous-" + shared.GenerateAttemptID(time.Now())
	if err := s.Set(ownerIDKey, generated); err != nil {
		return "", err
	}
	return generated, nil
}
