package store

import (
	"context"
	"database/sql"
	"errors"
)

const bankVersionKey = "bank_version"

// SetMetadata upserts a key-value pair in the metadata table.
func (s *Store) SetMetadata(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO metadata (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = ?`,
		key, value, value,
	)
	return err
}

// GetMetadata returns the value for a metadata key.
// Returns empty string and nil error if the key is missing.
func (s *Store) GetMetadata(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// RecordBankVersion stores the question bank version in use and returns
// the previously recorded one (empty on first run).
func (s *Store) RecordBankVersion(ctx context.Context, version string) (string, error) {
	prev, err := s.GetMetadata(ctx, bankVersionKey)
	if err != nil {
		return "", err
	}
	if prev == version {
		return prev, nil
	}
	return prev, s.SetMetadata(ctx, bankVersionKey, version)
}

// BankVersion returns the last recorded question bank version.
func (s *Store) BankVersion(ctx context.Context) (string, error) {
	return s.GetMetadata(ctx, bankVersionKey)
}
