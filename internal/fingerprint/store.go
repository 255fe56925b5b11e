// Package fingerprint persists content hashes for indexed items. The store
// is the ground truth for "has this item changed since last indexed": an
// item is re-embedded only when the hash of its normalized text differs
// from the stored one.
package fingerprint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/zotseek/zotseek/internal/db"
)

// Record is one fingerprint row. A record exists if and only if the item
// has a corresponding entry in the vector index; the sync engine maintains
// that invariant by writing the fingerprint only after a successful upsert.
type Record struct {
	ItemKey     string
	ContentHash string
	VersionSeen int
	IndexedAt   time.Time
}

// Store persists fingerprint records in SQLite.
type Store struct {
	db *db.DB
}

// NewStore creates a fingerprint store over the shared database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Get returns the record for an item key, or nil if none exists.
func (s *Store) Get(ctx context.Context, itemKey string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT item_key, content_hash, version_seen, indexed_at FROM fingerprints WHERE item_key = ?`,
		itemKey)

	var r Record
	err := row.Scan(&r.ItemKey, &r.ContentHash, &r.VersionSeen, &r.IndexedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get fingerprint %s: %w", itemKey, err)
	}
	return &r, nil
}

// All returns every stored record keyed by item key.
func (s *Store) All(ctx context.Context) (map[string]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT item_key, content_hash, version_seen, indexed_at FROM fingerprints`)
	if err != nil {
		return nil, fmt.Errorf("list fingerprints: %w", err)
	}
	defer rows.Close()

	records := make(map[string]Record)
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ItemKey, &r.ContentHash, &r.VersionSeen, &r.IndexedAt); err != nil {
			return nil, fmt.Errorf("scan fingerprint: %w", err)
		}
		records[r.ItemKey] = r
	}
	return records, rows.Err()
}

// Put inserts or replaces the record for an item.
func (s *Store) Put(ctx context.Context, r Record) error {
	if r.IndexedAt.IsZero() {
		r.IndexedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO fingerprints (item_key, content_hash, version_seen, indexed_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(item_key) DO UPDATE SET
		   content_hash = excluded.content_hash,
		   version_seen = excluded.version_seen,
		   indexed_at = excluded.indexed_at`,
		r.ItemKey, r.ContentHash, r.VersionSeen, r.IndexedAt)
	if err != nil {
		return fmt.Errorf("put fingerprint %s: %w", r.ItemKey, err)
	}
	return nil
}

// Delete removes the records for the given item keys. Missing keys are
// not an error.
func (s *Store) Delete(ctx context.Context, itemKeys ...string) error {
	for _, key := range itemKeys {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM fingerprints WHERE item_key = ?`, key); err != nil {
			return fmt.Errorf("delete fingerprint %s: %w", key, err)
		}
	}
	return nil
}

// Clear removes all records. Used by force-full-rebuild.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM fingerprints`); err != nil {
		return fmt.Errorf("clear fingerprints: %w", err)
	}
	return nil
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM fingerprints`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count fingerprints: %w", err)
	}
	return n, nil
}
