package indexer

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zotseek/zotseek/internal/db"
)

// SyncState is the process-wide record of the last successful pass. It is
// written only at the end of a pass; a structural failure leaves it
// untouched so the next scheduled attempt retries from scratch.
type SyncState struct {
	LastSyncTime *time.Time
	LastStats    Stats
}

// StateStore persists SyncState in the shared database.
type StateStore struct {
	db *db.DB
}

// NewStateStore creates a sync state store.
func NewStateStore(database *db.DB) *StateStore {
	return &StateStore{db: database}
}

// Get returns the persisted state. A never-synced database yields a state
// with a nil LastSyncTime.
func (s *StateStore) Get(ctx context.Context) (*SyncState, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT last_sync_time, last_sync_stats FROM sync_state WHERE id = 1`)

	var (
		t     sql.NullTime
		stats string
	)
	err := row.Scan(&t, &stats)
	if errors.Is(err, sql.ErrNoRows) {
		return &SyncState{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get sync state: %w", err)
	}

	state := &SyncState{}
	if t.Valid {
		state.LastSyncTime = &t.Time
	}
	if err := json.Unmarshal([]byte(stats), &state.LastStats); err != nil {
		// A corrupt stats blob is not worth failing status reporting over.
		state.LastStats = Stats{}
	}
	return state, nil
}

// Set records the end of a pass.
func (s *StateStore) Set(ctx context.Context, syncTime time.Time, stats Stats) error {
	blob, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshal sync stats: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sync_state (id, last_sync_time, last_sync_stats) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   last_sync_time = excluded.last_sync_time,
		   last_sync_stats = excluded.last_sync_stats`,
		syncTime.UTC(), string(blob))
	if err != nil {
		return fmt.Errorf("save sync state: %w", err)
	}
	return nil
}
