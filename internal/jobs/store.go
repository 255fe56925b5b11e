// Package jobs runs bulk tag rewrites as resumable, checkpointed jobs. A
// job's key sets are persisted after every slice of work, so a crash or
// interruption never loses progress and re-running a job never re-applies
// a rewrite to an already-processed item.
package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/zotseek/zotseek/internal/db"
)

// Status is a job's lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// ErrJobNotFound is returned when a job ID does not exist.
var ErrJobNotFound = errors.New("jobs: job not found")

// TagSpec describes the rewrite a job applies to each item's tag list.
// Removals are applied before additions, so a tag in both lists ends up
// present.
type TagSpec struct {
	AddTags    []string `json:"add_tags,omitempty"`
	RemoveTags []string `json:"remove_tags,omitempty"`
}

// Job is one bulk tag rewrite. The three key sets are disjoint and their
// union is the job's original target set.
type Job struct {
	ID            string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Status        Status
	Spec          TagSpec
	PendingKeys   []string
	ProcessedKeys []string
	FailedKeys    []string
}

// Store persists jobs in the shared database.
type Store struct {
	db *db.DB
}

// NewStore creates a job store.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Create persists a new pending job over the given item keys.
func (s *Store) Create(ctx context.Context, spec TagSpec, itemKeys []string) (*Job, error) {
	now := time.Now().UTC()
	job := &Job{
		ID:          uuid.NewString(),
		CreatedAt:   now,
		UpdatedAt:   now,
		Status:      StatusPending,
		Spec:        spec,
		PendingKeys: itemKeys,
	}

	specBlob, pending, processed, failed, err := marshalJob(job)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tag_jobs (id, created_at, updated_at, status, spec, pending_keys, processed_keys, failed_keys)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.CreatedAt, job.UpdatedAt, job.Status, specBlob, pending, processed, failed)
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	return job, nil
}

// Get returns a job by ID.
func (s *Store) Get(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, updated_at, status, spec, pending_keys, processed_keys, failed_keys
		 FROM tag_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	return job, err
}

// List returns all jobs, newest first.
func (s *Store) List(ctx context.Context) ([]*Job, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, updated_at, status, spec, pending_keys, processed_keys, failed_keys
		 FROM tag_jobs ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Save writes a job's checkpoint: status and key sets. It is the commit
// point of every work slice.
func (s *Store) Save(ctx context.Context, job *Job) error {
	job.UpdatedAt = time.Now().UTC()
	specBlob, pending, processed, failed, err := marshalJob(job)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE tag_jobs SET updated_at = ?, status = ?, spec = ?,
		   pending_keys = ?, processed_keys = ?, failed_keys = ?
		 WHERE id = ?`,
		job.UpdatedAt, job.Status, specBlob, pending, processed, failed, job.ID)
	if err != nil {
		return fmt.Errorf("save job %s: %w", job.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrJobNotFound
	}
	return nil
}

// Sweep deletes terminal jobs older than the retention window and returns
// how many were removed. Running and pending jobs are never swept.
func (s *Store) Sweep(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM tag_jobs WHERE status IN ('completed','failed') AND updated_at < ?`,
		cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep jobs: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		job                        Job
		spec                       string
		pending, processed, failed string
	)
	err := row.Scan(&job.ID, &job.CreatedAt, &job.UpdatedAt, &job.Status,
		&spec, &pending, &processed, &failed)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(spec), &job.Spec); err != nil {
		return nil, fmt.Errorf("decode job %s spec: %w", job.ID, err)
	}
	for _, pair := range []struct {
		blob string
		dst  *[]string
	}{
		{pending, &job.PendingKeys},
		{processed, &job.ProcessedKeys},
		{failed, &job.FailedKeys},
	} {
		if err := json.Unmarshal([]byte(pair.blob), pair.dst); err != nil {
			return nil, fmt.Errorf("decode job %s keys: %w", job.ID, err)
		}
	}
	return &job, nil
}

func marshalJob(job *Job) (spec, pending, processed, failed string, err error) {
	blobs := make([]string, 4)
	for i, v := range []any{job.Spec, keysOrEmpty(job.PendingKeys), keysOrEmpty(job.ProcessedKeys), keysOrEmpty(job.FailedKeys)} {
		b, err := json.Marshal(v)
		if err != nil {
			return "", "", "", "", fmt.Errorf("encode job %s: %w", job.ID, err)
		}
		blobs[i] = string(b)
	}
	return blobs[0], blobs[1], blobs[2], blobs[3], nil
}

// keysOrEmpty keeps nil slices encoding as [] rather than null.
func keysOrEmpty(keys []string) []string {
	if keys == nil {
		return []string{}
	}
	return keys
}
