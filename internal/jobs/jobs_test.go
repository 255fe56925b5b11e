package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/zotseek/zotseek/internal/db"
	"github.com/zotseek/zotseek/internal/zotero"
)

// fakeZotero serves items and records tag writes.
type fakeZotero struct {
	items      map[string]*zotero.Item
	writes     map[string][]zotero.Tag
	failWrites map[string]bool
	// onItem, when set, runs on every item fetch.
	onItem func(key string)
}

func newFakeZotero(keys ...string) *fakeZotero {
	f := &fakeZotero{
		items:      make(map[string]*zotero.Item),
		writes:     make(map[string][]zotero.Tag),
		failWrites: make(map[string]bool),
	}
	for i, key := range keys {
		f.items[key] = &zotero.Item{
			Key:     key,
			Version: 100 + i,
			Data: zotero.ItemData{
				Key:      key,
				ItemType: "journalArticle",
				Tags:     []zotero.Tag{{Tag: "old"}, {Tag: "keep"}},
			},
		}
	}
	return f
}

func (f *fakeZotero) Items(context.Context, int, int) ([]zotero.Item, error)  { return nil, nil }
func (f *fakeZotero) Children(context.Context, string) ([]zotero.Item, error) { return nil, nil }
func (f *fakeZotero) File(context.Context, string) ([]byte, error)            { return nil, nil }

func (f *fakeZotero) Item(_ context.Context, key string) (*zotero.Item, error) {
	if f.onItem != nil {
		f.onItem(key)
	}
	item, ok := f.items[key]
	if !ok {
		return nil, zotero.ErrNotFound
	}
	return item, nil
}

func (f *fakeZotero) UpdateItemTags(_ context.Context, key string, version int, tags []zotero.Tag) error {
	if f.failWrites[key] {
		return errors.New("write rejected")
	}
	item, ok := f.items[key]
	if !ok {
		return zotero.ErrNotFound
	}
	if version != item.Version {
		return errors.New("version conflict")
	}
	f.writes[key] = tags
	item.Data.Tags = tags
	item.Version++
	return nil
}

func newJobFixture(t *testing.T, sliceSize int, keys ...string) (*Runner, *Store, *fakeZotero) {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	store := NewStore(database)
	zot := newFakeZotero(keys...)
	return NewRunner(store, zot, zot, sliceSize), store, zot
}

func tagNames(tags []zotero.Tag) []string {
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = t.Tag
	}
	return names
}

func TestRunner_PlanAndRun(t *testing.T) {
	ctx := context.Background()
	runner, _, zot := newJobFixture(t, 10, "A", "B")

	job, err := runner.Plan(ctx, TagSpec{AddTags: []string{"new"}, RemoveTags: []string{"old"}}, []string{"A", "B"})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if job.Status != StatusPending || len(job.PendingKeys) != 2 {
		t.Fatalf("planned job = %+v", job)
	}
	if len(zot.writes) != 0 {
		t.Fatal("Plan wrote to the library")
	}

	job, err = runner.Run(ctx, job.ID)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if job.Status != StatusCompleted || len(job.ProcessedKeys) != 2 || len(job.FailedKeys) != 0 {
		t.Errorf("job = %+v", job)
	}

	for _, key := range []string{"A", "B"} {
		got := tagNames(zot.writes[key])
		if len(got) != 2 || got[0] != "keep" || got[1] != "new" {
			t.Errorf("tags on %s = %v, want [keep new]", key, got)
		}
	}
}

func TestRunner_CheckpointResume(t *testing.T) {
	ctx := context.Background()
	runner, store, zot := newJobFixture(t, 2, "A", "B", "C", "D")

	job, err := runner.Plan(ctx, TagSpec{AddTags: []string{"x"}}, []string{"A", "B", "C", "D"})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	// First slice: {A, B}.
	job, err = runner.Apply(ctx, job.ID)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if job.Status != StatusRunning || len(job.ProcessedKeys) != 2 || len(job.PendingKeys) != 2 {
		t.Fatalf("after first slice: %+v", job)
	}
	if _, ok := zot.writes["C"]; ok {
		t.Fatal("C written before its slice")
	}

	// The checkpoint survives a fresh store read (simulated restart).
	persisted, err := store.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(persisted.ProcessedKeys) != 2 || persisted.PendingKeys[0] != "C" {
		t.Fatalf("persisted checkpoint = %+v", persisted)
	}

	// Second slice: {C, D} completes the job.
	job, err = runner.Apply(ctx, job.ID)
	if err != nil {
		t.Fatalf("Apply (resume): %v", err)
	}
	if job.Status != StatusCompleted || len(job.ProcessedKeys) != 4 {
		t.Errorf("after resume: %+v", job)
	}

	// Re-applying a completed job touches nothing.
	writesBefore := len(zot.writes)
	if _, err := runner.Apply(ctx, job.ID); err != nil {
		t.Fatalf("Apply (completed): %v", err)
	}
	if len(zot.writes) != writesBefore {
		t.Error("completed job re-applied writes")
	}
}

func TestRunner_CheckpointSurvivesCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runner, store, zot := newJobFixture(t, 2, "A", "B")

	job, err := runner.Plan(ctx, TagSpec{AddTags: []string{"x"}}, []string{"A", "B"})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	// Cancel while the first key is being applied.
	zot.onItem = func(key string) {
		if key == "A" {
			cancel()
		}
	}

	job, err = runner.Apply(ctx, job.ID)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Apply err = %v, want context.Canceled", err)
	}
	if len(job.ProcessedKeys) != 1 || job.ProcessedKeys[0] != "A" {
		t.Fatalf("processed = %v, want [A]", job.ProcessedKeys)
	}

	// A's progress reached the store despite the cancelled context.
	persisted, err := store.Get(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(persisted.ProcessedKeys) != 1 || persisted.ProcessedKeys[0] != "A" {
		t.Fatalf("persisted checkpoint = %+v, want A processed", persisted)
	}
	if len(persisted.PendingKeys) != 1 || persisted.PendingKeys[0] != "B" {
		t.Fatalf("persisted checkpoint = %+v, want B pending", persisted)
	}

	// Resuming with a fresh context processes only B.
	zot.onItem = nil
	job, err = runner.Run(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Run (resume): %v", err)
	}
	if job.Status != StatusCompleted || len(job.ProcessedKeys) != 2 {
		t.Errorf("after resume: %+v", job)
	}
}

func TestRunner_PerItemFailuresContained(t *testing.T) {
	ctx := context.Background()
	runner, _, zot := newJobFixture(t, 10, "A", "B", "C")
	zot.failWrites["B"] = true

	job, err := runner.Plan(ctx, TagSpec{AddTags: []string{"x"}}, []string{"A", "B", "C"})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	job, err = runner.Run(ctx, job.ID)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if job.Status != StatusCompleted {
		t.Errorf("status = %q, want completed despite one failure", job.Status)
	}
	if len(job.ProcessedKeys) != 2 || len(job.FailedKeys) != 1 || job.FailedKeys[0] != "B" {
		t.Errorf("job = %+v", job)
	}
}

func TestRunner_AllFailuresMarksJobFailed(t *testing.T) {
	ctx := context.Background()
	runner, _, _ := newJobFixture(t, 10) // no items exist

	job, err := runner.Plan(ctx, TagSpec{AddTags: []string{"x"}}, []string{"GONE1", "GONE2"})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	job, err = runner.Run(ctx, job.ID)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if job.Status != StatusFailed || len(job.FailedKeys) != 2 {
		t.Errorf("job = %+v", job)
	}
}

func TestRunner_PlanValidation(t *testing.T) {
	ctx := context.Background()
	runner, _, _ := newJobFixture(t, 10, "A")

	if _, err := runner.Plan(ctx, TagSpec{}, []string{"A"}); err == nil {
		t.Error("empty spec accepted")
	}
	if _, err := runner.Plan(ctx, TagSpec{AddTags: []string{"x"}}, nil); err == nil {
		t.Error("empty key list accepted")
	}
}

func TestRewriteTags(t *testing.T) {
	current := []zotero.Tag{{Tag: "a"}, {Tag: "b"}, {Tag: "c"}}
	got := tagNames(rewriteTags(current, TagSpec{
		AddTags:    []string{"d", "b"},
		RemoveTags: []string{"a"},
	}))
	want := []string{"b", "c", "d"}
	if len(got) != len(want) {
		t.Fatalf("tags = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("tags = %v, want %v", got, want)
		}
	}
}

func TestStore_GetMissing(t *testing.T) {
	_, store, _ := newJobFixture(t, 10)
	if _, err := store.Get(context.Background(), "nope"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("err = %v, want ErrJobNotFound", err)
	}
}

func TestStore_List(t *testing.T) {
	ctx := context.Background()
	_, store, _ := newJobFixture(t, 10)

	first, err := store.Create(ctx, TagSpec{AddTags: []string{"x"}}, []string{"A"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	second, err := store.Create(ctx, TagSpec{AddTags: []string{"y"}}, []string{"B"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	listed, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("listed %d jobs, want 2", len(listed))
	}
	ids := map[string]bool{listed[0].ID: true, listed[1].ID: true}
	if !ids[first.ID] || !ids[second.ID] {
		t.Errorf("listed IDs = %v", ids)
	}
}

func TestStore_SweepRemovesOldTerminalJobs(t *testing.T) {
	ctx := context.Background()
	_, store, _ := newJobFixture(t, 10)

	old, err := store.Create(ctx, TagSpec{AddTags: []string{"x"}}, []string{"A"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	old.Status = StatusCompleted
	old.PendingKeys = nil
	old.ProcessedKeys = []string{"A"}
	if err := store.Save(ctx, old); err != nil {
		t.Fatalf("Save: %v", err)
	}
	// Age the job past the retention window.
	if _, err := store.db.ExecContext(ctx,
		`UPDATE tag_jobs SET updated_at = ? WHERE id = ?`,
		time.Now().UTC().Add(-48*time.Hour), old.ID); err != nil {
		t.Fatalf("age job: %v", err)
	}

	fresh, err := store.Create(ctx, TagSpec{AddTags: []string{"y"}}, []string{"B"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	n, err := store.Sweep(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 1 {
		t.Errorf("swept %d jobs, want 1", n)
	}
	if _, err := store.Get(ctx, old.ID); !errors.Is(err, ErrJobNotFound) {
		t.Error("old terminal job survived the sweep")
	}
	if _, err := store.Get(ctx, fresh.ID); err != nil {
		t.Errorf("pending job swept: %v", err)
	}
}
