package indexer

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/zotseek/zotseek/internal/config"
	"github.com/zotseek/zotseek/internal/db"
	"github.com/zotseek/zotseek/internal/extract"
	"github.com/zotseek/zotseek/internal/fingerprint"
	"github.com/zotseek/zotseek/internal/vectordb"
	"github.com/zotseek/zotseek/internal/zotero"
)

// fakeLibrary serves a fixed slice of items with real pagination, plus
// optional children and file contents for fulltext tests.
type fakeLibrary struct {
	mu       sync.Mutex
	items    []zotero.Item
	children map[string][]zotero.Item
	files    map[string][]byte
	itemsErr error
	// gate, when set, blocks Items until the channel is closed.
	gate chan struct{}
}

func (f *fakeLibrary) Items(ctx context.Context, offset, limit int) ([]zotero.Item, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.itemsErr != nil {
		return nil, f.itemsErr
	}
	if offset >= len(f.items) {
		return nil, nil
	}
	end := offset + limit
	if end > len(f.items) {
		end = len(f.items)
	}
	page := make([]zotero.Item, end-offset)
	copy(page, f.items[offset:end])
	return page, nil
}

func (f *fakeLibrary) Item(ctx context.Context, key string) (*zotero.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		if f.items[i].Key == key {
			item := f.items[i]
			return &item, nil
		}
	}
	return nil, zotero.ErrNotFound
}

func (f *fakeLibrary) Children(ctx context.Context, key string) ([]zotero.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.children[key], nil
}

func (f *fakeLibrary) File(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[key]
	if !ok {
		return nil, zotero.ErrNotFound
	}
	return data, nil
}

// countingEmbedder records every batch it embeds and can be told to fail
// specific calls.
type countingEmbedder struct {
	mu       sync.Mutex
	calls    int
	batches  [][]string
	failCall int // 1-based call number to fail; 0 = never
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.batches = append(c.batches, texts)
	if c.failCall != 0 && c.calls == c.failCall {
		return nil, errors.New("embedding backend down")
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{float32(len(texts[i])), 1}
	}
	return vectors, nil
}

func (c *countingEmbedder) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// memStore is an in-memory VectorStore so engine tests exercise the sync
// logic without a persistent index on disk.
type memStore struct {
	mu      sync.Mutex
	entries map[string]vectordb.Entry
	failOn  string // Upsert of this ID fails
}

func newMemStore() *memStore {
	return &memStore{entries: make(map[string]vectordb.Entry)}
}

func (m *memStore) Upsert(ctx context.Context, entries ...vectordb.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		if m.failOn != "" && e.ID == m.failOn {
			return fmt.Errorf("upsert %s: disk full", e.ID)
		}
		m.entries[e.ID] = e
	}
	return nil
}

func (m *memStore) Delete(ctx context.Context, ids ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.entries, id)
	}
	return nil
}

func (m *memStore) Query(ctx context.Context, embedding []float32, k int, filter *vectordb.Filter) ([]vectordb.SearchResult, error) {
	return nil, nil
}

func (m *memStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]vectordb.Entry)
	return nil
}

func (m *memStore) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *memStore) Stats() vectordb.Stats {
	return vectordb.Stats{Name: "mem", Count: m.Count()}
}

func (m *memStore) get(id string) (vectordb.Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	return e, ok
}

func testItem(key, title string, version int) zotero.Item {
	return zotero.Item{
		Key:     key,
		Version: version,
		Data: zotero.ItemData{
			Key:      key,
			ItemType: "journalArticle",
			Title:    title,
		},
	}
}

type engineFixture struct {
	engine   *Engine
	library  *fakeLibrary
	embedder *countingEmbedder
	store    *memStore
	fps      *fingerprint.Store
	states   *StateStore
}

func newEngineFixture(t *testing.T, items ...zotero.Item) *engineFixture {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	f := &engineFixture{
		library:  &fakeLibrary{items: items},
		embedder: &countingEmbedder{},
		store:    newMemStore(),
		fps:      fingerprint.NewStore(database),
		states:   NewStateStore(database),
	}
	f.engine = NewEngine(
		f.library, f.embedder, f.store, f.fps, f.states,
		extract.NewRegistry(),
		config.IndexConfig{BatchSize: 2, MaxTextLength: 10000},
	)
	return f
}

func TestEngine_FirstPassIndexesEverything(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t,
		testItem("A1", "Attention Is All You Need", 10),
		testItem("A2", "Deep Residual Learning", 11),
		testItem("A3", "Generative Adversarial Networks", 12),
	)

	stats, err := f.engine.Run(ctx, Params{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if stats.TotalItems != 3 || stats.AddedItems != 3 || stats.UpdatedItems != 0 || stats.SkippedItems != 0 || stats.Errors != 0 {
		t.Errorf("stats = %+v", stats)
	}
	if f.store.Count() != 3 {
		t.Errorf("store count = %d, want 3", f.store.Count())
	}
	n, _ := f.fps.Count(ctx)
	if n != 3 {
		t.Errorf("fingerprint count = %d, want 3", n)
	}
	// Batch size 2 over 3 items: two batches.
	if f.embedder.callCount() != 2 {
		t.Errorf("embed calls = %d, want 2", f.embedder.callCount())
	}

	state, err := f.states.Get(ctx)
	if err != nil {
		t.Fatalf("state Get: %v", err)
	}
	if state.LastSyncTime == nil {
		t.Error("LastSyncTime not recorded")
	}
	if state.LastStats.AddedItems != 3 {
		t.Errorf("persisted stats = %+v", state.LastStats)
	}
	if got := f.engine.State(); got != StateIdle {
		t.Errorf("terminal state = %q, want idle", got)
	}
}

func TestEngine_SecondPassIsNoop(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t,
		testItem("A1", "Attention Is All You Need", 10),
		testItem("A2", "Deep Residual Learning", 11),
	)

	if _, err := f.engine.Run(ctx, Params{}); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	callsAfterFirst := f.embedder.callCount()

	stats, err := f.engine.Run(ctx, Params{})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if stats.SkippedItems != 2 || stats.AddedItems != 0 || stats.UpdatedItems != 0 {
		t.Errorf("stats = %+v, want 2 skipped", stats)
	}
	if f.embedder.callCount() != callsAfterFirst {
		t.Errorf("second pass made %d embed calls, want 0",
			f.embedder.callCount()-callsAfterFirst)
	}
}

func TestEngine_DiffDetectsChangesAndOrphans(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t,
		testItem("X1", "Original title", 1),
		testItem("X2", "Stable item", 1),
		testItem("X3", "Doomed item", 1),
	)

	if _, err := f.engine.Run(ctx, Params{}); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	// X1 edited, X2 untouched, X3 deleted, X4 added.
	f.library.mu.Lock()
	f.library.items = []zotero.Item{
		testItem("X1", "Revised title", 2),
		testItem("X2", "Stable item", 1),
		testItem("X4", "Brand new item", 1),
	}
	f.library.mu.Unlock()

	stats, err := f.engine.Run(ctx, Params{})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}

	if stats.AddedItems != 1 || stats.UpdatedItems != 1 || stats.SkippedItems != 1 {
		t.Errorf("stats = %+v, want added=1 updated=1 skipped=1", stats)
	}

	if _, ok := f.store.get("X3"); ok {
		t.Error("orphan X3 still in vector store")
	}
	if rec, _ := f.fps.Get(ctx, "X3"); rec != nil {
		t.Error("orphan X3 still fingerprinted")
	}
	if e, ok := f.store.get("X1"); !ok || e.Document == "Title: Original title" {
		t.Errorf("X1 not re-indexed: %+v", e)
	}
	rec, _ := f.fps.Get(ctx, "X1")
	if rec == nil || rec.VersionSeen != 2 {
		t.Errorf("X1 fingerprint = %+v, want version 2", rec)
	}
}

func TestEngine_EmbedFailureContainedToBatch(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t,
		testItem("B1", "first", 1),
		testItem("B2", "second", 1),
		testItem("B3", "third", 1),
		testItem("B4", "fourth", 1),
	)
	f.embedder.failCall = 1 // batch {B1,B2} fails, {B3,B4} succeeds

	stats, err := f.engine.Run(ctx, Params{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if stats.Errors != 2 || stats.AddedItems != 2 {
		t.Errorf("stats = %+v, want errors=2 added=2", stats)
	}
	if f.store.Count() != 2 {
		t.Errorf("store count = %d, want 2", f.store.Count())
	}
	// Failed items carry no fingerprint, so the next pass retries them.
	if rec, _ := f.fps.Get(ctx, "B1"); rec != nil {
		t.Error("B1 fingerprinted despite failed embedding")
	}

	// Pass completed, so the sync state is recorded.
	state, _ := f.states.Get(ctx)
	if state.LastSyncTime == nil {
		t.Error("sync state not recorded after contained failure")
	}

	// The next pass picks the failed pair up again.
	f.embedder.failCall = 0
	stats, err = f.engine.Run(ctx, Params{})
	if err != nil {
		t.Fatalf("retry Run: %v", err)
	}
	if stats.AddedItems != 2 || stats.SkippedItems != 2 {
		t.Errorf("retry stats = %+v, want added=2 skipped=2", stats)
	}
}

func TestEngine_UpsertFailureCountsOneItem(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t,
		testItem("U1", "fine", 1),
		testItem("U2", "cursed", 1),
	)
	f.store.failOn = "U2"

	stats, err := f.engine.Run(ctx, Params{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.AddedItems != 1 || stats.Errors != 1 {
		t.Errorf("stats = %+v, want added=1 errors=1", stats)
	}
	if rec, _ := f.fps.Get(ctx, "U2"); rec != nil {
		t.Error("U2 fingerprinted despite failed upsert")
	}
}

func TestEngine_ForceFullRebuild(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t,
		testItem("R1", "alpha", 1),
		testItem("R2", "beta", 1),
	)

	if _, err := f.engine.Run(ctx, Params{}); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	stats, err := f.engine.Run(ctx, Params{ForceFullRebuild: true})
	if err != nil {
		t.Fatalf("rebuild Run: %v", err)
	}
	if stats.AddedItems != 2 || stats.SkippedItems != 0 {
		t.Errorf("stats = %+v, want everything re-added", stats)
	}
	if f.store.Count() != 2 {
		t.Errorf("store count = %d", f.store.Count())
	}
}

func TestEngine_ConcurrentRunCoalesces(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t, testItem("C1", "only item", 1))
	f.library.gate = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := f.engine.Run(ctx, Params{})
		done <- err
	}()

	// Wait until the first pass holds the guard.
	for !f.engine.Running() {
		runtime.Gosched()
	}

	if _, err := f.engine.Run(ctx, Params{}); !errors.Is(err, ErrSyncBusy) {
		t.Errorf("concurrent Run err = %v, want ErrSyncBusy", err)
	}

	close(f.library.gate)
	if err := <-done; err != nil {
		t.Fatalf("first Run: %v", err)
	}

	// Guard released; a fresh pass runs fine.
	f.library.gate = nil
	if _, err := f.engine.Run(ctx, Params{}); err != nil {
		t.Fatalf("Run after release: %v", err)
	}
}

func TestEngine_LimitSkipsOrphanReconcile(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t,
		testItem("L1", "one", 1),
		testItem("L2", "two", 1),
		testItem("L3", "three", 1),
	)

	if _, err := f.engine.Run(ctx, Params{}); err != nil {
		t.Fatalf("full Run: %v", err)
	}

	stats, err := f.engine.Run(ctx, Params{Limit: 1})
	if err != nil {
		t.Fatalf("limited Run: %v", err)
	}
	if stats.TotalItems != 1 {
		t.Errorf("TotalItems = %d, want 1", stats.TotalItems)
	}
	// Items outside the window must not be treated as deleted.
	if f.store.Count() != 3 {
		t.Errorf("store count = %d, want 3", f.store.Count())
	}
}

func TestEngine_StructuralFailureLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t, testItem("S1", "unreachable", 1))
	f.library.itemsErr = errors.New("connection refused")

	if _, err := f.engine.Run(ctx, Params{}); err == nil {
		t.Fatal("Run succeeded against a dead source")
	}
	if got := f.engine.State(); got != StateFailed {
		t.Errorf("state = %q, want failed", got)
	}

	state, err := f.states.Get(ctx)
	if err != nil {
		t.Fatalf("state Get: %v", err)
	}
	if state.LastSyncTime != nil {
		t.Error("sync state recorded despite structural failure")
	}
}

func TestEngine_FulltextFromBestAttachment(t *testing.T) {
	ctx := context.Background()
	parent := testItem("F1", "A paper with an attachment", 1)
	parent.Meta.NumChildren = 1

	f := newEngineFixture(t, parent)
	f.library.children = map[string][]zotero.Item{
		"F1": {{
			Key: "ATT1",
			Data: zotero.ItemData{
				Key:         "ATT1",
				ItemType:    "attachment",
				ContentType: "text/html",
				Filename:    "paper.html",
				MD5:         "d41d8cd98f00b204e9800998ecf8427e",
			},
		}},
	}
	f.library.files = map[string][]byte{
		"ATT1": []byte("<html><body><p>The full body of the paper.</p></body></html>"),
	}

	stats, err := f.engine.Run(ctx, Params{ExtractFulltext: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.AddedItems != 1 {
		t.Fatalf("stats = %+v", stats)
	}

	entry, ok := f.store.get("F1")
	if !ok {
		t.Fatal("F1 not indexed")
	}
	if !entry.Metadata.Fulltext {
		t.Error("fulltext flag not set")
	}
	if want := "The full body of the paper."; !strings.Contains(entry.Document, want) {
		t.Errorf("document %q missing extracted text", entry.Document)
	}
}

func TestEngine_FulltextFailureDegradesToMetadata(t *testing.T) {
	ctx := context.Background()
	parent := testItem("F2", "Attachment download broken", 1)
	parent.Meta.NumChildren = 1

	f := newEngineFixture(t, parent)
	f.library.children = map[string][]zotero.Item{
		"F2": {{
			Key: "ATT2",
			Data: zotero.ItemData{
				Key:         "ATT2",
				ItemType:    "attachment",
				ContentType: "text/html",
				Filename:    "gone.html",
			},
		}},
	}
	// No file registered for ATT2: download fails.

	stats, err := f.engine.Run(ctx, Params{ExtractFulltext: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.AddedItems != 1 || stats.Errors != 1 {
		t.Errorf("stats = %+v, want item indexed without fulltext and the failure counted", stats)
	}
	entry, ok := f.store.get("F2")
	if !ok {
		t.Fatal("F2 not indexed")
	}
	if entry.Metadata.Fulltext {
		t.Error("fulltext flag set despite failed extraction")
	}
}

func TestEngine_FulltextNoAttachmentIsNotAnError(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t, testItem("F3", "No attachments here", 1))

	stats, err := f.engine.Run(ctx, Params{ExtractFulltext: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.AddedItems != 1 || stats.Errors != 0 {
		t.Errorf("stats = %+v, want clean metadata-only pass", stats)
	}
}

func TestEngine_FulltextSkipsUnextractablePDFSibling(t *testing.T) {
	ctx := context.Background()
	parent := testItem("F4", "Paper with PDF and snapshot", 1)
	parent.Meta.NumChildren = 2

	f := newEngineFixture(t, parent)
	f.library.children = map[string][]zotero.Item{
		"F4": {
			{
				Key: "ATTP",
				Data: zotero.ItemData{
					Key:         "ATTP",
					ItemType:    "attachment",
					ContentType: "application/pdf",
					Filename:    "paper.pdf",
					MD5:         "d41d8cd98f00b204e9800998ecf8427e",
				},
			},
			{
				Key: "ATTH",
				Data: zotero.ItemData{
					Key:         "ATTH",
					ItemType:    "attachment",
					ContentType: "text/html",
					Filename:    "paper.html",
					MD5:         "d41d8cd98f00b204e9800998ecf8427e",
				},
			},
		},
	}
	f.library.files = map[string][]byte{
		"ATTH": []byte("<html><body><p>Snapshot body text.</p></body></html>"),
	}

	// No PDF extractor is registered, so the HTML sibling must be picked
	// instead of failing on the PDF.
	stats, err := f.engine.Run(ctx, Params{ExtractFulltext: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.AddedItems != 1 || stats.Errors != 0 {
		t.Errorf("stats = %+v, want fulltext from the HTML sibling", stats)
	}

	entry, ok := f.store.get("F4")
	if !ok {
		t.Fatal("F4 not indexed")
	}
	if !entry.Metadata.Fulltext {
		t.Error("fulltext flag not set")
	}
	if want := "Snapshot body text."; !strings.Contains(entry.Document, want) {
		t.Errorf("document %q missing extracted text", entry.Document)
	}
}
