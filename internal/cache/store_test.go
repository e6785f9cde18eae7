package cache

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/vectorify/vectorify/internal/db"
)

func setupSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	database, err := db.Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewSQLiteStore(database)
}

// runStoreContract exercises the Store interface guarantees against any
// implementation.
func runStoreContract(t *testing.T, store Store) {
	t.Helper()

	// Miss before any Put.
	if _, ok, err := store.Get("missing"); err != nil || ok {
		t.Fatalf("Get(missing) = ok=%v err=%v, want miss", ok, err)
	}

	vec := []float32{0.1, 0.2, 0.3, 0.4}
	if err := store.Put("k1", "HashEmbedder", vec); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok, err := store.Get("k1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("Get after Put reported a miss")
	}
	if len(got) != len(vec) {
		t.Fatalf("vector length = %d, want %d", len(got), len(vec))
	}
	for i := range vec {
		if got[i] != vec[i] {
			t.Errorf("vector[%d] = %v, want %v", i, got[i], vec[i])
		}
	}

	// First writer wins: a second Put under the same key is a no-op.
	if err := store.Put("k1", "HashEmbedder", []float32{9, 9, 9, 9}); err != nil {
		t.Fatalf("second Put: %v", err)
	}
	got, _, _ = store.Get("k1")
	if got[0] != 0.1 {
		t.Errorf("second Put overwrote entry: got %v", got[0])
	}

	if err := store.Put("k2", "TFIDFEmbedder", []float32{1, 2}); err != nil {
		t.Fatalf("Put k2: %v", err)
	}

	stats, err := store.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Entries != 2 {
		t.Errorf("Entries = %d, want 2", stats.Entries)
	}
	if stats.ByType["HashEmbedder"] != 1 || stats.ByType["TFIDFEmbedder"] != 1 {
		t.Errorf("ByType = %v", stats.ByType)
	}
	if stats.Bytes != (4+2)*4 {
		t.Errorf("Bytes = %d, want %d", stats.Bytes, (4+2)*4)
	}

	seen := map[string]bool{}
	if err := store.Enumerate(func(e Entry) error {
		seen[e.Key] = true
		return nil
	}); err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	if !seen["k1"] || !seen["k2"] {
		t.Errorf("Enumerate missed entries: %v", seen)
	}

	sentinel := errors.New("stop")
	if err := store.Enumerate(func(Entry) error { return sentinel }); !errors.Is(err, sentinel) {
		t.Errorf("Enumerate should propagate fn errors, got %v", err)
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, ok, _ := store.Get("k1"); ok {
		t.Error("entry survived Clear")
	}
	stats, _ = store.Stats()
	if stats.Entries != 0 {
		t.Errorf("Entries after Clear = %d, want 0", stats.Entries)
	}
}

func TestMemoryStore_Contract(t *testing.T) {
	runStoreContract(t, NewMemoryStore())
}

func TestSQLiteStore_Contract(t *testing.T) {
	runStoreContract(t, setupSQLiteStore(t))
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	database, err := db.Open(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	store := NewSQLiteStore(database)
	if err := store.Put("persistent", "HashEmbedder", []float32{1, 2, 3}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	database.Close()

	reopened, err := db.Open(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	vec, ok, err := NewSQLiteStore(reopened).Get("persistent")
	if err != nil || !ok {
		t.Fatalf("Get after reopen: ok=%v err=%v", ok, err)
	}
	if vec[2] != 3 {
		t.Errorf("vector[2] = %v, want 3", vec[2])
	}
}

func TestMemoryStore_ConcurrentPutsSameKey(t *testing.T) {
	store := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = store.Put("shared", "HashEmbedder", []float32{float32(i)})
		}(i)
	}
	wg.Wait()

	vec, ok, err := store.Get("shared")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if len(vec) != 1 {
		t.Fatalf("vector length = %d, want 1", len(vec))
	}
	stats, _ := store.Stats()
	if stats.Entries != 1 {
		t.Errorf("Entries = %d, want 1", stats.Entries)
	}
}

func TestMemoryStore_GetReturnsStableCopy(t *testing.T) {
	store := NewMemoryStore()
	original := []float32{1, 2, 3}
	_ = store.Put("k", "HashEmbedder", original)

	// Mutating the caller's slice must not reach the stored entry.
	original[0] = 99
	vec, _, _ := store.Get("k")
	if vec[0] != 1 {
		t.Errorf("stored vector mutated through caller slice: %v", vec[0])
	}
}

func TestBlobRoundTrip(t *testing.T) {
	in := []float32{0, -1.5, 3.25, 1e-9, 1e9}
	out := blobToVec(vecToBlob(in))
	if len(out) != len(in) {
		t.Fatalf("length = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("round trip changed value at %d: %v vs %v", i, in[i], out[i])
		}
	}
}
