package cache

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/vectorify/vectorify/internal/db"
)

// SQLiteStore is the durable Store backed by the embeddings table.
// SQLite's transactional writes give atomic entry visibility, and the
// insert-or-ignore Put gives first-writer-wins semantics for concurrent
// computations of the same key.
type SQLiteStore struct {
	conn *sql.DB
	vec  *vecIndex
}

// NewSQLiteStore creates a SQLiteStore backed by the given DB.
func NewSQLiteStore(database *db.DB) *SQLiteStore {
	return &SQLiteStore{
		conn: database.Conn(),
		vec:  newVecIndex(database.Conn()),
	}
}

func (s *SQLiteStore) Get(key string) ([]float32, bool, error) {
	var blob []byte
	row := s.conn.QueryRow(`SELECT vector FROM embeddings WHERE key = ?`, key)
	if err := row.Scan(&blob); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache: get %s: %w", key, err)
	}
	return blobToVec(blob), true, nil
}

func (s *SQLiteStore) Put(key, embedderType string, vec []float32) error {
	if len(vec) == 0 {
		return fmt.Errorf("cache: put %s: empty vector", key)
	}
	_, err := s.conn.Exec(
		`INSERT INTO embeddings (key, embedder_type, dimension, vector) VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO NOTHING`,
		key, embedderType, len(vec), vecToBlob(vec),
	)
	if err != nil {
		return fmt.Errorf("cache: put %s: %w", key, err)
	}
	// Best-effort similarity index; the cache works without it.
	s.vec.upsert(key, vec)
	return nil
}

func (s *SQLiteStore) Enumerate(fn func(Entry) error) error {
	rows, err := s.conn.Query(
		`SELECT key, embedder_type, vector, created_at FROM embeddings ORDER BY created_at`)
	if err != nil {
		return fmt.Errorf("cache: enumerate: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			e       Entry
			blob    []byte
			created time.Time
		)
		if err := rows.Scan(&e.Key, &e.EmbedderType, &blob, &created); err != nil {
			return fmt.Errorf("cache: enumerate scan: %w", err)
		}
		e.Vector = blobToVec(blob)
		e.CreatedAt = created
		if err := fn(e); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *SQLiteStore) Clear() error {
	if _, err := s.conn.Exec(`DELETE FROM embeddings`); err != nil {
		return fmt.Errorf("cache: clear: %w", err)
	}
	s.vec.clear()
	return nil
}

func (s *SQLiteStore) Stats() (Stats, error) {
	stats := Stats{ByType: make(map[string]int)}

	rows, err := s.conn.Query(
		`SELECT embedder_type, COUNT(*), COALESCE(SUM(dimension), 0) FROM embeddings GROUP BY embedder_type`)
	if err != nil {
		return stats, fmt.Errorf("cache: stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			typ  string
			n    int
			dims int64
		)
		if err := rows.Scan(&typ, &n, &dims); err != nil {
			return stats, fmt.Errorf("cache: stats scan: %w", err)
		}
		stats.ByType[typ] = n
		stats.Entries += n
		stats.Bytes += dims * 4
	}
	return stats, rows.Err()
}

// SearchSimilar returns the keys of the topK cached vectors nearest to
// query, restricted to vectors of the same dimensionality. Returns nil
// when the sqlite-vec extension is unavailable.
func (s *SQLiteStore) SearchSimilar(query []float32, topK int) ([]Match, error) {
	return s.vec.search(query, topK)
}
