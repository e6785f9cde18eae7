package cache

import (
	"database/sql"
	"fmt"
	"sync"
)

// vecIndex maintains sqlite-vec vec0 virtual tables over cached vectors
// so the CLI can look up nearest cached neighbours of a probe text.
// vec0 tables have a fixed column width, so one table is created lazily
// per dimensionality. Everything here is best-effort: when the vec
// extension is missing the cache degrades gracefully to a plain
// key-value store.
type vecIndex struct {
	conn *sql.DB

	mu     sync.Mutex
	tables map[int]bool // dimension -> table known to exist
	broken bool         // vec0 unavailable; stop trying
}

func newVecIndex(conn *sql.DB) *vecIndex {
	return &vecIndex{conn: conn, tables: make(map[int]bool)}
}

// Match is a single similarity search result.
type Match struct {
	Key      string
	Distance float64
}

func (v *vecIndex) tableFor(dim int) (string, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.broken {
		return "", false
	}
	name := fmt.Sprintf("vec_embeddings_%d", dim)
	if v.tables[dim] {
		return name, true
	}
	stmt := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS %s USING vec0(
			key TEXT PRIMARY KEY,
			embedding float[%d]
		)`, name, dim)
	if _, err := v.conn.Exec(stmt); err != nil {
		v.broken = true
		return "", false
	}
	v.tables[dim] = true
	return name, true
}

func (v *vecIndex) upsert(key string, vec []float32) {
	table, ok := v.tableFor(len(vec))
	if !ok {
		return
	}
	_, _ = v.conn.Exec(
		fmt.Sprintf(`INSERT INTO %s (key, embedding) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET embedding = excluded.embedding`, table),
		key, vecToBlob(vec),
	)
}

func (v *vecIndex) search(query []float32, topK int) ([]Match, error) {
	if len(query) == 0 || topK <= 0 {
		return nil, nil
	}
	table, ok := v.tableFor(len(query))
	if !ok {
		return nil, nil
	}
	rows, err := v.conn.Query(
		fmt.Sprintf(`SELECT key, distance FROM %s WHERE embedding MATCH ? AND k = ?
		 ORDER BY distance`, table),
		vecToBlob(query), topK,
	)
	if err != nil {
		// sqlite-vec may not be loaded; degrade gracefully.
		return nil, nil //nolint:nilerr
	}
	defer rows.Close()

	var out []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.Key, &m.Distance); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (v *vecIndex) clear() {
	v.mu.Lock()
	defer v.mu.Unlock()
	// Index tables may predate this process; discover them all.
	rows, err := v.conn.Query(
		`SELECT name FROM sqlite_master
		 WHERE type = 'table' AND name LIKE 'vec_embeddings_%'
		   AND sql LIKE 'CREATE VIRTUAL TABLE%'`)
	if err != nil {
		return
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return
		}
		names = append(names, name)
	}
	for _, name := range names {
		_, _ = v.conn.Exec(`DROP TABLE IF EXISTS ` + name)
	}
	v.tables = make(map[int]bool)
}
