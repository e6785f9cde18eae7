// Package cache provides the content-addressed embedding cache: a
// key → vector store fingerprinted over (text, embedder type, config).
package cache

import (
	"encoding/binary"
	"math"
	"time"
)

// Entry is one cached embedding.
type Entry struct {
	Key          string
	EmbedderType string
	Vector       []float32
	CreatedAt    time.Time
}

// Stats summarises the contents of a store.
type Stats struct {
	Entries int
	ByType  map[string]int
	Bytes   int64 // vector payload bytes
}

// Store is a persistent key → vector store. Entries are immutable: a Get
// after a successful Put with the same key returns the stored vector
// unchanged, concurrent Puts for one key keep the first write, and a Get
// never observes a partially written entry. The store is unbounded;
// clearing is always an explicit caller decision.
type Store interface {
	// Get returns the cached vector for key, reporting whether it exists.
	Get(key string) ([]float32, bool, error)

	// Put stores vec under key. If the key already exists the stored
	// value is kept: values are deterministic, so a second write is a
	// no-op by definition.
	Put(key, embedderType string, vec []float32) error

	// Enumerate calls fn for every entry. Returning an error from fn
	// stops the enumeration and propagates the error.
	Enumerate(fn func(Entry) error) error

	// Clear removes all entries.
	Clear() error

	// Stats reports entry counts and payload size.
	Stats() (Stats, error)
}

// vecToBlob serialises a float32 slice to a little-endian byte blob,
// the format sqlite-vec expects for BLOB column input.
func vecToBlob(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// blobToVec deserialises a little-endian byte blob to a float32 slice.
func blobToVec(b []byte) []float32 {
	result := make([]float32, len(b)/4)
	for i := range result {
		bits := binary.LittleEndian.Uint32(b[i*4:])
		result[i] = math.Float32frombits(bits)
	}
	return result
}
