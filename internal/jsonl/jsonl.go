// Package jsonl streams JSON Lines records. Records are decoded as
// generic maps so unknown fields survive a read-modify-write pass
// untouched.
package jsonl

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Record is one decoded line.
type Record map[string]any

// Text assembles the embedding input for a record: the values of the
// main fields followed by the subtitle fields, joined with single
// spaces. Missing fields and non-string values are skipped. An empty
// result means the record has nothing to embed.
func (r Record) Text(mainFields, subtitleFields []string) string {
	parts := make([]string, 0, len(mainFields)+len(subtitleFields))
	for _, f := range append(append([]string{}, mainFields...), subtitleFields...) {
		if f == "" {
			continue
		}
		if s, ok := r[f].(string); ok && strings.TrimSpace(s) != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// scanner buffer limits. Embedding corpora carry long documents, so the
// per-line cap is generous.
const (
	initialBuf = 64 * 1024
	maxLine    = 16 * 1024 * 1024
)

// Reader decodes JSON Lines from a stream, skipping blank lines.
type Reader struct {
	sc   *bufio.Scanner
	line int
}

func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, initialBuf), maxLine)
	return &Reader{sc: sc}
}

// Read returns the next record, or io.EOF at end of input. Malformed
// lines fail with their line number.
func (r *Reader) Read() (Record, error) {
	for r.sc.Scan() {
		r.line++
		line := strings.TrimSpace(r.sc.Text())
		if line == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, fmt.Errorf("jsonl: line %d: %w", r.line, err)
		}
		return rec, nil
	}
	if err := r.sc.Err(); err != nil {
		return nil, fmt.Errorf("jsonl: line %d: %w", r.line+1, err)
	}
	return nil, io.EOF
}

// ReadAll drains the stream.
func (r *Reader) ReadAll() ([]Record, error) {
	var out []Record
	for {
		rec, err := r.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
}

// Writer encodes records one per line.
type Writer struct {
	enc *json.Encoder
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{enc: json.NewEncoder(w)}
}

func (w *Writer) Write(rec Record) error {
	if err := w.enc.Encode(rec); err != nil {
		return fmt.Errorf("jsonl: write: %w", err)
	}
	return nil
}

// WriteVector writes rec with the embedding attached under field, plus
// a companion <field>_dim with the vector width.
func (w *Writer) WriteVector(rec Record, field string, vec []float32) error {
	out := make(Record, len(rec)+2)
	for k, v := range rec {
		out[k] = v
	}
	out[field] = vec
	out[field+"_dim"] = len(vec)
	return w.Write(out)
}
