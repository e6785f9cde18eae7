package jsonl

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"testing"
)

func TestReaderSkipsBlankLines(t *testing.T) {
	in := strings.NewReader(`{"title": "first"}

{"title": "second"}
`)
	r := NewReader(in)

	recs, err := r.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("records = %d, want 2", len(recs))
	}
	if recs[0]["title"] != "first" || recs[1]["title"] != "second" {
		t.Errorf("records = %v", recs)
	}
}

func TestReaderReportsLineNumber(t *testing.T) {
	in := strings.NewReader("{\"ok\": true}\n{broken\n")
	r := NewReader(in)

	if _, err := r.Read(); err != nil {
		t.Fatalf("first read: %v", err)
	}
	_, err := r.Read()
	if err == nil {
		t.Fatal("expected parse error")
	}
	if !strings.Contains(err.Error(), "line 2") {
		t.Errorf("error %q does not name line 2", err)
	}
}

func TestReaderEOF(t *testing.T) {
	r := NewReader(strings.NewReader(""))
	if _, err := r.Read(); err != io.EOF {
		t.Errorf("err = %v, want io.EOF", err)
	}
}

func TestRecordText(t *testing.T) {
	rec := Record{
		"title":    "Machine Learning",
		"content":  "Deep models for text",
		"views":    float64(42),
		"category": "",
	}
	tests := []struct {
		name     string
		main     []string
		subtitle []string
		want     string
	}{
		{"main only", []string{"title"}, nil, "Machine Learning"},
		{"main and subtitle", []string{"title"}, []string{"content"}, "Machine Learning Deep models for text"},
		{"missing field skipped", []string{"title", "absent"}, nil, "Machine Learning"},
		{"non-string skipped", []string{"views", "title"}, nil, "Machine Learning"},
		{"empty value skipped", []string{"category", "title"}, nil, "Machine Learning"},
		{"no match", []string{"absent"}, nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rec.Text(tt.main, tt.subtitle); got != tt.want {
				t.Errorf("Text() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWriteVectorPreservesFields(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	rec := Record{"title": "doc", "id": float64(7)}
	if err := w.WriteVector(rec, "vector", []float32{0.5, 1.5}); err != nil {
		t.Fatalf("WriteVector: %v", err)
	}
	// Input record stays untouched.
	if _, ok := rec["vector"]; ok {
		t.Error("input record was mutated")
	}

	var out map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if out["title"] != "doc" || out["id"] != float64(7) {
		t.Errorf("original fields lost: %v", out)
	}
	if out["vector_dim"] != float64(2) {
		t.Errorf("vector_dim = %v, want 2", out["vector_dim"])
	}
	vec, ok := out["vector"].([]any)
	if !ok || len(vec) != 2 {
		t.Fatalf("vector = %v", out["vector"])
	}
	if vec[0] != float64(0.5) || vec[1] != float64(1.5) {
		t.Errorf("vector values = %v", vec)
	}
}

func TestRoundTripLargeLine(t *testing.T) {
	long := strings.Repeat("x", 200*1024)
	var buf bytes.Buffer
	if err := NewWriter(&buf).Write(Record{"text": long}); err != nil {
		t.Fatal(err)
	}
	rec, err := NewReader(&buf).Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if rec["text"] != long {
		t.Error("long line did not survive the round trip")
	}
}
