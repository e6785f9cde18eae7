package embedder

import (
	"context"
	"errors"
	"math"
	"testing"
)

var tfidfCorpus = []string{
	"machine learning models require training data",
	"deep learning networks learn hierarchical features",
	"databases store structured records for retrieval",
	"vector databases index embeddings for similarity search",
}

func fittedTFIDF(t *testing.T, p Params) Embedder {
	t.Helper()
	e, err := New(TypeTFIDF, p)
	if err != nil {
		t.Fatalf("New(tfidf): %v", err)
	}
	if err := e.(Trainable).Fit(tfidfCorpus); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	return e
}

func TestTFIDF_Deterministic(t *testing.T) {
	e := fittedTFIDF(t, Params{"max_features": float64(50)})

	a, err := e.Embed(context.Background(), "machine learning with vector databases")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	b, err := e.Embed(context.Background(), "machine learning with vector databases")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("vectors differ at index %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestTFIDF_DimensionFixedByConfig(t *testing.T) {
	e := fittedTFIDF(t, Params{"max_features": float64(10)})
	if e.Dimension() != 10 {
		t.Fatalf("Dimension() = %d, want 10", e.Dimension())
	}
	vec, err := e.Embed(context.Background(), "learning data")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 10 {
		t.Errorf("vector length = %d, want 10", len(vec))
	}
}

func TestTFIDF_UnitNorm(t *testing.T) {
	e := fittedTFIDF(t, Params{"max_features": float64(50)})
	vec, err := e.Embed(context.Background(), "deep learning networks")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if math.Abs(math.Sqrt(norm)-1.0) > 1e-5 {
		t.Errorf("norm = %v, want 1.0", math.Sqrt(norm))
	}
}

func TestTFIDF_OutOfVocabularyIsZeroVector(t *testing.T) {
	e := fittedTFIDF(t, Params{"max_features": float64(50)})
	vec, err := e.Embed(context.Background(), "完全不同的語言")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	for i, v := range vec {
		if v != 0 {
			t.Fatalf("expected zero vector, got %v at index %d", v, i)
		}
	}
}

func TestTFIDF_RequiresFit(t *testing.T) {
	e, err := New(TypeTFIDF, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = e.Embed(context.Background(), "anything")
	if err == nil {
		t.Fatal("expected error before Fit")
	}
	var compErr *ComputeError
	if !errors.As(err, &compErr) {
		t.Errorf("expected *ComputeError, got %T", err)
	}
}

func TestTFIDF_EmptyInput(t *testing.T) {
	e := fittedTFIDF(t, Params{"max_features": float64(50)})
	_, err := e.Embed(context.Background(), "   ")
	if err == nil {
		t.Fatal("expected error for empty input")
	}
	var compErr *ComputeError
	if !errors.As(err, &compErr) {
		t.Errorf("expected *ComputeError, got %T", err)
	}
}

func TestTFIDF_FitHashDistinguishesCorpora(t *testing.T) {
	e1 := fittedTFIDF(t, Params{"max_features": float64(50)})

	e2, err := New(TypeTFIDF, Params{"max_features": float64(50)})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := e2.(Trainable).Fit([]string{"an entirely different corpus of text"}); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	if e1.ConfigJSON() == e2.ConfigJSON() {
		t.Error("configs fitted on different corpora should fingerprint differently")
	}
}

func TestTFIDF_Ngrams(t *testing.T) {
	e, err := New(TypeTFIDF, Params{
		"max_features": float64(100),
		"ngram_range":  []any{float64(1), float64(2)},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	corpus := []string{"red green", "red blue", "green blue red green"}
	if err := e.(Trainable).Fit(corpus); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	emb := e.(*tfidfEmbedder)
	if _, ok := emb.vocabulary["red green"]; !ok {
		t.Error("expected bigram 'red green' in vocabulary")
	}
}
