package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"sort"
)

type tfidfConfig struct {
	MaxFeatures int    `json:"max_features"`
	NgramMin    int    `json:"ngram_min"`
	NgramMax    int    `json:"ngram_max"`
	FitHash     string `json:"fit_hash,omitempty"`
}

// tfidfEmbedder is an in-process TF-IDF vectorizer. The vocabulary and
// smoothed IDF values come from Fit; output vectors are L2-normalized.
// Dimension is fixed at max_features regardless of fitted vocabulary
// size, so it is known before fitting.
type tfidfEmbedder struct {
	cfg        tfidfConfig
	vocabulary map[string]int
	idf        []float64
	fitted     bool
}

// NewTFIDF constructs a TFIDFEmbedder from layer parameters.
func NewTFIDF(p Params) (Embedder, error) {
	if bad := unknownKeys(p, "max_features", "ngram_range"); len(bad) > 0 {
		return nil, &ConfigError{Param: bad[0], Reason: "unknown parameter for TFIDFEmbedder"}
	}
	maxFeatures, err := p.Int("max_features", 1000)
	if err != nil {
		return nil, &ConfigError{Param: "max_features", Reason: err.Error()}
	}
	if maxFeatures <= 0 {
		return nil, &ConfigError{Param: "max_features", Reason: fmt.Sprintf("must be positive, got %d", maxFeatures)}
	}
	ngram, err := p.IntPair("ngram_range", [2]int{1, 1})
	if err != nil {
		return nil, &ConfigError{Param: "ngram_range", Reason: err.Error()}
	}
	if ngram[0] < 1 || ngram[1] < ngram[0] {
		return nil, &ConfigError{Param: "ngram_range", Reason: fmt.Sprintf("invalid range %v", ngram)}
	}
	return &tfidfEmbedder{
		cfg: tfidfConfig{MaxFeatures: maxFeatures, NgramMin: ngram[0], NgramMax: ngram[1]},
	}, nil
}

func (e *tfidfEmbedder) Name() string       { return TypeTFIDF }
func (e *tfidfEmbedder) Dimension() int     { return e.cfg.MaxFeatures }
func (e *tfidfEmbedder) ConfigJSON() string { return canonicalJSON(e.cfg) }

// Fit builds the vocabulary and IDF values from the corpus. The selected
// terms are the most document-frequent ones, capped at max_features, with
// alphabetical index order for stable vector positions. A fingerprint of
// the fitted state is folded into ConfigJSON so cache entries from
// different corpora never collide.
func (e *tfidfEmbedder) Fit(corpus []string) error {
	if len(corpus) == 0 {
		return errors.New("tfidf: empty corpus")
	}
	df := make(map[string]int)
	for _, text := range corpus {
		terms := ngrams(tokenize(text), e.cfg.NgramMin, e.cfg.NgramMax)
		seen := make(map[string]struct{}, len(terms))
		for _, t := range terms {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			df[t]++
		}
	}
	if len(df) == 0 {
		return errors.New("tfidf: no tokens found in corpus")
	}

	terms := make([]string, 0, len(df))
	for t := range df {
		terms = append(terms, t)
	}
	// Keep the most frequent terms, ties broken alphabetically.
	sort.Slice(terms, func(i, j int) bool {
		if df[terms[i]] != df[terms[j]] {
			return df[terms[i]] > df[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if len(terms) > e.cfg.MaxFeatures {
		terms = terms[:e.cfg.MaxFeatures]
	}
	sort.Strings(terms)

	e.vocabulary = make(map[string]int, len(terms))
	e.idf = make([]float64, len(terms))
	n := float64(len(corpus))
	h := sha256.New()
	for i, t := range terms {
		e.vocabulary[t] = i
		e.idf[i] = math.Log((1+n)/(1+float64(df[t]))) + 1.0
		fmt.Fprintf(h, "%s\x00%d\x00", t, df[t])
	}
	fmt.Fprintf(h, "n=%d", len(corpus))
	e.cfg.FitHash = hex.EncodeToString(h.Sum(nil))[:16]
	e.fitted = true
	return nil
}

func (e *tfidfEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if !e.fitted {
		return nil, &ComputeError{Layer: TypeTFIDF, Input: InputLabel(text), Err: errors.New("not fitted; call Fit first")}
	}
	terms := ngrams(tokenize(text), e.cfg.NgramMin, e.cfg.NgramMax)
	if len(terms) == 0 {
		return nil, &ComputeError{Layer: TypeTFIDF, Input: InputLabel(text), Err: errors.New("no tokens in input")}
	}

	tf := make(map[int]int)
	total := 0
	for _, t := range terms {
		if idx, ok := e.vocabulary[t]; ok {
			tf[idx]++
			total++
		}
	}
	vec := make([]float32, e.cfg.MaxFeatures)
	if total == 0 {
		// Valid input, but entirely out of vocabulary.
		return vec, nil
	}
	var norm float64
	for idx, count := range tf {
		v := float64(count) / float64(total) * e.idf[idx]
		vec[idx] = float32(v)
		norm += v * v
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec, nil
}
