package embedder

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
)

type hashConfig struct {
	Dimensions int `json:"dimensions"`
	NgramMin   int `json:"ngram_min"`
	NgramMax   int `json:"ngram_max"`
}

// hashEmbedder is a feature-hashing vectorizer: each n-gram is hashed
// into one of D buckets with a hash-derived sign, and the result is
// L2-normalized. It needs no fitting, which makes it a deterministic
// lexical layer for corpora that are processed incrementally.
type hashEmbedder struct {
	cfg hashConfig
}

// NewHash constructs a HashEmbedder from layer parameters.
func NewHash(p Params) (Embedder, error) {
	if bad := unknownKeys(p, "dimensions", "ngram_range"); len(bad) > 0 {
		return nil, &ConfigError{Param: bad[0], Reason: "unknown parameter for HashEmbedder"}
	}
	dims, err := p.Int("dimensions", 256)
	if err != nil {
		return nil, &ConfigError{Param: "dimensions", Reason: err.Error()}
	}
	if dims <= 0 {
		return nil, &ConfigError{Param: "dimensions", Reason: fmt.Sprintf("must be positive, got %d", dims)}
	}
	ngram, err := p.IntPair("ngram_range", [2]int{1, 2})
	if err != nil {
		return nil, &ConfigError{Param: "ngram_range", Reason: err.Error()}
	}
	if ngram[0] < 1 || ngram[1] < ngram[0] {
		return nil, &ConfigError{Param: "ngram_range", Reason: fmt.Sprintf("invalid range %v", ngram)}
	}
	return &hashEmbedder{cfg: hashConfig{Dimensions: dims, NgramMin: ngram[0], NgramMax: ngram[1]}}, nil
}

func (e *hashEmbedder) Name() string       { return TypeHash }
func (e *hashEmbedder) Dimension() int     { return e.cfg.Dimensions }
func (e *hashEmbedder) ConfigJSON() string { return canonicalJSON(e.cfg) }

func (e *hashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	terms := ngrams(tokenize(text), e.cfg.NgramMin, e.cfg.NgramMax)
	if len(terms) == 0 {
		return nil, &ComputeError{Layer: TypeHash, Input: InputLabel(text), Err: errors.New("no tokens in input")}
	}
	vec := make([]float32, e.cfg.Dimensions)
	for _, t := range terms {
		h := fnv.New64a()
		h.Write([]byte(t))
		sum := h.Sum64()
		bucket := int(sum % uint64(e.cfg.Dimensions))
		// One hash bit decides the sign: keeps bucket collisions from
		// only ever accumulating.
		if sum&(1<<63) != 0 {
			vec[bucket]--
		} else {
			vec[bucket]++
		}
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec, nil
}
