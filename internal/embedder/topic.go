package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"sort"
)

type topicConfig struct {
	NTopics int    `json:"n_topics"`
	FitHash string `json:"fit_hash,omitempty"`
}

// topicEmbedder produces a topic-distribution vector: every vocabulary
// term is assigned to one of n_topics buckets by hash, and a text's
// vector is its IDF-weighted token mass per topic, normalized to sum to
// one. It is a deterministic, dependency-free stand-in for heavier topic
// models and keeps their output contract (a distribution over topics).
type topicEmbedder struct {
	cfg    topicConfig
	idf    map[string]float64
	fitted bool
}

// NewTopic constructs a TopicEmbedder from layer parameters.
func NewTopic(p Params) (Embedder, error) {
	if bad := unknownKeys(p, "n_topics"); len(bad) > 0 {
		return nil, &ConfigError{Param: bad[0], Reason: "unknown parameter for TopicEmbedder"}
	}
	nTopics, err := p.Int("n_topics", 8)
	if err != nil {
		return nil, &ConfigError{Param: "n_topics", Reason: err.Error()}
	}
	if nTopics <= 0 {
		return nil, &ConfigError{Param: "n_topics", Reason: fmt.Sprintf("must be positive, got %d", nTopics)}
	}
	return &topicEmbedder{cfg: topicConfig{NTopics: nTopics}}, nil
}

func (e *topicEmbedder) Name() string       { return TypeTopic }
func (e *topicEmbedder) Dimension() int     { return e.cfg.NTopics }
func (e *topicEmbedder) ConfigJSON() string { return canonicalJSON(e.cfg) }

// Fit derives IDF weights from the corpus so that common terms
// contribute less topic mass. Embedding still works without fitting,
// with uniform term weights.
func (e *topicEmbedder) Fit(corpus []string) error {
	if len(corpus) == 0 {
		return errors.New("topic: empty corpus")
	}
	df := make(map[string]int)
	for _, text := range corpus {
		seen := make(map[string]struct{})
		for _, t := range tokenize(text) {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			df[t]++
		}
	}
	if len(df) == 0 {
		return errors.New("topic: no tokens found in corpus")
	}

	terms := make([]string, 0, len(df))
	for t := range df {
		terms = append(terms, t)
	}
	sort.Strings(terms)

	e.idf = make(map[string]float64, len(terms))
	n := float64(len(corpus))
	h := sha256.New()
	for _, t := range terms {
		e.idf[t] = math.Log((1+n)/(1+float64(df[t]))) + 1.0
		fmt.Fprintf(h, "%s\x00%d\x00", t, df[t])
	}
	e.cfg.FitHash = hex.EncodeToString(h.Sum(nil))[:16]
	e.fitted = true
	return nil
}

func (e *topicEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return nil, &ComputeError{Layer: TypeTopic, Input: InputLabel(text), Err: errors.New("no tokens in input")}
	}
	vec := make([]float32, e.cfg.NTopics)
	var total float64
	for _, t := range tokens {
		weight := 1.0
		if e.fitted {
			if w, ok := e.idf[t]; ok {
				weight = w
			} else {
				continue
			}
		}
		h := fnv.New32a()
		h.Write([]byte(t))
		vec[int(h.Sum32())%e.cfg.NTopics] += float32(weight)
		total += weight
	}
	if total == 0 {
		return vec, nil
	}
	inv := float32(1 / total)
	for i := range vec {
		vec[i] *= inv
	}
	return vec, nil
}
