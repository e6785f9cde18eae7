// Package embedder provides pluggable text embedding variants behind a
// single capability interface, selected by a string type tag.
package embedder

import (
	"context"
	"sort"
	"strings"
)

// Embedder turns text into a fixed-length numeric vector. Output is
// deterministic for a fixed configuration: embedding the same text twice
// yields identical vectors.
type Embedder interface {
	// Name returns the registry type tag, e.g. "TFIDFEmbedder".
	Name() string

	// Dimension returns the output vector length. It is known before the
	// first Embed call so callers can pre-validate fusion compatibility.
	Dimension() int

	// ConfigJSON returns the canonical JSON form of the normalized
	// configuration. It participates in cache keys: embedders whose
	// output depends on fitted state include a fingerprint of that state.
	ConfigJSON() string

	// Embed computes the vector for text. Failures are reported as
	// *ComputeError and apply to this input only.
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Trainable is implemented by embedders that derive statistics from a
// corpus before encoding (TF-IDF vocabulary, topic assignments). Fit must
// be called before Embed for these variants.
type Trainable interface {
	Fit(corpus []string) error
}

// Factory constructs an Embedder from loosely-typed parameters,
// returning *ConfigError when required parameters are missing or invalid.
type Factory func(p Params) (Embedder, error)

// Type tags accepted in layer configs. The remote-model tags keep the
// vocabulary of existing config files: BGE and SentenceBert select
// Ollama-served equivalents of those models.
const (
	TypeTFIDF        = "TFIDFEmbedder"
	TypeHash         = "HashEmbedder"
	TypeTopic        = "TopicEmbedder"
	TypeOpenAI       = "OpenAIEmbedder"
	TypeOllama       = "OllamaEmbedder"
	TypeGemini       = "GeminiEmbedder"
	TypeBGE          = "BGEEmbedder"
	TypeSentenceBert = "SentenceBertEmbedder"
)

var registry = map[string]Factory{
	TypeTFIDF:  NewTFIDF,
	TypeHash:   NewHash,
	TypeTopic:  NewTopic,
	TypeOpenAI: NewOpenAI,
	TypeOllama: NewOllama,
	TypeGemini: NewGemini,
	TypeBGE: func(p Params) (Embedder, error) {
		return newOllamaTagged(TypeBGE, "bge-m3", 1024, p)
	},
	TypeSentenceBert: func(p Params) (Embedder, error) {
		return newOllamaTagged(TypeSentenceBert, "all-minilm", 384, p)
	},
}

// Register adds a Factory for a new type tag. Adding an embedder variant
// means one implementation and one Register call; the orchestrator is
// untouched.
func Register(tag string, f Factory) {
	registry[tag] = f
}

// New constructs the Embedder for the given type tag.
func New(tag string, p Params) (Embedder, error) {
	f, ok := registry[tag]
	if !ok {
		return nil, &ConfigError{
			Reason: "unknown embedder type " + tag + "; valid types: " + strings.Join(Tags(), ", "),
		}
	}
	return f(p)
}

// Tags returns the registered type tags, sorted.
func Tags() []string {
	out := make([]string, 0, len(registry))
	for tag := range registry {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}
