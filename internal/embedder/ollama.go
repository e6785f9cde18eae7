package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ollamaModelDims maps common Ollama embedding models to their output
// dimensionality. Other models need an explicit dimensions parameter.
var ollamaModelDims = map[string]int{
	"nomic-embed-text":  768,
	"mxbai-embed-large": 1024,
	"bge-m3":            1024,
	"all-minilm":        384,
}

type ollamaConfig struct {
	ModelName  string `json:"model_name"`
	Host       string `json:"host"`
	Dimensions int    `json:"dimensions"`
}

// ollamaEmbedder calls a local Ollama server's embed API.
type ollamaEmbedder struct {
	tag    string
	cfg    ollamaConfig
	client *http.Client
}

// NewOllama constructs an OllamaEmbedder from layer parameters.
func NewOllama(p Params) (Embedder, error) {
	return newOllamaTagged(TypeOllama, "nomic-embed-text", 0, p)
}

// newOllamaTagged backs OllamaEmbedder as well as the BGEEmbedder and
// SentenceBertEmbedder tags, which select Ollama-served equivalents of
// those models. The tag stays part of the identity reported by Name so
// cache keys distinguish the variants a config file names.
func newOllamaTagged(tag, defaultModel string, defaultDims int, p Params) (Embedder, error) {
	if bad := unknownKeys(p, "model_name", "host", "dimensions"); len(bad) > 0 {
		return nil, &ConfigError{Param: bad[0], Reason: "unknown parameter for " + tag}
	}
	model, err := p.String("model_name", defaultModel)
	if err != nil {
		return nil, &ConfigError{Param: "model_name", Reason: err.Error()}
	}
	host, err := p.String("host", "http://localhost:11434")
	if err != nil {
		return nil, &ConfigError{Param: "host", Reason: err.Error()}
	}
	dims, err := p.Int("dimensions", 0)
	if err != nil {
		return nil, &ConfigError{Param: "dimensions", Reason: err.Error()}
	}
	if dims == 0 {
		dims = ollamaModelDims[model]
	}
	if dims == 0 && defaultDims > 0 {
		dims = defaultDims
	}
	if dims <= 0 {
		return nil, &ConfigError{Param: "dimensions", Reason: fmt.Sprintf("unknown model %q; set dimensions explicitly", model)}
	}
	return &ollamaEmbedder{
		tag:    tag,
		cfg:    ollamaConfig{ModelName: model, Host: strings.TrimRight(host, "/"), Dimensions: dims},
		client: &http.Client{},
	}, nil
}

func (e *ollamaEmbedder) Name() string       { return e.tag }
func (e *ollamaEmbedder) Dimension() int     { return e.cfg.Dimensions }
func (e *ollamaEmbedder) ConfigJSON() string { return canonicalJSON(e.cfg) }

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func (e *ollamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, &ComputeError{Layer: e.tag, Err: errors.New("empty input")}
	}

	body, err := json.Marshal(ollamaEmbedRequest{Model: e.cfg.ModelName, Input: []string{text}})
	if err != nil {
		return nil, &ComputeError{Layer: e.tag, Input: InputLabel(text), Err: fmt.Errorf("marshal: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		e.cfg.Host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, &ComputeError{Layer: e.tag, Input: InputLabel(text), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, &ComputeError{Layer: e.tag, Input: InputLabel(text), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &ComputeError{Layer: e.tag, Input: InputLabel(text), Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var result ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &ComputeError{Layer: e.tag, Input: InputLabel(text), Err: fmt.Errorf("decode: %w", err)}
	}
	if len(result.Embeddings) == 0 {
		return nil, &ComputeError{Layer: e.tag, Input: InputLabel(text), Err: errors.New("empty response")}
	}
	vec := result.Embeddings[0]
	if len(vec) != e.cfg.Dimensions {
		return nil, &ComputeError{Layer: e.tag, Input: InputLabel(text),
			Err: fmt.Errorf("model returned %d dimensions, config declares %d", len(vec), e.cfg.Dimensions)}
	}
	return vec, nil
}
