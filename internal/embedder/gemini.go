package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// geminiModelDims maps known Gemini embedding models to their output
// dimensionality.
var geminiModelDims = map[string]int{
	"text-embedding-004": 768,
	"embedding-001":      768,
}

type geminiConfig struct {
	ModelName string `json:"model_name"`
}

// geminiEmbedder calls the Generative Language embedContent API.
type geminiEmbedder struct {
	cfg     geminiConfig
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewGemini constructs a GeminiEmbedder from layer parameters. The API
// key comes from the api_key parameter or GEMINI_API_KEY.
func NewGemini(p Params) (Embedder, error) {
	if bad := unknownKeys(p, "model_name", "api_key"); len(bad) > 0 {
		return nil, &ConfigError{Param: bad[0], Reason: "unknown parameter for GeminiEmbedder"}
	}
	model, err := p.String("model_name", "text-embedding-004")
	if err != nil {
		return nil, &ConfigError{Param: "model_name", Reason: err.Error()}
	}
	if _, ok := geminiModelDims[model]; !ok {
		return nil, &ConfigError{Param: "model_name", Reason: fmt.Sprintf("unknown model %q", model)}
	}
	apiKey, err := p.String("api_key", "")
	if err != nil {
		return nil, &ConfigError{Param: "api_key", Reason: err.Error()}
	}
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, &ConfigError{Param: "api_key", Reason: "missing API key (set api_key or GEMINI_API_KEY)"}
	}
	return &geminiEmbedder{
		cfg:     geminiConfig{ModelName: model},
		apiKey:  apiKey,
		baseURL: geminiBaseURL,
		client:  &http.Client{},
	}, nil
}

func (e *geminiEmbedder) Name() string       { return TypeGemini }
func (e *geminiEmbedder) Dimension() int     { return geminiModelDims[e.cfg.ModelName] }
func (e *geminiEmbedder) ConfigJSON() string { return canonicalJSON(e.cfg) }

type geminiEmbedPart struct {
	Text string `json:"text"`
}

type geminiEmbedContent struct {
	Parts []geminiEmbedPart `json:"parts"`
}

type geminiEmbedRequest struct {
	Model   string             `json:"model"`
	Content geminiEmbedContent `json:"content"`
}

type geminiEmbedResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

func (e *geminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, &ComputeError{Layer: TypeGemini, Err: errors.New("empty input")}
	}

	body, err := json.Marshal(geminiEmbedRequest{
		Model:   "models/" + e.cfg.ModelName,
		Content: geminiEmbedContent{Parts: []geminiEmbedPart{{Text: text}}},
	})
	if err != nil {
		return nil, &ComputeError{Layer: TypeGemini, Input: InputLabel(text), Err: fmt.Errorf("marshal: %w", err)}
	}

	url := fmt.Sprintf("%s/models/%s:embedContent?key=%s", e.baseURL, e.cfg.ModelName, e.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &ComputeError{Layer: TypeGemini, Input: InputLabel(text), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, &ComputeError{Layer: TypeGemini, Input: InputLabel(text), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &ComputeError{Layer: TypeGemini, Input: InputLabel(text), Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var result geminiEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &ComputeError{Layer: TypeGemini, Input: InputLabel(text), Err: fmt.Errorf("decode: %w", err)}
	}
	if len(result.Embedding.Values) == 0 {
		return nil, &ComputeError{Layer: TypeGemini, Input: InputLabel(text), Err: errors.New("empty response")}
	}
	return result.Embedding.Values, nil
}
