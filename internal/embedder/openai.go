package embedder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"
	openai "github.com/sashabaranov/go-openai"
)

// openaiModelDims maps known OpenAI embedding models to their native
// output dimensionality.
var openaiModelDims = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// maxEmbedTokens is the input token limit of the OpenAI embedding models.
const maxEmbedTokens = 8191

type openaiConfig struct {
	ModelName  string `json:"model_name"`
	Dimensions int    `json:"dimensions"`
}

// openaiEmbedder calls the OpenAI embeddings API. Inputs longer than the
// model's token limit are truncated with tiktoken before the call.
type openaiEmbedder struct {
	cfg    openaiConfig
	client *openai.Client

	encOnce sync.Once
	enc     *tiktoken.Tiktoken
	encErr  error
}

// NewOpenAI constructs an OpenAIEmbedder from layer parameters. The API
// key comes from the api_key parameter or OPENAI_API_KEY.
func NewOpenAI(p Params) (Embedder, error) {
	if bad := unknownKeys(p, "model_name", "api_key", "dimensions"); len(bad) > 0 {
		return nil, &ConfigError{Param: bad[0], Reason: "unknown parameter for OpenAIEmbedder"}
	}
	model, err := p.String("model_name", "text-embedding-3-small")
	if err != nil {
		return nil, &ConfigError{Param: "model_name", Reason: err.Error()}
	}
	native, ok := openaiModelDims[model]
	if !ok {
		return nil, &ConfigError{Param: "model_name", Reason: fmt.Sprintf("unknown model %q", model)}
	}
	dims, err := p.Int("dimensions", 0)
	if err != nil {
		return nil, &ConfigError{Param: "dimensions", Reason: err.Error()}
	}
	if dims < 0 || dims > native {
		return nil, &ConfigError{Param: "dimensions", Reason: fmt.Sprintf("must be in [1, %d] for %s", native, model)}
	}
	if dims == 0 {
		dims = native
	}
	apiKey, err := p.String("api_key", "")
	if err != nil {
		return nil, &ConfigError{Param: "api_key", Reason: err.Error()}
	}
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, &ConfigError{Param: "api_key", Reason: "missing API key (set api_key or OPENAI_API_KEY)"}
	}
	return &openaiEmbedder{
		cfg:    openaiConfig{ModelName: model, Dimensions: dims},
		client: openai.NewClient(apiKey),
	}, nil
}

func (e *openaiEmbedder) Name() string       { return TypeOpenAI }
func (e *openaiEmbedder) Dimension() int     { return e.cfg.Dimensions }
func (e *openaiEmbedder) ConfigJSON() string { return canonicalJSON(e.cfg) }

func (e *openaiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, &ComputeError{Layer: TypeOpenAI, Err: errors.New("empty input")}
	}
	text = e.truncate(text)

	req := openai.EmbeddingRequestStrings{
		Input: []string{text},
		Model: openai.EmbeddingModel(e.cfg.ModelName),
	}
	if e.cfg.Dimensions != openaiModelDims[e.cfg.ModelName] {
		req.Dimensions = e.cfg.Dimensions
	}
	resp, err := e.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, &ComputeError{Layer: TypeOpenAI, Input: InputLabel(text), Err: err}
	}
	if len(resp.Data) == 0 {
		return nil, &ComputeError{Layer: TypeOpenAI, Input: InputLabel(text), Err: errors.New("empty response")}
	}
	return resp.Data[0].Embedding, nil
}

// truncate caps text at the model's token limit using the cl100k_base
// encoding. Falls back to the raw text if the encoding is unavailable.
func (e *openaiEmbedder) truncate(text string) string {
	e.encOnce.Do(func() {
		e.enc, e.encErr = tiktoken.GetEncoding("cl100k_base")
	})
	if e.encErr != nil {
		return text
	}
	tokens := e.enc.Encode(text, nil, nil)
	if len(tokens) <= maxEmbedTokens {
		return text
	}
	return e.enc.Decode(tokens[:maxEmbedTokens])
}
