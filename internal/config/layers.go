package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/vectorify/vectorify/internal/embedder"
)

// LayerSpec declares one embedding layer: an embedder variant bound to a
// name and a fusion weight.
type LayerSpec struct {
	Name   string          `json:"name"`
	Type   string          `json:"type"`
	Config embedder.Params `json:"config"`
	Weight float64         `json:"weight"`
}

// UnmarshalJSON defaults an absent weight to 1 while keeping an explicit
// zero weight distinguishable from a missing one.
func (l *LayerSpec) UnmarshalJSON(data []byte) error {
	type alias LayerSpec
	aux := struct {
		Weight *float64 `json:"weight"`
		*alias
	}{alias: (*alias)(l)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Weight == nil {
		l.Weight = 1
	} else {
		l.Weight = *aux.Weight
	}
	return nil
}

// FusionSpec declares how layer vectors are combined. Normalize rescales
// static weights to sum to one; NormalizeOutput scales the fused vector
// to unit norm. The two are independent.
type FusionSpec struct {
	Method          string `json:"method"`
	Normalize       bool   `json:"normalize"`
	NormalizeOutput bool   `json:"normalize_output"`
	AttentionScorer string `json:"attention_scorer"`
}

// LayerSet is a parsed multi-layer embedding configuration.
type LayerSet struct {
	Layers []LayerSpec `json:"layers"`
	Fusion FusionSpec  `json:"fusion"`
}

// wrapperFile is the alternative config shape: a single embedder record
// whose type is MultiLayerEmbedder and whose config nests the layer
// list.
type wrapperFile struct {
	EmbedderType string `json:"embedder_type"`
	Config       struct {
		EmbedderConfigs []LayerSpec `json:"embedder_configs"`
		FusionMethod    string      `json:"fusion_method"`
		FusionNormalize bool        `json:"fusion_normalize"`
		NormalizeOutput bool        `json:"normalize_output"`
		AttentionScorer string      `json:"attention_scorer"`
	} `json:"config"`
}

// LoadLayerSet reads and parses a layer-spec file.
func LoadLayerSet(path string) (*LayerSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	set, err := ParseLayerSet(data)
	if err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return set, nil
}

// ParseLayerSet parses a layer-spec document. Two shapes are accepted:
//
//	{"layers": [{name, type, config, weight}, ...],
//	 "fusion": {"method": "...", "normalize": true}}
//
// and the wrapper form emitted by older config files:
//
//	{"embedder_type": "MultiLayerEmbedder",
//	 "config": {"embedder_configs": [...], "fusion_method": "..."}}
//
// Missing weights default to 1. Structural validation beyond JSON shape
// (duplicate names, unknown types, dimensionalities) belongs to the
// orchestrator's Validate.
func ParseLayerSet(data []byte) (*LayerSet, error) {
	// Peek at the top-level keys to pick the shape.
	var probe struct {
		Layers       json.RawMessage `json:"layers"`
		EmbedderType string          `json:"embedder_type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	var set LayerSet
	switch {
	case probe.Layers != nil:
		if err := json.Unmarshal(data, &set); err != nil {
			return nil, fmt.Errorf("invalid layer config: %w", err)
		}

	case probe.EmbedderType == "MultiLayerEmbedder":
		var w wrapperFile
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("invalid wrapper config: %w", err)
		}
		set.Layers = w.Config.EmbedderConfigs
		set.Fusion = FusionSpec{
			Method:          w.Config.FusionMethod,
			Normalize:       w.Config.FusionNormalize,
			NormalizeOutput: w.Config.NormalizeOutput,
			AttentionScorer: w.Config.AttentionScorer,
		}

	case probe.EmbedderType != "":
		return nil, fmt.Errorf("embedder_type %q: only MultiLayerEmbedder configs describe layer sets", probe.EmbedderType)

	default:
		return nil, fmt.Errorf("unrecognized config shape: expected a layers array or a MultiLayerEmbedder wrapper")
	}

	if set.Fusion.Method == "" {
		set.Fusion.Method = "concat"
	}
	return &set, nil
}

// ApplyDefaults fills provider parameters from the global config where
// a layer does not set them itself. Precedence is unchanged: explicit
// layer params win, then the provider's environment variable, then
// these global values.
func (s *LayerSet) ApplyDefaults(g GlobalConfig) {
	for i := range s.Layers {
		l := &s.Layers[i]
		if l.Config == nil {
			l.Config = embedder.Params{}
		}
		switch l.Type {
		case embedder.TypeOpenAI:
			defaultAPIKey(l.Config, "OPENAI_API_KEY", g.Keys.OpenAI)
		case embedder.TypeGemini:
			defaultAPIKey(l.Config, "GEMINI_API_KEY", g.Keys.Gemini)
		case embedder.TypeOllama:
			if _, ok := l.Config["model_name"]; !ok && g.Ollama.EmbedModel != "" {
				l.Config["model_name"] = g.Ollama.EmbedModel
			}
			fallthrough
		case embedder.TypeBGE, embedder.TypeSentenceBert:
			if _, ok := l.Config["host"]; !ok && g.Ollama.Host != "" {
				l.Config["host"] = g.Ollama.Host
			}
		}
	}
}

// defaultAPIKey injects the global key only when the layer sets no
// api_key and the environment variable the embedder would consult is
// unset, so env keys keep precedence over config file keys.
func defaultAPIKey(p embedder.Params, envVar, key string) {
	if _, ok := p["api_key"]; ok || key == "" || os.Getenv(envVar) != "" {
		return
	}
	p["api_key"] = key
}
