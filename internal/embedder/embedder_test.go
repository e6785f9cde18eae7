package embedder

import (
	"errors"
	"testing"
)

func TestNew_ValidTypes(t *testing.T) {
	tests := []struct {
		tag string
		p   Params
	}{
		{TypeTFIDF, Params{"max_features": float64(100)}},
		{TypeHash, Params{"dimensions": float64(64)}},
		{TypeTopic, Params{"n_topics": float64(4)}},
		{TypeOllama, nil},
		{TypeBGE, nil},
		{TypeSentenceBert, nil},
	}

	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			e, err := New(tt.tag, tt.p)
			if err != nil {
				t.Fatalf("New(%q) error: %v", tt.tag, err)
			}
			if e == nil {
				t.Fatalf("New(%q) returned nil embedder", tt.tag)
			}
			if e.Name() != tt.tag {
				t.Errorf("Name() = %q, want %q", e.Name(), tt.tag)
			}
			if e.Dimension() <= 0 {
				t.Errorf("Dimension() = %d, want positive", e.Dimension())
			}
		})
	}
}

func TestNew_UnknownType(t *testing.T) {
	_, err := New("WordPieceEmbedder", nil)
	if err == nil {
		t.Fatal("expected error for unknown embedder type")
	}
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Errorf("expected *ConfigError, got %T", err)
	}
}

func TestNew_UnknownParameter(t *testing.T) {
	_, err := New(TypeHash, Params{"dimenions": float64(64)})
	if err == nil {
		t.Fatal("expected error for misspelled parameter")
	}
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *ConfigError, got %T", err)
	}
	if cfgErr.Param != "dimenions" {
		t.Errorf("Param = %q, want %q", cfgErr.Param, "dimenions")
	}
}

func TestNew_InvalidParameterValues(t *testing.T) {
	tests := []struct {
		name string
		tag  string
		p    Params
	}{
		{"non-positive max_features", TypeTFIDF, Params{"max_features": float64(0)}},
		{"non-integer max_features", TypeTFIDF, Params{"max_features": 2.5}},
		{"inverted ngram_range", TypeTFIDF, Params{"ngram_range": []any{float64(3), float64(1)}}},
		{"non-positive dimensions", TypeHash, Params{"dimensions": float64(-8)}},
		{"non-positive n_topics", TypeTopic, Params{"n_topics": float64(0)}},
		{"unknown openai model", TypeOpenAI, Params{"model_name": "text-embedding-9", "api_key": "k"}},
		{"unknown gemini model", TypeGemini, Params{"model_name": "nope", "api_key": "k"}},
		{"unknown ollama model without dims", TypeOllama, Params{"model_name": "mystery-model"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.tag, tt.p)
			if err == nil {
				t.Fatal("expected configuration error")
			}
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Errorf("expected *ConfigError, got %T: %v", err, err)
			}
		})
	}
}

func TestRegister_CustomType(t *testing.T) {
	Register("NullEmbedder", func(p Params) (Embedder, error) {
		return nil, errors.New("not implemented")
	})
	defer delete(registry, "NullEmbedder")

	if _, err := New("NullEmbedder", nil); err == nil {
		t.Error("expected factory error to propagate")
	}
}

func TestConfigJSON_Canonical(t *testing.T) {
	a, err := New(TypeHash, Params{"dimensions": float64(64), "ngram_range": []any{float64(1), float64(2)}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// Same recognized values, different input typing and order.
	b, err := New(TypeHash, Params{"ngram_range": []any{1, 2}, "dimensions": 64})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.ConfigJSON() != b.ConfigJSON() {
		t.Errorf("canonical configs differ:\n%s\n%s", a.ConfigJSON(), b.ConfigJSON())
	}

	c, err := New(TypeHash, Params{"dimensions": float64(128)})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.ConfigJSON() == c.ConfigJSON() {
		t.Error("distinct configs produced identical canonical forms")
	}
}

func TestInputLabel_Truncates(t *testing.T) {
	long := ""
	for i := 0; i < 50; i++ {
		long += "x"
	}
	got := InputLabel(long)
	if len([]rune(got)) != 43 {
		t.Errorf("label length = %d, want 43", len([]rune(got)))
	}
	if InputLabel("short") != "short" {
		t.Errorf("short input should be unchanged")
	}
}
