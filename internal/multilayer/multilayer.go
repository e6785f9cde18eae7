// Package multilayer composes several embedding layers into one vector
// producer. Each layer runs its own embedder, layer outputs are fused
// according to the configured method, and per-layer results are served
// from a write-through cache keyed by content fingerprint.
package multilayer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/sync/singleflight"

	"github.com/vectorify/vectorify/internal/cache"
	"github.com/vectorify/vectorify/internal/config"
	"github.com/vectorify/vectorify/internal/embedder"
	"github.com/vectorify/vectorify/internal/fusion"
)

// Layer is one constructed embedding layer.
type Layer struct {
	Name     string
	Type     string
	Weight   float64
	Embedder embedder.Embedder
}

// Composite runs a validated set of layers and fuses their outputs. It
// satisfies embedder.Embedder so a composite can be used anywhere a
// single embedder can.
type Composite struct {
	layers []Layer
	spec   fusion.Spec
	store  cache.Store
	flight singleflight.Group

	// Warnf reports non-fatal cache failures. The cache degrades to
	// direct computation instead of failing the run.
	Warnf func(format string, args ...any)
}

// New constructs every layer from the set, validates the configuration
// as a whole, and binds the cache store. A nil store disables caching.
// All configuration problems surface here, before any input is
// processed.
func New(set *config.LayerSet, store cache.Store) (*Composite, error) {
	if len(set.Layers) == 0 {
		return nil, &embedder.ConfigError{Reason: "at least one layer is required"}
	}

	method, err := fusion.ParseMethod(set.Fusion.Method)
	if err != nil {
		return nil, err
	}
	spec := fusion.Spec{
		Method:           method,
		NormalizeWeights: set.Fusion.Normalize,
		NormalizeOutput:  set.Fusion.NormalizeOutput,
		Scorer:           set.Fusion.AttentionScorer,
	}

	c := &Composite{
		spec:  spec,
		store: store,
		Warnf: func(format string, args ...any) {
			fmt.Fprintf(os.Stderr, "warning: "+format+"\n", args...)
		},
	}

	seen := make(map[string]bool, len(set.Layers))
	names := make([]string, 0, len(set.Layers))
	dims := make([]int, 0, len(set.Layers))
	for _, ls := range set.Layers {
		if ls.Name == "" {
			return nil, &embedder.ConfigError{Reason: "layer without a name"}
		}
		if seen[ls.Name] {
			return nil, &embedder.ConfigError{Layer: ls.Name, Reason: "duplicate layer name"}
		}
		seen[ls.Name] = true
		if ls.Weight < 0 {
			return nil, &embedder.ConfigError{
				Layer: ls.Name, Param: "weight",
				Reason: fmt.Sprintf("weight must be non-negative, got %v", ls.Weight),
			}
		}
		emb, err := embedder.New(ls.Type, ls.Config)
		if err != nil {
			if ce, ok := err.(*embedder.ConfigError); ok && ce.Layer == "" {
				ce.Layer = ls.Name
			}
			return nil, err
		}
		c.layers = append(c.layers, Layer{
			Name: ls.Name, Type: ls.Type, Weight: ls.Weight, Embedder: emb,
		})
		names = append(names, ls.Name)
		dims = append(dims, emb.Dimension())
	}

	if err := spec.Validate(names, dims); err != nil {
		return nil, err
	}
	return c, nil
}

// Layers returns the constructed layers in declaration order.
func (c *Composite) Layers() []Layer { return c.layers }

func (c *Composite) Name() string { return "MultiLayerEmbedder" }

// Dimension is the fused output width: the dimension sum for concat,
// the shared layer dimension otherwise.
func (c *Composite) Dimension() int {
	if c.spec.Method == fusion.Concat {
		total := 0
		for _, l := range c.layers {
			total += l.Embedder.Dimension()
		}
		return total
	}
	return c.layers[0].Embedder.Dimension()
}

// ConfigJSON describes the whole composite, layer configs included, so
// two composites with any differing layer produce different strings.
func (c *Composite) ConfigJSON() string {
	type layerDesc struct {
		Name   string          `json:"name"`
		Type   string          `json:"type"`
		Weight float64         `json:"weight"`
		Config json.RawMessage `json:"config"`
	}
	desc := struct {
		Layers []layerDesc `json:"layers"`
		Fusion fusion.Spec `json:"fusion"`
	}{Fusion: c.spec}
	for _, l := range c.layers {
		desc.Layers = append(desc.Layers, layerDesc{
			Name: l.Name, Type: l.Type, Weight: l.Weight,
			Config: json.RawMessage(l.Embedder.ConfigJSON()),
		})
	}
	b, _ := json.Marshal(desc)
	return string(b)
}

// Embed produces the fused vector for one text.
func (c *Composite) Embed(ctx context.Context, text string) ([]float32, error) {
	inputs, err := c.EncodeLayers(ctx, text)
	if err != nil {
		return nil, err
	}
	return fusion.Fuse(c.spec, inputs)
}

// EncodeLayers computes every layer's vector for text, serving cached
// results where available. All layers must succeed: a single failing
// layer fails the whole input, named in the returned ComputeError.
// Cache reads and writes that fail degrade to direct computation with a
// warning.
func (c *Composite) EncodeLayers(ctx context.Context, text string) ([]fusion.Input, error) {
	normalized := cache.NormalizeText(text)
	inputs := make([]fusion.Input, len(c.layers))
	for i, l := range c.layers {
		vec, err := c.layerVector(ctx, l, normalized)
		if err != nil {
			if _, ok := err.(*embedder.ComputeError); !ok {
				err = &embedder.ComputeError{Layer: l.Name, Input: embedder.InputLabel(text), Err: err}
			}
			return nil, err
		}
		inputs[i] = fusion.Input{Name: l.Name, Weight: l.Weight, Vector: vec}
	}
	return inputs, nil
}

// layerVector resolves one layer's vector for a normalized text,
// consulting the cache first. Concurrent misses for the same key are
// collapsed into one embedder call.
func (c *Composite) layerVector(ctx context.Context, l Layer, normalized string) ([]float32, error) {
	if c.store == nil {
		return l.Embedder.Embed(ctx, normalized)
	}

	key := cache.Fingerprint(normalized, l.Type, l.Embedder.ConfigJSON())
	if vec, ok, err := c.store.Get(key); err != nil {
		c.Warnf("cache read failed for layer %q: %v", l.Name, err)
	} else if ok {
		return vec, nil
	}

	v, err, _ := c.flight.Do(key, func() (any, error) {
		vec, err := l.Embedder.Embed(ctx, normalized)
		if err != nil {
			return nil, err
		}
		if err := c.store.Put(key, l.Type, vec); err != nil {
			c.Warnf("cache write failed for layer %q: %v", l.Name, err)
		}
		return vec, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]float32), nil
}

// Fit trains every trainable layer on the corpus. Layers without
// training state are unaffected. Training changes a layer's config
// fingerprint, so vectors cached under a previous fit stay reachable
// only by that fit's keys.
func (c *Composite) Fit(corpus []string) error {
	for _, l := range c.layers {
		tr, ok := l.Embedder.(embedder.Trainable)
		if !ok {
			continue
		}
		if err := tr.Fit(corpus); err != nil {
			return fmt.Errorf("fit layer %q: %w", l.Name, err)
		}
	}
	return nil
}

// HasTrainable reports whether any layer requires a Fit pass.
func (c *Composite) HasTrainable() bool {
	for _, l := range c.layers {
		if _, ok := l.Embedder.(embedder.Trainable); ok {
			return true
		}
	}
	return false
}
