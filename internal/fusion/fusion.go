// Package fusion combines per-layer embedding vectors into one output
// vector.
package fusion

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/vectorify/vectorify/internal/embedder"
)

// Method selects how layer vectors are combined.
type Method string

const (
	// Concat appends layer vectors in declaration order.
	Concat Method = "concat"
	// Weighted sums layer vectors scaled by their static weights. All
	// layers must share one dimensionality.
	Weighted Method = "weighted"
	// Attention replaces static weights with softmax-normalized dynamic
	// scores computed per layer by a Scorer policy.
	Attention Method = "attention"
)

// ParseMethod maps a config string onto a Method, accepting both the
// short names and the long-form aliases used in config files.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "concat", "concatenate":
		return Concat, nil
	case "weighted", "weighted-sum", "weighted_sum":
		return Weighted, nil
	case "attention", "attention-weighted", "attention_weighted":
		return Attention, nil
	default:
		return "", &embedder.ConfigError{
			Param:  "fusion_method",
			Reason: fmt.Sprintf("unknown method %q; valid: concat, weighted, attention", s),
		}
	}
}

// Spec describes one fusion configuration. NormalizeWeights and
// NormalizeOutput are independent: the first rescales static weights to
// sum to one before the weighted sum, the second scales the fused vector
// to unit norm afterwards.
type Spec struct {
	Method           Method
	NormalizeWeights bool
	NormalizeOutput  bool
	Scorer           string // attention scorer policy; empty selects "magnitude"
}

// Input is one layer's contribution to a fusion call.
type Input struct {
	Name   string
	Weight float64
	Vector []float32
}

// Scorer computes a per-layer attention score from the layer's static
// weight and its vector. Scores are softmax-normalized across layers
// before the weighted sum, so only their relative size matters.
type Scorer func(weight float64, vec []float32) float64

var scorers = map[string]Scorer{
	// magnitude: layers whose vectors carry more mass get more say,
	// scaled by their configured weight.
	"magnitude": func(weight float64, vec []float32) float64 {
		return weight * norm(vec)
	},
	// uniform: ignores the vector, reducing attention to a normalized
	// weighted sum.
	"uniform": func(weight float64, _ []float32) float64 {
		return weight
	},
}

// RegisterScorer adds a named attention scoring policy.
func RegisterScorer(name string, s Scorer) {
	scorers[name] = s
}

// ScorerNames returns the registered scorer names, sorted.
func ScorerNames() []string {
	out := make([]string, 0, len(scorers))
	for name := range scorers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Validate checks a Spec against the layer dimensionalities before any
// embedding work happens: weighted and attention fusion need one shared
// dimensionality, and every method needs at least one layer.
func (s Spec) Validate(names []string, dims []int) error {
	if len(dims) == 0 {
		return &embedder.ConfigError{Reason: "at least one layer is required"}
	}
	if s.Method == Attention {
		if _, ok := scorers[scorerName(s.Scorer)]; !ok {
			return &embedder.ConfigError{
				Param:  "attention_scorer",
				Reason: fmt.Sprintf("unknown scorer %q; valid: %s", s.Scorer, strings.Join(ScorerNames(), ", ")),
			}
		}
	}
	if s.Method == Concat {
		return nil
	}
	for i := 1; i < len(dims); i++ {
		if dims[i] != dims[0] {
			return &embedder.ConfigError{
				Layer: names[i],
				Reason: fmt.Sprintf("%s fusion needs one shared dimensionality: layer %q has %d, layer %q has %d",
					s.Method, names[0], dims[0], names[i], dims[i]),
			}
		}
	}
	return nil
}

// Fuse combines the layer vectors according to the Spec. Inputs arrive
// in layer declaration order; that order is significant for Concat.
func Fuse(spec Spec, inputs []Input) ([]float32, error) {
	if len(inputs) == 0 {
		return nil, &embedder.ConfigError{Reason: "fuse called with zero layers"}
	}

	// A single layer degenerates every method to pass-through.
	if len(inputs) == 1 {
		out := make([]float32, len(inputs[0].Vector))
		copy(out, inputs[0].Vector)
		if spec.NormalizeOutput {
			normalize(out)
		}
		return out, nil
	}

	switch spec.Method {
	case Concat:
		total := 0
		for _, in := range inputs {
			total += len(in.Vector)
		}
		out := make([]float32, 0, total)
		for _, in := range inputs {
			out = append(out, in.Vector...)
		}
		if spec.NormalizeOutput {
			normalize(out)
		}
		return out, nil

	case Weighted:
		weights := staticWeights(inputs, spec.NormalizeWeights)
		return weightedSum(spec, inputs, weights)

	case Attention:
		scorer := scorers[scorerName(spec.Scorer)]
		scores := make([]float64, len(inputs))
		for i, in := range inputs {
			scores[i] = scorer(in.Weight, in.Vector)
		}
		return weightedSum(spec, inputs, softmax(scores))

	default:
		return nil, &embedder.ConfigError{Param: "fusion_method", Reason: fmt.Sprintf("unknown method %q", spec.Method)}
	}
}

func scorerName(s string) string {
	if s == "" {
		return "magnitude"
	}
	return s
}

func staticWeights(inputs []Input, renormalize bool) []float64 {
	weights := make([]float64, len(inputs))
	var sum float64
	for i, in := range inputs {
		weights[i] = in.Weight
		sum += in.Weight
	}
	if renormalize && sum > 0 {
		for i := range weights {
			weights[i] /= sum
		}
	}
	return weights
}

func weightedSum(spec Spec, inputs []Input, weights []float64) ([]float32, error) {
	dim := len(inputs[0].Vector)
	for _, in := range inputs[1:] {
		if len(in.Vector) != dim {
			return nil, &embedder.ConfigError{
				Layer:  in.Name,
				Reason: fmt.Sprintf("vector has %d dimensions, expected %d", len(in.Vector), dim),
			}
		}
	}
	out := make([]float32, dim)
	for li, in := range inputs {
		w := float32(weights[li])
		for i, v := range in.Vector {
			out[i] += w * v
		}
	}
	if spec.NormalizeOutput {
		normalize(out)
	}
	return out, nil
}

// softmax turns scores into positive weights that sum to one. The max is
// subtracted first for numerical stability.
func softmax(scores []float64) []float64 {
	max := scores[0]
	for _, s := range scores[1:] {
		if s > max {
			max = s
		}
	}
	out := make([]float64, len(scores))
	var sum float64
	for i, s := range scores {
		out[i] = math.Exp(s - max)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

func norm(vec []float32) float64 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

func normalize(vec []float32) {
	n := norm(vec)
	if n == 0 {
		return
	}
	inv := float32(1 / n)
	for i := range vec {
		vec[i] *= inv
	}
}
