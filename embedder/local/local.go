// Package local provides the default in-process embedder: a
// deterministic hash-based vector generator usable without any model
// file, model download, or network access — exactly the "local,
// MiniLM-dimensioned" default spec §6 names. A real local model is
// available behind the "onnx" build tag (onnx.go); without it, New still
// returns a fully functional (if semantically meaningless) 384-dim
// embedder, which is what every test in this module runs against.
//
// Grounded on becomeliminal-nim-go-sdk's memory/embedder/mock package:
// same FNV hash + LCG pseudo-random generation, same post-hoc
// normalization step.
package local

import (
	"context"
	"hash/fnv"
	"math"
)

const defaultDimensions = 384

// Embedder is a deterministic, model-free embedder: the same text always
// produces the same vector, so tests and the dedup guard behave
// predictably without pulling in a real model.
type Embedder struct {
	dimensions int
}

// New returns a local embedder at the default MiniLM dimensionality.
func New() *Embedder {
	return &Embedder{dimensions: defaultDimensions}
}

// NewWithDimensions overrides the vector length, mostly for tests that
// want small vectors.
func NewWithDimensions(d int) *Embedder {
	return &Embedder{dimensions: d}
}

// Embed hashes text with FNV-64a and expands the hash into dimensions
// pseudo-random values via a linear congruential generator, then
// normalizes to unit length.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, e.dimensions)
	for i := 0; i < e.dimensions; i++ {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}
	return normalize(vec), nil
}

// Dimensions reports the embedding vector size.
func (e *Embedder) Dimensions() int { return e.dimensions }

func normalize(vec []float32) []float32 {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	norm = float32(math.Sqrt(float64(norm)))
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = v / norm
	}
	return out
}
