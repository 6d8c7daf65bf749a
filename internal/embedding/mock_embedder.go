package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync/atomic"
	"unicode"
)

// MockEmbedder is a deterministic bag-of-words embedder for tests and
// offline runs. Texts sharing words get similar vectors, so retrieval
// behaves sensibly without a remote provider.
type MockEmbedder struct {
	dimensions int
	calls      atomic.Int64
	err        error
}

// NewMockEmbedder returns an embedder producing vectors of the given dimensions.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions < 2 {
		dimensions = 64
	}
	return &MockEmbedder{dimensions: dimensions}
}

// FailWith makes every later call return err.
func (e *MockEmbedder) FailWith(err error) { e.err = err }

// Calls reports how many embedding calls were made.
func (e *MockEmbedder) Calls() int64 { return e.calls.Load() }

func (e *MockEmbedder) Dimensions() int { return e.dimensions }

func (e *MockEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	e.calls.Add(1)
	if e.err != nil {
		return nil, e.err
	}
	return e.embed(text), nil
}

func (e *MockEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	e.calls.Add(1)
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.embed(t)
	}
	return out, nil
}

func (e *MockEmbedder) embed(text string) []float32 {
	vec := make([]float32, e.dimensions)
	// the last dimension is a constant bias so no vector is all zeros
	vec[e.dimensions-1] = 0.1
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		vec[h.Sum32()%uint32(e.dimensions-1)]++
	}
	var sum float64
	for _, v := range vec {
		sum += float64(v * v)
	}
	norm := float32(1 / math.Sqrt(sum))
	for i := range vec {
		vec[i] *= norm
	}
	return vec
}
