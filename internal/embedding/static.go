package embedding

import (
	"context"
	"fmt"
	"sync"
)

// StaticEmbedder returns preset vectors by exact text. Unknown text gets Default,
// or an error when Default is nil. Err, when set, is returned by every call.
type StaticEmbedder struct {
	Vectors map[string][]float32
	Default []float32
	Err     error
	Dim     int

	mu    sync.Mutex
	calls int
}

// NewStaticEmbedder creates a StaticEmbedder of dimension dim.
func NewStaticEmbedder(dim int, vectors map[string][]float32) *StaticEmbedder {
	if vectors == nil {
		vectors = make(map[string][]float32)
	}
	return &StaticEmbedder{Vectors: vectors, Dim: dim}
}

func (s *StaticEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	if v, ok := s.Vectors[text]; ok {
		return v, nil
	}
	if s.Default != nil {
		return s.Default, nil
	}
	return nil, fmt.Errorf("no vector for %q", text)
}

func (s *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedEach(ctx, s, texts)
}

// Calls reports how many times Embed ran.
func (s *StaticEmbedder) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *StaticEmbedder) Dimensions() int { return s.Dim }

func (s *StaticEmbedder) Close() error { return nil }
