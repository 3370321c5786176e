// Package embed turns refined prompt text into vectors for the
// similarity index. Providers are interchangeable so the worker can run
// against OpenAI, a local Ollama, or a deterministic stand-in.
package embed

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"math"
	"time"
)

type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dim() int
	Name() string
}

const defaultNoopDim = 1536

// Noop derives vectors from a hash of the text. The same prompt always
// maps to the same unit vector, which keeps similarity search usable in
// tests and offline installs without a model.
type Noop struct {
	dim int
}

func NewNoop(dim int) *Noop {
	if dim <= 0 {
		dim = defaultNoopDim
	}
	return &Noop{dim: dim}
}

func (n *Noop) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		out = append(out, hashVector(text, n.dim))
	}
	return out, nil
}

func (n *Noop) Dim() int { return n.dim }

func (n *Noop) Name() string { return "noop" }

// hashVector expands sha256 digests of the text into dim components in
// [-1, 1), eight per digest, hashing text plus a block counter until
// the vector is full, then scales to unit length.
func hashVector(text string, dim int) []float32 {
	vec := make([]float32, 0, dim)
	var block [8]byte
	for counter := uint64(0); len(vec) < dim; counter++ {
		binary.BigEndian.PutUint64(block[:], counter)
		digest := sha256.Sum256(append([]byte(text), block[:]...))
		for offset := 0; offset+4 <= len(digest) && len(vec) < dim; offset += 4 {
			word := binary.BigEndian.Uint32(digest[offset : offset+4])
			vec = append(vec, float32(word)/float32(1<<31)-1)
		}
	}
	return unitScale(vec)
}

func unitScale(vec []float32) []float32 {
	var sumSquares float64
	for _, component := range vec {
		sumSquares += float64(component) * float64(component)
	}
	if sumSquares == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(sumSquares))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

// Disabled refuses every call. Wiring it in place of a real provider
// turns the embedding path off without nil checks at call sites.
type Disabled struct{}

func (d Disabled) Embed(_ context.Context, _ []string) ([][]float32, error) {
	return nil, errors.New("embedding provider disabled")
}

func (d Disabled) Dim() int { return 0 }

func (d Disabled) Name() string { return "disabled" }

// Backoff waits out a retry interval but returns early when the context
// is cancelled, so the worker loop stays responsive to shutdown.
func Backoff(ctx context.Context, dur time.Duration) error {
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
