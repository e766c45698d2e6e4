// Package embed turns unique normalized response texts into fixed-dimension
// vectors via an external embedding provider.
package embed

import (
	"context"
	"fmt"

	"github.com/opencodebook/coder/internal/types"
)

// Provider is the embedding provider boundary: one vector per input text,
// order-preserving, same length as the input. Implementations wrap a remote
// embedding API; failures surface as *types.EmbeddingError.
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// DefaultBatchSize is the number of texts sent to the provider per request.
const DefaultBatchSize = 64

// Generator splits texts into provider-sized sub-batches so a single provider
// failure only affects its own slice of texts rather than the whole run.
type Generator struct {
	provider  Provider
	batchSize int
}

// NewGenerator creates a Generator. batchSize <= 0 uses DefaultBatchSize.
func NewGenerator(provider Provider, batchSize int) *Generator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Generator{provider: provider, batchSize: batchSize}
}

// Generate embeds texts in order. The returned slice always has len(texts)
// entries; positions whose sub-batch failed are nil and their indexes are
// listed in failed. err is non-nil only when every sub-batch failed.
func (g *Generator) Generate(ctx context.Context, texts []string) (vectors [][]float32, failed []int, err error) {
	if len(texts) == 0 {
		return nil, nil, nil
	}

	vectors = make([][]float32, len(texts))
	var lastErr error

	for start := 0; start < len(texts); start += g.batchSize {
		end := start + g.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		sub := texts[start:end]

		vecs, embedErr := g.provider.Embed(ctx, sub)
		if embedErr == nil && len(vecs) != len(sub) {
			embedErr = &types.EmbeddingError{
				Reason: fmt.Sprintf("provider returned %d vectors for %d texts", len(vecs), len(sub)),
			}
		}
		if embedErr != nil {
			lastErr = embedErr
			for i := start; i < end; i++ {
				failed = append(failed, i)
			}
			// Context cancellation will fail every remaining sub-batch
			// anyway; stop issuing requests.
			if ctx.Err() != nil {
				for i := end; i < len(texts); i++ {
					failed = append(failed, i)
				}
				break
			}
			continue
		}
		copy(vectors[start:], vecs)
	}

	if len(failed) == len(texts) {
		return vectors, failed, lastErr
	}
	return vectors, failed, nil
}
