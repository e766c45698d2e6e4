// Package classify defines the classification provider boundary and its
// Anthropic-backed implementation. A provider takes a codebook and a batch of
// representative texts and returns code assignments for each text,
// order-preserving within the batch.
package classify

import (
	"context"

	"github.com/opencodebook/coder/internal/types"
)

// Provider is the classification provider boundary. ClassifyBatch returns
// exactly one assignment list per input text, in input order; an empty list
// means no code in the codebook applies to that text. Failures surface as
// *types.ClassificationError with Retryable set for transient conditions.
type Provider interface {
	ClassifyBatch(ctx context.Context, codebook *types.Codebook, question string, texts []string) ([][]types.Assignment, error)
}

// CodebookBuilder is the optional capability to generate and merge codebooks
// from raw responses. The CLI uses it; the classification pipeline does not.
type CodebookBuilder interface {
	GenerateCodebook(ctx context.Context, question string, examples []string) (*types.Codebook, error)
	MergeCodebooks(ctx context.Context, base, next *types.Codebook, instructions string) (*types.Codebook, error)
}

// Options control prompt construction for a classification run.
type Options struct {
	// MultiLabel allows more than one code per response. Single-label runs
	// instruct the model to pick exactly one code.
	MultiLabel bool

	// IncludeExplanation asks the model for a short per-assignment
	// explanation alongside the evidence fragment.
	IncludeExplanation bool
}
