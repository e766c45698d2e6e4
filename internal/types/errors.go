package types

import (
	"errors"
	"fmt"
)

// ErrTotalFailure is returned when every response in a run failed embedding
// or classification. Partial failures never produce this error; they surface
// as OutcomeFailed entries in an otherwise successful result set.
var ErrTotalFailure = errors.New("total failure: no response could be classified")

// EmbeddingError reports a failure at the embedding provider boundary.
// Embedding failures are recoverable: affected responses fall back to
// singleton clusters and classification still proceeds.
type EmbeddingError struct {
	Reason string
	Err    error
}

func (e *EmbeddingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("embedding failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("embedding failed: %s", e.Reason)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// ClassificationError reports a failure at the classification provider
// boundary, scoped to one batch. Retryable distinguishes transient provider
// failures (rate limits, timeouts, 5xx) from terminal ones.
type ClassificationError struct {
	Reason    string
	Retryable bool
	Err       error
}

func (e *ClassificationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("classification failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("classification failed: %s", e.Reason)
}

func (e *ClassificationError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is a transient classification failure that
// the scheduler should retry with backoff.
func IsRetryable(err error) bool {
	var ce *ClassificationError
	if errors.As(err, &ce) {
		return ce.Retryable
	}
	return false
}
