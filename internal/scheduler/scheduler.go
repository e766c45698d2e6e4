// Package scheduler partitions cluster representatives into token-bounded
// batches and dispatches them to the classification provider with bounded
// concurrency. Batches are independent: one batch failing, even after
// retries, never blocks or invalidates its siblings.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/opencodebook/coder/internal/classify"
	"github.com/opencodebook/coder/internal/tokens"
	"github.com/opencodebook/coder/internal/types"
)

// Config holds scheduling parameters.
type Config struct {
	// MaxWorkers bounds simultaneous in-flight provider calls.
	MaxWorkers int

	// TokenCeiling is the maximum estimated input-token cost per batch.
	// A single representative whose lone estimate exceeds the ceiling is
	// dispatched alone rather than dropped or truncated.
	TokenCeiling int

	// MaxBatchSize caps the number of representatives per batch regardless
	// of token budget.
	MaxBatchSize int

	// RequestsPerSecond throttles provider calls across all workers.
	// 0 disables the rate gate.
	RequestsPerSecond float64

	Retry RetryConfig
}

// DefaultConfig returns scheduling defaults: 8 workers and 64-item batches
// (the original production settings) under a 16k-token ceiling.
func DefaultConfig() Config {
	return Config{
		MaxWorkers:   8,
		TokenCeiling: 16000,
		MaxBatchSize: 64,
		Retry:        DefaultRetryConfig(),
	}
}

// Validate checks the configuration bounds.
func (c Config) Validate() error {
	if c.MaxWorkers < 1 {
		return fmt.Errorf("max_workers must be >= 1 (got %d)", c.MaxWorkers)
	}
	if c.TokenCeiling < 1 {
		return fmt.Errorf("token_ceiling must be >= 1 (got %d)", c.TokenCeiling)
	}
	if c.MaxBatchSize < 1 {
		return fmt.Errorf("max_batch_size must be >= 1 (got %d)", c.MaxBatchSize)
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second cannot be negative (got %g)", c.RequestsPerSecond)
	}
	return c.Retry.Validate()
}

// RepOutcome is the per-representative result of a dispatch round: either
// the provider's assignments or the error that exhausted retries.
type RepOutcome struct {
	Assignments []types.Assignment
	Err         error
}

// Scheduler dispatches batches to a classification provider.
type Scheduler struct {
	provider  classify.Provider
	estimator *tokens.Estimator
	cfg       Config
	limiter   *rate.Limiter
}

// New creates a Scheduler.
func New(provider classify.Provider, estimator *tokens.Estimator, cfg Config) (*Scheduler, error) {
	if provider == nil {
		return nil, fmt.Errorf("classification provider is required")
	}
	if estimator == nil {
		return nil, fmt.Errorf("token estimator is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scheduler config: %w", err)
	}
	s := &Scheduler{provider: provider, estimator: estimator, cfg: cfg}
	if cfg.RequestsPerSecond > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return s, nil
}

// Partition greedily fills batches under the token ceiling and batch-size
// cap, preserving item order. basePrompt is the fixed prompt scaffold whose
// cost every batch pays once. An item too large to fit even alone still gets
// its own batch: oversized representatives are classified solo, not skipped.
func (s *Scheduler) Partition(items []types.BatchItem, basePrompt string) []types.Batch {
	overhead := s.estimator.EstimateInput(basePrompt, nil)

	var batches []types.Batch
	var current types.Batch
	current.EstimatedTokens = overhead

	flush := func() {
		if len(current.Items) == 0 {
			return
		}
		current.Index = len(batches)
		batches = append(batches, current)
		current = types.Batch{EstimatedTokens: overhead}
	}

	for _, item := range items {
		itemCost := s.estimator.EstimateInput("", []string{item.Text})
		fits := current.EstimatedTokens+itemCost <= s.cfg.TokenCeiling &&
			len(current.Items) < s.cfg.MaxBatchSize
		if !fits {
			flush()
		}
		current.Items = append(current.Items, item)
		current.EstimatedTokens += itemCost
		if current.EstimatedTokens > s.cfg.TokenCeiling {
			// Oversized single item: ship it alone.
			flush()
		}
	}
	flush()
	return batches
}

// Dispatch sends batches to the provider concurrently, bounded by
// MaxWorkers, retrying transient failures per batch. The returned map has
// exactly one entry per representative across all batches. When ctx is
// canceled, batches not yet completed are marked failed; outcomes already
// collected are kept.
func (s *Scheduler) Dispatch(ctx context.Context, codebook *types.Codebook, question string, batches []types.Batch) map[string]RepOutcome {
	outcomes := make(map[string]RepOutcome)
	if len(batches) == 0 {
		return outcomes
	}

	sem := semaphore.NewWeighted(int64(s.cfg.MaxWorkers))
	var mu sync.Mutex // guards outcomes; batches own disjoint keys, so writes never contend on an entry
	var wg sync.WaitGroup

	record := func(batch types.Batch, assignments [][]types.Assignment, err error) {
		mu.Lock()
		defer mu.Unlock()
		for i, item := range batch.Items {
			if err != nil {
				outcomes[item.ResponseID] = RepOutcome{Err: err}
				continue
			}
			outcomes[item.ResponseID] = RepOutcome{Assignments: assignments[i]}
		}
	}

	for _, batch := range batches {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Canceled while waiting for a worker slot: this batch and all
			// remaining ones fail without corrupting collected results.
			record(batch, nil, &types.ClassificationError{Reason: "canceled before dispatch", Err: ctx.Err()})
			continue
		}

		wg.Add(1)
		go func(batch types.Batch) {
			defer wg.Done()
			defer sem.Release(1)

			assignments, err := s.classifyWithRetry(ctx, codebook, question, batch)
			record(batch, assignments, err)
		}(batch)
	}

	wg.Wait()
	return outcomes
}

// classifyWithRetry runs one batch through the provider under the retry
// policy, validating that the provider honored the order/length contract.
func (s *Scheduler) classifyWithRetry(ctx context.Context, codebook *types.Codebook, question string, batch types.Batch) ([][]types.Assignment, error) {
	texts := make([]string, len(batch.Items))
	for i, item := range batch.Items {
		texts[i] = item.Text
	}

	var assignments [][]types.Assignment
	err := retryWithBackoff(ctx, s.cfg.Retry, fmt.Sprintf("batch %d", batch.Index), func(attemptCtx context.Context) error {
		if s.limiter != nil {
			if err := s.limiter.Wait(attemptCtx); err != nil {
				return err
			}
		}
		result, err := s.provider.ClassifyBatch(attemptCtx, codebook, question, texts)
		if err != nil {
			return err
		}
		if len(result) != len(texts) {
			return &types.ClassificationError{
				Reason:    fmt.Sprintf("provider returned %d results for %d texts", len(result), len(texts)),
				Retryable: true,
			}
		}
		assignments = result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return assignments, nil
}
