// Package classifier orchestrates the full classification pipeline:
// deduplication, embedding, clustering, token-budgeted batch dispatch, and
// reconciliation of representative results onto every response.
package classifier

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/opencodebook/coder/internal/classify"
	"github.com/opencodebook/coder/internal/cluster"
	"github.com/opencodebook/coder/internal/dedup"
	"github.com/opencodebook/coder/internal/embed"
	"github.com/opencodebook/coder/internal/reconcile"
	"github.com/opencodebook/coder/internal/scheduler"
	"github.com/opencodebook/coder/internal/tokens"
	"github.com/opencodebook/coder/internal/types"
)

// Options carries the per-run knobs of the caller-facing API. Everything a
// run needs travels through here; the classifier keeps no mutable state
// between runs.
type Options struct {
	// Question is the survey question the responses answer; it anchors the
	// classification prompt.
	Question string

	// Concurrency bounds simultaneous in-flight classification calls.
	// 0 uses the scheduler default.
	Concurrency int

	// TokenCeiling is the maximum estimated input-token cost per batch.
	// 0 uses the scheduler default.
	TokenCeiling int
}

// Classifier runs codebook-aware classification over response sets.
// Safe for concurrent use: each invocation owns its run state.
type Classifier struct {
	embedder   *embed.Generator
	provider   classify.Provider
	estimator  *tokens.Estimator
	clusterCfg cluster.Config
	schedCfg   scheduler.Config
	log        zerolog.Logger
}

// Config assembles a Classifier's collaborators.
type Config struct {
	EmbedProvider  embed.Provider
	EmbedBatchSize int
	Provider       classify.Provider
	Estimator      *tokens.Estimator
	Clustering     cluster.Config
	Scheduling     scheduler.Config
	Logger         zerolog.Logger
}

// New creates a Classifier.
func New(cfg Config) (*Classifier, error) {
	if cfg.EmbedProvider == nil {
		return nil, fmt.Errorf("embedding provider is required")
	}
	if cfg.Provider == nil {
		return nil, fmt.Errorf("classification provider is required")
	}
	if cfg.Estimator == nil {
		return nil, fmt.Errorf("token estimator is required")
	}
	if err := cfg.Clustering.Validate(); err != nil {
		return nil, fmt.Errorf("invalid clustering config: %w", err)
	}
	if err := cfg.Scheduling.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scheduling config: %w", err)
	}
	return &Classifier{
		embedder:   embed.NewGenerator(cfg.EmbedProvider, cfg.EmbedBatchSize),
		provider:   cfg.Provider,
		estimator:  cfg.Estimator,
		clusterCfg: cfg.Clustering,
		schedCfg:   cfg.Scheduling,
		log:        cfg.Logger,
	}, nil
}

// ClassifyResponses classifies every response against the codebook. The
// output has exactly one entry per input response, in input order; responses
// whose representative could not be classified carry OutcomeFailed. The
// error is non-nil only for invalid input or total failure (every response
// failed embedding or classification).
func (c *Classifier) ClassifyResponses(ctx context.Context, responses []types.Response, codebook *types.Codebook, opts Options) ([]types.ClassificationOutput, error) {
	if len(responses) == 0 {
		return nil, nil
	}
	if codebook == nil {
		return nil, fmt.Errorf("codebook is required")
	}
	if err := codebook.Validate(); err != nil {
		return nil, fmt.Errorf("invalid codebook: %w", err)
	}
	seen := make(map[string]bool, len(responses))
	for i, resp := range responses {
		if resp.ID == "" {
			return nil, fmt.Errorf("response %d has no ID", i)
		}
		if seen[resp.ID] {
			return nil, fmt.Errorf("duplicate response ID %s", resp.ID)
		}
		seen[resp.ID] = true
	}

	run := newRunState()
	schedCfg := c.schedCfg
	if opts.Concurrency > 0 {
		schedCfg.MaxWorkers = opts.Concurrency
	}
	if opts.TokenCeiling > 0 {
		schedCfg.TokenCeiling = opts.TokenCeiling
	}

	// Dedup: collapse textually identical responses before any remote call.
	deduped := dedup.Deduplicate(responses)
	if err := run.advance(StateDeduplicated); err != nil {
		return nil, err
	}
	c.log.Debug().
		Int("responses", len(responses)).
		Int("unique", deduped.UniqueCount()).
		Msg("deduplicated responses")

	normalized := make(map[string]string, len(responses))
	for norm, ids := range deduped.Groups {
		for _, id := range ids {
			normalized[id] = norm
		}
	}

	// Embed the unique texts. A failed subset falls back to singleton
	// clusters; only a fully failed embedding round aborts the run.
	vectors, failedIdx, embedErr := c.embedder.Generate(ctx, deduped.Order)
	if embedErr != nil {
		_ = run.advance(StateEmbedded)
		_ = run.advance(StateFailed)
		c.log.Error().Err(embedErr).Msg("all embeddings failed")
		return nil, fmt.Errorf("%w: %v", types.ErrTotalFailure, embedErr)
	}
	if err := run.advance(StateEmbedded); err != nil {
		return nil, err
	}
	if len(failedIdx) > 0 {
		c.log.Warn().
			Int("failed", len(failedIdx)).
			Int("total", deduped.UniqueCount()).
			Msg("some embeddings failed; affected responses fall back to singleton clusters")
	}

	clusters, err := c.buildClusters(deduped, vectors)
	if err != nil {
		return nil, err
	}
	if err := run.advance(StateClustered); err != nil {
		return nil, err
	}

	uniqueIDs := make([]string, 0, deduped.UniqueCount())
	for _, norm := range deduped.Order {
		uniqueIDs = append(uniqueIDs, deduped.Representatives[norm])
	}
	if err := types.ValidateClusters(clusters, uniqueIDs); err != nil {
		return nil, fmt.Errorf("clustering violated the partition invariant: %w", err)
	}
	c.log.Debug().Int("clusters", len(clusters)).Msg("clustered responses")

	// Batch representatives under the token ceiling and dispatch.
	sched, err := scheduler.New(c.provider, c.estimator, schedCfg)
	if err != nil {
		return nil, err
	}
	items := make([]types.BatchItem, len(clusters))
	for i, cl := range clusters {
		items[i] = types.BatchItem{
			ResponseID: cl.RepresentativeID,
			Text:       normalized[cl.RepresentativeID],
		}
	}
	basePrompt := classify.BuildBatchPrompt(codebook, opts.Question, nil, classify.Options{})
	batches := sched.Partition(items, basePrompt)
	if err := run.advance(StateBatched); err != nil {
		return nil, err
	}
	c.log.Debug().Int("batches", len(batches)).Msg("partitioned representatives")

	outcomes := sched.Dispatch(ctx, codebook, opts.Question, batches)

	// Spread representative outcomes over the dedup groups so reconcile
	// sees cluster membership in terms of original response IDs.
	fullClusters := expandClusters(clusters, deduped)
	outputs, err := reconcile.Reconcile(responses, fullClusters, normalized, outcomes)
	if err != nil {
		return nil, err
	}
	if err := run.advance(StateReconciled); err != nil {
		return nil, err
	}

	succeeded := reconcile.SuccessCount(outputs)
	if succeeded == 0 {
		_ = run.advance(StateFailed)
		c.log.Error().Int("responses", len(outputs)).Msg("every classification failed")
		return outputs, types.ErrTotalFailure
	}
	if err := run.advance(StateDone); err != nil {
		return nil, err
	}
	c.log.Info().
		Int("responses", len(outputs)).
		Int("classified", succeeded).
		Int("failed", len(outputs)-succeeded).
		Msg("classification run complete")
	return outputs, nil
}

// buildClusters clusters the successfully embedded texts and adds singleton
// clusters for texts whose embedding failed.
func (c *Classifier) buildClusters(deduped dedup.Result, vectors [][]float32) ([]types.Cluster, error) {
	var ids []string
	var vecs [][]float32
	var singles []types.Cluster

	for i, norm := range deduped.Order {
		rep := deduped.Representatives[norm]
		if vectors[i] == nil {
			singles = append(singles, cluster.Singleton(rep))
			continue
		}
		ids = append(ids, rep)
		vecs = append(vecs, vectors[i])
	}

	clusters, err := cluster.Assign(c.clusterCfg, ids, vecs)
	if err != nil {
		return nil, fmt.Errorf("clustering: %w", err)
	}
	return append(clusters, singles...), nil
}

// expandClusters rewrites clusters of deduplicated representatives into
// clusters of original response IDs, folding each dedup group back in.
func expandClusters(clusters []types.Cluster, deduped dedup.Result) []types.Cluster {
	groupOf := make(map[string][]string, len(deduped.Representatives))
	for norm, rep := range deduped.Representatives {
		groupOf[rep] = deduped.Groups[norm]
	}

	expanded := make([]types.Cluster, len(clusters))
	for i, cl := range clusters {
		var members []string
		for _, m := range cl.MemberIDs {
			members = append(members, groupOf[m]...)
		}
		expanded[i] = types.Cluster{
			RepresentativeID: cl.RepresentativeID,
			MemberIDs:        sortedCopy(members),
			Centroid:         cl.Centroid,
		}
	}
	return expanded
}

func sortedCopy(ids []string) []string {
	out := append([]string(nil), ids...)
	sort.Strings(out)
	return out
}
