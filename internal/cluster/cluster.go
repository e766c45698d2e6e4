// Package cluster groups near-duplicate response embeddings using
// density-based clustering (DBSCAN) over cosine distance.
//
// Points that do not meet the minimum-neighbor density requirement are kept
// as singleton clusters rather than discarded, so the output always
// partitions the input: every response ID appears in exactly one cluster.
package cluster

import (
	"fmt"
	"math"
	"sort"

	"github.com/opencodebook/coder/internal/types"
)

// Config holds the two DBSCAN tuning parameters. Both were empirically tuned
// in production use; expose them in configuration rather than hard-coding.
type Config struct {
	// Eps is the cosine-distance neighborhood radius. Two vectors closer
	// than Eps are neighbors.
	Eps float64 `yaml:"eps"`

	// MinSamples is the minimum neighborhood size (including the point
	// itself) for a point to be a core point.
	MinSamples int `yaml:"min_samples"`
}

// DefaultConfig returns the documented defaults: eps=0.3, min_samples=2.
func DefaultConfig() Config {
	return Config{Eps: 0.3, MinSamples: 2}
}

// Validate checks the parameter bounds. Cosine distance lives in [0,2].
func (c Config) Validate() error {
	if c.Eps <= 0 || c.Eps >= 2 {
		return fmt.Errorf("eps must be in (0, 2) (got %g)", c.Eps)
	}
	if c.MinSamples < 1 {
		return fmt.Errorf("min_samples must be >= 1 (got %d)", c.MinSamples)
	}
	return nil
}

// CosineDistance returns 1 - cosine similarity of a and b. Zero vectors are
// maximally distant from everything.
func CosineDistance(a, b []float32) float64 {
	var dot, normA, normB float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}

const noise = -1

// Assign runs DBSCAN over the vectors and returns the cluster partition.
// ids[i] owns vectors[i]; both slices must have equal length and no vector
// may be nil. The result is deterministic for identical inputs: points are
// processed in sorted-ID order and ties broken by lowest ID.
func Assign(cfg Config, ids []string, vectors [][]float32) ([]types.Cluster, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(ids) != len(vectors) {
		return nil, fmt.Errorf("got %d ids but %d vectors", len(ids), len(vectors))
	}
	if len(ids) == 0 {
		return nil, nil
	}
	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("vector for %s is nil", ids[i])
		}
	}

	// Sort points by ID so iteration order (and therefore cluster numbering
	// and tie-breaks) never depends on caller ordering.
	points := make([]int, len(ids))
	for i := range points {
		points[i] = i
	}
	sort.Slice(points, func(a, b int) bool { return ids[points[a]] < ids[points[b]] })

	labels := make([]int, len(ids))
	for i := range labels {
		labels[i] = noise
	}
	visited := make([]bool, len(ids))

	neighborsOf := func(p int) []int {
		var nbrs []int
		for _, q := range points {
			if CosineDistance(vectors[p], vectors[q]) <= cfg.Eps {
				nbrs = append(nbrs, q)
			}
		}
		return nbrs
	}

	nextCluster := 0
	for _, p := range points {
		if visited[p] {
			continue
		}
		visited[p] = true

		nbrs := neighborsOf(p)
		if len(nbrs) < cfg.MinSamples {
			continue // density too low; stays noise unless claimed later
		}

		labels[p] = nextCluster
		// Expand the cluster breadth-first from the seed's neighborhood.
		queue := append([]int(nil), nbrs...)
		for len(queue) > 0 {
			q := queue[0]
			queue = queue[1:]
			if labels[q] == noise {
				labels[q] = nextCluster
			}
			if visited[q] {
				continue
			}
			visited[q] = true
			qNbrs := neighborsOf(q)
			if len(qNbrs) >= cfg.MinSamples {
				queue = append(queue, qNbrs...)
			}
		}
		nextCluster++
	}

	// Materialize clusters; noise points become singletons.
	groups := make(map[int][]int)
	for _, p := range points {
		if labels[p] == noise {
			labels[p] = nextCluster
			nextCluster++
		}
		groups[labels[p]] = append(groups[labels[p]], p)
	}

	clusters := make([]types.Cluster, 0, len(groups))
	for label := 0; label < nextCluster; label++ {
		members, ok := groups[label]
		if !ok {
			continue
		}
		clusters = append(clusters, build(members, ids, vectors))
	}

	// Order clusters by representative ID for reproducible output.
	sort.Slice(clusters, func(a, b int) bool {
		return clusters[a].RepresentativeID < clusters[b].RepresentativeID
	})
	return clusters, nil
}

// build computes the centroid and picks the representative: the member
// closest to the centroid, ties broken by lowest response ID.
func build(members []int, ids []string, vectors [][]float32) types.Cluster {
	dim := len(vectors[members[0]])
	centroid := make([]float32, dim)
	for _, m := range members {
		for d := 0; d < dim && d < len(vectors[m]); d++ {
			centroid[d] += vectors[m][d]
		}
	}
	for d := range centroid {
		centroid[d] /= float32(len(members))
	}

	memberIDs := make([]string, len(members))
	for i, m := range members {
		memberIDs[i] = ids[m]
	}
	sort.Strings(memberIDs)

	repID := ids[members[0]]
	best := math.Inf(1)
	for _, m := range members {
		d := CosineDistance(vectors[m], centroid)
		if d < best || (d == best && ids[m] < repID) {
			best = d
			repID = ids[m]
		}
	}

	return types.Cluster{
		RepresentativeID: repID,
		MemberIDs:        memberIDs,
		Centroid:         centroid,
	}
}

// Singleton returns the trivial cluster for a response that could not be
// embedded (or otherwise bypassed clustering).
func Singleton(id string) types.Cluster {
	return types.Cluster{RepresentativeID: id, MemberIDs: []string{id}}
}
