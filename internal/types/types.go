// Package types defines the core data model shared across the classification
// pipeline: responses, codebooks, clusters, and classification outputs.
package types

import (
	"fmt"
	"sort"
	"strings"
)

// Response is a single survey response. Immutable once ingested;
// NormalizedText is the deduplication key.
type Response struct {
	ID             string `json:"id"`
	RawText        string `json:"raw_text"`
	NormalizedText string `json:"normalized_text,omitempty"`
}

// Code is the atomic unit of a codebook: a labeled category with a
// description and a few verbatim examples.
type Code struct {
	Label       string   `json:"label" yaml:"label"`
	Description string   `json:"description" yaml:"description"`
	Examples    []string `json:"examples,omitempty" yaml:"examples,omitempty"`
}

// Codebook is a versioned set of codes. A codebook is immutable per version;
// editing produces a new value with a higher version number.
type Codebook struct {
	Version int    `json:"version" yaml:"version"`
	Codes   []Code `json:"codes" yaml:"codes"`
}

// Validate checks the codebook invariants: a positive version number and
// unique, non-empty code labels.
func (cb *Codebook) Validate() error {
	if cb.Version < 1 {
		return fmt.Errorf("codebook version must be >= 1 (got %d)", cb.Version)
	}
	if len(cb.Codes) == 0 {
		return fmt.Errorf("codebook has no codes")
	}
	seen := make(map[string]bool, len(cb.Codes))
	for i, code := range cb.Codes {
		if strings.TrimSpace(code.Label) == "" {
			return fmt.Errorf("code %d has an empty label", i)
		}
		if seen[code.Label] {
			return fmt.Errorf("duplicate code label %q", code.Label)
		}
		seen[code.Label] = true
	}
	return nil
}

// Code returns the code with the given label, if present.
func (cb *Codebook) Code(label string) (Code, bool) {
	for _, c := range cb.Codes {
		if c.Label == label {
			return c, true
		}
	}
	return Code{}, false
}

// HasLabel reports whether the codebook contains a code with the given label.
func (cb *Codebook) HasLabel(label string) bool {
	_, ok := cb.Code(label)
	return ok
}

// PromptText renders the codebook in the compact text form used inside
// classification prompts.
func (cb *Codebook) PromptText() string {
	var b strings.Builder
	for _, c := range cb.Codes {
		fmt.Fprintf(&b, "- Code: %s\n  Description: %s\n", c.Label, c.Description)
	}
	return strings.TrimSpace(b.String())
}

// Cluster groups near-duplicate responses. Every response belongs to exactly
// one cluster; singleton clusters hold outliers. MemberIDs is kept sorted.
type Cluster struct {
	RepresentativeID string    `json:"representative_id"`
	MemberIDs        []string  `json:"member_ids"`
	Centroid         []float32 `json:"-"`
}

// Contains reports whether the cluster includes the given response ID.
func (c *Cluster) Contains(id string) bool {
	i := sort.SearchStrings(c.MemberIDs, id)
	return i < len(c.MemberIDs) && c.MemberIDs[i] == id
}

// ValidateClusters checks the partition invariant: the union of all cluster
// members equals exactly the given response ID set, with no overlap, and each
// representative is a member of its own cluster.
func ValidateClusters(clusters []Cluster, responseIDs []string) error {
	seen := make(map[string]int, len(responseIDs))
	for ci, cluster := range clusters {
		if len(cluster.MemberIDs) == 0 {
			return fmt.Errorf("cluster %d is empty", ci)
		}
		if !cluster.Contains(cluster.RepresentativeID) {
			return fmt.Errorf("cluster %d: representative %s is not a member", ci, cluster.RepresentativeID)
		}
		for _, id := range cluster.MemberIDs {
			if prev, dup := seen[id]; dup {
				return fmt.Errorf("response %s appears in clusters %d and %d", id, prev, ci)
			}
			seen[id] = ci
		}
	}
	for _, id := range responseIDs {
		if _, ok := seen[id]; !ok {
			return fmt.Errorf("response %s is not assigned to any cluster", id)
		}
	}
	if len(seen) != len(responseIDs) {
		return fmt.Errorf("clusters cover %d responses, expected %d", len(seen), len(responseIDs))
	}
	return nil
}

// Outcome tags each classification output as a success or failure.
type Outcome string

const (
	// OutcomeClassified marks a response that received a classification.
	OutcomeClassified Outcome = "classified"

	// OutcomeFailed marks a response whose representative could not be
	// classified after retries. Failed responses stay in the result set.
	OutcomeFailed Outcome = "classification_failed"
)

// ClassificationOutput is the per-response result of a classification run.
// Every member of a cluster carries its representative's codes and pertinence
// score; only the evidence text is cluster-local.
type ClassificationOutput struct {
	ResponseID      string   `json:"response_id"`
	AssignedCodes   []string `json:"assigned_codes"`
	EvidenceText    string   `json:"evidence_text,omitempty"`
	PertinenceScore float64  `json:"pertinence_score"`
	Outcome         Outcome  `json:"outcome"`
	FailureReason   string   `json:"failure_reason,omitempty"`
}

// Classified reports whether the output carries a successful classification.
func (o *ClassificationOutput) Classified() bool {
	return o.Outcome == OutcomeClassified
}

// Assignment is one code assignment produced by the classification provider
// for a single text: the label, the verbatim fragment supporting it, and the
// provider-reported pertinence in [0,1].
type Assignment struct {
	Label       string  `json:"label"`
	Fragment    string  `json:"fragment"`
	Pertinence  float64 `json:"pertinence"`
	Explanation string  `json:"explanation,omitempty"`
}

// BatchItem pairs a cluster representative with the text sent to the
// classification provider. Transient; lives for one batch round trip.
type BatchItem struct {
	ResponseID string
	Text       string
}

// Batch is a token-bounded group of representatives dispatched in a single
// provider call.
type Batch struct {
	Index           int
	Items           []BatchItem
	EstimatedTokens int
}

// ResponseIDs returns the representative IDs in this batch, in order.
func (b *Batch) ResponseIDs() []string {
	ids := make([]string, len(b.Items))
	for i, item := range b.Items {
		ids[i] = item.ResponseID
	}
	return ids
}
