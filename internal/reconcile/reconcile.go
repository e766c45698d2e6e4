// Package reconcile propagates each cluster representative's classification
// onto every member of its cluster, producing one output per original
// response in the original input order.
package reconcile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/opencodebook/coder/internal/scheduler"
	"github.com/opencodebook/coder/internal/types"
)

// Reconcile builds the final result set. Members inherit their
// representative's assigned codes and pertinence score; evidence text is
// rewritten per member so provenance points at the member's own text rather
// than the representative's. Responses whose representative failed (or never
// completed) are tagged OutcomeFailed and kept in the output.
//
// normalized maps response ID to the normalized text used as evidence for
// non-representative members.
func Reconcile(responses []types.Response, clusters []types.Cluster, normalized map[string]string, outcomes map[string]scheduler.RepOutcome) ([]types.ClassificationOutput, error) {
	repOf := make(map[string]string, len(responses))
	for _, c := range clusters {
		for _, member := range c.MemberIDs {
			if prev, dup := repOf[member]; dup {
				return nil, fmt.Errorf("response %s belongs to clusters of both %s and %s", member, prev, c.RepresentativeID)
			}
			repOf[member] = c.RepresentativeID
		}
	}

	outputs := make([]types.ClassificationOutput, 0, len(responses))
	for _, resp := range responses {
		rep, ok := repOf[resp.ID]
		if !ok {
			return nil, fmt.Errorf("response %s is not covered by any cluster", resp.ID)
		}

		outcome, dispatched := outcomes[rep]
		if !dispatched {
			outputs = append(outputs, failedOutput(resp.ID, "representative was never classified"))
			continue
		}
		if outcome.Err != nil {
			outputs = append(outputs, failedOutput(resp.ID, outcome.Err.Error()))
			continue
		}

		outputs = append(outputs, successOutput(resp, rep, normalized, outcome.Assignments))
	}
	return outputs, nil
}

func failedOutput(id, reason string) types.ClassificationOutput {
	return types.ClassificationOutput{
		ResponseID:    id,
		AssignedCodes: []string{},
		Outcome:       types.OutcomeFailed,
		FailureReason: reason,
	}
}

func successOutput(resp types.Response, rep string, normalized map[string]string, assignments []types.Assignment) types.ClassificationOutput {
	labels := make([]string, 0, len(assignments))
	seen := make(map[string]bool, len(assignments))
	best := 0.0
	var fragments []string
	for _, a := range assignments {
		if !seen[a.Label] {
			seen[a.Label] = true
			labels = append(labels, a.Label)
		}
		if a.Pertinence > best {
			best = a.Pertinence
		}
		if a.Fragment != "" {
			fragments = append(fragments, a.Fragment)
		}
	}
	sort.Strings(labels)

	// The provider's fragments quote the representative's text. For other
	// cluster members that quote would misattribute evidence, so their
	// evidence is the member's own normalized text.
	evidence := strings.Join(fragments, " | ")
	if resp.ID != rep {
		evidence = normalized[resp.ID]
	}

	return types.ClassificationOutput{
		ResponseID:      resp.ID,
		AssignedCodes:   labels,
		EvidenceText:    evidence,
		PertinenceScore: best,
		Outcome:         types.OutcomeClassified,
	}
}

// SuccessCount returns the number of outputs carrying a successful
// classification.
func SuccessCount(outputs []types.ClassificationOutput) int {
	n := 0
	for i := range outputs {
		if outputs[i].Classified() {
			n++
		}
	}
	return n
}
