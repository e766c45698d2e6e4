package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencodebook/coder/internal/scheduler"
	"github.com/opencodebook/coder/internal/types"
)

func fixture() ([]types.Response, []types.Cluster, map[string]string) {
	responses := []types.Response{
		{ID: "r1", RawText: "Great service"},
		{ID: "r2", RawText: "great service!"},
		{ID: "r3", RawText: "Too expensive"},
		{ID: "r4", RawText: "Way too expensive for what you get"},
	}
	clusters := []types.Cluster{
		{RepresentativeID: "r1", MemberIDs: []string{"r1", "r2"}},
		{RepresentativeID: "r3", MemberIDs: []string{"r3", "r4"}},
	}
	normalized := map[string]string{
		"r1": "great service",
		"r2": "great service",
		"r3": "too expensive",
		"r4": "way too expensive for what you get",
	}
	return responses, clusters, normalized
}

func TestReconcileMembersInheritRepresentative(t *testing.T) {
	responses, clusters, normalized := fixture()
	outcomes := map[string]scheduler.RepOutcome{
		"r1": {Assignments: []types.Assignment{{Label: "Service", Fragment: "great service", Pertinence: 0.95}}},
		"r3": {Assignments: []types.Assignment{{Label: "Price", Fragment: "too expensive", Pertinence: 0.9}}},
	}

	outputs, err := Reconcile(responses, clusters, normalized, outcomes)
	require.NoError(t, err)

	// Same length and order as input.
	require.Len(t, outputs, 4)
	for i, resp := range responses {
		assert.Equal(t, resp.ID, outputs[i].ResponseID)
	}

	// Cluster members share codes and pertinence with their representative.
	assert.Equal(t, outputs[0].AssignedCodes, outputs[1].AssignedCodes)
	assert.Equal(t, outputs[0].PertinenceScore, outputs[1].PertinenceScore)
	assert.Equal(t, outputs[2].AssignedCodes, outputs[3].AssignedCodes)
	assert.Equal(t, outputs[2].PertinenceScore, outputs[3].PertinenceScore)

	// Evidence is cluster-local: the representative keeps the provider's
	// fragment, other members reference their own normalized text.
	assert.Equal(t, "great service", outputs[0].EvidenceText)
	assert.Equal(t, "great service", outputs[1].EvidenceText)
	assert.Equal(t, "too expensive", outputs[2].EvidenceText)
	assert.Equal(t, "way too expensive for what you get", outputs[3].EvidenceText)

	assert.Equal(t, 4, SuccessCount(outputs))
}

func TestReconcileFailedRepresentativePropagates(t *testing.T) {
	responses, clusters, normalized := fixture()
	outcomes := map[string]scheduler.RepOutcome{
		"r1": {Assignments: []types.Assignment{{Label: "Service", Fragment: "great service", Pertinence: 0.95}}},
		"r3": {Err: &types.ClassificationError{Reason: "retries exhausted"}},
	}

	outputs, err := Reconcile(responses, clusters, normalized, outcomes)
	require.NoError(t, err)
	require.Len(t, outputs, 4, "failed responses are never dropped")

	assert.Equal(t, types.OutcomeClassified, outputs[0].Outcome)
	assert.Equal(t, types.OutcomeClassified, outputs[1].Outcome)
	assert.Equal(t, types.OutcomeFailed, outputs[2].Outcome)
	assert.Equal(t, types.OutcomeFailed, outputs[3].Outcome)
	assert.Contains(t, outputs[3].FailureReason, "retries exhausted")
	assert.Empty(t, outputs[2].AssignedCodes)

	assert.Equal(t, 2, SuccessCount(outputs))
}

func TestReconcileMissingOutcomeIsFailure(t *testing.T) {
	responses, clusters, normalized := fixture()
	// r3's batch never completed (e.g. run canceled mid-flight).
	outcomes := map[string]scheduler.RepOutcome{
		"r1": {Assignments: []types.Assignment{{Label: "Service", Pertinence: 0.8}}},
	}

	outputs, err := Reconcile(responses, clusters, normalized, outcomes)
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeFailed, outputs[2].Outcome)
	assert.Equal(t, types.OutcomeFailed, outputs[3].Outcome)
	assert.Contains(t, outputs[2].FailureReason, "never classified")
}

func TestReconcileMultiLabelDeduplicatesAndSorts(t *testing.T) {
	responses := []types.Response{{ID: "r1", RawText: "x"}}
	clusters := []types.Cluster{{RepresentativeID: "r1", MemberIDs: []string{"r1"}}}
	outcomes := map[string]scheduler.RepOutcome{
		"r1": {Assignments: []types.Assignment{
			{Label: "Quality", Fragment: "broke", Pertinence: 0.7},
			{Label: "Price", Fragment: "expensive", Pertinence: 0.9},
			{Label: "Price", Fragment: "costly", Pertinence: 0.5},
		}},
	}

	outputs, err := Reconcile(responses, clusters, map[string]string{"r1": "x"}, outcomes)
	require.NoError(t, err)
	assert.Equal(t, []string{"Price", "Quality"}, outputs[0].AssignedCodes)
	assert.Equal(t, 0.9, outputs[0].PertinenceScore, "highest assignment pertinence wins")
	assert.Equal(t, "broke | expensive | costly", outputs[0].EvidenceText)
}

func TestReconcileUncoveredResponseIsError(t *testing.T) {
	responses := []types.Response{{ID: "r1"}, {ID: "orphan"}}
	clusters := []types.Cluster{{RepresentativeID: "r1", MemberIDs: []string{"r1"}}}

	_, err := Reconcile(responses, clusters, nil, map[string]scheduler.RepOutcome{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "orphan")
}

func TestReconcileOverlappingClustersIsError(t *testing.T) {
	responses := []types.Response{{ID: "r1"}}
	clusters := []types.Cluster{
		{RepresentativeID: "r1", MemberIDs: []string{"r1"}},
		{RepresentativeID: "r2", MemberIDs: []string{"r1", "r2"}},
	}

	_, err := Reconcile(responses, clusters, nil, map[string]scheduler.RepOutcome{})
	require.Error(t, err)
}

func TestReconcileEmptyInput(t *testing.T) {
	outputs, err := Reconcile(nil, nil, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, outputs)
}
