package classify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencodebook/coder/internal/types"
)

func testCodebook() *types.Codebook {
	return &types.Codebook{Version: 1, Codes: []types.Code{
		{Label: "Price", Description: "Mentions cost or price"},
		{Label: "Quality", Description: "Mentions product quality"},
		{Label: "Other", Description: "Anything else"},
	}}
}

func TestBuildBatchPrompt(t *testing.T) {
	texts := []string{"too expensive", "broke after a week"}
	prompt := BuildBatchPrompt(testCodebook(), "What did you dislike?", texts, Options{})

	assert.Contains(t, prompt, `[0] "too expensive"`)
	assert.Contains(t, prompt, `[1] "broke after a week"`)
	assert.Contains(t, prompt, "- Code: Price")
	assert.Contains(t, prompt, "What did you dislike?")
	assert.Contains(t, prompt, "exactly one item")
	assert.Contains(t, prompt, `Do NOT include an "explanation" field`)
}

func TestBuildBatchPromptMultiLabelWithExplanation(t *testing.T) {
	prompt := BuildBatchPrompt(testCodebook(), "q", []string{"a"}, Options{
		MultiLabel:         true,
		IncludeExplanation: true,
	})

	assert.Contains(t, prompt, "ALL codes")
	assert.Contains(t, prompt, `"explanation": string`)
	assert.NotContains(t, prompt, "exactly one item")
}

func TestAlignResults(t *testing.T) {
	parsed := batchResponse{Results: []batchResult{
		{Index: 1, Items: []types.Assignment{{Label: "Price", Fragment: "expensive", Pertinence: 0.9}}},
		{Index: 0, Items: []types.Assignment{{Label: "Quality", Fragment: "broke", Pertinence: 0.8}}},
		{Index: 7, Items: []types.Assignment{{Label: "Price"}}},         // out of range: dropped
		{Index: -1, Items: []types.Assignment{{Label: "Price"}}},        // out of range: dropped
		{Index: 2, Items: []types.Assignment{{Label: "Unknown Label"}}}, // not in codebook: filtered
	}}

	aligned := alignResults(parsed, testCodebook(), 4, Options{MultiLabel: true})

	require.Len(t, aligned, 4)
	assert.Equal(t, "Quality", aligned[0][0].Label)
	assert.Equal(t, "Price", aligned[1][0].Label)
	assert.Empty(t, aligned[2], "unknown labels are filtered out")
	assert.Empty(t, aligned[3], "uncovered responses get empty lists")
	assert.NotNil(t, aligned[3])
}

func TestAlignResultsSingleLabelKeepsFirst(t *testing.T) {
	parsed := batchResponse{Results: []batchResult{
		{Index: 0, Items: []types.Assignment{
			{Label: "Price", Pertinence: 0.9},
			{Label: "Quality", Pertinence: 0.7},
		}},
	}}

	aligned := alignResults(parsed, testCodebook(), 1, Options{MultiLabel: false})
	require.Len(t, aligned[0], 1)
	assert.Equal(t, "Price", aligned[0][0].Label)
}

func TestAlignResultsClampsPertinence(t *testing.T) {
	parsed := batchResponse{Results: []batchResult{
		{Index: 0, Items: []types.Assignment{{Label: "Price", Pertinence: 1.7}}},
		{Index: 1, Items: []types.Assignment{{Label: "Quality", Pertinence: -0.2}}},
	}}

	aligned := alignResults(parsed, testCodebook(), 2, Options{})
	assert.Equal(t, 1.0, aligned[0][0].Pertinence)
	assert.Equal(t, 0.0, aligned[1][0].Pertinence)
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"deadline", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, false},
		{"rate limit", errors.New("got 429 rate limit exceeded"), true},
		{"overloaded", errors.New("anthropic: overloaded_error"), true},
		{"server error", errors.New("502 bad gateway"), true},
		{"connection reset", errors.New("read tcp: connection reset by peer"), true},
		{"auth failure", errors.New("401 unauthorized"), false},
		{"bad request", errors.New("400 invalid_request_error"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isTransient(tt.err))
		})
	}
}

func TestNewAnthropicProviderRequiresKey(t *testing.T) {
	_, err := NewAnthropicProvider("", "", Options{})
	assert.Error(t, err)

	p, err := NewAnthropicProvider("test-key", "", Options{})
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, p.model)
}
