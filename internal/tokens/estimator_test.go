package tokens

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// newHeuristicEstimator returns an estimator on the byte-heuristic path.
// Claude model names have no tiktoken encoding, so no vocabulary download is
// attempted and tests stay offline.
func newHeuristicEstimator() *Estimator {
	return NewEstimator("claude-3-5-haiku-20241022")
}

func TestCountNeverUnderestimates(t *testing.T) {
	e := newHeuristicEstimator()

	// The heuristic assumes 3 bytes per token; real tokenizers average ~4
	// for English prose, so byte/3 must sit above a byte/4 reference floor.
	corpus := []string{
		"Great service and fast delivery",
		"The product stopped working after two days, very disappointed",
		"ok",
		strings.Repeat("customer support was unreachable for a week ", 20),
	}
	for _, text := range corpus {
		floor := len(text) / 4
		assert.GreaterOrEqual(t, e.Count(text), floor, "estimate below floor for %q", text)
	}
}

func TestCountEmpty(t *testing.T) {
	e := newHeuristicEstimator()
	assert.Equal(t, 0, e.Count(""))
}

func TestEstimateInputMonotonic(t *testing.T) {
	e := newHeuristicEstimator()
	prompt := "Classify the following responses against the codebook."

	texts := []string{
		"too expensive",
		"delivery was late and the box was damaged",
		"love it",
		"",
	}

	prev := e.EstimateInput(prompt, nil)
	for i := 1; i <= len(texts); i++ {
		cur := e.EstimateInput(prompt, texts[:i])
		assert.Greater(t, cur, prev, "estimate must grow when adding text %d", i)
		prev = cur
	}
}

func TestEstimateInputIncludesPromptOverhead(t *testing.T) {
	e := newHeuristicEstimator()
	prompt := strings.Repeat("codebook section ", 50)
	withPrompt := e.EstimateInput(prompt, []string{"a response"})
	withoutPrompt := e.EstimateInput("", []string{"a response"})
	assert.Greater(t, withPrompt, withoutPrompt)
}

func TestEstimateOutputBounds(t *testing.T) {
	e := newHeuristicEstimator()

	assert.Equal(t, minOutputTokens, e.EstimateOutput(1), "small batches clamp to the floor")
	assert.Equal(t, maxOutputTokens, e.EstimateOutput(500), "huge batches clamp to the ceiling")

	mid := e.EstimateOutput(20)
	assert.Equal(t, 20*perResultOutputTokens+outputOverheadTokens, mid)
	assert.GreaterOrEqual(t, e.EstimateOutput(21), mid, "output estimate is monotonic")
}
