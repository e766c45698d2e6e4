// Package tokens estimates prompt and completion token costs locally, with a
// deliberate bias toward overestimation. The batch scheduler uses these
// estimates to size batches before submission; an underestimate could blow a
// provider's context window mid-run, so every path rounds up.
package tokens

import (
	"github.com/pkoukk/tiktoken-go"
)

const (
	// bpeMarginPercent is added on top of exact BPE counts. Provider-side
	// tokenizers drift from tiktoken's vocabularies (Claude models in
	// particular), so even exact local counts get headroom.
	bpeMarginPercent = 15

	// heuristicBytesPerToken is the fallback ratio when no BPE vocabulary
	// is available for the model. English prose averages ~4 bytes/token;
	// dividing by 3 overestimates by design.
	heuristicBytesPerToken = 3

	// perItemOverhead covers the indexing scaffold wrapped around each
	// response inside a batch prompt: "[i] \"...\"" plus separators.
	perItemOverhead = 8

	// Output estimate bounds, matching what provider calls will accept.
	perResultOutputTokens = 150
	outputOverheadTokens  = 200
	minOutputTokens       = 1000
	maxOutputTokens       = 8192
)

// Estimator computes token estimates for a target model. It is a pure, local
// computation: no network call is ever made at estimation time.
type Estimator struct {
	enc   *tiktoken.Tiktoken // nil when the model has no known BPE encoding
	model string
}

// NewEstimator creates an estimator for the given model identifier. Models
// without a tiktoken encoding (Claude models, local models) use the byte
// heuristic; both paths are conservative-high.
func NewEstimator(model string) *Estimator {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc = nil
	}
	return &Estimator{enc: enc, model: model}
}

// Model returns the model identifier this estimator was built for.
func (e *Estimator) Model() string { return e.model }

// Count estimates the token count of a single text, rounded up.
func (e *Estimator) Count(text string) int {
	if text == "" {
		return 0
	}
	if e.enc != nil {
		n := len(e.enc.Encode(text, nil, nil))
		return n + (n*bpeMarginPercent+99)/100
	}
	return len(text)/heuristicBytesPerToken + 1
}

// EstimateInput estimates the input-token cost of a batch prompt: the fixed
// prompt template plus every representative text with its indexing overhead.
// The estimate is monotonically non-decreasing as texts are added.
func (e *Estimator) EstimateInput(prompt string, texts []string) int {
	total := e.Count(prompt)
	for _, t := range texts {
		total += e.Count(t) + perItemOverhead
	}
	return total
}

// EstimateOutput returns a conservative upper bound on completion tokens for
// a batch of n classified texts, clamped to the provider's accepted range.
func (e *Estimator) EstimateOutput(n int) int {
	est := n*perResultOutputTokens + outputOverheadTokens
	if est < minOutputTokens {
		return minOutputTokens
	}
	if est > maxOutputTokens {
		return maxOutputTokens
	}
	return est
}
