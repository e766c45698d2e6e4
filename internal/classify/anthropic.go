package classify

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/opencodebook/coder/internal/jsonx"
	"github.com/opencodebook/coder/internal/tokens"
	"github.com/opencodebook/coder/internal/types"
)

// DefaultModel is the classification model used when none is configured.
const DefaultModel = "claude-3-5-haiku-20241022"

// AnthropicProvider classifies batches of survey responses using the
// Anthropic Messages API.
type AnthropicProvider struct {
	client    *anthropic.Client
	model     string
	estimator *tokens.Estimator
	opts      Options
}

// Compile-time interface checks.
var (
	_ Provider        = (*AnthropicProvider)(nil)
	_ CodebookBuilder = (*AnthropicProvider)(nil)
)

// NewAnthropicProvider creates a provider. An empty model selects
// DefaultModel; the API key must be non-empty.
func NewAnthropicProvider(apiKey, model string, opts Options) (*AnthropicProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}
	if model == "" {
		model = DefaultModel
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicProvider{
		client:    &client,
		model:     model,
		estimator: tokens.NewEstimator(model),
		opts:      opts,
	}, nil
}

// batchResponse mirrors the JSON schema the model is instructed to emit.
type batchResponse struct {
	Results []batchResult `json:"results"`
}

type batchResult struct {
	Index int                `json:"index"`
	Items []types.Assignment `json:"items"`
}

// ClassifyBatch classifies texts against the codebook in one API call.
// The returned slice is aligned with texts; entries the model did not cover
// come back as empty assignment lists, never as gaps.
func (p *AnthropicProvider) ClassifyBatch(ctx context.Context, codebook *types.Codebook, question string, texts []string) ([][]types.Assignment, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := codebook.Validate(); err != nil {
		return nil, &types.ClassificationError{Reason: "invalid codebook", Err: err}
	}

	prompt := BuildBatchPrompt(codebook, question, texts, p.opts)

	raw, err := p.complete(ctx, prompt, p.estimator.EstimateOutput(len(texts)))
	if err != nil {
		return nil, &types.ClassificationError{
			Reason:    "provider request",
			Retryable: isTransient(err),
			Err:       err,
		}
	}

	parsed, err := jsonx.Parse[batchResponse](raw)
	if err != nil {
		// A garbled response may parse fine on a retry with fresh sampling.
		return nil, &types.ClassificationError{Reason: "parsing response", Retryable: true, Err: err}
	}

	return alignResults(parsed, codebook, len(texts), p.opts), nil
}

// alignResults maps model output back onto input positions, dropping
// out-of-range indexes and assignments for labels the codebook does not
// contain. Uncovered positions get empty (non-nil) assignment lists.
func alignResults(parsed batchResponse, codebook *types.Codebook, n int, opts Options) [][]types.Assignment {
	aligned := make([][]types.Assignment, n)
	for i := range aligned {
		aligned[i] = []types.Assignment{}
	}
	for _, result := range parsed.Results {
		if result.Index < 0 || result.Index >= n {
			continue
		}
		kept := make([]types.Assignment, 0, len(result.Items))
		for _, a := range result.Items {
			if !codebook.HasLabel(a.Label) {
				continue
			}
			if a.Pertinence < 0 {
				a.Pertinence = 0
			} else if a.Pertinence > 1 {
				a.Pertinence = 1
			}
			kept = append(kept, a)
			if !opts.MultiLabel {
				break
			}
		}
		aligned[result.Index] = kept
	}
	return aligned
}

// BuildBatchPrompt renders the indexed-responses classification prompt.
func BuildBatchPrompt(codebook *types.Codebook, question string, texts []string, opts Options) string {
	var indexed strings.Builder
	for i, t := range texts {
		fmt.Fprintf(&indexed, "[%d] %q\n", i, t)
	}

	explanationField := ""
	explanationNote := "\nDo NOT include an \"explanation\" field."
	if opts.IncludeExplanation {
		explanationField = `, "explanation": string`
		explanationNote = ""
	}
	labelRule := "For single-label, each items list MUST contain exactly one item."
	task := "Analyze the indexed responses against the codebook. Choose the single best code for each response and provide the verbatim fragment supporting it."
	if opts.MultiLabel {
		labelRule = ""
		task = "Analyze the indexed responses against the codebook. Identify ALL codes present in each response and provide the verbatim fragment supporting each."
	}

	return fmt.Sprintf(`You are a survey coding assistant. %s
Question: %q
Codebook:
---
%s
---
Responses (indexed):
%s
Return ONLY JSON with this schema:
{
  "results": [
    { "index": number, "items": [ { "label": string, "fragment": string, "pertinence": number (0-1)%s } ] }
  ]
}%s
%s
For uncovered responses, use an empty list for items.
Respond with ONLY raw JSON. Do NOT wrap it in markdown code fences.`,
		task, question, codebook.PromptText(), indexed.String(),
		explanationField, explanationNote, labelRule)
}

// complete issues one Messages API call and concatenates the text blocks.
func (p *AnthropicProvider) complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	resp, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", err
	}
	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return text.String(), nil
}
