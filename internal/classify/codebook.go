package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/opencodebook/coder/internal/jsonx"
	"github.com/opencodebook/coder/internal/types"
)

// codebookResponse mirrors the JSON schema used for codebook generation and
// merge calls. Versions are assigned by the caller, not the model.
type codebookResponse struct {
	Codes []types.Code `json:"codes"`
}

// GenerateCodebook asks the model for a thematic codebook built from example
// responses. The result always includes an "Other" catch-all code and carries
// version 1; persisting it under a lineage is the store's concern.
func (p *AnthropicProvider) GenerateCodebook(ctx context.Context, question string, examples []string) (*types.Codebook, error) {
	if len(examples) == 0 {
		return nil, fmt.Errorf("at least one example response is required")
	}

	var quoted strings.Builder
	for _, ex := range examples {
		fmt.Fprintf(&quoted, "%q\n", ex)
	}

	prompt := fmt.Sprintf(`You are an expert survey analyst. Analyze the survey question and responses to create a thematic codebook.
Question: %q
Responses:
[%s]

Identify themes, define a code label and description for each, and select 3-5 verbatim examples per code. Include an "Other" code for responses that fit no theme.
Return ONLY JSON with this schema:
{ "codes": [ { "label": string, "description": string, "examples": string[] } ] }
Respond with ONLY raw JSON. Do NOT wrap it in markdown code fences.`,
		question, strings.TrimSpace(quoted.String()))

	raw, err := p.complete(ctx, prompt, p.estimator.EstimateOutput(len(examples)))
	if err != nil {
		return nil, &types.ClassificationError{Reason: "codebook generation", Retryable: isTransient(err), Err: err}
	}

	parsed, err := jsonx.Parse[codebookResponse](raw)
	if err != nil {
		return nil, &types.ClassificationError{Reason: "parsing generated codebook", Retryable: true, Err: err}
	}

	cb := &types.Codebook{Version: 1, Codes: parsed.Codes}
	if err := cb.Validate(); err != nil {
		return nil, &types.ClassificationError{Reason: "generated codebook invalid", Err: err}
	}
	return cb, nil
}

// MergeCodebooks consolidates two codebooks into one, preserving distinct
// concepts and collapsing redundant ones. The merged codebook's version is
// one past the higher input version.
func (p *AnthropicProvider) MergeCodebooks(ctx context.Context, base, next *types.Codebook, instructions string) (*types.Codebook, error) {
	baseJSON, err := json.MarshalIndent(codebookResponse{Codes: base.Codes}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("serializing base codebook: %w", err)
	}
	nextJSON, err := json.MarshalIndent(codebookResponse{Codes: next.Codes}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("serializing new codebook: %w", err)
	}

	prompt := fmt.Sprintf(`You are a master survey analyst consolidating two codebooks into the most accurate final codebook.
Codebook A:
%s
Codebook B:
%s

Process:
1. Identify codes with similar themes.
2. For similar codes, examine their examples; if they are truly redundant, consolidate them.
3. Retain unique codes. Each code must refer to a unique concept.`,
		baseJSON, nextJSON)

	if instructions != "" {
		prompt += fmt.Sprintf("\n\nCRITICAL USER INSTRUCTIONS (these override the general guidance):\n---\n%s\n---", instructions)
	}
	prompt += `

Return ONLY JSON with this schema:
{ "codes": [ { "label": string, "description": string, "examples": string[] } ] }
Respond with ONLY raw JSON. Do NOT wrap it in markdown code fences.`

	raw, err := p.complete(ctx, prompt, p.estimator.EstimateOutput(len(base.Codes)+len(next.Codes)))
	if err != nil {
		return nil, &types.ClassificationError{Reason: "codebook merge", Retryable: isTransient(err), Err: err}
	}

	parsed, err := jsonx.Parse[codebookResponse](raw)
	if err != nil {
		return nil, &types.ClassificationError{Reason: "parsing merged codebook", Retryable: true, Err: err}
	}

	version := base.Version
	if next.Version > version {
		version = next.Version
	}
	merged := &types.Codebook{Version: version + 1, Codes: parsed.Codes}
	if err := merged.Validate(); err != nil {
		return nil, &types.ClassificationError{Reason: "merged codebook invalid", Err: err}
	}
	return merged, nil
}
