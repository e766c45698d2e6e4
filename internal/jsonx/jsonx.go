// Package jsonx extracts structured JSON from LLM output. Providers are
// instructed to answer with raw JSON, but in practice responses arrive
// wrapped in markdown fences, prefixed with prose, or carrying trailing
// commas; Parse works through those cases before giving up.
package jsonx

import (
	"encoding/json"
	"fmt"
	"strings"

	"regexp"
)

var (
	fenceRegex         = regexp.MustCompile("(?s)`{3}(?:json)?\\s*\n?([\\s\\S]*?)\n?`{3}")
	trailingCommaRegex = regexp.MustCompile(`,(\s*[}\]])`)
	lineCommentRegex   = regexp.MustCompile(`(?m)^\s*//.*$`)
	objectRegex        = regexp.MustCompile(`(?s)\{[\s\S]*\}`)
	arrayRegex         = regexp.MustCompile(`(?s)\[[\s\S]*\]`)
)

// Parse decodes text into T, trying progressively harder strategies:
// a direct decode, then with markdown fences stripped, then with trailing
// commas and line comments removed, then on the outermost JSON object or
// array found in mixed content.
func Parse[T any](text string) (T, error) {
	var zero T

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return zero, fmt.Errorf("empty response")
	}

	if v, err := decode[T](trimmed); err == nil {
		return v, nil
	}

	unfenced := stripFences(trimmed)
	if v, err := decode[T](unfenced); err == nil {
		return v, nil
	}

	cleaned := cleanup(unfenced)
	if v, err := decode[T](cleaned); err == nil {
		return v, nil
	}

	if extracted := extract(cleaned); extracted != "" {
		if v, err := decode[T](extracted); err == nil {
			return v, nil
		}
	}

	return zero, fmt.Errorf("no parseable JSON in response (%d bytes)", len(text))
}

func decode[T any](text string) (T, error) {
	var v T
	err := json.Unmarshal([]byte(text), &v)
	return v, err
}

// stripFences removes markdown code fences anywhere in the text.
func stripFences(text string) string {
	cleaned := fenceRegex.ReplaceAllString(text, "$1")
	return strings.TrimSpace(cleaned)
}

// cleanup removes trailing commas and full-line comments, both common in
// model output and both invalid JSON.
func cleanup(text string) string {
	cleaned := trailingCommaRegex.ReplaceAllString(text, "$1")
	cleaned = lineCommentRegex.ReplaceAllString(cleaned, "")
	return strings.TrimSpace(cleaned)
}

// extract pulls the outermost JSON object or array out of surrounding prose.
// The greedy match pairs the first opener with the last closer, which is what
// we want for a single payload preceded or followed by commentary.
func extract(text string) string {
	objStart := strings.IndexByte(text, '{')
	arrStart := strings.IndexByte(text, '[')

	if arrStart >= 0 && (objStart < 0 || arrStart < objStart) {
		if m := arrayRegex.FindString(text); m != "" {
			return m
		}
	}
	if m := objectRegex.FindString(text); m != "" {
		return m
	}
	if m := arrayRegex.FindString(text); m != "" {
		return m
	}
	return ""
}
