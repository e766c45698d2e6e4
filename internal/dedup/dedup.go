// Package dedup collapses textually identical survey responses before any
// expensive embedding or classification call is made.
package dedup

import (
	"strings"

	"github.com/opencodebook/coder/internal/types"
)

// trimCutset is the punctuation stripped from the edges of a response.
// Interior punctuation is preserved; stripping it could change meaning.
const trimCutset = " \t\"'.,;:!?()[]"

// Normalize produces the deduplication key for a response text: case-folded,
// whitespace collapsed, edge punctuation trimmed. Normalize is deterministic
// and idempotent: Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	s = strings.ToLower(s)
	s = strings.Join(strings.Fields(s), " ")
	s = strings.Trim(s, trimCutset)
	// Trimming can expose new edge whitespace ("hello !" -> "hello"), so
	// collapse once more to keep the function idempotent.
	return strings.Join(strings.Fields(s), " ")
}

// Result maps each normalized text to the responses sharing it.
type Result struct {
	// Order lists normalized texts in first-appearance order.
	Order []string

	// Groups maps normalized text to the IDs of all responses sharing it,
	// in input order.
	Groups map[string][]string

	// Representatives maps normalized text to the ID of the first response
	// that produced it.
	Representatives map[string]string
}

// UniqueCount returns the number of distinct normalized texts.
func (r *Result) UniqueCount() int { return len(r.Order) }

// Deduplicate groups responses by normalized text. Pure function: the input
// slice is not modified. Empty input yields an empty result.
func Deduplicate(responses []types.Response) Result {
	res := Result{
		Groups:          make(map[string][]string, len(responses)),
		Representatives: make(map[string]string, len(responses)),
	}
	for _, resp := range responses {
		norm := Normalize(resp.RawText)
		if _, seen := res.Groups[norm]; !seen {
			res.Order = append(res.Order, norm)
			res.Representatives[norm] = resp.ID
		}
		res.Groups[norm] = append(res.Groups[norm], resp.ID)
	}
	return res
}
