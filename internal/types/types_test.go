package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodebookValidate(t *testing.T) {
	tests := []struct {
		name    string
		cb      Codebook
		wantErr string
	}{
		{
			name: "valid codebook",
			cb: Codebook{Version: 1, Codes: []Code{
				{Label: "Price", Description: "Mentions cost or price"},
				{Label: "Quality", Description: "Mentions product quality"},
			}},
		},
		{
			name:    "zero version",
			cb:      Codebook{Version: 0, Codes: []Code{{Label: "Price", Description: "d"}}},
			wantErr: "version must be >= 1",
		},
		{
			name:    "no codes",
			cb:      Codebook{Version: 1},
			wantErr: "no codes",
		},
		{
			name: "duplicate label",
			cb: Codebook{Version: 2, Codes: []Code{
				{Label: "Price", Description: "a"},
				{Label: "Price", Description: "b"},
			}},
			wantErr: "duplicate code label",
		},
		{
			name: "empty label",
			cb: Codebook{Version: 1, Codes: []Code{
				{Label: "  ", Description: "a"},
			}},
			wantErr: "empty label",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cb.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestCodebookPromptText(t *testing.T) {
	cb := Codebook{Version: 1, Codes: []Code{
		{Label: "Price", Description: "Mentions cost"},
		{Label: "Other", Description: "Anything else"},
	}}
	text := cb.PromptText()
	assert.Contains(t, text, "- Code: Price\n  Description: Mentions cost")
	assert.Contains(t, text, "- Code: Other")
}

func TestValidateClusters(t *testing.T) {
	ids := []string{"r1", "r2", "r3", "r4"}

	t.Run("valid partition", func(t *testing.T) {
		clusters := []Cluster{
			{RepresentativeID: "r1", MemberIDs: []string{"r1", "r2"}},
			{RepresentativeID: "r3", MemberIDs: []string{"r3"}},
			{RepresentativeID: "r4", MemberIDs: []string{"r4"}},
		}
		assert.NoError(t, ValidateClusters(clusters, ids))
	})

	t.Run("overlapping members", func(t *testing.T) {
		clusters := []Cluster{
			{RepresentativeID: "r1", MemberIDs: []string{"r1", "r2"}},
			{RepresentativeID: "r2", MemberIDs: []string{"r2", "r3"}},
			{RepresentativeID: "r4", MemberIDs: []string{"r4"}},
		}
		err := ValidateClusters(clusters, ids)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "appears in clusters")
	})

	t.Run("missing response", func(t *testing.T) {
		clusters := []Cluster{
			{RepresentativeID: "r1", MemberIDs: []string{"r1", "r2", "r3"}},
		}
		err := ValidateClusters(clusters, ids)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not assigned")
	})

	t.Run("representative outside cluster", func(t *testing.T) {
		clusters := []Cluster{
			{RepresentativeID: "r9", MemberIDs: []string{"r1", "r2", "r3", "r4"}},
		}
		err := ValidateClusters(clusters, ids)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not a member")
	})
}

func TestIsRetryable(t *testing.T) {
	retryable := &ClassificationError{Reason: "rate limited", Retryable: true}
	terminal := &ClassificationError{Reason: "bad request", Retryable: false}

	assert.True(t, IsRetryable(retryable))
	assert.False(t, IsRetryable(terminal))
	assert.False(t, IsRetryable(errors.New("plain error")))

	// Wrapped errors still classify correctly.
	wrapped := &EmbeddingError{Reason: "outer", Err: retryable}
	assert.True(t, IsRetryable(wrapped))
}
