package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencodebook/coder/internal/types"
)

// fakeProvider returns canned vectors, failing on configured texts.
type fakeProvider struct {
	failOn map[string]bool
	calls  int
}

func (f *fakeProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	for _, t := range texts {
		if f.failOn[t] {
			return nil, &types.EmbeddingError{Reason: "simulated provider failure"}
		}
	}
	vecs := make([][]float32, len(texts))
	for i := range texts {
		vecs[i] = []float32{float32(len(texts[i])), 1}
	}
	return vecs, nil
}

func TestGeneratePreservesOrder(t *testing.T) {
	g := NewGenerator(&fakeProvider{}, 2)
	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}

	vectors, failed, err := g.Generate(context.Background(), texts)

	require.NoError(t, err)
	assert.Empty(t, failed)
	require.Len(t, vectors, len(texts))
	for i, text := range texts {
		assert.Equal(t, float32(len(text)), vectors[i][0], "vector %d out of order", i)
	}
}

func TestGeneratePartialFailure(t *testing.T) {
	// Batch size 2: texts are embedded pairwise. A failure in the second
	// sub-batch must not affect the first or third.
	provider := &fakeProvider{failOn: map[string]bool{"bad": true}}
	g := NewGenerator(provider, 2)
	texts := []string{"one", "two", "bad", "four", "five"}

	vectors, failed, err := g.Generate(context.Background(), texts)

	require.NoError(t, err, "partial failure must not fail the run")
	assert.Equal(t, []int{2, 3}, failed)
	assert.NotNil(t, vectors[0])
	assert.NotNil(t, vectors[1])
	assert.Nil(t, vectors[2])
	assert.Nil(t, vectors[3])
	assert.NotNil(t, vectors[4])
}

func TestGenerateTotalFailure(t *testing.T) {
	provider := &fakeProvider{failOn: map[string]bool{"x": true, "y": true}}
	g := NewGenerator(provider, 1)

	vectors, failed, err := g.Generate(context.Background(), []string{"x", "y"})

	require.Error(t, err)
	var embedErr *types.EmbeddingError
	assert.ErrorAs(t, err, &embedErr)
	assert.Len(t, failed, 2)
	assert.Nil(t, vectors[0])
	assert.Nil(t, vectors[1])
}

func TestGenerateEmptyInput(t *testing.T) {
	g := NewGenerator(&fakeProvider{}, 10)
	vectors, failed, err := g.Generate(context.Background(), nil)
	assert.NoError(t, err)
	assert.Nil(t, vectors)
	assert.Nil(t, failed)
}

func TestGenerateLengthMismatchTreatedAsFailure(t *testing.T) {
	g := NewGenerator(&truncatingProvider{}, 3)
	vectors, failed, err := g.Generate(context.Background(), []string{"a", "b", "c"})
	require.Error(t, err)
	assert.Len(t, failed, 3)
	assert.Nil(t, vectors[0])
}

// truncatingProvider violates the order/length contract.
type truncatingProvider struct{}

func (truncatingProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	return make([][]float32, len(texts)-1), nil
}
