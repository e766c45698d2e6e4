package embed

import (
	"context"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/opencodebook/coder/internal/types"
)

// LangChainProvider adapts a langchaingo embedder to the Provider boundary.
type LangChainProvider struct {
	embedder *embeddings.EmbedderImpl
}

// NewOpenAIProvider creates a provider backed by an OpenAI-compatible
// embeddings endpoint (OpenAI, OpenRouter, or any server speaking the same
// API). baseURL may be empty for the official endpoint.
func NewOpenAIProvider(baseURL, apiKey, model string) (*LangChainProvider, error) {
	opts := []openai.Option{
		openai.WithToken(apiKey),
		openai.WithEmbeddingModel(model),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, &types.EmbeddingError{Reason: "initializing openai client", Err: err}
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, &types.EmbeddingError{Reason: "creating embedder", Err: err}
	}
	return &LangChainProvider{embedder: embedder}, nil
}

// NewOllamaProvider creates a provider backed by a local Ollama server.
func NewOllamaProvider(serverURL, model string) (*LangChainProvider, error) {
	llm, err := ollama.New(
		ollama.WithServerURL(serverURL),
		ollama.WithModel(model),
	)
	if err != nil {
		return nil, &types.EmbeddingError{Reason: "initializing ollama client", Err: err}
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, &types.EmbeddingError{Reason: "creating embedder", Err: err}
	}
	return &LangChainProvider{embedder: embedder}, nil
}

// Embed returns one vector per text, in input order.
func (p *LangChainProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, &types.EmbeddingError{Reason: "provider request", Err: err}
	}
	return vecs, nil
}
