// Embedding client: the engine's implementation of the embedding interface
// consumed by the Hybrid Searcher and the ingestion path's embed_buffer
// operation (spec §6). The embedding model itself is treated as a pure
// function text -> fixed-dimensional vector; this file supplies the one
// concrete backend the teacher's dependency set can reach, OpenAI's
// embeddings endpoint via go-openai, which the provider abstraction already
// depends on for chat completions.

package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ariadne-eng/queryengine/internal/enginerr"
)

// Embedder turns text into a fixed-dimensional vector, deterministic given
// the text and the embedder's model identifier.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	ModelName() string
	Dimensions() int
}

// embeddingDimensions holds the known output width for each supported
// OpenAI embedding model, since the API response carries it implicitly in
// the vector length rather than as a queryable field ahead of the first call.
var embeddingDimensions = map[string]int{
	string(openai.SmallEmbedding3): 1536,
	string(openai.LargeEmbedding3): 3072,
	string(openai.AdaEmbeddingV2):  1536,
}

// OpenAIEmbedder implements Embedder over OpenAI's embeddings endpoint.
type OpenAIEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
	dims   int
}

// NewOpenAIEmbedder builds an embedder for the given model. Defaults to
// text-embedding-3-small (1536 dimensions) when model is empty.
func NewOpenAIEmbedder(apiKey, model string) *OpenAIEmbedder {
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}
	return &OpenAIEmbedder{
		client: openai.NewClient(apiKey),
		model:  openai.EmbeddingModel(model),
		dims:   embeddingDimensions[model],
	}
}

// Embed requests a single embedding vector for text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: e.model,
	})
	if err != nil {
		return nil, classifyEmbeddingError(err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedding provider returned no vectors")
	}
	vec := resp.Data[0].Embedding
	if e.dims == 0 {
		e.dims = len(vec)
	}
	return vec, nil
}

// ModelName returns the embedding model identifier embeddings are stored
// under; regenerating on a model change is the store's responsibility, keyed
// on this string.
func (e *OpenAIEmbedder) ModelName() string { return string(e.model) }

// Dimensions returns the vector width for the active model.
func (e *OpenAIEmbedder) Dimensions() int { return e.dims }

// classifyEmbeddingError wraps an OpenAI SDK error with a transient/
// permanent kind, mirroring the classification the chat providers apply so
// the embedding path participates in the same retry policy (spec §7).
func classifyEmbeddingError(err error) error {
	if apiErr, ok := err.(*openai.APIError); ok && (apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500) {
		return enginerr.NewProviderTransient("openai-embeddings", err)
	}
	return enginerr.NewProviderPermanent("openai-embeddings", err)
}
