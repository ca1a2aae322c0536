// Package embed turns text into embedding vectors. Two implementations
// are provided: the OpenAI embeddings API and a local Ollama server.
package embed

import "context"

// Embedder produces embedding vectors for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}
