package port

import (
	"context"

	"github.com/docchat-ai/docchat/internal/domain"
)

// AIProvider abstracts the AI/LLM backend for embeddings and chat completions.
// Implementations can target Ollama, OpenAI, or any compatible API.
type AIProvider interface {
	// ModelName returns the identifier of the chat model being used.
	ModelName() string

	// Embed generates a vector embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts. The result has one
	// vector per input, in input order; empty input yields an empty result
	// without any network call.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Chat sends a message sequence and returns the complete model response.
	Chat(ctx context.Context, messages []domain.Message) (string, error)

	// ChatStream sends a message sequence and streams the response
	// token-by-token via channel. The channel is closed when the response is
	// complete or the stream breaks.
	ChatStream(ctx context.Context, messages []domain.Message) (<-chan string, error)
}
