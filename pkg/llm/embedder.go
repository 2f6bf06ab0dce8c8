package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pharmvec/pharmvec/internal/models"
	"github.com/tmc/langchaingo/llms/ollama"
)

// EmbedderConfig represents the configuration for the embedding model.
type EmbedderConfig struct {
	Model         string
	BaseURL       string // Ollama server URL
	Dimension     int    // expected vector dimension, 0 disables the check
	MaxInputChars int    // inputs longer than this are truncated
	Timeout       time.Duration
}

// Embedder turns text into fixed-dimension vectors via a local Ollama
// model. It is stateless and safe for concurrent use.
type Embedder struct {
	config EmbedderConfig
	client *ollama.LLM
}

func NewEmbedderWithConfig(config EmbedderConfig) (*Embedder, error) {
	// Validate and set default values for config fields if necessary
	if config.Model == "" {
		config.Model = "nomic-embed-text:latest" // Default Ollama model
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434" // Default Ollama URL
	}
	if config.MaxInputChars == 0 {
		config.MaxInputChars = 8000
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}

	client, err := ollama.New(
		ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding model: %v", err)
	}

	return &Embedder{
		config: config,
		client: client,
	}, nil
}

func NewEmbedder() (*Embedder, error) {
	return NewEmbedderWithConfig(EmbedderConfig{})
}

// Embed maps text to a vector. Empty input and model failures return a
// *models.EmbeddingError; a zero or wrongly sized vector is never
// returned silently. Input longer than MaxInputChars is truncated on a
// rune boundary before the model sees it.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &models.EmbeddingError{Reason: "empty input"}
	}
	text = Truncate(text, e.config.MaxInputChars)

	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	embeddings, err := e.client.CreateEmbedding(ctx, []string{text})
	if err != nil {
		return nil, &models.EmbeddingError{Reason: "model call failed", Err: err}
	}
	if len(embeddings) == 0 || len(embeddings[0]) == 0 {
		return nil, &models.EmbeddingError{Reason: "model returned no vector"}
	}

	vector := embeddings[0]
	if e.config.Dimension > 0 && len(vector) != e.config.Dimension {
		return nil, &models.EmbeddingError{
			Reason: fmt.Sprintf("expected %d dimensions, got %d", e.config.Dimension, len(vector)),
		}
	}
	if isZero(vector) {
		return nil, &models.EmbeddingError{Reason: "model returned a zero vector"}
	}

	return vector, nil
}

// Truncate cuts s to at most max runes.
func Truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func isZero(vector []float32) bool {
	for _, v := range vector {
		if v != 0 {
			return false
		}
	}
	return true
}
