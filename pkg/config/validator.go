package config

import (
	"fmt"
	"net/url"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate Embedder config
	if c.Embedder.BaseURL == "" {
		errors = append(errors, ValidationError{
			Field:   "embedder.base_url",
			Message: "Ollama base URL is required",
		})
	} else if _, err := url.Parse(c.Embedder.BaseURL); err != nil {
		errors = append(errors, ValidationError{
			Field:   "embedder.base_url",
			Message: "invalid Ollama base URL",
		})
	}

	if c.Embedder.MaxInputChars < 1 {
		errors = append(errors, ValidationError{
			Field:   "embedder.max_input_chars",
			Message: "max_input_chars must be positive",
		})
	}

	if c.Embedder.TimeoutSeconds < 1 {
		errors = append(errors, ValidationError{
			Field:   "embedder.timeout_seconds",
			Message: "timeout_seconds must be positive",
		})
	}

	if c.Embedder.RateLimit <= 0 {
		errors = append(errors, ValidationError{
			Field:   "embedder.rate_limit",
			Message: "rate_limit must be positive",
		})
	}

	// Validate Database config
	if c.Database.URL != "" {
		if _, err := url.Parse(c.Database.URL); err != nil {
			errors = append(errors, ValidationError{
				Field:   "database.url",
				Message: "invalid database URL",
			})
		}
	}

	if c.Database.VectorDim < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.vector_dim",
			Message: "vector_dim must be positive",
		})
	}

	// Validate Queue config
	if c.Queue.VisibilityTimeoutSeconds < 1 {
		errors = append(errors, ValidationError{
			Field:   "queue.visibility_timeout_seconds",
			Message: "visibility_timeout_seconds must be positive",
		})
	}

	if c.Queue.MaxAttempts < 1 {
		errors = append(errors, ValidationError{
			Field:   "queue.max_attempts",
			Message: "max_attempts must be positive",
		})
	}

	// Validate Worker config
	if c.Worker.Concurrency < 1 {
		errors = append(errors, ValidationError{
			Field:   "worker.concurrency",
			Message: "concurrency must be positive",
		})
	}

	// Validate Search config
	if c.Search.DefaultLimit < 1 {
		errors = append(errors, ValidationError{
			Field:   "search.default_limit",
			Message: "default_limit must be positive",
		})
	}

	if c.Search.MinSimilarity < -1 || c.Search.MinSimilarity > 1 {
		errors = append(errors, ValidationError{
			Field:   "search.min_similarity",
			Message: "min_similarity must be between -1 and 1",
		})
	}

	return errors
}
