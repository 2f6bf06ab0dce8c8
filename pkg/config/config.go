package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type EmbedderConfig struct {
	BaseURL        string  `yaml:"base_url"`
	Model          string  `yaml:"model"`
	MaxInputChars  int     `yaml:"max_input_chars"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	RateLimit      float64 `yaml:"rate_limit"`
}

type DatabaseConfig struct {
	URL       string `yaml:"url"`
	VectorDim int    `yaml:"vector_dim"`
}

type QueueConfig struct {
	VisibilityTimeoutSeconds int `yaml:"visibility_timeout_seconds"`
	MaxAttempts              int `yaml:"max_attempts"`
	PollIntervalMillis       int `yaml:"poll_interval_millis"`
}

type WorkerConfig struct {
	Concurrency int `yaml:"concurrency"`
}

type SearchConfig struct {
	DefaultLimit  int     `yaml:"default_limit"`
	MinSimilarity float64 `yaml:"min_similarity"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

type AuthConfig struct {
	// Tokens maps bearer tokens to owner ids. A stand-in for the
	// external identity provider.
	Tokens map[string]string `yaml:"tokens"`
}

type Config struct {
	Embedder EmbedderConfig `yaml:"embedder"`
	Database DatabaseConfig `yaml:"database"`
	Queue    QueueConfig    `yaml:"queue"`
	Worker   WorkerConfig   `yaml:"worker"`
	Search   SearchConfig   `yaml:"search"`
	Server   ServerConfig   `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/pharmvec/config.yaml"),
			"/etc/pharmvec/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %v", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}

	// Merge with environment variables
	mergeWithEnv(&config)

	// Apply defaults for unset values
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	mergeWithEnv(config)
	applyDefaults(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.Embedder.BaseURL == "" {
		config.Embedder.BaseURL = "http://localhost:11434"
	}
	if config.Embedder.Model == "" {
		config.Embedder.Model = "nomic-embed-text:latest"
	}
	if config.Embedder.MaxInputChars == 0 {
		config.Embedder.MaxInputChars = 8000
	}
	if config.Embedder.TimeoutSeconds == 0 {
		config.Embedder.TimeoutSeconds = 10
	}
	if config.Embedder.RateLimit == 0 {
		config.Embedder.RateLimit = 4.0
	}

	if config.Database.VectorDim == 0 {
		config.Database.VectorDim = 768
	}

	if config.Queue.VisibilityTimeoutSeconds == 0 {
		config.Queue.VisibilityTimeoutSeconds = 30
	}
	if config.Queue.MaxAttempts == 0 {
		config.Queue.MaxAttempts = 3
	}
	if config.Queue.PollIntervalMillis == 0 {
		config.Queue.PollIntervalMillis = 500
	}

	if config.Worker.Concurrency == 0 {
		config.Worker.Concurrency = 2
	}

	if config.Search.DefaultLimit == 0 {
		config.Search.DefaultLimit = 3
	}

	if config.Server.Port == "" {
		config.Server.Port = "8080"
	}
}

func mergeWithEnv(config *Config) {
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.Embedder.BaseURL = baseURL
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
	if port := os.Getenv("PORT"); port != "" {
		config.Server.Port = port
	}
}
