package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the document QA service.
type Config struct {
	Documents DocumentsConfig `yaml:"documents"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Retrieve  RetrieveConfig  `yaml:"retrieve"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DocumentsConfig describes where source documents live.
type DocumentsConfig struct {
	Dir      string   `yaml:"dir"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
	Watch    bool     `yaml:"watch"` // mark the index stale when files change
}

// ChunkingConfig controls passage splitting. Sizes are in characters.
type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// EmbeddingConfig holds embedding provider configuration.
type EmbeddingConfig struct {
	Provider       string `yaml:"provider"` // "gemini", "openai", "mock"
	Model          string `yaml:"model"`
	APIKeyEnv      string `yaml:"api_key_env"`
	BaseURL        string `yaml:"base_url"`
	BatchSize      int    `yaml:"batch_size"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxRetries     int    `yaml:"max_retries"`
}

// LLMConfig holds answer-generation provider configuration.
type LLMConfig struct {
	Provider       string  `yaml:"provider"` // "gemini", "ollama", "mock"
	Model          string  `yaml:"model"`
	APIKeyEnv      string  `yaml:"api_key_env"`
	BaseURL        string  `yaml:"base_url"`
	Temperature    float64 `yaml:"temperature"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	MaxRetries     int     `yaml:"max_retries"`
}

// RetrieveConfig holds retrieval configuration.
type RetrieveConfig struct {
	TopK     int     `yaml:"top_k"`
	MinScore float64 `yaml:"min_score"` // drop results below this similarity (0 = disabled)
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Documents: DocumentsConfig{
			Dir:      "docs",
			Includes: []string{"**/*.txt", "**/*.md", "**/*.docx"},
			Excludes: []string{"**/.*/**"},
			Watch:    true,
		},
		Chunking: ChunkingConfig{
			Size:    1000,
			Overlap: 200,
		},
		Embedding: EmbeddingConfig{
			Provider:       "gemini",
			Model:          "models/embedding-001",
			APIKeyEnv:      "GEMINI_API_KEY",
			BatchSize:      100,
			TimeoutSeconds: 30,
			MaxRetries:     3,
		},
		LLM: LLMConfig{
			Provider:       "gemini",
			Model:          "gemini-1.5-flash-latest",
			APIKeyEnv:      "GEMINI_API_KEY",
			Temperature:    0.7,
			TimeoutSeconds: 60,
			MaxRetries:     3,
		},
		Retrieve: RetrieveConfig{
			TopK:     5,
			MinScore: 0,
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 5001,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for sopqa.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "sopqa.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".sopqa", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// IndexDBPath returns the path to the index database.
func IndexDBPath(dir string) string {
	return filepath.Join(dir, ".sopqa", "index.db")
}

// EnsureStateDir ensures the .sopqa directory exists.
func EnsureStateDir(dir string) error {
	return os.MkdirAll(filepath.Join(dir, ".sopqa"), 0755)
}
