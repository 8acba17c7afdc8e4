package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"docq/internal/domain"
)

// ChunkerConfig sets the window geometry used to split page text.
type ChunkerConfig struct {
	ChunkSize int `yaml:"chunk_size"`
	Overlap   int `yaml:"overlap"`
}

// EmbeddingConfig configures the Azure OpenAI embeddings deployment.
// Endpoint and key are env-var names, resolved at client construction.
type EmbeddingConfig struct {
	EndpointEnv string `yaml:"endpoint_env"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Deployment  string `yaml:"deployment"`
	Dimension   int    `yaml:"dimension"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// ChatConfig configures the Azure OpenAI chat deployment used to
// generate grounded answers.
type ChatConfig struct {
	Deployment  string  `yaml:"deployment"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	TimeoutSecs int     `yaml:"timeout_secs"`
}

// SearchConfig selects and configures the index store implementation.
type SearchConfig struct {
	Type        string `yaml:"type"` // "azsearch" or "memory"
	EndpointEnv string `yaml:"endpoint_env"`
	APIKeyEnv   string `yaml:"api_key_env"`
	IndexEnv    string `yaml:"index_env"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// RetrievalConfig tunes query-time behaviour.
type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

// LogConfig configures console logging and the plain-text sinks.
type LogConfig struct {
	Level        string `yaml:"level"`
	ActivityFile string `yaml:"activity_file"`
	HistoryDir   string `yaml:"history_dir"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Chunker   ChunkerConfig   `yaml:"chunker"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Chat      ChatConfig      `yaml:"chat"`
	Search    SearchConfig    `yaml:"search"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Log       LogConfig       `yaml:"log"`
}

// Load reads a config from a specified path. If the file does not exist,
// returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/docq/config.yaml.
// If neither exists, it writes defaults to ~/.config/docq/config.yaml and
// returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate rejects geometry the chunker cannot process. This is a
// configuration error and surfaces before any document is read.
func (c *AppConfig) Validate() error {
	if c.Chunker.ChunkSize <= 0 || c.Chunker.Overlap < 0 || c.Chunker.Overlap >= c.Chunker.ChunkSize {
		return fmt.Errorf("config: chunk_size=%d overlap=%d: %w",
			c.Chunker.ChunkSize, c.Chunker.Overlap, domain.ErrBadGeometry)
	}
	return nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "docq", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Chunker.ChunkSize == 0 {
		cfg.Chunker.ChunkSize = 500
		if cfg.Chunker.Overlap == 0 {
			cfg.Chunker.Overlap = 100
		}
	}
	if cfg.Embedding.EndpointEnv == "" {
		cfg.Embedding.EndpointEnv = "AZURE_OPENAI_ENDPOINT"
	}
	if cfg.Embedding.APIKeyEnv == "" {
		cfg.Embedding.APIKeyEnv = "AZURE_OPENAI_KEY"
	}
	if cfg.Embedding.Deployment == "" {
		cfg.Embedding.Deployment = "text-embedding-ada-002"
	}
	if cfg.Embedding.Dimension == 0 {
		cfg.Embedding.Dimension = 1536
	}
	if cfg.Embedding.TimeoutSecs == 0 {
		cfg.Embedding.TimeoutSecs = 30
	}
	if cfg.Chat.Deployment == "" {
		cfg.Chat.Deployment = "gpt-4o"
	}
	if cfg.Chat.MaxTokens == 0 {
		cfg.Chat.MaxTokens = 800
	}
	if cfg.Chat.Temperature == 0 {
		cfg.Chat.Temperature = 0.3
	}
	if cfg.Chat.TimeoutSecs == 0 {
		cfg.Chat.TimeoutSecs = 120
	}
	if cfg.Search.Type == "" {
		cfg.Search.Type = "azsearch"
	}
	if cfg.Search.EndpointEnv == "" {
		cfg.Search.EndpointEnv = "AZURE_SEARCH_ENDPOINT"
	}
	if cfg.Search.APIKeyEnv == "" {
		cfg.Search.APIKeyEnv = "AZURE_SEARCH_KEY"
	}
	if cfg.Search.IndexEnv == "" {
		cfg.Search.IndexEnv = "AZURE_SEARCH_INDEX_NAME"
	}
	if cfg.Search.TimeoutSecs == 0 {
		cfg.Search.TimeoutSecs = 15
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.ActivityFile == "" {
		cfg.Log.ActivityFile = "ingest_activity.log"
	}
	if cfg.Log.HistoryDir == "" {
		cfg.Log.HistoryDir = "."
	}
}
