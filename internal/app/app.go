// Package app wires configured components together for the CLIs. All
// secrets come from the environment; the config only names the
// variables to read.
package app

import (
	"fmt"
	"os"
	"time"

	"docq/internal/aoai"
	"docq/internal/config"
	"docq/internal/domain"
	"docq/internal/indexstore/azsearch"
	"docq/internal/indexstore/memory"
)

// NewAOAIClient builds the Azure OpenAI client from the config,
// resolving the endpoint and key from the configured env vars.
func NewAOAIClient(cfg *config.AppConfig) (*aoai.Client, error) {
	endpoint := os.Getenv(cfg.Embedding.EndpointEnv)
	apiKey := os.Getenv(cfg.Embedding.APIKeyEnv)
	if endpoint == "" {
		return nil, fmt.Errorf("app: %s is not set", cfg.Embedding.EndpointEnv)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("app: %s is not set", cfg.Embedding.APIKeyEnv)
	}
	timeout := cfg.Embedding.TimeoutSecs
	if cfg.Chat.TimeoutSecs > timeout {
		timeout = cfg.Chat.TimeoutSecs
	}
	return aoai.NewClient(aoai.Config{
		Endpoint:            endpoint,
		APIKey:              apiKey,
		EmbeddingDeployment: cfg.Embedding.Deployment,
		ChatDeployment:      cfg.Chat.Deployment,
		Dimension:           cfg.Embedding.Dimension,
		Timeout:             time.Duration(timeout) * time.Second,
	})
}

// NewIndexStore builds the configured index store implementation.
func NewIndexStore(cfg *config.AppConfig) (domain.IndexStore, error) {
	switch cfg.Search.Type {
	case "memory":
		return memory.NewStore(), nil
	case "azsearch", "":
		endpoint := os.Getenv(cfg.Search.EndpointEnv)
		apiKey := os.Getenv(cfg.Search.APIKeyEnv)
		index := os.Getenv(cfg.Search.IndexEnv)
		if endpoint == "" {
			return nil, fmt.Errorf("app: %s is not set", cfg.Search.EndpointEnv)
		}
		if apiKey == "" {
			return nil, fmt.Errorf("app: %s is not set", cfg.Search.APIKeyEnv)
		}
		if index == "" {
			return nil, fmt.Errorf("app: %s is not set", cfg.Search.IndexEnv)
		}
		return azsearch.NewStore(azsearch.Config{
			Endpoint: endpoint,
			APIKey:   apiKey,
			Index:    index,
			Timeout:  time.Duration(cfg.Search.TimeoutSecs) * time.Second,
		}), nil
	default:
		return nil, fmt.Errorf("app: unknown search store %q", cfg.Search.Type)
	}
}

// LoadConfig loads the config from path, or the default locations when
// path is empty. The second return is where the config came from.
func LoadConfig(path string) (*config.AppConfig, string, error) {
	if path == "" {
		return config.LoadDefault()
	}
	cfg, err := config.Load(path)
	return cfg, path, err
}
