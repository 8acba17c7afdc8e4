// Package aoai is a minimal Azure OpenAI REST client covering the two
// capabilities the pipeline needs: embeddings and chat completions.
package aoai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"docq/internal/domain"
)

var (
	_ domain.Embedder  = (*Client)(nil)
	_ domain.Generator = (*Client)(nil)
)

// DefaultAPIVersion is the Azure OpenAI data-plane API version.
const DefaultAPIVersion = "2024-02-15-preview"

// Config configures the Azure OpenAI client.
type Config struct {
	// Endpoint is the resource endpoint, e.g. https://myres.openai.azure.com.
	Endpoint string
	// APIKey authenticates via the api-key header.
	APIKey string
	// EmbeddingDeployment serves /embeddings.
	EmbeddingDeployment string
	// ChatDeployment serves /chat/completions.
	ChatDeployment string
	// Dimension is the embedding size the deployment produces. When
	// zero it is learned from the first successful embed call.
	Dimension  int
	APIVersion string
	Timeout    time.Duration
}

// Client calls one Azure OpenAI resource. It is safe to share a single
// long-lived client between ingestion and query paths.
type Client struct {
	endpoint            string
	apiKey              string
	embeddingDeployment string
	chatDeployment      string
	apiVersion          string
	client              *http.Client
	maxRetries          int

	mu        sync.Mutex
	dimension int
}

// NewClient validates the configuration and builds a client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("aoai: endpoint is required")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("aoai: API key is required")
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	t := cfg.Timeout
	if t == 0 {
		t = 30 * time.Second
	}
	return &Client{
		endpoint:            strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:              cfg.APIKey,
		embeddingDeployment: cfg.EmbeddingDeployment,
		chatDeployment:      cfg.ChatDeployment,
		apiVersion:          cfg.APIVersion,
		dimension:           cfg.Dimension,
		client:              &http.Client{Timeout: t},
		maxRetries:          3,
	}, nil
}

// Dimension returns the embedding vector size.
func (c *Client) Dimension() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dimension
}

type embeddingRequest struct {
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
	Error *apiError `json:"error,omitempty"`
}

type chatRequest struct {
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Embed returns the embedding vector for one text.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	url := c.deploymentURL(c.embeddingDeployment, "embeddings")
	payload, err := c.post(ctx, url, embeddingRequest{Input: text})
	if err != nil {
		return nil, err
	}
	var out embeddingResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("aoai: decode embeddings response: %w", err)
	}
	if out.Error != nil {
		return nil, fmt.Errorf("aoai: embeddings: %s", out.Error.Message)
	}
	if len(out.Data) == 0 || len(out.Data[0].Embedding) == 0 {
		return nil, errors.New("aoai: no embedding returned")
	}
	v := out.Data[0].Embedding
	c.mu.Lock()
	if c.dimension == 0 {
		c.dimension = len(v)
	}
	c.mu.Unlock()
	return v, nil
}

// Complete runs a chat completion with one system and one user message
// and returns the generated text.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float64) (string, error) {
	url := c.deploymentURL(c.chatDeployment, "chat/completions")
	req := chatRequest{
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}
	payload, err := c.post(ctx, url, req)
	if err != nil {
		return "", err
	}
	var out chatResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return "", fmt.Errorf("aoai: decode chat response: %w", err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("aoai: chat: %s", out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("aoai: no completion returned")
	}
	return out.Choices[0].Message.Content, nil
}

func (c *Client) deploymentURL(deployment, op string) string {
	return fmt.Sprintf("%s/openai/deployments/%s/%s?api-version=%s",
		c.endpoint, deployment, op, c.apiVersion)
}

// post sends a JSON body and returns the raw response payload, retrying
// throttled and 5xx responses with backoff. Retry-After is honoured when
// the service sends one.
func (c *Client) post(ctx context.Context, url string, body any) ([]byte, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("api-key", c.apiKey)

		resp, err := c.client.Do(req)
		if err != nil {
			if attempt < c.maxRetries {
				time.Sleep(retryDelay(attempt))
				continue
			}
			return nil, err
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			delay := retryDelay(attempt)
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if secs, err := strconv.Atoi(ra); err == nil {
					delay = time.Duration(secs) * time.Second
				}
			}
			_ = resp.Body.Close()
			if attempt < c.maxRetries {
				time.Sleep(delay)
				continue
			}
			return nil, fmt.Errorf("aoai: %s", resp.Status)
		}

		payload, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 300 {
			return nil, fmt.Errorf("aoai: %s: %s", resp.Status, strings.TrimSpace(string(payload)))
		}
		return payload, nil
	}
}

func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := 200 * time.Millisecond
	// exponential backoff capped at 5s
	d := base << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}
