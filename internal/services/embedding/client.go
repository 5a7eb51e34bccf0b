// Package embedding calls an OpenAI-compatible embeddings endpoint.
package embedding

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"glass/internal/contextmodel"
	"glass/internal/services"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	stageName          = "embedding"
)

// Config captures the runtime settings of the embedding endpoint.
type Config struct {
	Enabled        bool
	APIKey         string
	BaseURL        string
	Model          string
	TimeoutSeconds int
}

// Client wraps the /embeddings API.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs an embedding client.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			Enabled:        cfg.Enabled,
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimSpace(cfg.BaseURL),
			Model:          strings.TrimSpace(cfg.Model),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Enabled reports whether Embed will call the endpoint.
func (c *Client) Enabled() bool {
	return c != nil && c.cfg.Enabled
}

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type httpStatusError struct {
	StatusCode int
	Body       string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("embedding request: http %d: %s", e.StatusCode, e.Body)
}

// Embed returns the vector for content. A disabled client returns nil, nil.
// Images are sent inline as data URLs.
func (c *Client) Embed(ctx context.Context, content contextmodel.Vectorize) ([]float32, error) {
	if !c.Enabled() {
		return nil, nil
	}
	input, err := inputFor(content)
	if err != nil {
		return nil, err
	}
	if input == "" {
		return nil, nil
	}

	endpoint, err := url.JoinPath(c.cfg.BaseURL, "embeddings")
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "Build request", "invalid base url", err)
	}
	encoded, err := json.Marshal(embeddingRequest{Model: c.cfg.Model, Input: input})
	if err != nil {
		return nil, fmt.Errorf("embedding request: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "Build request", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); errors.Is(ctxErr, context.Canceled) {
			return nil, ctxErr
		}
		return nil, services.Wrap(services.ErrTransient, stageName, "Send request", "http error", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, stageName, "Read response", "read body", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		statusErr := &httpStatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
		marker := services.ErrTransient
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			marker = services.ErrAuthOrQuota
		}
		return nil, services.Wrap(marker, stageName, "Embed", "", statusErr)
	}

	var decoded embeddingResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, services.Wrap(services.ErrMalformed, stageName, "Decode response", "malformed body", err)
	}
	if decoded.Error != nil {
		return nil, services.Wrap(services.ErrTransient, stageName, "Embed", strings.TrimSpace(decoded.Error.Message), nil)
	}
	if len(decoded.Data) == 0 || len(decoded.Data[0].Embedding) == 0 {
		return nil, services.Wrap(services.ErrMalformed, stageName, "Decode response", "no embedding returned", nil)
	}
	return decoded.Data[0].Embedding, nil
}

func inputFor(content contextmodel.Vectorize) (string, error) {
	switch content.ContentFormat {
	case contextmodel.FormatImage:
		if content.ImagePath == "" {
			return "", nil
		}
		data, err := os.ReadFile(content.ImagePath)
		if err != nil {
			return "", services.Wrap(services.ErrValidation, stageName, "Read image", content.ImagePath, err)
		}
		mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(content.ImagePath)))
		if mimeType == "" {
			mimeType = "image/png"
		}
		return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
	default:
		return strings.TrimSpace(content.Text), nil
	}
}
