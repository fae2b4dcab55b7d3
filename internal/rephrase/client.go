// Package rephrase talks to a local text-generation service (Ollama API)
// to rewrite image descriptions.
package rephrase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrUnavailable means the service could not be reached
	ErrUnavailable = errors.New("rephrase service unavailable")

	// ErrTimeout means the service did not answer within the configured timeout
	ErrTimeout = errors.New("rephrase service timed out")

	// ErrEmptyResponse means the service answered without text
	ErrEmptyResponse = errors.New("rephrase service returned an empty response")
)

// StatusError is a non-success HTTP answer from the service
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("rephrase service error (status %d): %s", e.StatusCode, e.Body)
}

// DefaultPrompt is used when no prompt template is configured.
// {description} is replaced by the text to rephrase.
const DefaultPrompt = "Rephrase the following image description for a training dataset. " +
	"Keep every detail, answer with the rephrased text only.\n\n{description}"

// Config holds the service location and request settings
type Config struct {
	Host    string
	Port    int
	Model   string
	Timeout time.Duration
	Prompt  string
}

// DefaultConfig returns the settings of a stock local Ollama install
func DefaultConfig() Config {
	return Config{
		Host:    "localhost",
		Port:    11434,
		Timeout: 30 * time.Second,
		Prompt:  DefaultPrompt,
	}
}

// Client calls the generation service
type Client struct {
	baseURL    string
	model      string
	prompt     string
	httpClient *http.Client
}

// GenerateRequest is the body of POST /api/generate
type GenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

// GenerateResponse is the non-streaming answer of /api/generate
type GenerateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Model is one entry of GET /api/tags
type Model struct {
	Name       string `json:"name"`
	Size       int64  `json:"size"`
	ModifiedAt string `json:"modified_at"`
}

type tagsResponse struct {
	Models []Model `json:"models"`
}

// New creates a client. Zero fields fall back to DefaultConfig.
func New(cfg Config) *Client {
	def := DefaultConfig()
	if cfg.Host == "" {
		cfg.Host = def.Host
	}
	if cfg.Port == 0 {
		cfg.Port = def.Port
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Prompt == "" {
		cfg.Prompt = def.Prompt
	}

	baseURL := cfg.Host
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   cfg.Model,
		prompt:  cfg.Prompt,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// BaseURL returns the service root the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Model returns the configured model name
func (c *Client) Model() string {
	return c.model
}

// ListModels enumerates the models the service has installed
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var result tagsResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return result.Models, nil
}

// Generate sends prompt verbatim and returns the trimmed answer
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	jsonBody, err := json.Marshal(GenerateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: false,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/generate", bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req)
	if err != nil {
		return "", err
	}

	var result GenerateResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	text := strings.TrimSpace(result.Response)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// Rephrase fills the prompt template with description and generates
func (c *Client) Rephrase(ctx context.Context, description string) (string, error) {
	return c.Generate(ctx, BuildPrompt(c.prompt, description))
}

// Test runs a single small generation to check the service end to end
func (c *Client) Test(ctx context.Context) (string, error) {
	return c.Rephrase(ctx, "a red apple on a wooden table")
}

// BuildPrompt substitutes {description} in template. A template without the
// placeholder gets the description appended on its own paragraph.
func BuildPrompt(template, description string) string {
	if strings.Contains(template, "{description}") {
		return strings.ReplaceAll(template, "{description}", description)
	}
	return template + "\n\n" + description
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classify(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify(err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}

// classify maps transport failures onto ErrTimeout or ErrUnavailable
func classify(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// IsServiceError reports whether err came from the service rather than
// from the caller, which is what batch callers skip over
func IsServiceError(err error) bool {
	var statusErr *StatusError
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrEmptyResponse) || errors.As(err, &statusErr)
}
