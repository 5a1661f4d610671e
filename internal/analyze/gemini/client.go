package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"
)

var (
	// ErrUnavailable marks transport and non-200 failures; callers fall
	// back to the deterministic summary.
	ErrUnavailable = errors.New("gemini unavailable")

	// ErrInvalidResponse marks a 200 reply whose body carries no usable text
	ErrInvalidResponse = errors.New("gemini returned no usable text")
)

// Config holds Gemini client configuration
type Config struct {
	// Endpoint is the generateContent URL with a {model} placeholder
	Endpoint       string
	Model          string
	APIKey         string
	Timeout        time.Duration
	MaxConcurrency int64
	RetryCount     int
	RetryDelay     time.Duration
}

// DefaultConfig returns default configuration
func DefaultConfig(apiKey, model string) Config {
	return Config{
		Endpoint:       "https://generativelanguage.googleapis.com/v1beta/models/{model}:generateContent",
		Model:          model,
		APIKey:         apiKey,
		Timeout:        60 * time.Second,
		MaxConcurrency: 4,
		RetryCount:     1,
		RetryDelay:     200 * time.Millisecond,
	}
}

// Client calls the Gemini generateContent API
type Client struct {
	config Config
	client *http.Client
	sem    *semaphore.Weighted
}

// NewClient creates a new Gemini client
func NewClient(config Config) *Client {
	return &Client{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		sem: semaphore.NewWeighted(config.MaxConcurrency),
	}
}

// GenerateNarrative sends the prompt and returns the model's raw text reply.
// Failures are wrapped in ErrUnavailable or ErrInvalidResponse so the caller
// can distinguish "retry later" from "gave a broken answer".
func (c *Client) GenerateNarrative(ctx context.Context, prompt string) (string, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("semaphore acquire: %w", err)
	}
	defer c.sem.Release(1)

	var lastErr error
	for attempt := 0; attempt <= c.config.RetryCount; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(c.config.RetryDelay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		text, err := c.generate(ctx, prompt)
		if err == nil {
			return text, nil
		}
		// A structurally broken 200 will not improve on retry.
		if errors.Is(err, ErrInvalidResponse) {
			return "", err
		}
		lastErr = err
	}

	return "", fmt.Errorf("generate failed after %d attempts: %w", c.config.RetryCount+1, lastErr)
}

// generate performs a single generateContent call
func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	reqBody := generateRequest{
		Contents: []content{
			{Role: "user", Parts: []part{{Text: prompt}}},
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	endpoint := strings.ReplaceAll(c.config.Endpoint, "{model}", c.config.Model)

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.config.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: http status %d: %s", ErrUnavailable, resp.StatusCode, truncate(string(body), 200))
	}

	var result generateResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("%w: parse response: %v", ErrInvalidResponse, err)
	}

	text := result.text()
	if strings.TrimSpace(text) == "" {
		return "", ErrInvalidResponse
	}

	return text, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
