// Package llm wraps the external completion endpoint with bounded retries,
// exponential backoff, and defensive shaping of the response payload.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/clauseguard/clauseguard/internal/model"
)

// Analysis is the shaped result of an analysis completion.
type Analysis struct {
	Summary     []string           `json:"summary"`
	RiskClauses []model.RiskClause `json:"riskClauses"`
}

// ParseError marks a response whose content could not be shaped into the
// expected structure. It is terminal for the call: retrying the same prompt
// would likely reproduce the same malformed output.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return "parse completion response: " + e.Reason
}

// Config holds the completion endpoint settings.
type Config struct {
	Endpoint   string
	APIKey     string
	Model      string
	MaxRetries int
	RetryDelay time.Duration
}

// Client calls the completion endpoint. It holds no per-call state, so a
// single value is safely shared across concurrent worker jobs.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
	sleep      func(context.Context, time.Duration) error
}

// New constructs a Client.
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger,
		sleep:      sleepContext,
	}
}

// AnalyzeContract runs the clause-extraction prompt over the contract text
// and shapes the response. Transport and API failures are retried with
// exponential backoff; a malformed response body fails immediately.
func (c *Client) AnalyzeContract(ctx context.Context, contractText string) (*Analysis, error) {
	prompt := AnalysisPrompt + "\n\n" + contractText
	raw, err := c.completeWithRetry(ctx, prompt, "contract analysis")
	if err != nil {
		return nil, err
	}
	analysis, err := parseAnalysis(raw)
	if err != nil {
		c.logger.Error("failed to parse completion response", zap.Error(err))
		return nil, err
	}
	return analysis, nil
}

// GenerateContract runs the generation prompt over the template input and
// returns the raw generated text. The result is opaque prose, so no shape
// validation applies.
func (c *Client) GenerateContract(ctx context.Context, templateData map[string]any) (string, error) {
	input, err := json.MarshalIndent(templateData, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode template data: %w", err)
	}
	prompt := GenerationPrompt + "\n\n" + string(input)
	return c.completeWithRetry(ctx, prompt, "contract generation")
}

func (c *Client) completeWithRetry(ctx context.Context, prompt, op string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		c.logger.Info("calling completion endpoint", zap.String("op", op), zap.Int("attempt", attempt))
		raw, err := c.complete(ctx, prompt)
		if err == nil {
			return raw, nil
		}
		lastErr = err
		c.logger.Error("completion call failed", zap.String("op", op), zap.Int("attempt", attempt), zap.Error(err))
		if attempt < c.cfg.MaxRetries {
			delay := c.cfg.RetryDelay << (attempt - 1)
			if err := c.sleep(ctx, delay); err != nil {
				return "", err
			}
		}
	}
	return "", fmt.Errorf("%s failed after %d attempts: %w", op, c.cfg.MaxRetries, lastErr)
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(messagesRequest{
		Model:     c.cfg.Model,
		MaxTokens: 4096,
		Messages:  []message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", c.cfg.APIKey)
	req.Header.Set("Anthropic-Version", "2023-06-01")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error.Message != "" {
			return "", fmt.Errorf("completion endpoint returned %d: %s", resp.StatusCode, apiErr.Error.Message)
		}
		return "", fmt.Errorf("completion endpoint returned %d", resp.StatusCode)
	}
	var parsed messagesResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	for _, block := range parsed.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", errors.New("completion response contained no text block")
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
