package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"go.uber.org/zap"

	"github.com/onebitebitcoin/zentel/internal/metrics"
)

// Request is one completion call. JSONResponse asks the provider for
// json_object output mode.
type Request struct {
	System       string
	User         string
	Temperature  float64
	JSONResponse bool
}

// CompletionClient abstracts the completion provider so the orchestrator can
// be tested with a stub.
type CompletionClient interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ClientConfig wires the OpenAI-backed client.
type ClientConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	MaxRetries int
	Metrics    *metrics.Metrics
	Logger     *zap.Logger
}

// Client implements CompletionClient on the OpenAI chat completions API,
// retrying rate limits and transient server errors with exponential backoff.
type Client struct {
	api        openai.Client
	model      shared.ChatModel
	maxRetries int
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// NewClient builds the provider client.
func NewClient(cfg ClientConfig) *Client {
	// The SDK's built-in retries are disabled; this client owns the retry
	// loop so every provider call is visible to logging and metrics.
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey), option.WithMaxRetries(0)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		api:        openai.NewClient(opts...),
		model:      shared.ChatModel(cfg.Model),
		maxRetries: cfg.MaxRetries,
		metrics:    cfg.Metrics,
		logger:     logger.Named("llm"),
	}
}

// Complete runs one chat completion and returns the message text.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.User),
		},
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.JSONResponse {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<attempt) * time.Second
			c.logger.Warn("retrying completion",
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr))
			timer := time.NewTimer(backoff)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return "", fmt.Errorf("completion canceled: %w", ctx.Err())
			}
		}

		c.metrics.IncLLMCall()
		resp, err := c.api.Chat.Completions.New(ctx, params)
		if err != nil {
			lastErr = err
			if !retryable(err) {
				return "", fmt.Errorf("completion: %w: %w", ErrProviderFailure, err)
			}
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("completion returned no choices")
			continue
		}
		return resp.Choices[0].Message.Content, nil
	}
	return "", fmt.Errorf("completion retries exhausted: %w: %w", ErrProviderFailure, lastErr)
}

func retryable(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	// Transport errors are worth one more try.
	return true
}
