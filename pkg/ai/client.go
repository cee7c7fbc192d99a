// Package ai talks to an OpenAI-compatible chat completions endpoint.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"automations/pkg/httpx"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("ai: api key not configured")

type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Client sends chat completions through an httpx.Client.
type Client struct {
	cfg    Config
	http   *httpx.Client
	logger *logrus.Logger
}

func NewClient(cfg Config, hc *httpx.Client, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.New()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg, http: hc, logger: logger}
}

// Complete sends a system + user prompt and returns the first choice.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	tracer := otel.Tracer("automations/ai")
	ctx, span := tracer.Start(ctx, "ai.Complete")
	span.SetAttributes(attribute.String("ai.model", c.cfg.Model))
	defer span.End()

	if c.cfg.APIKey == "" {
		return "", ErrNotConfigured
	}

	req := ChatRequest{
		Model:       c.cfg.Model,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	}
	if system != "" {
		req.Messages = append(req.Messages, Message{Role: "system", Content: system})
	}
	req.Messages = append(req.Messages, Message{Role: "user", Content: user})

	var resp ChatResponse
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	if err := c.http.DoJSON(ctx, "POST", c.cfg.BaseURL+"/chat/completions", headers, req, &resp); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if resp.Error != nil {
		span.SetStatus(codes.Error, resp.Error.Message)
		return "", fmt.Errorf("chat completion: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		span.SetStatus(codes.Error, "no choices")
		return "", errors.New("chat completion: no choices returned")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
