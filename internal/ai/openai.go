package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// Config configures an OpenAI-compatible client.
type Config struct {
	APIKey         string
	BaseURL        string
	EmbeddingModel string
	ChatModel      string
	Temperature    float32
	Dimensions     int
	Timeout        time.Duration
	// RequestsPerSecond limits outbound calls. Zero means unlimited.
	RequestsPerSecond float64
	Burst             int
}

// Client implements Embedder and Completer over the OpenAI API.
type Client struct {
	api     *openai.Client
	cfg     Config
	limiter *rate.Limiter
}

var (
	_ Embedder  = (*Client)(nil)
	_ Completer = (*Client)(nil)
)

// NewClient creates a client. Calls share one rate limiter.
func NewClient(cfg Config) *Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		api:     openai.NewClientWithConfig(oc),
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Embed returns the embedding of text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      []string{text},
		Model:      openai.EmbeddingModel(c.cfg.EmbeddingModel),
		Dimensions: c.cfg.Dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("ai: create embedding: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, errors.New("ai: empty embedding response")
	}
	return resp.Data[0].Embedding, nil
}

// Complete returns the content of the first completion choice.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	ctx, cancel, err := c.begin(ctx)
	if err != nil {
		return "", err
	}
	defer cancel()

	msgs := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.cfg.ChatModel,
		Messages:    msgs,
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("ai: create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("ai: empty completion response")
	}
	return resp.Choices[0].Message.Content, nil
}

// begin waits for the limiter and applies the per-call timeout.
func (c *Client) begin(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, nil, fmt.Errorf("ai: rate limit: %w", err)
	}
	if c.cfg.Timeout <= 0 {
		ctx, cancel := context.WithCancel(ctx)
		return ctx, cancel, nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	return ctx, cancel, nil
}
