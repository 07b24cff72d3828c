// Package ai wraps the external extraction service behind a small client.
// The service speaks the OpenAI chat-completion protocol; the base URL
// selects the actual provider.
package ai

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kevinshaw/invoice-intel/internal/models"
	"github.com/kevinshaw/invoice-intel/pkg/utils"
)

// Temperatures per call type: extraction and template synthesis want
// deterministic output, chat wants some range.
const (
	temperatureExtraction = 0.1
	temperatureTemplate   = 0.1
	temperatureChat       = 0.7
)

const (
	maxTokensExtraction = 2000
	maxTokensTemplate   = 1000
	maxTokensChat       = 1000
)

// Config holds extraction service configuration
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Client talks to the extraction service. Every call carries its own
// timeout; the service call is the only unbounded step in the pipeline.
type Client struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

// NewClient creates a new extraction service client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Client{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		timeout: cfg.Timeout,
		logger:  logger,
	}
}

// ExtractInvoice asks the model to pull structured invoice data out of
// document text. Unparsable model output is an error the caller treats as a
// strategy failure.
func (c *Client) ExtractInvoice(ctx context.Context, docText string) (*models.ExtractedData, error) {
	content, _, err := c.complete(ctx, "", buildExtractionPrompt(docText), temperatureExtraction, maxTokensExtraction)
	if err != nil {
		return nil, fmt.Errorf("extraction call failed: %w", err)
	}

	var data models.ExtractedData
	if !utils.ExtractJSON(content, &data) {
		c.logger.Error("Could not parse extraction response",
			zap.String("content", truncate(content, 200)))
		return nil, fmt.Errorf("could not parse JSON from model response")
	}

	c.logger.Info("Invoice data extracted",
		zap.String("vendor", data.Vendor),
		zap.String("total_amount", data.TotalAmount.String()))
	return &data, nil
}

// GenerateTemplate asks the model to synthesize a YAML extraction template.
// The prompt is built by the caller; the response is de-fenced here.
func (c *Client) GenerateTemplate(ctx context.Context, prompt string) (string, error) {
	content, _, err := c.complete(ctx, "", prompt, temperatureTemplate, maxTokensTemplate)
	if err != nil {
		return "", fmt.Errorf("template generation call failed: %w", err)
	}
	return utils.ExtractYAML(content), nil
}

// Chat answers a user question given pre-built store context. The second
// return value is the provider's completion ID, kept so the answer can be
// traced back to the inference run that produced it.
func (c *Client) Chat(ctx context.Context, contextText, query string) (string, string, error) {
	system := buildChatSystemPrompt(contextText)
	content, completionID, err := c.complete(ctx, system, query, temperatureChat, maxTokensChat)
	if err != nil {
		return "", "", fmt.Errorf("chat call failed: %w", err)
	}
	return content, completionID, nil
}

// Model returns the configured model name
func (c *Client) Model() string {
	return c.model
}

// Ping verifies connectivity and credentials with a minimal completion
func (c *Client) Ping(ctx context.Context) error {
	_, _, err := c.complete(ctx, "", "Reply with the single word: ok", temperatureExtraction, 10)
	return err
}

func (c *Client) complete(ctx context.Context, system, user string, temperature float32, maxTokens int) (string, string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: user,
	})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Messages:    messages,
	})
	if err != nil {
		c.logger.Error("Extraction service call failed", zap.Error(err))
		return "", "", err
	}
	if len(resp.Choices) == 0 {
		return "", "", fmt.Errorf("no response from extraction service")
	}

	return resp.Choices[0].Message.Content, resp.ID, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
