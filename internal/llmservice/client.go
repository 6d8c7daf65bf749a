package llmservice

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"rag-chatbot/internal/config"
)

// Client sends single-prompt chat completions to an OpenAI-compatible
// endpoint such as OpenRouter.
type Client struct {
	llm   llms.Model
	model string
}

// answers must be deterministic
const temperature = 0

func New(llmConfig *config.LLMConfig) (*Client, error) {
	log.Debug().Str("base_url", llmConfig.BaseURL).Str("model", llmConfig.Model).Msg("Creating LLM client")
	llm, err := openai.New(
		openai.WithBaseURL(llmConfig.BaseURL),
		openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
		openai.WithModel(llmConfig.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	return NewWithModel(llm, llmConfig.Model), nil
}

// NewWithModel wraps an existing langchaingo model.
func NewWithModel(llm llms.Model, model string) *Client {
	return &Client{llm: llm, model: model}
}

// Complete sends prompt as a single user message and returns the text of the
// first choice.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	return GenerateContent(ctx, c.llm, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}, llms.WithTemperature(temperature))
}

func (c *Client) Model() string { return c.model }

// call llm
func GenerateContent(ctx context.Context, llm llms.Model, messages []llms.MessageContent, opts ...llms.CallOption) (string, error) {
	res, err := llm.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return "", err
	}
	if len(res.Choices) == 0 {
		return "", fmt.Errorf("empty response from model")
	}
	return res.Choices[0].Content, nil
}
