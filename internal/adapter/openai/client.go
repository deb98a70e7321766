package openai

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	openaiapi "github.com/sashabaranov/go-openai"

	"nutribot/internal/domain"
)

var ErrEmptyResponse = errors.New("completion returned no choices")

const DefaultSystemPrompt = `You are a personal dietitian bot. You can help users with their diet plans and nutrition advice.
You are specialised in both vegetarian and non-vegetarian diets.
Do not encourage any unhealthy eating habits.
You can also help with meal planning and recipes.
You can also help with weight loss and fitness advice.
You can also help with general health and wellness advice.
Do not encourage any other topics.
Your name is DietMaster.`

type Config struct {
	APIKey       string
	BaseURL      string
	Model        string
	SystemPrompt string
	MaxTokens    int
	// ContextLimit bounds how many earlier messages are replayed with each query.
	ContextLimit int
}

// Client answers queries with a chat completion, replaying a bounded
// window of earlier exchanges.
type Client struct {
	api *openaiapi.Client
	cfg Config

	mu      sync.Mutex
	history []openaiapi.ChatCompletionMessage
}

func NewClient(cfg Config) *Client {
	apiCfg := openaiapi.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	return &Client{
		api: openaiapi.NewClientWithConfig(apiCfg),
		cfg: cfg,
	}
}

func (c *Client) Advise(ctx context.Context, query string) (string, error) {
	apiReq := openaiapi.ChatCompletionRequest{
		Model:               c.cfg.Model,
		MaxCompletionTokens: c.cfg.MaxTokens,
		Stream:              false,
		Messages:            c.buildMessages(query),
	}

	resp, err := c.api.CreateChatCompletion(ctx, apiReq)
	if err != nil {
		return "", errors.Wrap(err, "chat completion")
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	content := resp.Choices[0].Message.Content
	c.remember(query, content)
	return content, nil
}

func (c *Client) buildMessages(query string) []openaiapi.ChatCompletionMessage {
	c.mu.Lock()
	defer c.mu.Unlock()

	messages := make([]openaiapi.ChatCompletionMessage, 0, len(c.history)+2)
	messages = append(messages, openaiapi.ChatCompletionMessage{
		Role:    domain.RoleSystem,
		Content: c.cfg.SystemPrompt,
	})
	messages = append(messages, c.history...)
	messages = append(messages, openaiapi.ChatCompletionMessage{
		Role:    domain.RoleUser,
		Content: query,
	})
	return messages
}

func (c *Client) remember(query, answer string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.history = append(c.history,
		openaiapi.ChatCompletionMessage{Role: domain.RoleUser, Content: query},
		openaiapi.ChatCompletionMessage{Role: domain.RoleAssistant, Content: answer},
	)

	limit := c.cfg.ContextLimit
	if limit <= 0 {
		c.history = nil
		return
	}
	if len(c.history) > limit {
		c.history = c.history[len(c.history)-limit:]
	}
	// never replay an answer without its question
	if len(c.history) > 0 && c.history[0].Role != domain.RoleUser {
		c.history = c.history[1:]
	}
}

var _ domain.Advisor = (*Client)(nil)
