package nlp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"autodialer/internal/config"
	"autodialer/internal/dialer"

	"github.com/go-resty/resty/v2"
)

// Client talks to the OpenRouter chat-completions API. It is the only place
// that knows about prompts and model plumbing; everything else consumes the
// structured outputs.
type Client struct {
	http  *resty.Client
	model string
}

var ErrNotConfigured = errors.New("nlp: OPENROUTER_API_KEY not configured")

func NewClient(cfg config.OpenRouterConfig) *Client {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetAuthToken(cfg.APIKey).
		SetTimeout(30 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("X-Title", "Autodialer")

	c := &Client{http: client, model: cfg.Model}
	if cfg.APIKey == "" {
		c.http = nil
	}
	return c
}

const commandSystemPrompt = `You are a helpful assistant that extracts phone numbers from user commands.
When a user asks to make a call, extract the phone number(s) and respond with JSON only.
Format: {"action": "make_call", "phone_numbers": ["number1", "number2"]}
If no phone number is found, respond with: {"action": "none", "message": "No phone number detected"}
Respond with JSON only, no markdown or code blocks.`

// ParseCommand maps free text to a dialer intent. Transport and API failures
// are returned as errors; the HTTP layer wraps them into an error intent for
// display.
func (c *Client) ParseCommand(ctx context.Context, userInput string) (dialer.Intent, error) {
	content, err := c.complete(ctx, commandSystemPrompt, userInput, 200, 0.3)
	if err != nil {
		return dialer.Intent{}, err
	}

	var intent dialer.Intent
	if err := json.Unmarshal([]byte(stripCodeFences(content)), &intent); err != nil {
		return dialer.Intent{}, fmt.Errorf("nlp: model returned non-JSON intent: %w", err)
	}
	return intent, nil
}

const articleSystemPrompt = `You are a professional writer. Write a well-structured article on the given topic.
Use plain paragraphs, no markdown headings. Aim for 400-600 words.`

// GenerateArticle produces article body text for a topic.
func (c *Client) GenerateArticle(ctx context.Context, title, details string) (string, error) {
	prompt := "Topic: " + title
	if details != "" {
		prompt += "\nDetails: " + details
	}
	return c.complete(ctx, articleSystemPrompt, prompt, 1200, 0.7)
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func (c *Client) complete(ctx context.Context, system, user string, maxTokens int, temperature float64) (string, error) {
	if c.http == nil {
		return "", ErrNotConfigured
	}

	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}

	var out chatResponse
	var apiErr apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		SetError(&apiErr).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("nlp: completion request: %w", err)
	}
	if resp.IsError() {
		msg := apiErr.Error.Message
		if msg == "" {
			msg = resp.Status()
		}
		return "", fmt.Errorf("nlp: API error: %s", msg)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("nlp: empty completion response")
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

// stripCodeFences removes markdown code fencing some models wrap JSON in.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
