package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	defaultOpenAIURL = "https://api.openai.com/v1/chat/completions"
	defaultOllamaURL = "http://localhost:11434"
	chatPath         = "/v1/chat/completions"
)

// Chat speaks the chat completions protocol shared by OpenAI, Ollama and
// LM Studio.
type Chat struct {
	name     string
	model    string
	endpoint endpoint
}

// NewOpenAI creates a Chat against OpenAI. SCRIBE_OPENAI_BASE_URL points it
// at a compatible gateway.
func NewOpenAI(model string) (*Chat, error) {
	key := os.Getenv("OPENAI_API_KEY")
	if key == "" {
		return nil, errors.New("OPENAI_API_KEY environment variable is not set")
	}
	url := os.Getenv("SCRIBE_OPENAI_BASE_URL")
	if url == "" {
		url = defaultOpenAIURL
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+key)
	return &Chat{name: "openai", model: model, endpoint: newEndpoint(url, 120*time.Second, header)}, nil
}

// NewOllama creates a Chat against a local Ollama or LM Studio server at
// OLLAMA_HOST. SCRIBE_OLLAMA_API_KEY is sent when set.
func NewOllama(model string) (*Chat, error) {
	header := http.Header{}
	if key := os.Getenv("SCRIBE_OLLAMA_API_KEY"); key != "" {
		header.Set("Authorization", "Bearer "+key)
	}
	url := ollamaURL(os.Getenv("OLLAMA_HOST"))
	return &Chat{name: "ollama", model: model, endpoint: newEndpoint(url, 300*time.Second, header)}, nil
}

// ollamaURL accepts a bare host, a /v1 base or the full completions URL.
func ollamaURL(host string) string {
	if host == "" {
		host = defaultOllamaURL
	}
	host = strings.TrimRight(host, "/")
	host = strings.TrimSuffix(host, chatPath)
	host = strings.TrimSuffix(host, "/v1")
	return host + chatPath
}

func (c *Chat) Name() string { return c.name }

func (c *Chat) Complete(ctx context.Context, req Request) (Response, error) {
	body := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.UserPrompt},
		},
		MaxTokens: req.maxTokens(),
	}
	if req.Temperature > 0 {
		body.Temperature = &req.Temperature
	}
	if req.JSON {
		body.ResponseFormat = &chatResponseFormat{Type: "json_object"}
	}

	var resp Response
	err := withRetry(ctx, func() error {
		var out chatResponse
		if err := c.endpoint.post(ctx, body, &out); err != nil {
			return err
		}
		if len(out.Choices) == 0 {
			return errors.New("no choices in response")
		}
		text := out.Choices[0].Message.Content
		if text == "" {
			return fmt.Errorf("%s returned empty content", c.name)
		}
		resp = Response{Content: text, TokensUsed: out.Usage.TotalTokens}
		return nil
	})
	return resp, err
}

type chatRequest struct {
	Model          string              `json:"model"`
	Messages       []chatMessage       `json:"messages"`
	MaxTokens      int                 `json:"max_tokens"`
	Temperature    *float64            `json:"temperature,omitempty"`
	ResponseFormat *chatResponseFormat `json:"response_format,omitempty"`
}

type chatResponseFormat struct {
	Type string `json:"type"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}
