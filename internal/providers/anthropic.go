package providers

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	anthropicAPIURL     = "https://api.anthropic.com/v1/messages"
	anthropicAPIVersion = "2023-06-01"
)

// Anthropic calls the Messages API.
type Anthropic struct {
	model    string
	endpoint endpoint
}

// NewAnthropic creates an Anthropic provider from ANTHROPIC_API_KEY.
func NewAnthropic(model string) (*Anthropic, error) {
	key := os.Getenv("ANTHROPIC_API_KEY")
	if key == "" {
		return nil, errors.New("ANTHROPIC_API_KEY environment variable is not set")
	}
	header := http.Header{}
	header.Set("x-api-key", key)
	header.Set("anthropic-version", anthropicAPIVersion)
	return &Anthropic{model: model, endpoint: newEndpoint(anthropicAPIURL, 120*time.Second, header)}, nil
}

func (a *Anthropic) Name() string { return "anthropic" }

// Complete sends req. The Messages API has no JSON mode, so a JSON request
// prefills the assistant turn with "{" and restores it on the reply.
func (a *Anthropic) Complete(ctx context.Context, req Request) (Response, error) {
	body := anthropicRequest{
		Model:     a.model,
		MaxTokens: req.maxTokens(),
		System:    req.SystemPrompt,
		Messages:  []anthropicMessage{{Role: "user", Content: req.UserPrompt}},
	}
	if req.Temperature > 0 {
		body.Temperature = &req.Temperature
	}
	prefill := ""
	if req.JSON {
		prefill = "{"
		body.Messages = append(body.Messages, anthropicMessage{Role: "assistant", Content: prefill})
	}

	var resp Response
	err := withRetry(ctx, func() error {
		var out anthropicResponse
		if err := a.endpoint.post(ctx, body, &out); err != nil {
			return err
		}
		var sb strings.Builder
		for _, block := range out.Content {
			if block.Type == "text" {
				sb.WriteString(block.Text)
			}
		}
		if sb.Len() == 0 {
			return errors.New("anthropic returned empty content")
		}
		text := sb.String()
		if prefill != "" && !strings.HasPrefix(strings.TrimSpace(text), prefill) {
			text = prefill + text
		}
		resp = Response{
			Content:    text,
			TokensUsed: out.Usage.InputTokens + out.Usage.OutputTokens,
		}
		return nil
	})
	return resp, err
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Temperature *float64           `json:"temperature,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}
