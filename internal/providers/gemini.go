package providers

import (
	"context"
	"errors"
	"fmt"
	"os"

	"google.golang.org/genai"
)

// geminiModels is the slice of the genai client Gemini uses.
type geminiModels interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type genaiModels struct {
	client *genai.Client
}

func (m genaiModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return m.client.Models.GenerateContent(ctx, model, contents, config)
}

// Gemini implements the Completer interface for Google's Gemini API.
type Gemini struct {
	model  string
	models geminiModels
}

// NewGemini creates a new Gemini provider.
func NewGemini(ctx context.Context, model string) (*Gemini, error) {
	key := os.Getenv("GEMINI_API_KEY")
	if key == "" {
		key = os.Getenv("GOOGLE_API_KEY")
	}
	if key == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY (or GOOGLE_API_KEY) environment variable is not set")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &Gemini{model: model, models: genaiModels{client: client}}, nil
}

func (g *Gemini) Name() string { return "gemini" }

func (g *Gemini) Complete(ctx context.Context, req Request) (Response, error) {
	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(req.maxTokens()),
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: req.SystemPrompt}},
		},
	}
	if req.Temperature > 0 {
		temp := float32(req.Temperature)
		config.Temperature = &temp
	}
	if req.JSON {
		config.ResponseMIMEType = "application/json"
	}
	contents := []*genai.Content{{
		Role:  "user",
		Parts: []*genai.Part{{Text: req.UserPrompt}},
	}}

	var resp Response
	err := withRetry(ctx, func() error {
		result, err := g.models.GenerateContent(ctx, g.model, contents, config)
		if err != nil {
			return classifyGeminiError(err)
		}
		if result == nil || len(result.Candidates) == 0 {
			return fmt.Errorf("no content in response")
		}
		text := result.Text()
		if text == "" {
			return fmt.Errorf("empty text content in API response")
		}
		resp = Response{Content: text}
		if result.UsageMetadata != nil {
			resp.TokensUsed = int(result.UsageMetadata.TotalTokenCount)
		}
		return nil
	})
	return resp, err
}

// classifyGeminiError maps genai API errors onto the retry/auth taxonomy.
func classifyGeminiError(err error) error {
	var apiErr *genai.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	switch {
	case apiErr.Code == 429:
		return &rateLimitError{}
	case apiErr.Code == 401 || apiErr.Code == 403:
		return &authError{message: apiErr.Message}
	case apiErr.Code >= 500:
		return &serverError{statusCode: apiErr.Code, body: apiErr.Message}
	default:
		return fmt.Errorf("gemini API error (HTTP %d): %s", apiErr.Code, apiErr.Message)
	}
}
