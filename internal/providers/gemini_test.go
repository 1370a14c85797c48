package providers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeGeminiModels struct {
	calls  int
	errs   []error
	result *genai.GenerateContentResponse
	config *genai.GenerateContentConfig
}

func (f *fakeGeminiModels) GenerateContent(_ context.Context, _ string, _ []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.calls++
	f.config = config
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	return f.result, nil
}

func textResponse(text string, tokens int32) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: text}}},
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{TotalTokenCount: tokens},
	}
}

func TestGemini_Complete(t *testing.T) {
	fake := &fakeGeminiModels{result: textResponse(`{"rewritten":""}`, 75)}
	g := &Gemini{model: "gemini-2.5-flash", models: fake}

	resp, err := g.Complete(context.Background(), Request{SystemPrompt: "rewrite", UserPrompt: "x", MaxTokens: 10, JSON: true})
	require.NoError(t, err)
	assert.Equal(t, `{"rewritten":""}`, resp.Content)
	assert.Equal(t, 75, resp.TokensUsed)
	assert.Equal(t, "application/json", fake.config.ResponseMIMEType)
	assert.Equal(t, int32(10), fake.config.MaxOutputTokens)
	assert.Equal(t, "gemini", g.Name())
}

func TestGemini_AuthErrorIsNotRetried(t *testing.T) {
	fake := &fakeGeminiModels{errs: []error{&genai.APIError{Code: 403, Message: "forbidden"}}}
	g := &Gemini{model: "gemini-2.5-flash", models: fake}

	_, err := g.Complete(context.Background(), Request{UserPrompt: "x"})
	assert.True(t, IsAuthError(err))
	assert.Equal(t, 1, fake.calls)
}

func TestGemini_RetriesRateLimit(t *testing.T) {
	fake := &fakeGeminiModels{
		errs:   []error{&genai.APIError{Code: 429, Message: "slow down"}},
		result: textResponse("ok", 1),
	}
	g := &Gemini{model: "gemini-2.5-flash", models: fake}

	resp, err := g.Complete(context.Background(), Request{UserPrompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, 2, fake.calls)
	assert.Equal(t, int32(defaultMaxTokens), fake.config.MaxOutputTokens)
}

func TestGemini_NoCandidates(t *testing.T) {
	fake := &fakeGeminiModels{result: &genai.GenerateContentResponse{}}
	g := &Gemini{model: "gemini-2.5-flash", models: fake}

	_, err := g.Complete(context.Background(), Request{UserPrompt: "x"})
	assert.Error(t, err)
}
