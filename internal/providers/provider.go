package providers

import (
	"context"
	"fmt"
	"strings"
)

// defaultMaxTokens leaves room for a whole rewritten document.
const defaultMaxTokens = 8192

// Request is one completion sent to the rewrite engine.
type Request struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Temperature  float64
	// JSON asks for a response that is a single JSON object.
	JSON bool
}

func (r Request) maxTokens() int {
	if r.MaxTokens > 0 {
		return r.MaxTokens
	}
	return defaultMaxTokens
}

// Response is the raw completion text.
type Response struct {
	Content    string
	TokensUsed int
}

// Completer is implemented by every engine backend.
type Completer interface {
	Complete(ctx context.Context, req Request) (Response, error)
	Name() string
}

// Provider describes a backend and the models it is commonly used with.
type Provider struct {
	Name    string
	Aliases []string
	Env     string
	Models  []string
}

var catalog = []Provider{
	{Name: "anthropic", Aliases: []string{"claude"}, Env: "ANTHROPIC_API_KEY",
		Models: []string{"claude-sonnet-4-20250514", "claude-opus-4-1", "claude-haiku-4-5"}},
	{Name: "openai", Env: "OPENAI_API_KEY",
		Models: []string{"gpt-4.1", "gpt-4.1-mini", "gpt-4o"}},
	{Name: "gemini", Aliases: []string{"google"}, Env: "GEMINI_API_KEY",
		Models: []string{"gemini-2.5-flash", "gemini-2.5-pro"}},
	{Name: "ollama", Aliases: []string{"lmstudio"}, Env: "OLLAMA_HOST",
		Models: []string{"llama3.3", "mistral", "qwen2.5"}},
}

// Catalog lists the supported providers.
func Catalog() []Provider {
	out := make([]Provider, len(catalog))
	copy(out, catalog)
	return out
}

// Canonical resolves a provider name or alias. It returns "" for unknown
// names.
func Canonical(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, p := range catalog {
		if p.Name == name {
			return p.Name
		}
		for _, a := range p.Aliases {
			if a == name {
				return p.Name
			}
		}
	}
	return ""
}

// New creates the provider registered under name.
func New(ctx context.Context, name, model string) (Completer, error) {
	switch Canonical(name) {
	case "anthropic":
		return NewAnthropic(model)
	case "openai":
		return NewOpenAI(model)
	case "gemini":
		return NewGemini(ctx, model)
	case "ollama":
		return NewOllama(model)
	default:
		return nil, fmt.Errorf("unknown provider: %s", name)
	}
}
