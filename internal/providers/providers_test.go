package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	retryPolicy.BaseDelay = time.Millisecond
	retryPolicy.MaxDelay = 5 * time.Millisecond
	retryPolicy.Jitter = false
	os.Exit(m.Run())
}

func testEndpoint(url string, kv ...string) endpoint {
	h := http.Header{}
	for i := 0; i+1 < len(kv); i += 2 {
		h.Set(kv[i], kv[i+1])
	}
	return endpoint{url: url, header: h, client: &http.Client{Timeout: 5 * time.Second}}
}

func chatReply(w http.ResponseWriter, content string, tokens int) {
	var out chatResponse
	if content != "" {
		out.Choices = append(out.Choices, struct {
			Message chatMessage `json:"message"`
		}{Message: chatMessage{Role: "assistant", Content: content}})
	}
	out.Usage.TotalTokens = tokens
	_ = json.NewEncoder(w).Encode(out)
}

var rewriteReq = Request{SystemPrompt: "rewrite", UserPrompt: "Teh text.", JSON: true, Temperature: 0.2}

func TestChat_Complete(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		chatReply(w, `{"rewritten":"The text."}`, 42)
	}))
	defer srv.Close()

	c := &Chat{name: "openai", model: "gpt-4o", endpoint: testEndpoint(srv.URL, "Authorization", "Bearer test-key")}
	resp, err := c.Complete(context.Background(), rewriteReq)
	require.NoError(t, err)
	assert.Equal(t, `{"rewritten":"The text."}`, resp.Content)
	assert.Equal(t, 42, resp.TokensUsed)

	assert.Equal(t, "gpt-4o", got.Model)
	assert.Equal(t, defaultMaxTokens, got.MaxTokens)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "Teh text.", got.Messages[1].Content)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
	require.NotNil(t, got.Temperature)
	assert.InDelta(t, 0.2, *got.Temperature, 1e-9)
}

func TestChat_NoKeyNoAuthorization(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		chatReply(w, "ok", 1)
	}))
	defer srv.Close()

	c := &Chat{name: "ollama", model: "llama3", endpoint: testEndpoint(srv.URL)}
	resp, err := c.Complete(context.Background(), Request{UserPrompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, "ollama", c.Name())
}

func TestChat_Failures(t *testing.T) {
	tests := []struct {
		name     string
		handler  func(n int32, w http.ResponseWriter)
		wantErr  bool
		auth     bool
		attempts int32
	}{
		{
			name: "auth is not retried",
			handler: func(_ int32, w http.ResponseWriter) {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"bad key"}`))
			},
			wantErr: true, auth: true, attempts: 1,
		},
		{
			name: "rate limit recovers",
			handler: func(n int32, w http.ResponseWriter) {
				if n <= 2 {
					w.WriteHeader(http.StatusTooManyRequests)
					return
				}
				chatReply(w, "ok", 1)
			},
			attempts: 3,
		},
		{
			name: "outage exhausts retries",
			handler: func(_ int32, w http.ResponseWriter) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
			wantErr: true, attempts: int32(retryPolicy.MaxRetries + 1),
		},
		{
			name: "bad request is not retried",
			handler: func(_ int32, w http.ResponseWriter) {
				w.WriteHeader(http.StatusBadRequest)
			},
			wantErr: true, attempts: 1,
		},
		{
			name:    "no choices",
			handler: func(_ int32, w http.ResponseWriter) { chatReply(w, "", 0) },
			wantErr: true, attempts: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				tt.handler(calls.Add(1), w)
			}))
			defer srv.Close()

			c := &Chat{name: "openai", model: "gpt-4o", endpoint: testEndpoint(srv.URL)}
			_, err := c.Complete(context.Background(), Request{UserPrompt: "x"})
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.auth, IsAuthError(err))
			assert.Equal(t, tt.attempts, calls.Load())
		})
	}
}

func TestStatusError_RedactsBody(t *testing.T) {
	err := statusError(http.StatusForbidden, []byte(`{"error":"key sk-ant-REDACTED rejected"}`))
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
	assert.NotContains(t, err.Error(), "sk-ant-")
	assert.NoError(t, statusError(http.StatusOK, nil))
}

func TestAnthropic_Complete(t *testing.T) {
	var got anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicAPIVersion, r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"\"rewritten\":\"The text.\"}"}],"usage":{"input_tokens":100,"output_tokens":10}}`))
	}))
	defer srv.Close()

	a := &Anthropic{model: "claude-sonnet-4-20250514", endpoint: testEndpoint(srv.URL,
		"x-api-key", "test-key", "anthropic-version", anthropicAPIVersion)}
	resp, err := a.Complete(context.Background(), rewriteReq)
	require.NoError(t, err)
	assert.Equal(t, `{"rewritten":"The text."}`, resp.Content, "prefill is restored")
	assert.Equal(t, 110, resp.TokensUsed)

	assert.Equal(t, "rewrite", got.System)
	assert.Equal(t, defaultMaxTokens, got.MaxTokens)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, anthropicMessage{Role: "assistant", Content: "{"}, got.Messages[1])
}

func TestAnthropic_PlainRequestHasNoPrefill(t *testing.T) {
	var got anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"ok"}]}`))
	}))
	defer srv.Close()

	a := &Anthropic{model: "m", endpoint: testEndpoint(srv.URL)}
	resp, err := a.Complete(context.Background(), Request{UserPrompt: "ping", MaxTokens: 10})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Len(t, got.Messages, 1)
	assert.Equal(t, 10, got.MaxTokens)
	assert.Nil(t, got.Temperature)
}

func TestAnthropic_Errors(t *testing.T) {
	t.Run("auth", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer srv.Close()
		a := &Anthropic{model: "m", endpoint: testEndpoint(srv.URL)}
		_, err := a.Complete(context.Background(), Request{UserPrompt: "x"})
		assert.True(t, IsAuthError(err))
	})
	t.Run("empty content", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"content":[]}`))
		}))
		defer srv.Close()
		a := &Anthropic{model: "m", endpoint: testEndpoint(srv.URL)}
		_, err := a.Complete(context.Background(), Request{UserPrompt: "x"})
		assert.ErrorContains(t, err, "empty content")
	})
}

func TestOllamaURL(t *testing.T) {
	tests := map[string]string{
		"":                                           "http://localhost:11434/v1/chat/completions",
		"http://localhost:11434/":                    "http://localhost:11434/v1/chat/completions",
		"http://localhost:11434/v1":                  "http://localhost:11434/v1/chat/completions",
		"http://localhost:11434/v1/chat/completions": "http://localhost:11434/v1/chat/completions",
		"http://192.168.1.100:1234":                  "http://192.168.1.100:1234/v1/chat/completions",
	}
	for host, want := range tests {
		assert.Equal(t, want, ollamaURL(host), host)
	}
}

func TestNew(t *testing.T) {
	t.Setenv("OLLAMA_HOST", "http://localhost:11434")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")

	for _, name := range []string{"ollama", "lmstudio", "LMStudio"} {
		c, err := New(context.Background(), name, "llama3")
		require.NoError(t, err, name)
		assert.Equal(t, "ollama", c.Name())
	}

	_, err := New(context.Background(), "unknown", "m")
	assert.EqualError(t, err, "unknown provider: unknown")

	_, err = New(context.Background(), "openai", "gpt-4o")
	assert.ErrorContains(t, err, "OPENAI_API_KEY")

	_, err = New(context.Background(), "google", "gemini-2.5-flash")
	assert.ErrorContains(t, err, "GEMINI_API_KEY", "google is an alias for gemini")
}

func TestCanonical(t *testing.T) {
	assert.Equal(t, "anthropic", Canonical("claude"))
	assert.Equal(t, "gemini", Canonical(" Google "))
	assert.Equal(t, "openai", Canonical("openai"))
	assert.Empty(t, Canonical("bard"))

	cat := Catalog()
	require.Len(t, cat, 4)
	cat[0].Name = "changed"
	assert.Equal(t, "anthropic", Catalog()[0].Name, "Catalog returns a copy")
}

func TestRetryClassification(t *testing.T) {
	assert.False(t, IsAuthError(nil))
	assert.False(t, IsAuthError(&rateLimitError{}))
	assert.True(t, IsAuthError(&authError{message: "bad"}))

	assert.True(t, isRetryable(&rateLimitError{}))
	assert.True(t, isRetryable(&serverError{statusCode: 502}))
	assert.False(t, isRetryable(&authError{}))
	assert.False(t, isRetryable(context.Canceled))

	assert.Equal(t, "authentication error: bad key", (&authError{message: "bad key"}).Error())
	assert.Equal(t, "server error: oops", (&serverError{statusCode: 500, body: "oops"}).Error())
}

func TestWithRetry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := withRetry(ctx, func() error { return &rateLimitError{} })
	assert.ErrorIs(t, err, context.Canceled)

	calls := 0
	err = withRetry(context.Background(), func() error {
		calls++
		return &authError{message: "bad"}
	})
	assert.True(t, IsAuthError(err))
	assert.Equal(t, 1, calls)
}
