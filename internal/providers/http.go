package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dshills/scribe/internal/redact"
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 8 << 20

// endpoint posts JSON to one completion URL.
type endpoint struct {
	url    string
	header http.Header
	client *http.Client
}

func newEndpoint(url string, timeout time.Duration, header http.Header) endpoint {
	if header == nil {
		header = http.Header{}
	}
	return endpoint{url: url, header: header, client: &http.Client{Timeout: timeout}}
}

// post sends in and decodes a 200 response into out. Failures are typed so
// the retry loop can tell rate limits and outages from bad credentials.
func (e endpoint) post(ctx context.Context, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header = e.header.Clone()
	req.Header.Set("Content-Type", "application/json")

	client := e.client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if err := statusError(resp.StatusCode, body); err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

func statusError(code int, body []byte) error {
	msg := redact.Secrets(strings.TrimSpace(string(body)))
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusTooManyRequests:
		return &rateLimitError{}
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return &authError{message: msg}
	case code >= 500:
		return &serverError{statusCode: code, body: msg}
	default:
		return fmt.Errorf("API error (status %d): %s", code, msg)
	}
}
