package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/dshills/scribe/internal/host"
	"github.com/dshills/scribe/internal/redact"
	"github.com/dshills/scribe/internal/retry"
)

const (
	defaultAPIURL = "https://api.github.com"
	perPage       = 100
	maxPages      = 50
	maxErrorBody  = 512
)

// Compile-time interface verification.
var _ host.Platform = (*Client)(nil)

// errRateLimited marks responses the host rejected before processing them,
// which makes even a POST safe to repeat.
var errRateLimited = errors.New("rate limited")

// Client provides access to the GitHub REST API.
type Client struct {
	token   string
	apiURL  string
	httpCli *http.Client
	limiter *rate.Limiter
	policy  retry.Policy
	log     zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithToken overrides the token read from the environment.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithAPIURL points the client at a GitHub Enterprise or test server.
func WithAPIURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.apiURL = strings.TrimRight(u, "/")
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpCli = h }
}

// WithRateLimit caps requests per second. Zero or less disables throttling.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithRetryPolicy sets how transient failures are retried.
func WithRetryPolicy(p retry.Policy) Option {
	return func(c *Client) { c.policy = p }
}

// WithLogger sets the client logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.log = l
		c.policy.Logger = l
	}
}

// NewClient creates a GitHub client. The token comes from GITHUB_TOKEN, then
// GH_TOKEN, unless WithToken is given; the API URL from GITHUB_API_URL unless
// WithAPIURL is given.
func NewClient(opts ...Option) (*Client, error) {
	c := &Client{
		token:   os.Getenv("GITHUB_TOKEN"),
		apiURL:  defaultAPIURL,
		httpCli: &http.Client{Timeout: 60 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(10), 1),
		policy:  retry.DefaultPolicy(),
		log:     zerolog.Nop(),
	}
	if c.token == "" {
		c.token = os.Getenv("GH_TOKEN")
	}
	if u := os.Getenv("GITHUB_API_URL"); u != "" {
		c.apiURL = strings.TrimRight(u, "/")
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.token == "" {
		return nil, host.Errorf(host.KindPermissionDenied, "github", "GITHUB_TOKEN environment variable is not set")
	}
	return c, nil
}

// do sends one API request, retrying transient failures. A non-nil in is
// sent as JSON; out receives the decoded response body.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, in, out any) (http.Header, error) {
	var payload []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("%s: marshaling request: %w", op, err)
		}
		payload = b
	}

	u := c.apiURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	p := c.policy
	p.Retryable = func(err error) bool {
		if !host.IsTransient(err) {
			return false
		}
		return method != http.MethodPost || errors.Is(err, errRateLimited)
	}

	var header http.Header
	err := retry.Do(ctx, p, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, body)
		if err != nil {
			return fmt.Errorf("%s: creating request: %w", op, err)
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Accept", "application/vnd.github+json")
		req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpCli.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return host.Wrap(host.KindTransient, op, "", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return host.Wrap(host.KindTransient, op, "", fmt.Errorf("reading response: %w", err))
		}
		c.log.Debug().Str("op", op).Str("method", method).Str("path", path).Int("status", resp.StatusCode).Msg("github request")

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return statusError(op, resp, data)
		}
		header = resp.Header
		if out != nil && resp.StatusCode != http.StatusNoContent && len(data) > 0 {
			if err := json.Unmarshal(data, out); err != nil {
				return fmt.Errorf("%s: parsing response: %w", op, err)
			}
		}
		return nil
	})
	return header, err
}

// statusError classifies a non-2xx response.
func statusError(op string, resp *http.Response, body []byte) error {
	msg := errorMessage(body)
	var kind host.Kind
	var cause error = errors.New(msg)

	switch code := resp.StatusCode; {
	case code == http.StatusUnauthorized:
		kind = host.KindPermissionDenied
		cause = fmt.Errorf("authentication failed: %s", msg)
	case code == http.StatusForbidden && isRateLimited(resp, msg):
		kind = host.KindTransient
		cause = fmt.Errorf("%w: %s", errRateLimited, msg)
	case code == http.StatusForbidden:
		kind = host.KindPermissionDenied
	case code == http.StatusNotFound:
		kind = host.KindNotFound
	case code == http.StatusConflict, code == http.StatusUnprocessableEntity:
		kind = host.KindInvalid
	case code == http.StatusTooManyRequests:
		kind = host.KindTransient
		cause = fmt.Errorf("%w: %s", errRateLimited, msg)
	case code >= 500:
		kind = host.KindTransient
	}
	return host.Wrap(kind, op, "", fmt.Errorf("status %d: %w", resp.StatusCode, cause))
}

func isRateLimited(resp *http.Response, msg string) bool {
	if resp.Header.Get("X-RateLimit-Remaining") == "0" || resp.Header.Get("Retry-After") != "" {
		return true
	}
	return strings.Contains(strings.ToLower(msg), "rate limit")
}

// errorMessage extracts GitHub's "message" field, falling back to the raw
// body, scrubbed and truncated.
func errorMessage(body []byte) string {
	var apiErr struct {
		Message string `json:"message"`
		Errors  []struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		} `json:"errors"`
	}
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
		msg = apiErr.Message
		for _, e := range apiErr.Errors {
			detail := e.Message
			if detail == "" {
				detail = e.Code
			}
			if detail != "" {
				msg += "; " + detail
			}
		}
	}
	msg = redact.Secrets(msg)
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody] + "..."
	}
	return msg
}

// getAll walks a paginated list endpoint.
func getAll[T any](ctx context.Context, c *Client, op, path string, query url.Values) ([]T, error) {
	if query == nil {
		query = url.Values{}
	}
	query.Set("per_page", strconv.Itoa(perPage))

	var all []T
	for page := 1; page <= maxPages; page++ {
		query.Set("page", strconv.Itoa(page))
		var batch []T
		header, err := c.do(ctx, op, http.MethodGet, path, query, nil, &batch)
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(batch) < perPage || !hasNextPage(header) {
			break
		}
	}
	return all, nil
}

func hasNextPage(h http.Header) bool {
	link := h.Get("Link")
	return link == "" || strings.Contains(link, `rel="next"`)
}

// escapePath escapes each segment of a slash-separated path.
func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, s := range parts {
		parts[i] = url.PathEscape(s)
	}
	return strings.Join(parts, "/")
}

func repoPath(owner, repo string) string {
	return "/repos/" + url.PathEscape(owner) + "/" + url.PathEscape(repo)
}
