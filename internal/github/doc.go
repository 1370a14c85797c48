// Package github implements host.Platform over the GitHub REST API.
//
// The client authenticates with a bearer token (GITHUB_TOKEN or GH_TOKEN),
// throttles requests with a token-bucket limiter to stay under the secondary
// rate limits, and retries transient failures with exponential backoff.
// Every non-2xx response is classified into a host.Kind; error bodies are
// scrubbed with redact.Secrets before they reach an error message.
//
// List endpoints are paginated at 100 items per page. [DetectRepo] and
// [PullNumberFromEnv] pick up the repository and pull request of a GitHub
// Actions run, falling back to the origin remote for local use.
package github
