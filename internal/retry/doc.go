// Package retry runs an operation a bounded number of times with
// exponential backoff and jitter, retrying only errors the caller
// classifies as retryable.
package retry
