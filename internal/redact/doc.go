// Package redact keeps secrets out of text that leaves the process.
//
// Detection is a table of named regex heuristics (private keys, provider
// tokens, AWS credentials, JWTs, bearer headers and generic assignments).
// A [Policy] tells the engine which documents it must not send, and the
// GitHub and provider clients scrub error bodies with [Secrets] before they
// are logged or returned.
package redact
