// Package engine adapts an external text-quality engine into a
// review.Analyzer.
//
// An [Engine] sends each document with the rewrite options to a
// [providers.Completer] and expects a strict JSON object holding the
// rewritten document and its scores. Invalid JSON gets one repair pass.
// Responses are cached by provider, model, options and content, and
// documents are analyzed concurrently with a bound while results keep input
// order.
package engine
