// Package review holds the analysis contract shared by the suggestion and
// rewrite pipelines: [Document] in, [AnalysisResult] out, through an
// [Analyzer].
//
// It also builds the rewrite prompt from [Options] and loads style guides
// (styleguide.go) that add terminology and house rules to it. The package
// imports no provider code; the LLM-backed Analyzer lives in
// internal/engine.
package review
