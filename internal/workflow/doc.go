// Package workflow runs one scribe pass over a pull request.
//
// A [Runner] collects the changed documents, scores and rewrites them
// through a [review.Analyzer], then drives the remote steps in order:
// inline suggestions, the rewrite branch and the retention sweep. Remote
// step failures are recorded on the [Outcome] and never fail the run.
package workflow
