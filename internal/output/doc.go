// Package output formats run outcomes for display or machine consumption.
//
// Three formats are supported:
//   - text     - human-readable terminal output (default)
//   - json     - the full structured outcome
//   - markdown - a summary suitable for a pull request comment or CI step summary
//
// Use [GetWriter] to obtain a [Writer] for a given format string, then call
// [Writer.Write] with an [io.Writer] and a [*workflow.Outcome]. [WriteReport]
// handles destination selection.
package output
