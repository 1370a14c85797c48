// Package textdiff correlates an original document with its rewrite as an
// ordered sequence of line hunks covering the whole document.
//
// Matching uses the LCS-style SequenceMatcher from go-difflib with the junk
// heuristic disabled, so the same pair always yields the same hunks. Lines
// keep their terminators while being compared: whitespace and trailing
// newline changes surface as real edits.
package textdiff
