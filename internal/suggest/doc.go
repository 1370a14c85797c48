// Package suggest turns an original/rewritten document pair into inline
// suggestion records addressed in the rewritten document's line space.
//
// A counter walks the rewritten side exactly as a patch renderer would:
// context and added lines advance it, removals do not. Each maximal run of
// added lines inside a hunk becomes one [CommitSuggestion] anchored at the
// run's first line.
package suggest
