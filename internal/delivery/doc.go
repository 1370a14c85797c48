// Package delivery posts synthesized suggestions to a pull request as
// inline suggestion comments.
//
// A delivery walks NotStarted, PermissionChecked, PendingReviewCleared,
// Reconciled and Submitted in order. Write access is checked before any
// write. A pending review left by an earlier run is submitted before new
// comments are created, because the host allows one pending review per
// author. Live comments carrying the suggestion marker at the same anchor are
// updated in place; everything else is created in reviews of at most
// MaxCommentsPerReview comments.
//
// Comments are anchored on the pull request head, which is the original
// document: a suggestion targets the original lines it replaces. Anchors
// outside the pull request's patch are skipped, since the host rejects a
// whole review if one comment falls outside the diff.
package delivery
