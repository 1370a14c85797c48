// Package gitctx gathers the documents a run analyzes from a pull request.
//
// Changed files are listed from the host, filtered by include/exclude glob
// patterns and a per-file size limit, and read at the pull request head.
// Removed and binary files are never analyzed.
package gitctx
