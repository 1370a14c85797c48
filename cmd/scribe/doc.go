// Scribe is a pull request bot that improves the prose changed in a PR.
//
// It scores each changed document with an LLM, posts the proposed rewrites
// as inline GitHub suggestions, keeps a rewrite branch with a companion pull
// request in sync, and deletes rewrite branches that outlive their
// retention window. Exit codes are deterministic for CI gating.
//
// Usage:
//
//	scribe pr 42                      # review pull request #42 of the origin repo
//	scribe pr 42 --repo acme/docs     # name the repository explicitly
//	scribe pr 42 --dry-run            # analyze and report only
//	scribe suggest old.md new.md      # preview suggestions locally
//	scribe sweep --retention-days 14  # delete stale rewrite branches
//	scribe config init                # write a default config file
package main
