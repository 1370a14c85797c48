// Package rewrite mirrors engine rewrites onto an auxiliary branch with its
// own pull request.
//
// The branch name depends only on the pull request number, so every run for
// the same pull request reconciles the same branch: it is created at the
// pull request head or reset to it, the rewritten files are written one at a
// time with their current blob SHA, and an open pull request for the branch
// is reused before a new one is opened against the pull request's head
// branch.
package rewrite
