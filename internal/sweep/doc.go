// Package sweep deletes rewrite branches whose head commit is older than a
// retention window. Only branches under the rewrite prefix are considered;
// a failure on one branch is logged and the sweep moves on.
package sweep
