// Package host defines the capability interfaces scribe needs from a
// code-hosting platform, the value types exchanged with it, and the error
// kinds every remote operation is classified into.
//
// The core packages (delivery, rewrite, sweep) depend only on these
// interfaces. [github.Client] implements them over the GitHub REST API and
// [hostfake.Platform] implements them in memory for tests.
package host
