// Package cache stores scoring-engine responses on disk.
//
// An entry is addressed by the digest of a [Key]: the provider, the model
// and every input that shapes the response (rewrite options and the
// document). An unchanged document analyzed with the same settings is
// therefore never sent to the engine twice. Entries older than the TTL are
// misses and are removed by [Cache.Prune].
package cache
