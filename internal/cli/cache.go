package cli

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/scribe/internal/cache"
	"github.com/dshills/scribe/internal/config"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the engine response cache",
}

func cacheTTL(cfg config.Config) time.Duration {
	return time.Duration(cfg.Cache.TTLSeconds) * time.Second
}

// withCache runs fn on the configured cache directory, whether or not
// cache.enabled is set, so a disabled cache can still be inspected.
func withCache(fn func(cfg config.Config, c *cache.Cache) error) func(*cobra.Command, []string) error {
	return func(*cobra.Command, []string) error {
		cfg, err := loadConfig(nil)
		if err != nil {
			fail(err)
			return nil
		}
		c, err := cache.Open(cfg.Cache.Dir, cacheTTL(cfg))
		if err != nil {
			fail(fmt.Errorf("opening cache: %w", err))
			return nil
		}
		if err := fn(cfg, c); err != nil {
			fail(err)
		}
		return nil
	}
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached engine response",
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove expired and unreadable cache entries",
}

var cacheShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show cache location and contents",
}

func init() {
	cacheClearCmd.RunE = withCache(func(_ config.Config, c *cache.Cache) error {
		n, err := c.Clear()
		if err != nil {
			return fmt.Errorf("clearing cache: %w", err)
		}
		fmt.Fprintf(cacheClearCmd.OutOrStdout(), "Cache cleared: %d entries removed from %s\n", n, c.Dir())
		return nil
	})
	cachePruneCmd.RunE = withCache(func(_ config.Config, c *cache.Cache) error {
		n, err := c.Prune()
		if err != nil {
			return fmt.Errorf("pruning cache: %w", err)
		}
		fmt.Fprintf(cachePruneCmd.OutOrStdout(), "Pruned %d entries\n", n)
		return nil
	})
	cacheShowCmd.RunE = withCache(func(cfg config.Config, c *cache.Cache) error {
		st, err := c.Stats()
		if err != nil {
			return fmt.Errorf("reading cache: %w", err)
		}
		w := cacheShowCmd.OutOrStdout()
		if cfg.Format == "json" {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		}
		state := "enabled"
		if !cfg.Cache.Enabled {
			state = "disabled"
		}
		fmt.Fprintf(w, "Directory: %s (%s, ttl %s)\n", st.Dir, state, cacheTTL(cfg))
		fmt.Fprintf(w, "Entries:   %d (%d expired, %d bytes)\n", st.Entries, st.Expired, st.Bytes)
		for _, p := range slices.Sorted(maps.Keys(st.ByProvider)) {
			fmt.Fprintf(w, "  %-10s %d\n", p, st.ByProvider[p])
		}
		return nil
	})

	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cachePruneCmd)
	cacheCmd.AddCommand(cacheShowCmd)
}
