package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"librarian/internal/analysiscache"
	"librarian/internal/encoding"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the analysis cache",
	}

	cacheCmd.AddCommand(newCacheStatsCommand(ctx))
	cacheCmd.AddCommand(newCachePruneCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))

	return cacheCmd
}

// withCache opens the configured cache for the duration of fn.
func withCache(ctx *commandContext, cmd *cobra.Command, fn func(*analysiscache.Store) error) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return err
	}
	store, err := openCache(ctx.runContext(cmd), cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show analysis cache usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCache(ctx, cmd, func(store *analysiscache.Store) error {
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeReport(cmd.OutOrStdout(), newCacheReport(store.Path(), stats))
				}
				printCacheStats(cmd.OutOrStdout(), store.Path(), stats)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON")
	return cmd
}

func printCacheStats(out io.Writer, path string, stats analysiscache.Stats) {
	const stampLayout = "2006-01-02 15:04"
	fmt.Fprintf(out, "Cache:   %s\n", path)
	fmt.Fprintf(out, "Entries: %d\n", stats.Entries)
	fmt.Fprintf(out, "Size:    %s\n", humanize.Bytes(uint64(max(stats.FileBytes, 0))))
	if stats.Entries == 0 {
		return
	}
	fmt.Fprintf(out, "Oldest:  %s\n", stats.Oldest.Local().Format(stampLayout))
	fmt.Fprintf(out, "Newest:  %s\n", stats.Newest.Local().Format(stampLayout))
	for _, status := range statusOrder {
		if n := stats.ByStatus[status]; n > 0 {
			fmt.Fprintf(out, "  - %s: %d\n", status.Label(), n)
		}
	}
}

func newCachePruneCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Drop entries whose file is gone or has changed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCache(ctx, cmd, func(store *analysiscache.Store) error {
				removed, err := store.Prune(cmd.Context())
				if err != nil {
					return err
				}
				if removed == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No cache entries pruned")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d stale %s\n", removed, plural(removed, "entry", "entries"))
				return nil
			})
		},
	}
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached analysis",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			// An encode run writes to the cache; refuse to clear underneath it.
			lock, err := encoding.AcquireRunLock(cfg.Paths.LockPath)
			if err != nil {
				return fmt.Errorf("cannot clear cache: %w", err)
			}
			defer lock.Release()

			return withCache(ctx, cmd, func(store *analysiscache.Store) error {
				removed, err := store.Clear(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d cached %s\n", removed, plural(removed, "analysis", "analyses"))
				return nil
			})
		},
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
