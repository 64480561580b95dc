package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/geolod/pkg/cache"
	"github.com/matzehuels/geolod/pkg/pipeline"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the level cache",
	}

	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())

	return cmd
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all cached levels",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if cfg.Cache.Backend == pipeline.CacheNone {
				printInfo("Cache is disabled")
				return nil
			}

			lc, err := newCache(cmd.Context(), cfg, false)
			if err != nil {
				return err
			}
			defer lc.Close()

			clearer, ok := lc.(cache.Clearer)
			if !ok {
				printInfo("Cache backend %s cannot be cleared", cfg.Cache.Backend)
				return nil
			}
			count, err := clearer.Clear(cmd.Context())
			if err != nil {
				return err
			}
			if count == 0 {
				printInfo("Cache is empty")
				return nil
			}
			printSuccess("Cleared %d cached levels", count)
			printDetail("Location: %s", cacheLocation(cfg))
			return nil
		},
	}
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print where cached levels are stored",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			fmt.Println(cacheLocation(cfg))
			return nil
		},
	}
}

// cacheLocation describes the configured backend: a directory for the file
// cache, the key pattern for Redis.
func cacheLocation(cfg *pipeline.Config) string {
	switch cfg.Cache.Backend {
	case pipeline.CacheRedis:
		return fmt.Sprintf("%s (keys %s*)", redactURL(cfg.Cache.RedisURL), cfg.Cache.Prefix)
	case pipeline.CacheFile:
		if cfg.Cache.Dir != "" {
			return cfg.Cache.Dir
		}
		dir, err := cacheDir()
		if err != nil {
			return "unavailable: " + err.Error()
		}
		return dir
	}
	return "disabled"
}
