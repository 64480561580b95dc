package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/geolod/pkg/buildinfo"
	"github.com/matzehuels/geolod/pkg/cache"
	"github.com/matzehuels/geolod/pkg/errors"
	"github.com/matzehuels/geolod/pkg/pipeline"
	"github.com/matzehuels/geolod/pkg/store"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = "geolod"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// configPath is the --config flag; empty means geolod.toml when present.
	configPath string

	// getenv reads connection settings; tests replace it.
	getenv func(string) string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		getenv: os.Getenv,
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Geolod builds level-of-detail boundary pyramids",
		Long: `Geolod turns a subdistrict (kecamatan) boundary layer into a three-level
pyramid of district (kabupaten) and province (provinsi) boundaries, each
simplified for the zoom range it is displayed at.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default ./"+pipeline.DefaultConfigFile+" when present)")

	root.AddCommand(c.generateCommand())
	root.AddCommand(c.importCommand())
	root.AddCommand(c.queryCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Config, Runner and Store Factories
// =============================================================================

// loadConfig reads the --config file, or geolod.toml in the working
// directory, and fills connection settings from the environment.
func (c *CLI) loadConfig() (*pipeline.Config, error) {
	path := c.configPath
	if path == "" {
		path = pipeline.FindConfig()
	}
	cfg, err := pipeline.LoadConfigEnv(path, c.getenv)
	if err != nil {
		return nil, err
	}
	if path != "" {
		c.Logger.Debug("loaded config", "path", path)
	}
	return cfg, nil
}

// newRunner creates a pipeline runner for CLI use.
func (c *CLI) newRunner(ctx context.Context, cfg *pipeline.Config, noCache bool) (*pipeline.Runner, error) {
	lc, err := newCache(ctx, cfg, noCache)
	if err != nil {
		return nil, err
	}
	return pipeline.NewRunner(lc, newKeyer(), c.Logger), nil
}

// newKeyer scopes level keys by build version so an upgraded binary never
// reads entries written by an older one.
func newKeyer() cache.Keyer {
	return cache.NewScopedKeyer(cache.NewDefaultKeyer(), buildinfo.Version+":")
}

// newCache opens the configured level cache backend.
func newCache(ctx context.Context, cfg *pipeline.Config, noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	switch cfg.Cache.Backend {
	case pipeline.CacheRedis:
		rc, err := cache.NewRedisCache(ctx, cfg.Cache.RedisURL, cfg.Cache.Prefix)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "open redis cache")
		}
		return rc, nil
	case pipeline.CacheFile:
		dir := cfg.Cache.Dir
		if dir == "" {
			var err error
			if dir, err = cacheDir(); err != nil {
				return cache.NewNullCache(), nil
			}
		}
		return cache.NewFileCache(dir)
	}
	return cache.NewNullCache(), nil
}

// openStore connects to the configured boundary store.
func (c *CLI) openStore(ctx context.Context, cfg *pipeline.Config) (*store.Store, error) {
	return store.Connect(ctx, store.Config{
		URI:        cfg.Store.URI,
		Database:   cfg.Store.Database,
		Collection: cfg.Store.Collection,
		Source:     cfg.Store.Source,
		Logger:     c.Logger,
	})
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/geolod/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
