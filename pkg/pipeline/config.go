package pipeline

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/geolod/pkg/errors"
	"github.com/matzehuels/geolod/pkg/geometry"
	lodio "github.com/matzehuels/geolod/pkg/io"
	"github.com/matzehuels/geolod/pkg/lod"
)

// DefaultConfigFile is the config file looked up in the working directory.
const DefaultConfigFile = "geolod.toml"

// Cache backends.
const (
	CacheNone  = "none"
	CacheFile  = "file"
	CacheRedis = "redis"
)

// Config is the complete pipeline configuration as read from geolod.toml.
type Config struct {
	// Workers bounds per-group parallelism; zero means one per CPU.
	Workers int `toml:"workers"`

	Projection ProjectionConfig    `toml:"projection"`
	Simplify   SimplifyConfig      `toml:"simplify"`
	Levels     LevelsConfig        `toml:"levels"`
	Output     OutputConfig        `toml:"output"`
	Schema     lodio.SchemaMapping `toml:"schema"`
	Cache      CacheConfig         `toml:"cache"`
	Store      StoreConfig         `toml:"store"`
}

// ProjectionConfig selects the metric frame used for gap closing.
type ProjectionConfig struct {
	// Mode is fixed, dataset or group.
	Mode string `toml:"mode"`
	// Frame is the UTM zone used by fixed mode, e.g. "47N" or "EPSG:32647".
	Frame         string  `toml:"frame"`
	MaxZoneOffset float64 `toml:"max_zone_offset"`
}

// SimplifyConfig selects the simplification algorithm.
type SimplifyConfig struct {
	Algorithm    string `toml:"algorithm"`
	QuadSegments int    `toml:"quad_segments"`
}

// LevelConfig is the policy of one pyramid level.
type LevelConfig struct {
	ZoomMin           int     `toml:"zoom_min"`
	ZoomMax           int     `toml:"zoom_max"`
	Tolerance         float64 `toml:"tolerance"`
	GapCloseDistance  float64 `toml:"gap_close_distance"`
	FragmentThreshold float64 `toml:"fragment_threshold"`
	// Output is the file name of the level inside the output directory.
	Output string `toml:"output"`
}

// LevelsConfig holds one policy per level.
type LevelsConfig struct {
	Kecamatan LevelConfig `toml:"kecamatan"`
	Kabupaten LevelConfig `toml:"kabupaten"`
	Provinsi  LevelConfig `toml:"provinsi"`
}

// For returns the policy of level l.
func (c *LevelsConfig) For(l lod.AdminLevel) *LevelConfig {
	switch l {
	case lod.Kecamatan:
		return &c.Kecamatan
	case lod.Kabupaten:
		return &c.Kabupaten
	case lod.Provinsi:
		return &c.Provinsi
	}
	return nil
}

// OutputConfig controls where results are written.
type OutputConfig struct {
	Dir string `toml:"dir"`
	// Combined names an extra file holding every level; empty disables it.
	Combined string `toml:"combined"`
}

// CacheConfig selects the level cache backend.
type CacheConfig struct {
	Backend  string `toml:"backend"`
	Dir      string `toml:"dir"`
	RedisURL string `toml:"redis_url"`
	Prefix   string `toml:"prefix"`
	TTL      string `toml:"ttl"`
}

// StoreConfig locates the MongoDB boundary store.
type StoreConfig struct {
	URI        string `toml:"uri"`
	Database   string `toml:"database"`
	Collection string `toml:"collection"`
	Source     string `toml:"source"`
}

// DefaultConfig returns the reference policy.
func DefaultConfig() *Config {
	c := &Config{
		Projection: ProjectionConfig{
			Mode:          string(lod.ProjectionGroup),
			Frame:         geometry.ReferenceFrame.String(),
			MaxZoneOffset: geometry.DefaultMaxZoneOffset,
		},
		Simplify: SimplifyConfig{
			Algorithm:    geometry.AlgorithmTopology,
			QuadSegments: geometry.DefaultQuadSegments,
		},
		Output: OutputConfig{Dir: "."},
		Schema: lodio.DefaultMapping(),
		Cache: CacheConfig{
			Backend: CacheFile,
			Prefix:  "geolod:",
			TTL:     "168h",
		},
		Store: StoreConfig{
			Database:   "geolod",
			Collection: "boundary_polygons",
			Source:     "BNPB",
		},
	}
	for _, spec := range lod.DefaultLevels() {
		*c.Levels.For(spec.Level) = LevelConfig{
			ZoomMin:           spec.Zoom.Min,
			ZoomMax:           spec.Zoom.Max,
			Tolerance:         spec.Tolerance,
			GapCloseDistance:  spec.GapCloseDistance,
			FragmentThreshold: spec.FragmentThreshold,
			Output:            string(spec.Level) + ".geojson",
		}
	}
	return c
}

// LoadConfig reads path on top of [DefaultConfig]. Keys absent from the file
// keep their defaults; unknown keys are rejected. An empty path returns the
// defaults.
func LoadConfig(path string) (*Config, error) {
	return LoadConfigEnv(path, nil)
}

// LoadConfigEnv is LoadConfig with [Config.ApplyEnv] applied before
// validation, so a redis backend may take its URL from the environment.
func LoadConfigEnv(path string, getenv func(string) string) (*Config, error) {
	c, err := decodeConfig(path)
	if err != nil {
		return nil, err
	}
	if getenv != nil {
		c.ApplyEnv(getenv)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func decodeConfig(path string) (*Config, error) {
	c := DefaultConfig()
	if path == "" {
		return c, nil
	}
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "config %s not found", path)
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return nil, errors.New(errors.ErrCodeInvalidConfig, "unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}
	return c, nil
}

// FindConfig returns DefaultConfigFile if it exists in the working
// directory, otherwise "".
func FindConfig() string {
	if _, err := os.Stat(DefaultConfigFile); err == nil {
		return DefaultConfigFile
	}
	return ""
}

// ApplyEnv fills connection settings left empty in the file from the
// environment (MONGODB_URI, REDIS_URL).
func (c *Config) ApplyEnv(getenv func(string) string) {
	if c.Store.URI == "" {
		c.Store.URI = getenv("MONGODB_URI")
	}
	if c.Cache.RedisURL == "" {
		c.Cache.RedisURL = getenv("REDIS_URL")
	}
}

// Encode writes c as TOML.
func (c *Config) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}

// Validate checks every policy value.
func (c *Config) Validate() error {
	if c.Workers < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "workers must be non-negative, got %d", c.Workers)
	}
	if _, err := c.projection(); err != nil {
		return err
	}
	if c.Projection.MaxZoneOffset < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "projection.max_zone_offset must be non-negative")
	}
	if !geometry.ValidAlgorithms[c.Simplify.Algorithm] {
		return errors.New(errors.ErrCodeInvalidConfig, "unknown simplify.algorithm %q (want topology, douglas-peucker or visvalingam)", c.Simplify.Algorithm)
	}
	if c.Simplify.QuadSegments < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "simplify.quad_segments must be non-negative")
	}

	var prev *lod.LevelSpec
	for _, spec := range c.LevelSpecs() {
		if err := spec.Validate(); err != nil {
			return err
		}
		if err := errors.ValidateOutputName(c.Levels.For(spec.Level).Output); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "levels.%s.output", spec.Level)
		}
		if prev != nil && spec.Tolerance < prev.Tolerance {
			return errors.New(errors.ErrCodeInvalidConfig, "levels.%s.tolerance %g is finer than levels.%s.tolerance %g", spec.Level, spec.Tolerance, prev.Level, prev.Tolerance)
		}
		prev = &spec
	}
	if c.Output.Combined != "" {
		if err := errors.ValidateOutputName(c.Output.Combined); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "output.combined")
		}
	}

	if err := c.Schema.Validate(); err != nil {
		return err
	}

	switch c.Cache.Backend {
	case CacheNone, CacheFile:
	case CacheRedis:
		if c.Cache.RedisURL == "" {
			return errors.New(errors.ErrCodeInvalidConfig, "cache.redis_url (or REDIS_URL) is required for the redis backend")
		}
	default:
		return errors.New(errors.ErrCodeInvalidConfig, "unknown cache.backend %q (want none, file or redis)", c.Cache.Backend)
	}
	if _, err := c.CacheTTL(); err != nil {
		return err
	}
	return nil
}

// CacheTTL parses cache.ttl. An empty value means entries never expire.
func (c *Config) CacheTTL() (time.Duration, error) {
	if c.Cache.TTL == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Cache.TTL)
	if err != nil || d < 0 {
		return 0, errors.New(errors.ErrCodeInvalidConfig, "invalid cache.ttl %q", c.Cache.TTL)
	}
	return d, nil
}

// LevelSpecs converts the level policies into builder specs, finest first.
func (c *Config) LevelSpecs() []lod.LevelSpec {
	specs := make([]lod.LevelSpec, 0, len(lod.Levels))
	for _, l := range lod.Levels {
		lc := c.Levels.For(l)
		specs = append(specs, lod.LevelSpec{
			Level:             l,
			Zoom:              lod.ZoomRange{Min: lc.ZoomMin, Max: lc.ZoomMax},
			Key:               lod.KeyFor(l),
			GapCloseDistance:  lc.GapCloseDistance,
			FragmentThreshold: lc.FragmentThreshold,
			Tolerance:         lc.Tolerance,
		})
	}
	return specs
}

// OutputPath returns where level l is written.
func (c *Config) OutputPath(l lod.AdminLevel) string {
	return filepath.Join(c.Output.Dir, c.Levels.For(l).Output)
}

// CombinedPath returns where the combined file is written, or "".
func (c *Config) CombinedPath() string {
	if c.Output.Combined == "" {
		return ""
	}
	return filepath.Join(c.Output.Dir, c.Output.Combined)
}

func (c *Config) projection() (lod.Projection, error) {
	mode, err := lod.ParseProjectionMode(c.Projection.Mode)
	if err != nil {
		return lod.Projection{}, err
	}
	p := lod.Projection{Mode: mode, Frame: geometry.ReferenceFrame, MaxZoneOffset: c.Projection.MaxZoneOffset}
	if c.Projection.Frame != "" {
		if p.Frame, err = geometry.ParseFrame(c.Projection.Frame); err != nil {
			return lod.Projection{}, err
		}
	}
	return p, nil
}

// Builder returns a pyramid builder configured by c. c must be valid.
func (c *Config) Builder() *lod.Builder {
	b := lod.NewBuilder()
	b.Levels = c.LevelSpecs()
	b.Algorithm = c.Simplify.Algorithm
	b.Merger.Projection, _ = c.projection()
	if c.Workers > 0 {
		b.Merger.Workers = c.Workers
	}
	if c.Simplify.QuadSegments > 0 {
		b.Merger.QuadSegments = c.Simplify.QuadSegments
	}
	return b
}
