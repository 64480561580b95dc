package cache

// Keyer produces cache keys for pipeline artifacts.
type Keyer interface {
	// LevelKey returns the key of a built level.
	LevelKey(inputHash string, opts LevelKeyOpts) string
}

// LevelKeyOpts holds every policy value that affects a built level.
type LevelKeyOpts struct {
	Level             string  `json:"level"`
	ZoomMin           int     `json:"zoom_min"`
	ZoomMax           int     `json:"zoom_max"`
	Tolerance         float64 `json:"tolerance"`
	GapCloseDistance  float64 `json:"gap_close_distance"`
	FragmentThreshold float64 `json:"fragment_threshold"`
	Algorithm         string  `json:"algorithm"`
	Projection        string  `json:"projection"`
	QuadSegments      int     `json:"quad_segments"`
}

// DefaultKeyer is the standard Keyer.
type DefaultKeyer struct{}

// NewDefaultKeyer returns a DefaultKeyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// LevelKey returns "level:<hash>".
func (DefaultKeyer) LevelKey(inputHash string, opts LevelKeyOpts) string {
	return hashKey("level", inputHash, opts)
}

var _ Keyer = DefaultKeyer{}
