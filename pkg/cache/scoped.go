package cache

// ScopedKeyer wraps a Keyer with a prefix so several datasets or
// deployments can share one Redis instance without key clashes.
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "geolod:bnpb-2023:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// LevelKey generates a prefixed key for a built level.
func (k *ScopedKeyer) LevelKey(inputHash string, opts LevelKeyOpts) string {
	return k.prefix + k.inner.LevelKey(inputHash, opts)
}
