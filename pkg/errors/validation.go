package errors

import (
	"math"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
)

// ValidateTolerance checks a simplification tolerance in degrees.
// Tolerances must be finite and strictly positive.
func ValidateTolerance(name string, tol float64) error {
	if math.IsNaN(tol) || math.IsInf(tol, 0) {
		return New(ErrCodeInvalidConfig, "%s: tolerance must be finite", name)
	}
	if tol <= 0 {
		return New(ErrCodeInvalidConfig, "%s: tolerance must be positive, got %g", name, tol)
	}
	return nil
}

// ValidateGapDistance checks a gap-closing buffer distance in metres.
// Zero disables expand/shrink but keeps the cleanup pass.
func ValidateGapDistance(name string, d float64) error {
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return New(ErrCodeInvalidConfig, "%s: gap_close_distance must be finite", name)
	}
	if d < 0 {
		return New(ErrCodeInvalidConfig, "%s: gap_close_distance cannot be negative, got %g", name, d)
	}
	return nil
}

// ValidateThreshold checks a fragment area threshold.
// Zero disables fragment filtering; otherwise the value must lie in (0, 1).
func ValidateThreshold(name string, t float64) error {
	if math.IsNaN(t) || t < 0 || t >= 1 {
		return New(ErrCodeInvalidConfig, "%s: fragment_threshold must be in [0, 1), got %g", name, t)
	}
	return nil
}

// ValidateZoomRange checks a renderer zoom range.
func ValidateZoomRange(name string, zmin, zmax int) error {
	if zmin < 0 || zmax > 24 {
		return New(ErrCodeInvalidConfig, "%s: zoom range [%d, %d] outside [0, 24]", name, zmin, zmax)
	}
	if zmin >= zmax {
		return New(ErrCodeInvalidConfig, "%s: zoom_min (%d) must be less than zoom_max (%d)", name, zmin, zmax)
	}
	return nil
}

// attributeNameRegex matches attribute names accepted in schema mappings.
var attributeNameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateAttributeName validates a canonical or source attribute name.
func ValidateAttributeName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidConfig, "attribute name cannot be empty")
	}
	if len(name) > 64 {
		return New(ErrCodeInvalidConfig, "attribute name too long (max 64 characters): %q", name)
	}
	if !attributeNameRegex.MatchString(name) {
		return New(ErrCodeInvalidConfig, "invalid attribute name: %q", name)
	}
	return nil
}

// ValidateOutputName validates a level output file name.
// It must be a plain base name so levels cannot write outside the output directory.
//
// Validation rules:
//   - Name cannot be empty
//   - No path separators or traversal sequences
//   - No control characters
//   - Must end in .geojson or .json
func ValidateOutputName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidPath, "output name cannot be empty")
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "output name contains invalid characters")
		}
	}

	if strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		return New(ErrCodeInvalidPath, "output name must be a plain file name: %q", name)
	}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".geojson", ".json":
		return nil
	}
	return New(ErrCodeInvalidPath, "output name must end in .geojson or .json: %q", name)
}
