package io

import (
	"slices"
	"strings"

	"github.com/matzehuels/geolod/pkg/errors"
	"github.com/matzehuels/geolod/pkg/lod"
)

// SchemaMapping renames source attributes to the canonical hierarchy names.
type SchemaMapping struct {
	// Fields maps a canonical name to the source names accepted for it, in
	// order of preference. The canonical name itself is always accepted first.
	Fields map[string][]string `toml:"fields" json:"fields"`

	// Required lists canonical attributes every feature must carry.
	Required []string `toml:"required" json:"required"`

	// IDField is the canonical attribute used as feature ID. Features without
	// it fall back to the GeoJSON feature id and then to their position.
	IDField string `toml:"id_field" json:"id_field"`
}

// DefaultMapping accepts the BNPB administrative boundary columns.
func DefaultMapping() SchemaMapping {
	return SchemaMapping{
		Fields: map[string][]string{
			lod.AttrProvinceName:    {"nama_prop"},
			lod.AttrProvinceCode:    {"kode_prop_"},
			lod.AttrDistrictName:    {"nama_kab"},
			lod.AttrDistrictCode:    {"kode_kab_s"},
			lod.AttrSubdistrictName: {"nama_kec"},
			lod.AttrSubdistrictCode: {"kode_kec_s"},
		},
		Required: slices.Clone(lod.HierarchyAttrs),
		IDField:  lod.AttrSubdistrictCode,
	}
}

// Validate checks that every attribute name is well formed and that no
// source name is claimed by two canonical names.
func (m SchemaMapping) Validate() error {
	owner := make(map[string]string)
	for canonical, sources := range m.Fields {
		if err := errors.ValidateAttributeName(canonical); err != nil {
			return err
		}
		for _, src := range sources {
			if err := errors.ValidateAttributeName(src); err != nil {
				return err
			}
			if prev, ok := owner[src]; ok && prev != canonical {
				return errors.New(errors.ErrCodeInvalidConfig, "source attribute %q mapped to both %q and %q", src, prev, canonical)
			}
			owner[src] = canonical
		}
	}
	for _, r := range m.Required {
		if err := errors.ValidateAttributeName(r); err != nil {
			return err
		}
	}
	if m.IDField != "" {
		return errors.ValidateAttributeName(m.IDField)
	}
	return nil
}

// Apply returns a copy of props with source attributes renamed to their
// canonical names. Code attributes (kode_*) are normalized to strings. A
// required attribute that is missing or empty yields SCHEMA_MISMATCH.
func (m SchemaMapping) Apply(props map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = v
	}

	for _, canonical := range m.canonicalNames() {
		var value any
		found := false
		for _, name := range append([]string{canonical}, m.Fields[canonical]...) {
			v, ok := out[name]
			if name != canonical {
				delete(out, name)
			}
			if !ok || v == nil || found {
				continue
			}
			value, found = v, true
		}
		if found {
			out[canonical] = value
		}
	}

	for k, v := range out {
		if strings.HasPrefix(k, "kode_") && v != nil {
			out[k] = lod.AttrString(v)
		}
	}

	var missing []string
	for _, r := range m.Required {
		if lod.AttrString(out[r]) == "" {
			missing = append(missing, r)
		}
	}
	if len(missing) > 0 {
		return nil, errors.New(errors.ErrCodeSchemaMismatch, "missing required attributes: %s", strings.Join(missing, ", "))
	}
	return out, nil
}

func (m SchemaMapping) canonicalNames() []string {
	names := make([]string, 0, len(m.Fields))
	for k := range m.Fields {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}
