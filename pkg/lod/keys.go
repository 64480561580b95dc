package lod

import (
	"slices"
	"strings"

	"github.com/matzehuels/geolod/pkg/errors"
)

// KeySpec is the ordered list of attributes that identifies a coarser
// region.
type KeySpec []string

// Hierarchy keys.
var (
	ProvinceKey = KeySpec{AttrProvinceCode, AttrProvinceName}
	DistrictKey = KeySpec{AttrProvinceCode, AttrProvinceName, AttrDistrictCode, AttrDistrictName}
)

// KeyFor returns the hierarchy key whose groups form level l, or nil for
// kecamatan, which is never built by merging.
func KeyFor(l AdminLevel) KeySpec {
	switch l {
	case Kabupaten:
		return DistrictKey
	case Provinsi:
		return ProvinceKey
	}
	return nil
}

// GroupKey is the tuple of attribute values of one group.
type GroupKey []string

// String joins the values with "/". It is used as the merged feature's ID.
func (k GroupKey) String() string { return strings.Join(k, "/") }

// Compare orders keys lexicographically by tuple element.
func (k GroupKey) Compare(o GroupKey) int { return slices.Compare(k, o) }

// Of returns the key tuple of f. A missing or empty key attribute yields an
// error with code SCHEMA_MISMATCH.
func (s KeySpec) Of(f *Feature) (GroupKey, error) {
	key := make(GroupKey, len(s))
	for i, attr := range s {
		v := f.Attr(attr)
		if v == "" {
			return nil, errors.New(errors.ErrCodeSchemaMismatch, "feature %s has no %s", f.ID, attr)
		}
		key[i] = v
	}
	return key, nil
}

// Group is the set of features sharing one key.
type Group struct {
	Key     GroupKey
	Members []*Feature
}

// GroupBy partitions features by key. Groups come back sorted by key tuple
// and members keep their input order. Every distinct key present yields
// exactly one group, so no group is ever empty. Features whose key cannot be
// read are returned as failures.
func GroupBy(features []*Feature, spec KeySpec) ([]Group, []Failure) {
	index := make(map[string]int)
	var groups []Group
	var failures []Failure

	for _, f := range features {
		key, err := spec.Of(f)
		if err != nil {
			failures = append(failures, Failure{Subject: f.ID, Err: err})
			continue
		}
		id := strings.Join(key, "\x00")
		i, ok := index[id]
		if !ok {
			i = len(groups)
			index[id] = i
			groups = append(groups, Group{Key: key})
		}
		groups[i].Members = append(groups[i].Members, f)
	}

	slices.SortFunc(groups, func(a, b Group) int { return a.Key.Compare(b.Key) })
	return groups, failures
}
