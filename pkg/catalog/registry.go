package catalog

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"sync"
)

// Registry maps fastener type identifiers to catalog entries.
type Registry struct {
	types map[string]*FastenerType
	order []string
	sizes map[string]Size
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the registry built from the embedded catalog tables.
// The embedded data is validated by the package tests, so a failure here
// is a programming error.
func Default() *Registry {
	defaultOnce.Do(func() {
		t, err := ParseTables(defaultTables)
		if err != nil {
			panic(err)
		}
		r, err := New(t)
		if err != nil {
			panic(err)
		}
		defaultRegistry = r
	})
	return defaultRegistry
}

// New validates the tables and builds a registry. Diameter lists get the
// Auto sentinel prepended; length lists are sorted ascending.
func New(t Tables) (*Registry, error) {
	r := &Registry{
		types: make(map[string]*FastenerType, len(t.Types)),
		sizes: make(map[string]Size, len(t.Sizes)),
	}

	for name, s := range t.Sizes {
		if name == Auto {
			return nil, fmt.Errorf("catalog: size name %q is reserved", Auto)
		}
		if s.Nominal <= 0 {
			return nil, fmt.Errorf("catalog: size %q: nominal diameter must be positive", name)
		}
		if s.Pitch < 0 {
			return nil, fmt.Errorf("catalog: size %q: pitch must not be negative", name)
		}
		r.sizes[name] = Size{Name: name, Nominal: s.Nominal, Pitch: s.Pitch}
	}

	for _, spec := range t.Types {
		ft, err := r.buildType(spec, t.DefaultDiameter)
		if err != nil {
			return nil, err
		}
		if _, dup := r.types[ft.ID]; dup {
			return nil, fmt.Errorf("catalog: type %q defined twice", ft.ID)
		}
		r.types[ft.ID] = ft
		r.order = append(r.order, ft.ID)
	}

	for old, cur := range deprecatedTypes {
		if _, ok := r.types[cur]; !ok {
			// Tables without the remap target simply don't carry that standard.
			continue
		}
		if _, ok := deprecatedTypes[cur]; ok {
			return nil, fmt.Errorf("catalog: remap target %q of %q is itself deprecated", cur, old)
		}
	}

	return r, nil
}

func (r *Registry) buildType(spec TypeSpec, fallbackDefault string) (*FastenerType, error) {
	if spec.ID == "" {
		return nil, fmt.Errorf("catalog: type with empty id")
	}
	if _, deprecated := deprecatedTypes[spec.ID]; deprecated {
		return nil, fmt.Errorf("catalog: type %q is deprecated and cannot be registered", spec.ID)
	}
	cat, err := ParseCategory(spec.Category)
	if err != nil {
		return nil, fmt.Errorf("catalog: type %q: %w", spec.ID, err)
	}
	if len(spec.Diameters) == 0 {
		return nil, fmt.Errorf("catalog: type %q has no diameters", spec.ID)
	}

	ft := &FastenerType{
		ID:          spec.ID,
		Description: spec.Description,
		Group:       spec.Group,
		Category:    cat,
		Head:        HeadStyle(spec.Head),
		lengths:     make(map[string][]string),
	}
	switch cat {
	case Screw:
		ft.hasLength, ft.hasThread = true, true
	case Washer:
	case Nut:
		ft.hasThread = true
	case Rod:
		ft.hasLength, ft.hasThread, ft.isRod = true, true, true
	}
	if spec.Thread != nil {
		ft.hasThread = *spec.Thread
	}

	ft.diameters = make([]string, 0, len(spec.Diameters)+1)
	ft.diameters = append(ft.diameters, Auto)
	for _, d := range spec.Diameters {
		if d == Auto {
			return nil, fmt.Errorf("catalog: type %q: raw diameter list must not contain %q", spec.ID, Auto)
		}
		if _, ok := r.sizes[d]; !ok {
			return nil, fmt.Errorf("catalog: type %q: diameter %q has no size entry", spec.ID, d)
		}
		if slices.Contains(ft.diameters, d) {
			return nil, fmt.Errorf("catalog: type %q: diameter %q listed twice", spec.ID, d)
		}
		ft.diameters = append(ft.diameters, d)
	}

	for d, values := range spec.Lengths {
		if !ft.HasDiameter(d) {
			return nil, fmt.Errorf("catalog: type %q: lengths for unlisted diameter %q", spec.ID, d)
		}
		sorted := slices.Clone(values)
		slices.Sort(sorted)
		sorted = slices.Compact(sorted)
		texts := make([]string, 0, len(sorted))
		for _, v := range sorted {
			if v <= 0 {
				return nil, fmt.Errorf("catalog: type %q: diameter %q: length %v must be positive", spec.ID, d, v)
			}
			texts = append(texts, FormatLength(v))
		}
		ft.lengths[d] = texts
	}
	if ft.hasLength && !ft.isRod && len(ft.lengths) == 0 {
		return nil, fmt.Errorf("catalog: type %q: %s type without a length table", spec.ID, cat)
	}
	if !ft.hasLength && len(ft.lengths) > 0 {
		return nil, fmt.Errorf("catalog: type %q: %s type cannot carry lengths", spec.ID, cat)
	}

	ft.defaultDiameter = spec.Default
	if ft.defaultDiameter == "" && fallbackDefault != "" && ft.HasDiameter(fallbackDefault) {
		ft.defaultDiameter = fallbackDefault
	}
	if ft.defaultDiameter == "" {
		ft.defaultDiameter = ft.diameters[1]
	}
	if ft.defaultDiameter == Auto || !ft.HasDiameter(ft.defaultDiameter) {
		return nil, fmt.Errorf("catalog: type %q: default diameter %q is not listed", spec.ID, ft.defaultDiameter)
	}

	if spec.Fixed != "" {
		if !ft.HasDiameter(spec.Fixed) || spec.Fixed == Auto {
			return nil, fmt.Errorf("catalog: type %q: fixed diameter %q is not listed", spec.ID, spec.Fixed)
		}
		ft.fixedDiameter = spec.Fixed
	}

	return ft, nil
}

// FormatLength renders a length value the way catalog lengths are stored:
// shortest decimal form, no trailing zeros ("20", "2.5").
func FormatLength(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Lookup returns the catalog entry for id after backward-compatibility
// remapping.
func (r *Registry) Lookup(id string) (*FastenerType, error) {
	ft, ok := r.types[Canonical(id)]
	if !ok {
		return nil, &UnknownTypeError{ID: id}
	}
	return ft, nil
}

// MustLookup returns the catalog entry for id, or panics.
func (r *Registry) MustLookup(id string) *FastenerType {
	ft, err := r.Lookup(id)
	if err != nil {
		panic(err)
	}
	return ft
}

// Types returns every registered entry in table order.
func (r *Registry) Types() []*FastenerType {
	out := make([]*FastenerType, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.types[id])
	}
	return out
}

// Category returns the category of id.
func (r *Registry) Category(id string) (Category, error) {
	ft, err := r.Lookup(id)
	if err != nil {
		return 0, err
	}
	return ft.Category, nil
}

// Diameters returns the Auto-prefixed diameter list of id.
func (r *Registry) Diameters(id string) ([]string, error) {
	ft, err := r.Lookup(id)
	if err != nil {
		return nil, err
	}
	return ft.Diameters(), nil
}

// Lengths returns the ascending length list of id for diameter d.
func (r *Registry) Lengths(id, d string) ([]string, error) {
	ft, err := r.Lookup(id)
	if err != nil {
		return nil, err
	}
	return ft.Lengths(d), nil
}

// Has reports whether id carries capability c.
func (r *Registry) Has(id string, c Capability) (bool, error) {
	ft, err := r.Lookup(id)
	if err != nil {
		return false, err
	}
	return ft.Has(c), nil
}

// Size returns the nominal geometry of a diameter designation.
func (r *Registry) Size(d string) (Size, bool) {
	s, ok := r.sizes[d]
	return s, ok
}

// Closest applies the length selection policy for a catalog-length type:
// the smallest catalog length for the diameter that is >= the requested
// value, or the largest available length when none is. A diameter without
// a length table is first snapped to the nearest diameter that has one.
// A requested length that does not parse counts as zero, which selects the
// shortest length. Types without catalog lengths return their inputs.
func (r *Registry) Closest(id, diameter, length string) (string, string, error) {
	ft, err := r.Lookup(id)
	if err != nil {
		return "", "", err
	}
	if !ft.hasLength || ft.isRod {
		return diameter, length, nil
	}

	d := r.snapDiameter(ft, diameter)
	lengths := ft.lengths[d]
	if len(lengths) == 0 {
		return d, length, nil
	}

	want, err := strconv.ParseFloat(length, 64)
	if err != nil || math.IsNaN(want) {
		want = 0
	}
	for _, l := range lengths {
		v, _ := strconv.ParseFloat(l, 64)
		if v >= want {
			return d, l, nil
		}
	}
	return d, lengths[len(lengths)-1], nil
}

// snapDiameter returns d when it has a length table, otherwise the listed
// diameter with a length table whose nominal size is nearest to d's.
// Ties go to the earlier (smaller) entry.
func (r *Registry) snapDiameter(ft *FastenerType, d string) string {
	if len(ft.lengths[d]) > 0 {
		return d
	}
	ref, known := r.sizes[d]
	best := ""
	bestDiff := math.Inf(1)
	for _, cand := range ft.diameters[1:] {
		if len(ft.lengths[cand]) == 0 {
			continue
		}
		if !known {
			return cand
		}
		diff := math.Abs(r.sizes[cand].Nominal - ref.Nominal)
		if diff < bestDiff {
			best, bestDiff = cand, diff
		}
	}
	return best
}
