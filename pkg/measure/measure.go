// Package measure infers a catalog diameter from attachment geometry.
package measure

import (
	"math"

	"github.com/chazu/fasten/pkg/attach"
	"github.com/chazu/fasten/pkg/catalog"
)

// Measurer picks the listed diameter whose nominal size is closest to the
// measured feature.
type Measurer struct {
	reg *catalog.Registry
}

// New returns a Measurer that reads nominal sizes from reg.
func New(reg *catalog.Registry) *Measurer {
	return &Measurer{reg: reg}
}

// MeasureDiameter returns the diameter of ft that best fits f. Without a
// feature, or when the feature has no circular geometry, the type default
// is returned. matchOuter selects the outer instead of the inner radius.
// Ties go to the smaller diameter.
func (m *Measurer) MeasureDiameter(ft *catalog.FastenerType, f *attach.Feature, matchOuter bool) (string, error) {
	if f == nil {
		return ft.DefaultDiameter(), nil
	}
	if err := f.Validate(); err != nil {
		return "", err
	}
	measured := f.Diameter(matchOuter)
	if measured <= 0 {
		return ft.DefaultDiameter(), nil
	}

	best := ""
	bestDiff := math.Inf(1)
	for _, d := range ft.Diameters()[1:] {
		size, ok := m.reg.Size(d)
		if !ok {
			continue
		}
		if diff := math.Abs(size.Nominal - measured); diff < bestDiff {
			best, bestDiff = d, diff
		}
	}
	if best == "" {
		return ft.DefaultDiameter(), nil
	}
	return best, nil
}
