// Package placement aligns a built fastener with its attachment target.
package placement

import (
	"github.com/chazu/fasten/pkg/attach"
	"github.com/chazu/fasten/pkg/kernel"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Compute returns the placement that puts a fastener's local origin on the
// feature origin with local +Z along the feature normal. invert flips the
// normal; offset moves the origin along the resolved normal. A nil feature
// yields ok=false: the caller keeps whatever placement it already has.
func Compute(f *attach.Feature, invert bool, offset float64) (p kernel.Placement, ok bool) {
	if f == nil {
		return p, false
	}

	n := v3.Vec{Z: 1}
	if f.Normal.Length() > 0 {
		n = f.Normal.Normalize()
	}
	if invert {
		n = n.MulScalar(-1)
	}
	origin := f.Origin.Add(n.MulScalar(offset))

	return kernel.Placement{
		Origin: [3]float64{origin.X, origin.Y, origin.Z},
		Axis:   [3]float64{n.X, n.Y, n.Z},
	}, true
}
