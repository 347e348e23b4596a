package sdfx

import (
	"github.com/chazu/fasten/pkg/catalog"
	"github.com/chazu/fasten/pkg/kernel"
	"github.com/deadsy/sdfx/obj"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Proportions are multiples of the nominal diameter d. They approximate the
// ISO tables closely enough for placement previews.
type headDims struct {
	radius float64
	height float64
}

var heads = map[catalog.HeadStyle]headDims{
	catalog.HeadHex:         {radius: 0.9, height: 0.7},
	catalog.HeadSocket:      {radius: 0.75, height: 1.0},
	catalog.HeadButton:      {radius: 0.875, height: 0.55},
	catalog.HeadCheese:      {radius: 0.8, height: 0.6},
	catalog.HeadPan:         {radius: 1.0, height: 0.6},
	catalog.HeadCountersunk: {radius: 1.0, height: 0.6},
}

// washerOuter is the outside diameter factor per washer series.
var washerOuter = map[string]float64{
	"ISO7092":   1.75,
	"ISO7093-1": 3.0,
	"ISO7094":   3.5,
}

// nutHeight is the height factor per nut type.
var nutHeight = map[string]float64{
	"ISO4035": 0.5,
	"DIN985":  1.0,
}

// screw builds a head on z >= 0 with the shank along -Z. Countersunk heads
// are the exception: they sit flush below z = 0 and count toward the length.
func screw(spec kernel.Spec) (sdf.SDF3, error) {
	d := spec.Diameter
	dims, ok := heads[spec.Head]
	if !ok {
		return shank(spec, spec.Length)
	}
	r := dims.radius * d
	h := dims.height * d

	if spec.Head == catalog.HeadCountersunk {
		if h >= spec.Length {
			h = spec.Length / 2
		}
		head, err := sdf.Cone3D(h, d/2, r, 0)
		if err != nil {
			return nil, err
		}
		head = sdf.Transform3D(head, sdf.Translate3d(v3.Vec{Z: -h / 2}))
		body, err := shank(spec, spec.Length-h)
		if err != nil {
			return nil, err
		}
		body = sdf.Transform3D(body, sdf.Translate3d(v3.Vec{Z: -h}))
		return sdf.Union3D(head, body), nil
	}

	var (
		head sdf.SDF3
		err  error
	)
	if spec.Head == catalog.HeadHex {
		head, err = obj.HexHead3D(r, h, "t")
	} else {
		head, err = sdf.Cylinder3D(h, r, 0.1*h)
	}
	if err != nil {
		return nil, err
	}
	head = sdf.Transform3D(head, sdf.Translate3d(v3.Vec{Z: h / 2}))

	body, err := shank(spec, spec.Length)
	if err != nil {
		return nil, err
	}
	return sdf.Union3D(head, body), nil
}

// shank builds a cylinder or an external thread spanning z in [-length, 0].
func shank(spec kernel.Spec, length float64) (sdf.SDF3, error) {
	r := spec.Diameter / 2
	var (
		s   sdf.SDF3
		err error
	)
	if spec.Thread == catalog.Real {
		var profile sdf.SDF2
		profile, err = sdf.ISOThread(r, spec.Pitch, true)
		if err != nil {
			return nil, err
		}
		s, err = sdf.Screw3D(profile, length, 0, spec.Pitch, 1)
	} else {
		s, err = sdf.Cylinder3D(length, r, 0)
	}
	if err != nil {
		return nil, err
	}
	return sdf.Transform3D(s, sdf.Translate3d(v3.Vec{Z: -length / 2})), nil
}

// washer builds a flat ring spanning z in [0, thickness].
func washer(spec kernel.Spec) (sdf.SDF3, error) {
	d := spec.Diameter
	outer, ok := washerOuter[spec.Type]
	if !ok {
		outer = 2.0
	}
	t := 0.16 * d
	if t < 0.3 {
		t = 0.3
	}
	s, err := obj.Washer3D(&obj.WasherParms{
		Thickness:   t,
		InnerRadius: 0.54 * d,
		OuterRadius: outer * d / 2,
	})
	if err != nil {
		return nil, err
	}
	return sdf.Transform3D(s, sdf.Translate3d(v3.Vec{Z: t / 2})), nil
}

// nut builds a hex prism with a bore spanning z in [0, height].
func nut(spec kernel.Spec) (sdf.SDF3, error) {
	d := spec.Diameter
	factor, ok := nutHeight[spec.Type]
	if !ok {
		factor = 0.8
	}
	h := factor * d

	body, err := obj.HexHead3D(0.9*d, h, "")
	if err != nil {
		return nil, err
	}

	var bore sdf.SDF3
	if spec.Thread == catalog.Real {
		var profile sdf.SDF2
		profile, err = sdf.ISOThread(d/2, spec.Pitch, false)
		if err != nil {
			return nil, err
		}
		bore, err = sdf.Screw3D(profile, h, 0, spec.Pitch, 1)
	} else {
		bore, err = sdf.Cylinder3D(h*1.01, d/2, 0)
	}
	if err != nil {
		return nil, err
	}

	s := sdf.Difference3D(body, bore)
	return sdf.Transform3D(s, sdf.Translate3d(v3.Vec{Z: h / 2})), nil
}
