// Package attach describes attachment targets: weak references to a face
// or edge on another document object, and the geometry read through them
// for auto-sizing and placement.
package attach

import (
	"errors"
	"fmt"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// ErrInvalidAttachment is returned when a target reference cannot be
// dereferenced. Callers recover by treating the fastener as unattached.
var ErrInvalidAttachment = errors.New("invalid attachment")

// ElementKind distinguishes faces from edges.
type ElementKind int

const (
	ElementFace ElementKind = iota
	ElementEdge
)

func (k ElementKind) String() string {
	switch k {
	case ElementFace:
		return "face"
	case ElementEdge:
		return "edge"
	default:
		return "unknown"
	}
}

// MarshalText encodes the kind by name.
func (k ElementKind) MarshalText() ([]byte, error) {
	switch k {
	case ElementFace, ElementEdge:
		return []byte(k.String()), nil
	}
	return nil, fmt.Errorf("attach: unknown element kind %d", int(k))
}

// UnmarshalText decodes a kind name.
func (k *ElementKind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "face":
		*k = ElementFace
	case "edge":
		*k = ElementEdge
	default:
		return fmt.Errorf("attach: unknown element kind %q", b)
	}
	return nil
}

// TargetRef names an element on another object. It does not own the
// object; the referenced object may disappear at any time.
type TargetRef struct {
	Object  string `json:"object"`
	Element string `json:"element"` // e.g. "Edge3", "Face1"
}

func (r TargetRef) String() string {
	return r.Object + "." + r.Element
}

// IsZero reports whether the reference is empty.
func (r TargetRef) IsZero() bool {
	return r.Object == "" && r.Element == ""
}

// Feature is the geometry of an attachment element.
//
// Origin is the center of a circular edge or a point on a face; Normal is
// the outward direction the fastener head faces. Inner and outer radii
// describe the circular feature used for auto-sizing: a plain hole edge has
// equal radii, an annular face (a boss or counterbore) has distinct ones.
// Zero radii mean the element has no measurable circular feature.
type Feature struct {
	Kind        ElementKind `json:"kind"`
	Origin      v3.Vec      `json:"origin"`
	Normal      v3.Vec      `json:"normal"`
	InnerRadius float64     `json:"inner_radius,omitempty"`
	OuterRadius float64     `json:"outer_radius,omitempty"`
}

// Diameter returns the measured diameter of the outer or inner circular
// feature, or 0 when the element is not circular.
func (f *Feature) Diameter(matchOuter bool) float64 {
	if f == nil {
		return 0
	}
	r := f.InnerRadius
	if matchOuter {
		r = f.OuterRadius
	}
	if r <= 0 {
		// Single-radius features measure the same either way.
		r = max(f.InnerRadius, f.OuterRadius)
	}
	return 2 * r
}

// Validate checks that the feature has a usable direction.
func (f *Feature) Validate() error {
	if f.Normal.Length() == 0 {
		return fmt.Errorf("%w: %s has a zero normal", ErrInvalidAttachment, f.Kind)
	}
	if f.InnerRadius < 0 || f.OuterRadius < 0 {
		return fmt.Errorf("%w: %s has a negative radius", ErrInvalidAttachment, f.Kind)
	}
	return nil
}

// Lookup dereferences target references. Implementations return an error
// wrapping ErrInvalidAttachment when the object or element is missing.
type Lookup interface {
	Feature(ref TargetRef) (*Feature, error)
}

// LookupFunc adapts a function to the Lookup interface.
type LookupFunc func(ref TargetRef) (*Feature, error)

// Feature calls f(ref).
func (f LookupFunc) Feature(ref TargetRef) (*Feature, error) {
	return f(ref)
}
