// Package kernel defines the abstract geometry kernel the fastener engine
// builds shapes with. Implementations (sdfx) turn a resolved fastener
// specification into an opaque solid, apply placements, and tessellate.
package kernel

import (
	"context"
	"errors"
	"fmt"

	"github.com/chazu/fasten/pkg/catalog"
)

// ErrBuildFailure is matched by every error a kernel returns when it cannot
// produce a shape for the given parameters.
var ErrBuildFailure = errors.New("fastener build failed")

// Solid is an opaque handle to a geometry kernel solid.
// Implementations wrap their internal representation.
type Solid interface {
	// BoundingBox returns the axis-aligned bounding box.
	BoundingBox() (min, max [3]float64)
}

// Spec is the fully resolved geometry request for one fastener shape.
// Lengths and diameters are in mm.
//
// Shapes are built in a local frame where +Z is the outward normal of the
// attachment: screw heads sit on z >= 0 with the shank along -Z, washers and
// nuts occupy z in [0, thickness], rods extend along -Z.
type Spec struct {
	Category catalog.Category
	Type     string
	Head     catalog.HeadStyle
	Diameter float64 // nominal major diameter
	Pitch    float64 // 0 for unthreaded parts
	Length   float64 // 0 for types without length
	Thread   catalog.ThreadStyle
}

// Validate rejects degenerate specifications.
func (s Spec) Validate() error {
	if s.Diameter <= 0 {
		return &BuildError{Spec: s, Reason: fmt.Sprintf("diameter %v must be positive", s.Diameter)}
	}
	switch s.Category {
	case catalog.Screw, catalog.Rod:
		if s.Length <= 0 {
			return &BuildError{Spec: s, Reason: fmt.Sprintf("length %v must be positive", s.Length)}
		}
	}
	if s.Thread == catalog.Real && s.Pitch <= 0 {
		return &BuildError{Spec: s, Reason: "real thread requested without a pitch"}
	}
	return nil
}

// BuildError reports why a shape could not be generated.
type BuildError struct {
	Spec   Spec
	Reason string
	Err    error
}

func (e *BuildError) Error() string {
	msg := fmt.Sprintf("%s: %s %s d=%g l=%g: %s", ErrBuildFailure, e.Spec.Category, e.Spec.Type, e.Spec.Diameter, e.Spec.Length, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *BuildError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrBuildFailure) succeed.
func (e *BuildError) Is(target error) bool {
	return target == ErrBuildFailure
}

// Placement is a rigid transform: rotate the local +Z axis onto Axis, then
// translate the local origin to Origin. A zero Axis means no rotation.
type Placement struct {
	Origin [3]float64 `json:"origin"`
	Axis   [3]float64 `json:"axis"`
}

// Identity is the placement that leaves a solid where it was built.
var Identity = Placement{Axis: [3]float64{0, 0, 1}}

// Kernel is the abstract geometry kernel interface.
type Kernel interface {
	// Build generates the shape for spec. It returns a *BuildError for
	// parameters it cannot realize and ctx.Err() when cancelled.
	Build(ctx context.Context, spec Spec) (Solid, error)

	// Place returns a new solid with p applied. The input is not modified,
	// so cached shapes can be shared between placements.
	Place(s Solid, p Placement) Solid

	// ToMesh tessellates a solid.
	ToMesh(s Solid) (*Mesh, error)
}
