// Package sdfx implements the kernel.Kernel interface using the
// github.com/deadsy/sdfx SDF-based CAD library.
package sdfx

import (
	"context"
	"math"

	"github.com/chazu/fasten/pkg/catalog"
	"github.com/chazu/fasten/pkg/kernel"
	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Compile-time interface check.
var _ kernel.Kernel = (*SdfxKernel)(nil)

// DefaultMeshCells controls marching cubes tessellation resolution.
const DefaultMeshCells = 200

// sdfxSolid wraps an sdf.SDF3 to implement kernel.Solid.
type sdfxSolid struct {
	s sdf.SDF3
}

// BoundingBox returns the axis-aligned bounding box.
func (s *sdfxSolid) BoundingBox() (min, max [3]float64) {
	bb := s.s.BoundingBox()
	min = [3]float64{bb.Min.X, bb.Min.Y, bb.Min.Z}
	max = [3]float64{bb.Max.X, bb.Max.Y, bb.Max.Z}
	return min, max
}

// SdfxKernel implements kernel.Kernel using sdfx.
type SdfxKernel struct {
	meshCells int
}

// Option configures an SdfxKernel.
type Option func(*SdfxKernel)

// WithMeshCells sets the marching cubes resolution used by ToMesh.
func WithMeshCells(n int) Option {
	return func(k *SdfxKernel) {
		if n > 0 {
			k.meshCells = n
		}
	}
}

// New returns a new SdfxKernel.
func New(opts ...Option) *SdfxKernel {
	k := &SdfxKernel{meshCells: DefaultMeshCells}
	for _, o := range opts {
		o(k)
	}
	return k
}

// unwrap extracts the underlying sdf.SDF3 from a kernel.Solid.
func unwrap(s kernel.Solid) sdf.SDF3 {
	return s.(*sdfxSolid).s
}

// wrap creates a kernel.Solid from an sdf.SDF3.
func wrap(s sdf.SDF3) kernel.Solid {
	return &sdfxSolid{s: s}
}

// Build generates the fastener shape described by spec.
func (k *SdfxKernel) Build(ctx context.Context, spec kernel.Spec) (kernel.Solid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	var (
		s   sdf.SDF3
		err error
	)
	switch spec.Category {
	case catalog.Screw:
		s, err = screw(spec)
	case catalog.Washer:
		s, err = washer(spec)
	case catalog.Nut:
		s, err = nut(spec)
	case catalog.Rod:
		s, err = shank(spec, spec.Length)
	default:
		return nil, &kernel.BuildError{Spec: spec, Reason: "unsupported category"}
	}
	if err != nil {
		return nil, &kernel.BuildError{Spec: spec, Reason: "sdfx", Err: err}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return wrap(s), nil
}

// Place rotates local +Z onto p.Axis and moves the origin to p.Origin.
func (k *SdfxKernel) Place(s kernel.Solid, p kernel.Placement) kernel.Solid {
	origin := v3.Vec{X: p.Origin[0], Y: p.Origin[1], Z: p.Origin[2]}
	axis := v3.Vec{X: p.Axis[0], Y: p.Axis[1], Z: p.Axis[2]}

	m := sdf.Translate3d(origin)
	if axis.Length() > 0 {
		m = m.Mul(rotateZTo(axis))
	}
	return wrap(sdf.Transform3D(unwrap(s), m))
}

// rotateZTo returns the rotation taking +Z onto axis. The parallel and
// anti-parallel cases are handled here since the cross product vanishes.
func rotateZTo(axis v3.Vec) sdf.M44 {
	u := axis.Normalize()
	switch {
	case u.Z > 1-1e-9:
		return sdf.Identity3d()
	case u.Z < -1+1e-9:
		return sdf.RotateX(math.Pi)
	}
	return sdf.RotateToVector(v3.Vec{Z: 1}, u)
}

// ToMesh converts a solid to a triangle mesh using marching cubes.
func (k *SdfxKernel) ToMesh(s kernel.Solid) (*kernel.Mesh, error) {
	sdf3 := unwrap(s)

	renderer := render.NewMarchingCubesUniform(k.meshCells)
	triangles := render.ToTriangles(sdf3, renderer)

	numTri := len(triangles)
	numVerts := numTri * 3

	vertices := make([]float32, 0, numVerts*3)
	normals := make([]float32, 0, numVerts*3)
	indices := make([]uint32, 0, numVerts)

	for i, tri := range triangles {
		n := tri.Normal()
		nx := float32(n.X)
		ny := float32(n.Y)
		nz := float32(n.Z)

		for j := 0; j < 3; j++ {
			v := tri[j]
			vertices = append(vertices, float32(v.X), float32(v.Y), float32(v.Z))
			normals = append(normals, nx, ny, nz)
			indices = append(indices, uint32(i*3+j))
		}
	}

	return &kernel.Mesh{
		Vertices: vertices,
		Normals:  normals,
		Indices:  indices,
	}, nil
}
