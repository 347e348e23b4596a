// Package tessellate turns the fasteners of a document into triangle meshes
// using a geometry kernel. One mesh is produced per built fastener.
package tessellate

import (
	"context"
	"fmt"

	"github.com/chazu/fasten/pkg/document"
	"github.com/chazu/fasten/pkg/fastener"
	"github.com/chazu/fasten/pkg/kernel"
	"golang.org/x/sync/errgroup"
)

// Tessellate meshes every fastener of doc that has a shape, in document
// order, applying each fastener's placement. Fasteners never recomputed are
// skipped. At most workers meshes are generated concurrently (1 when
// workers <= 0). The tessellator never mutates the document.
func Tessellate(ctx context.Context, doc *document.Document, k kernel.Kernel, workers int) ([]*kernel.Mesh, error) {
	if doc == nil {
		return nil, nil
	}
	if workers <= 0 {
		workers = 1
	}

	var built []*fastener.Instance
	for _, inst := range doc.Fasteners() {
		if inst.Shape != nil {
			built = append(built, inst)
		}
	}

	meshes := make([]*kernel.Mesh, len(built))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, inst := range built {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			m, err := meshInstance(k, inst)
			if err != nil {
				return err
			}
			meshes[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return meshes, nil
}

// meshInstance meshes one placed fastener. The part name is the label,
// falling back to the object name.
func meshInstance(k kernel.Kernel, inst *fastener.Instance) (*kernel.Mesh, error) {
	mesh, err := k.ToMesh(inst.Solid(k))
	if err != nil {
		return nil, fmt.Errorf("tessellate: ToMesh failed for %s: %w", inst.Name, err)
	}
	mesh.PartName = inst.Label
	if mesh.PartName == "" {
		mesh.PartName = inst.Name
	}
	return mesh, nil
}
