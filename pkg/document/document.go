// Package document holds the objects fasteners attach to and the fastener
// objects themselves, and drives their recompute cycles.
package document

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/chazu/fasten/pkg/attach"
	"github.com/chazu/fasten/pkg/fastener"
	"golang.org/x/sync/errgroup"
)

// Body is a named object with attachable elements ("Face1", "Edge3", ...).
type Body struct {
	Name     string                     `json:"name"`
	Features map[string]*attach.Feature `json:"features"`
}

// AddFeature registers an element on the body.
func (b *Body) AddFeature(element string, f attach.Feature) error {
	if element == "" {
		return fmt.Errorf("body %s: empty element name", b.Name)
	}
	if err := f.Validate(); err != nil {
		return fmt.Errorf("body %s element %s: %w", b.Name, element, err)
	}
	if _, dup := b.Features[element]; dup {
		return fmt.Errorf("body %s: duplicate element %q", b.Name, element)
	}
	b.Features[element] = &f
	return nil
}

// Elements returns the element names in sorted order.
func (b *Body) Elements() []string {
	names := make([]string, 0, len(b.Features))
	for n := range b.Features {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Document owns bodies and fastener instances. Fasteners are kept in
// creation order.
type Document struct {
	bodies    map[string]*Body
	bodyOrder []string
	fasteners []*fastener.Instance
	index     map[string]*fastener.Instance
}

var _ attach.Lookup = (*Document)(nil)

// New creates an empty document.
func New() *Document {
	return &Document{
		bodies: make(map[string]*Body),
		index:  make(map[string]*fastener.Instance),
	}
}

func (d *Document) nameTaken(name string) bool {
	_, body := d.bodies[name]
	_, fast := d.index[name]
	return body || fast
}

// AddBody creates a body. Names are unique across bodies and fasteners.
func (d *Document) AddBody(name string) (*Body, error) {
	if name == "" {
		return nil, errors.New("document: empty body name")
	}
	if d.nameTaken(name) {
		return nil, fmt.Errorf("document: name %q already in use", name)
	}
	b := &Body{Name: name, Features: make(map[string]*attach.Feature)}
	d.bodies[name] = b
	d.bodyOrder = append(d.bodyOrder, name)
	return b, nil
}

// Body returns the named body, or nil.
func (d *Document) Body(name string) *Body {
	return d.bodies[name]
}

// Bodies returns all bodies in creation order.
func (d *Document) Bodies() []*Body {
	out := make([]*Body, 0, len(d.bodyOrder))
	for _, n := range d.bodyOrder {
		out = append(out, d.bodies[n])
	}
	return out
}

// AddFastener adds inst to the document.
func (d *Document) AddFastener(inst *fastener.Instance) error {
	if inst.Name == "" {
		return errors.New("document: empty fastener name")
	}
	if d.nameTaken(inst.Name) {
		return fmt.Errorf("document: name %q already in use", inst.Name)
	}
	d.fasteners = append(d.fasteners, inst)
	d.index[inst.Name] = inst
	return nil
}

// Fastener returns the named fastener, or nil.
func (d *Document) Fastener(name string) *fastener.Instance {
	return d.index[name]
}

// MustFastener returns the named fastener, or panics.
func (d *Document) MustFastener(name string) *fastener.Instance {
	inst := d.Fastener(name)
	if inst == nil {
		panic(fmt.Sprintf("document: no fastener named %q", name))
	}
	return inst
}

// Fasteners returns all fasteners in creation order.
func (d *Document) Fasteners() []*fastener.Instance {
	out := make([]*fastener.Instance, len(d.fasteners))
	copy(out, d.fasteners)
	return out
}

// UniqueName returns base if it is free, otherwise base followed by the
// first free three-digit suffix ("Screw001").
func (d *Document) UniqueName(base string) string {
	if !d.nameTaken(base) {
		return base
	}
	for i := 1; ; i++ {
		name := fmt.Sprintf("%s%03d", base, i)
		if !d.nameTaken(name) {
			return name
		}
	}
}

// Feature implements attach.Lookup.
func (d *Document) Feature(ref attach.TargetRef) (*attach.Feature, error) {
	b := d.bodies[ref.Object]
	if b == nil {
		return nil, fmt.Errorf("%w: no object %q", attach.ErrInvalidAttachment, ref.Object)
	}
	f := b.Features[ref.Element]
	if f == nil {
		return nil, fmt.Errorf("%w: object %q has no element %q", attach.ErrInvalidAttachment, ref.Object, ref.Element)
	}
	return f, nil
}

// Restore runs the restoring pass on every fastener: bookkeeping fields
// are synthesized and persisted values become the previous state. Nothing
// is built.
func (d *Document) Restore(ctx context.Context, r *fastener.Recomputer) error {
	var errs []error
	for _, inst := range d.fasteners {
		if err := r.Recompute(ctx, inst, true); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recompute runs a recompute cycle for every fastener in creation order.
// A failing instance does not stop the others; all failures are joined.
func (d *Document) Recompute(ctx context.Context, r *fastener.Recomputer) error {
	var errs []error
	for _, inst := range d.fasteners {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := r.Recompute(ctx, inst, false); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RecomputeParallel recomputes fasteners concurrently with at most workers
// cycles in flight. Instances resolving to the same shape still share a
// single build. The document must not be modified while this runs.
func (d *Document) RecomputeParallel(ctx context.Context, r *fastener.Recomputer, workers int) error {
	if workers <= 0 {
		workers = 1
	}
	errs := make([]error, len(d.fasteners))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, inst := range d.fasteners {
		g.Go(func() error {
			errs[i] = r.Recompute(ctx, inst, false)
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}
