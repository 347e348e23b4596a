package fastener

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/chazu/fasten/pkg/attach"
	"github.com/chazu/fasten/pkg/catalog"
	"github.com/chazu/fasten/pkg/kernel"
	"github.com/chazu/fasten/pkg/label"
	"github.com/chazu/fasten/pkg/measure"
	"github.com/chazu/fasten/pkg/placement"
	"github.com/chazu/fasten/pkg/resolve"
	"github.com/chazu/fasten/pkg/shapecache"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultBuildTimeout bounds a single shape build.
const DefaultBuildTimeout = 30 * time.Second

// Recomputer runs recompute cycles. One Recomputer, and so one shape cache,
// is shared by every instance of a session.
type Recomputer struct {
	reg          *catalog.Registry
	resolver     *resolve.Resolver
	measurer     resolve.Measurer
	cache        *shapecache.Cache
	kernel       kernel.Kernel
	lookup       attach.Lookup
	log          *zap.Logger
	buildTimeout time.Duration
}

// Option configures a Recomputer.
type Option func(*Recomputer)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Recomputer) { r.log = l }
}

// WithBuildTimeout bounds each shape build. Zero disables the bound.
func WithBuildTimeout(d time.Duration) Option {
	return func(r *Recomputer) { r.buildTimeout = d }
}

// WithMeasurer replaces the default catalog-nearest measurer.
func WithMeasurer(m resolve.Measurer) Option {
	return func(r *Recomputer) { r.measurer = m }
}

// NewRecomputer returns a Recomputer. lookup dereferences attachment targets
// and may be nil when no instance is attached.
func NewRecomputer(reg *catalog.Registry, cache *shapecache.Cache, k kernel.Kernel, lookup attach.Lookup, opts ...Option) *Recomputer {
	r := &Recomputer{
		reg:          reg,
		cache:        cache,
		kernel:       k,
		lookup:       lookup,
		log:          zap.NewNop(),
		buildTimeout: DefaultBuildTimeout,
	}
	for _, o := range opts {
		o(r)
	}
	if r.log == nil {
		r.log = zap.NewNop()
	}
	if r.measurer == nil {
		r.measurer = measure.New(reg)
	}
	r.resolver = resolve.New(reg, r.measurer, r.log)
	return r
}

// Cache returns the shape cache shared by this Recomputer.
func (r *Recomputer) Cache() *shapecache.Cache { return r.cache }

// Kernel returns the geometry kernel shapes are built with.
func (r *Recomputer) Kernel() kernel.Kernel { return r.kernel }

// Recompute runs one cycle for inst. With restoring set only property
// bootstrapping happens: missing bookkeeping fields are filled, the option
// lists are refreshed and the persisted values are taken as the previously
// resolved state. No shape is built.
//
// On error the instance is left exactly as it was.
func (r *Recomputer) Recompute(ctx context.Context, inst *Instance, restoring bool) error {
	if restoring {
		return r.restore(inst)
	}

	feature := r.feature(inst)

	res, err := r.resolver.Resolve(inst.prev, inst.Props.request(), feature)
	if err != nil {
		return fmt.Errorf("fastener %s: %w", inst.Name, err)
	}

	spec, err := r.spec(res.Params)
	if err != nil {
		return fmt.Errorf("fastener %s: %w", inst.Name, err)
	}

	bctx := ctx
	if r.buildTimeout > 0 {
		var cancel context.CancelFunc
		bctx, cancel = context.WithTimeout(ctx, r.buildTimeout)
		defer cancel()
	}
	shape, err := r.cache.GetOrBuild(bctx, res.Params.Key(), func(ctx context.Context) (kernel.Solid, error) {
		return r.kernel.Build(ctx, spec)
	})
	if err != nil {
		return fmt.Errorf("fastener %s: %w", inst.Name, err)
	}

	ft := r.reg.MustLookup(res.Params.Type)
	lbl := label.Format(res.Params.Category, res.Params.Diameter, res.Params.Length, ft.ItemText())

	// Commit.
	inst.Props.apply(res.Request)
	params := res.Params
	inst.prev = &params
	inst.Shape = shape
	inst.Label = lbl
	inst.DiameterOptions = res.Diameters
	inst.LengthOptions = res.Lengths
	if p, ok := placement.Compute(feature, inst.Props.Invert, inst.Props.Offset); ok {
		inst.Placement = p
		inst.Placed = true
	}

	r.log.Debug("Recomputed fastener",
		zap.String("name", inst.Name),
		zap.String("label", lbl),
		zap.Stringer("key", params.Key()),
		zap.Bool("typeChanged", res.Changes.Type),
		zap.Bool("diameterChanged", res.Changes.Diameter))
	return nil
}

func (r *Recomputer) restore(inst *Instance) error {
	typ := catalog.Canonical(inst.Props.Type)
	ft, err := r.reg.Lookup(typ)
	if err != nil {
		return fmt.Errorf("fastener %s: %w", inst.Name, err)
	}
	inst.Props.Type = ft.ID

	if inst.Props.ImportName == "" {
		inst.Props.ImportName = inst.Name
	}
	if inst.Props.UUID == "" {
		inst.Props.UUID = uuid.NewString()
	}
	if inst.Props.Diameter == "" {
		inst.Props.Diameter = catalog.Auto
	}

	inst.DiameterOptions = ft.Diameters()
	inst.LengthOptions = nil
	if ft.Has(catalog.HasLength) && !ft.Has(catalog.IsRod) {
		inst.LengthOptions = ft.Lengths(inst.Props.Diameter)
	}

	thread := catalog.Simple
	if inst.Props.Thread && ft.Has(catalog.HasThread) {
		thread = catalog.Real
	}
	inst.prev = &resolve.Resolved{
		Category:   ft.Category,
		Type:       ft.ID,
		Diameter:   inst.Props.Diameter,
		Length:     inst.Props.Length,
		Thread:     thread,
		MatchOuter: inst.Props.MatchOuter,
	}
	return nil
}

// feature dereferences the attachment. Failures are logged and treated as
// unattached.
func (r *Recomputer) feature(inst *Instance) *attach.Feature {
	ref := inst.Props.BaseObject
	if ref == nil || ref.IsZero() || r.lookup == nil {
		return nil
	}
	f, err := r.lookup.Feature(*ref)
	if err == nil && f != nil {
		err = f.Validate()
	}
	if err != nil {
		r.log.Warn("Invalid attachment, treating as unattached",
			zap.String("name", inst.Name),
			zap.Stringer("target", ref),
			zap.Error(err))
		return nil
	}
	return f
}

// spec translates resolved parameters into a kernel request.
func (r *Recomputer) spec(p resolve.Resolved) (kernel.Spec, error) {
	ft, err := r.reg.Lookup(p.Type)
	if err != nil {
		return kernel.Spec{}, err
	}
	size, ok := r.reg.Size(p.Diameter)
	if !ok {
		return kernel.Spec{}, &kernel.BuildError{
			Spec:   kernel.Spec{Category: p.Category, Type: p.Type},
			Reason: fmt.Sprintf("no size entry for diameter %q", p.Diameter),
		}
	}
	var length float64
	if p.Length != "" {
		length, err = strconv.ParseFloat(p.Length, 64)
		if err != nil {
			return kernel.Spec{}, fmt.Errorf("length %q: %w", p.Length, err)
		}
	}
	return kernel.Spec{
		Category: p.Category,
		Type:     p.Type,
		Head:     ft.Head,
		Diameter: size.Nominal,
		Pitch:    size.Pitch,
		Length:   length,
		Thread:   p.Thread,
	}, nil
}
