package main

import (
	"context"
	"fmt"

	"github.com/chazu/fasten/pkg/catalog"
	"github.com/chazu/fasten/pkg/config"
	"github.com/chazu/fasten/pkg/document"
	"github.com/chazu/fasten/pkg/engine"
	"github.com/chazu/fasten/pkg/fastener"
	"github.com/chazu/fasten/pkg/kernel"
	"github.com/chazu/fasten/pkg/kernel/sdfx"
	"github.com/chazu/fasten/pkg/shapecache"
	"github.com/chazu/fasten/pkg/tessellate"
	"go.uber.org/zap"
)

// colorPalette assigns a display color per fastener category.
var colorPalette = map[catalog.Category]string{
	catalog.Screw:  "#4A90D9",
	catalog.Washer: "#95A5A6",
	catalog.Nut:    "#E67E22",
	catalog.Rod:    "#9B59B6",
}

// App bundles one session: a catalog, the DSL engine, a geometry kernel and
// the shape cache every document of the session recomputes against.
type App struct {
	cfg    *config.Config
	reg    *catalog.Registry
	engine *engine.Engine
	kernel kernel.Kernel
	cache  *shapecache.Cache
	log    *zap.Logger
}

// MeshData is the JSON mesh format written by `eval --mesh`.
type MeshData struct {
	Vertices []float32 `json:"vertices"`
	Normals  []float32 `json:"normals"`
	Indices  []uint32  `json:"indices"`
	PartName string    `json:"partName"`
	Color    string    `json:"color"`
}

// FastenerData summarizes one recomputed fastener.
type FastenerData struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Label    string `json:"label"`
	Diameter string `json:"diameter"`
	Length   string `json:"length,omitempty"`
	Placed   bool   `json:"placed"`
}

// EvalResult is the full result of evaluating a script.
type EvalResult struct {
	Fasteners []FastenerData       `json:"fasteners"`
	Meshes    []MeshData           `json:"meshes"`
	Errors    []engine.EvalError   `json:"errors"`
	Warnings  []engine.EvalWarning `json:"warnings"`
	Stats     shapecache.Stats     `json:"stats"`

	Document *document.Document `json:"-"`
}

// NewApp creates an App from cfg. A nil logger is replaced by a no-op one.
func NewApp(cfg *config.Config, log *zap.Logger) (*App, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if log == nil {
		log = zap.NewNop()
	}
	reg, err := cfg.Registry()
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}
	evalTimeout, err := cfg.GetEvalTimeout()
	if err != nil {
		return nil, err
	}
	return &App{
		cfg: cfg,
		reg: reg,
		engine: engine.NewEngine(reg,
			engine.WithTimeout(evalTimeout),
			engine.WithMatchOuterDefault(cfg.MatchOuter)),
		kernel: sdfx.New(sdfx.WithMeshCells(cfg.MeshCells)),
		cache:  shapecache.New(log),
		log:    log,
	}, nil
}

// Recompute runs the restoring pass and then one recompute cycle over doc.
// With more than one worker configured the cycles run concurrently.
func (a *App) Recompute(ctx context.Context, doc *document.Document) error {
	buildTimeout, err := a.cfg.GetBuildTimeout()
	if err != nil {
		return err
	}
	r := fastener.NewRecomputer(a.reg, a.cache, a.kernel, doc,
		fastener.WithLogger(a.log),
		fastener.WithBuildTimeout(buildTimeout))

	// An instance that cannot be restored fails again, with the same
	// error, in the recompute below.
	if err := doc.Restore(ctx, r); err != nil {
		a.log.Warn("Restore incomplete", zap.Error(err))
	}
	if a.cfg.Workers > 1 {
		return doc.RecomputeParallel(ctx, r, a.cfg.Workers)
	}
	return doc.Recompute(ctx, r)
}

// Evaluate runs a script, recomputes every fastener it declares and, when
// withMeshes is set, tessellates them. Failures are reported in the result.
func (a *App) Evaluate(ctx context.Context, source string, withMeshes bool) (result EvalResult) {
	result = EvalResult{
		Fasteners: []FastenerData{},
		Meshes:    []MeshData{},
		Errors:    []engine.EvalError{},
		Warnings:  []engine.EvalWarning{},
	}
	defer func() { result.Stats = a.cache.Stats() }()

	doc, evalErrs, err := a.engine.Evaluate(source)
	if err != nil {
		a.log.Error("Evaluate fatal error", zap.Error(err))
		result.Errors = append(result.Errors, engine.EvalError{Message: err.Error()})
		return result
	}
	if len(evalErrs) > 0 {
		result.Errors = append(result.Errors, evalErrs...)
		return result
	}
	result.Document = doc
	result.Warnings = append(result.Warnings, engine.Warnings(doc)...)

	// A failing fastener keeps its previous (here: empty) state; the rest
	// still recompute and mesh.
	if err := a.Recompute(ctx, doc); err != nil {
		a.log.Warn("Recompute failed", zap.Error(err))
		result.Errors = append(result.Errors, engine.EvalError{Message: "recompute: " + err.Error()})
	}
	result.Fasteners = summarize(doc)

	if !withMeshes {
		return result
	}
	meshes, err := tessellate.Tessellate(ctx, doc, a.kernel, max(a.cfg.Workers, 1))
	if err != nil {
		a.log.Error("Tessellate error", zap.Error(err))
		result.Errors = append(result.Errors, engine.EvalError{Message: "tessellation failed: " + err.Error()})
		return result
	}

	colors := make(map[string]string)
	for _, inst := range doc.Fasteners() {
		if prev, ok := inst.Previous(); ok {
			colors[inst.Label] = colorPalette[prev.Category]
		}
	}
	for _, m := range meshes {
		result.Meshes = append(result.Meshes, MeshData{
			Vertices: m.Vertices,
			Normals:  m.Normals,
			Indices:  m.Indices,
			PartName: m.PartName,
			Color:    colors[m.PartName],
		})
	}
	return result
}

func summarize(doc *document.Document) []FastenerData {
	out := []FastenerData{}
	for _, inst := range doc.Fasteners() {
		out = append(out, FastenerData{
			Name:     inst.Name,
			Type:     inst.Props.Type,
			Label:    inst.Label,
			Diameter: inst.Props.Diameter,
			Length:   inst.Props.Length,
			Placed:   inst.Placed,
		})
	}
	return out
}
