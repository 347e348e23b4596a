// Package resolve implements the fastener parameter resolution cycle.
//
// Resolve turns the previously resolved parameters of an instance, its
// current requested properties and the geometry it is attached to into a
// concrete (category, type, diameter, length, thread) tuple. The steps run
// in a fixed order because later steps depend on change flags raised by
// earlier ones:
//
//  1. remap deprecated type identifiers
//  2. detect a type change and reset diameters the new type does not list
//  3. detect a diameter change
//  4. detect a match-outer change
//  5. resolve Auto diameters (fixed nominal size or measurement)
//  6. snap the length to the catalog
//  7. clamp rod lengths to MinRodLength
//  8. assemble the resolved tuple
//
// Resolve is a pure function of its inputs; the caller keeps the returned
// Resolved value and passes it back as previous on the next cycle.
package resolve

import (
	"errors"
	"math"
	"strconv"

	"github.com/chazu/fasten/pkg/attach"
	"github.com/chazu/fasten/pkg/catalog"
	"github.com/chazu/fasten/pkg/shapecache"
	"go.uber.org/zap"
)

// MinRodLength is the shortest rod that will be generated, in mm. Shorter
// requests are clamped and the clamped value is written back.
const MinRodLength = 2.0

// DefaultRodLength is used when a rod has no parsable length.
const DefaultRodLength = 20.0

// Request is the set of user-editable properties that drive resolution.
type Request struct {
	Type       string `json:"type"`
	Diameter   string `json:"diameter"`
	Length     string `json:"length,omitempty"`
	Thread     bool   `json:"thread"`
	MatchOuter bool   `json:"match_outer"`
}

// Resolved is the concrete outcome of one resolution cycle. Diameter is
// never catalog.Auto.
type Resolved struct {
	Category   catalog.Category    `json:"category"`
	Type       string              `json:"type"`
	Diameter   string              `json:"diameter"`
	Length     string              `json:"length,omitempty"`
	Thread     catalog.ThreadStyle `json:"thread"`
	MatchOuter bool                `json:"match_outer"`
}

// Key returns the shape cache key for r.
func (r Resolved) Key() shapecache.Key {
	return shapecache.Key{
		Category: r.Category,
		Type:     r.Type,
		Diameter: r.Diameter,
		Length:   r.Length,
		Thread:   r.Thread,
	}
}

// Changes records which inputs differed from the previous cycle.
type Changes struct {
	Type       bool
	Diameter   bool
	MatchOuter bool
	Length     bool
}

// Result is the output of Resolve.
type Result struct {
	// Params is the resolved tuple; it becomes the next previous.
	Params Resolved
	// Request holds the property values to write back to the instance:
	// remapped type, concrete diameter, snapped or clamped length.
	Request Request
	Changes Changes
	// Diameters is the Auto-prefixed diameter list of the resolved type.
	Diameters []string
	// Lengths is the length list for the resolved diameter. Nil for types
	// without catalog lengths.
	Lengths []string
}

// Measurer infers a diameter from attachment geometry. A nil feature means
// the instance is not attached; implementations return the type default.
type Measurer interface {
	MeasureDiameter(ft *catalog.FastenerType, f *attach.Feature, matchOuter bool) (string, error)
}

// Resolver runs resolution cycles against a catalog.
type Resolver struct {
	reg     *catalog.Registry
	measure Measurer
	log     *zap.Logger
}

// New returns a Resolver. A nil logger discards output.
func New(reg *catalog.Registry, m Measurer, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{reg: reg, measure: m, log: log}
}

// Resolve runs one resolution cycle. previous is nil for an instance that
// has never been resolved. An unknown type aborts with an error matching
// catalog.ErrUnknownType; the caller keeps its last good state.
func (r *Resolver) Resolve(previous *Resolved, req Request, feature *attach.Feature) (Result, error) {
	// 1. backward compatibility
	ft, err := r.reg.Lookup(catalog.Canonical(req.Type))
	if err != nil {
		return Result{}, err
	}
	req.Type = ft.ID

	var ch Changes

	// 2. type change
	ch.Type = previous == nil || previous.Type != req.Type
	if !ft.HasDiameter(req.Diameter) {
		if req.Diameter != "" && req.Diameter != catalog.Auto {
			r.log.Debug("Diameter not listed for type, using Auto",
				zap.String("type", req.Type), zap.String("diameter", req.Diameter))
		}
		req.Diameter = catalog.Auto
	}

	// 3. diameter change
	ch.Diameter = previous == nil || previous.Diameter != req.Diameter

	// 4. match-outer change
	ch.MatchOuter = previous == nil || previous.MatchOuter != req.MatchOuter

	// 5. diameter resolution
	d := req.Diameter
	if d == catalog.Auto || ch.MatchOuter {
		d = r.autoDiameter(ft, feature, req.MatchOuter)
		ch.Diameter = true
	}
	req.Diameter = d

	// 6./7. length
	var lengths []string
	switch {
	case ft.Has(catalog.IsRod):
		l := rodLength(req.Length)
		if l < MinRodLength {
			r.log.Debug("Rod length below minimum, clamping",
				zap.String("length", req.Length), zap.Float64("min", MinRodLength))
			l = MinRodLength
		}
		length := catalog.FormatLength(l)
		ch.Length = previous == nil || previous.Length != length
		req.Length = length

	case ft.Has(catalog.HasLength):
		snappedD, l, err := r.reg.Closest(ft.ID, d, req.Length)
		if err != nil {
			return Result{}, err
		}
		if snappedD != d {
			r.log.Debug("Diameter snapped to length table",
				zap.String("type", ft.ID), zap.String("from", d), zap.String("to", snappedD))
			ch.Diameter = true
			d = snappedD
			req.Diameter = d
		}
		ch.Length = l != req.Length
		lengths = ft.Lengths(d)
		req.Length = l

	default:
		req.Length = ""
	}

	// 8. assemble
	thread := catalog.Simple
	if req.Thread && ft.Has(catalog.HasThread) {
		thread = catalog.Real
	}
	if !ft.Has(catalog.HasThread) {
		req.Thread = false
	}

	return Result{
		Params: Resolved{
			Category:   ft.Category,
			Type:       ft.ID,
			Diameter:   d,
			Length:     req.Length,
			Thread:     thread,
			MatchOuter: req.MatchOuter,
		},
		Request:   req,
		Changes:   ch,
		Diameters: ft.Diameters(),
		Lengths:   lengths,
	}, nil
}

// autoDiameter returns the fixed nominal size of single-size types, or asks
// the measurer. Measurement failures and unlisted answers fall back to the
// type default, as if the instance were unattached.
func (r *Resolver) autoDiameter(ft *catalog.FastenerType, f *attach.Feature, matchOuter bool) string {
	if d, ok := ft.FixedDiameter(); ok {
		return d
	}
	if r.measure == nil {
		return ft.DefaultDiameter()
	}

	d, err := r.measure.MeasureDiameter(ft, f, matchOuter)
	if err != nil {
		if errors.Is(err, attach.ErrInvalidAttachment) {
			r.log.Warn("Invalid attachment, treating as unattached", zap.String("type", ft.ID), zap.Error(err))
		} else {
			r.log.Warn("Diameter measurement failed", zap.String("type", ft.ID), zap.Error(err))
		}
		d, _ = r.measure.MeasureDiameter(ft, nil, matchOuter)
	}
	if d == "" || d == catalog.Auto || !ft.HasDiameter(d) {
		return ft.DefaultDiameter()
	}
	return d
}

// rodLength parses a requested rod length, falling back to DefaultRodLength.
func rodLength(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return DefaultRodLength
	}
	return v
}
