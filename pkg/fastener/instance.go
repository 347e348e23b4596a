// Package fastener ties resolution, the shape cache, labelling and placement
// together into the recompute cycle of a single fastener object.
package fastener

import (
	"github.com/chazu/fasten/pkg/attach"
	"github.com/chazu/fasten/pkg/catalog"
	"github.com/chazu/fasten/pkg/kernel"
	"github.com/chazu/fasten/pkg/resolve"
	"github.com/google/uuid"
)

// Properties is the user-editable and persisted state of a fastener object.
type Properties struct {
	Type       string
	Diameter   string // catalog value or catalog.Auto
	Length     string // empty for types without length
	Thread     bool
	MatchOuter bool

	BaseObject *attach.TargetRef // nil when unattached
	Invert     bool
	Offset     float64

	// Import/export bookkeeping, not used by resolution.
	ImportName        string
	ObjectInComponent string
	UUID              string
}

func (p Properties) request() resolve.Request {
	return resolve.Request{
		Type:       p.Type,
		Diameter:   p.Diameter,
		Length:     p.Length,
		Thread:     p.Thread,
		MatchOuter: p.MatchOuter,
	}
}

func (p *Properties) apply(req resolve.Request) {
	p.Type = req.Type
	p.Diameter = req.Diameter
	p.Length = req.Length
	p.Thread = req.Thread
	p.MatchOuter = req.MatchOuter
}

// Instance is one placed fastener.
type Instance struct {
	Name  string
	Props Properties

	// Derived by Recompute.
	Label           string
	Shape           kernel.Solid // shared cache handle, unplaced
	Placement       kernel.Placement
	Placed          bool
	DiameterOptions []string
	LengthOptions   []string

	prev *resolve.Resolved
}

// New returns an unattached instance of type typ with an Auto diameter.
// The length is left empty and picked by the first recompute.
func New(name, typ string) *Instance {
	props := Properties{
		Type:     typ,
		Diameter: catalog.Auto,
		UUID:     uuid.NewString(),
	}
	return &Instance{
		Name:      name,
		Props:     props,
		Placement: kernel.Identity,
	}
}

// Previous returns the parameters resolved by the last successful cycle.
func (i *Instance) Previous() (resolve.Resolved, bool) {
	if i.prev == nil {
		return resolve.Resolved{}, false
	}
	return *i.prev, true
}

// Solid returns the instance's shape with its placement applied, or nil
// when nothing has been built yet.
func (i *Instance) Solid(k kernel.Kernel) kernel.Solid {
	if i.Shape == nil {
		return nil
	}
	if !i.Placed {
		return i.Shape
	}
	return k.Place(i.Shape, i.Placement)
}
