package catalog

import (
	"fmt"
	"slices"
)

// Auto is the diameter sentinel meaning "infer the diameter from the
// attached geometry". It is always the first entry of a diameter list.
const Auto = "Auto"

// ---------------------------------------------------------------------------
// Category
// ---------------------------------------------------------------------------

// Category determines which optional properties (length, thread) apply.
type Category int

const (
	Screw  Category = iota // screws and bolts, catalog lengths
	Washer                 // no length, no thread
	Nut                    // no length, threaded
	Rod                    // threaded rod, continuous length
)

func (c Category) String() string {
	switch c {
	case Screw:
		return "screw"
	case Washer:
		return "washer"
	case Nut:
		return "nut"
	case Rod:
		return "rod"
	default:
		return "unknown"
	}
}

// MarshalText encodes the category by table name.
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText decodes a table name.
func (c *Category) UnmarshalText(b []byte) error {
	v, err := ParseCategory(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// ItemText is the display word used in labels and cache keys.
func (c Category) ItemText() string {
	switch c {
	case Screw:
		return "Screw"
	case Washer:
		return "Washer"
	case Nut:
		return "Nut"
	case Rod:
		return "ScrewTap"
	default:
		return "Unknown"
	}
}

// ParseCategory converts a table name ("screw", "washer", ...) to a Category.
func ParseCategory(s string) (Category, error) {
	switch s {
	case "screw":
		return Screw, nil
	case "washer":
		return Washer, nil
	case "nut":
		return Nut, nil
	case "rod":
		return Rod, nil
	}
	return 0, fmt.Errorf("invalid category %q, expected screw, washer, nut or rod", s)
}

// ---------------------------------------------------------------------------
// Thread style
// ---------------------------------------------------------------------------

// ThreadStyle selects between a plain cylinder and a modeled helical thread.
type ThreadStyle int

const (
	Simple ThreadStyle = iota
	Real
)

func (t ThreadStyle) String() string {
	if t == Real {
		return "real"
	}
	return "simple"
}

// MarshalText encodes the style by name.
func (t ThreadStyle) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText decodes "simple" or "real".
func (t *ThreadStyle) UnmarshalText(b []byte) error {
	switch string(b) {
	case "simple":
		*t = Simple
	case "real":
		*t = Real
	default:
		return fmt.Errorf("invalid thread style %q, expected simple or real", b)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Capabilities
// ---------------------------------------------------------------------------

// Capability is a static property of a fastener type.
type Capability int

const (
	HasLength Capability = iota
	HasThread
	IsRod
)

func (c Capability) String() string {
	switch c {
	case HasLength:
		return "has-length"
	case HasThread:
		return "has-thread"
	case IsRod:
		return "is-rod"
	default:
		return "unknown"
	}
}

// HeadStyle names the head geometry the kernel should generate.
type HeadStyle string

const (
	HeadNone        HeadStyle = ""
	HeadHex         HeadStyle = "hex"
	HeadSocket      HeadStyle = "socket"
	HeadButton      HeadStyle = "button"
	HeadCountersunk HeadStyle = "countersunk"
	HeadPan         HeadStyle = "pan"
	HeadCheese      HeadStyle = "cheese"
)

// Size is the nominal geometry behind a diameter designation.
type Size struct {
	Name    string
	Nominal float64 // major diameter in mm
	Pitch   float64 // thread pitch in mm, 0 for unthreaded parts
}

// ---------------------------------------------------------------------------
// FastenerType
// ---------------------------------------------------------------------------

// FastenerType is an immutable catalog entry.
type FastenerType struct {
	ID          string
	Description string
	Group       string
	Category    Category
	Head        HeadStyle

	hasLength bool
	hasThread bool
	isRod     bool

	defaultDiameter string
	fixedDiameter   string
	diameters       []string            // Auto-prefixed
	lengths         map[string][]string // ascending
}

// Has reports whether the type carries the capability.
func (t *FastenerType) Has(c Capability) bool {
	switch c {
	case HasLength:
		return t.hasLength
	case HasThread:
		return t.hasThread
	case IsRod:
		return t.isRod
	}
	return false
}

// Diameters returns the ordered diameter list, starting with Auto.
func (t *FastenerType) Diameters() []string {
	return slices.Clone(t.diameters)
}

// HasDiameter reports whether d is a member of the diameter list.
// Auto is always a member.
func (t *FastenerType) HasDiameter(d string) bool {
	return slices.Contains(t.diameters, d)
}

// Lengths returns the ascending catalog lengths for diameter d. It is empty
// for types without catalog lengths and for diameters missing from the
// length table.
func (t *FastenerType) Lengths(d string) []string {
	return slices.Clone(t.lengths[d])
}

// DefaultDiameter is the diameter used when nothing can be measured.
func (t *FastenerType) DefaultDiameter() string {
	return t.defaultDiameter
}

// FixedDiameter returns the hard-coded nominal diameter of single-size
// types (ASTM structural parts, self-drilling screws, wall plugs).
func (t *FastenerType) FixedDiameter() (string, bool) {
	return t.fixedDiameter, t.fixedDiameter != ""
}

// ItemText is the display word of the type's category.
func (t *FastenerType) ItemText() string {
	return t.Category.ItemText()
}
