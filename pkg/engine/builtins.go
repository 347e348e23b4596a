package engine

import (
	"fmt"
	"strings"

	"github.com/chazu/fasten/pkg/attach"
	"github.com/chazu/fasten/pkg/catalog"
	"github.com/chazu/fasten/pkg/document"
	"github.com/chazu/fasten/pkg/fastener"
	v3 "github.com/deadsy/sdfx/vec/v3"
	zygo "github.com/glycerine/zygomys/zygo"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource rewrites script source into something zygomys accepts:
//
//  1. :keyword becomes the string literal "__kw_keyword", so keywords never
//     collide with user variables of the same name.
//  2. kebab-case identifiers become snake_case (match-outer -> match_outer);
//     zygomys reads a bare hyphen as subtraction.
//  3. ; line comments become // comments.
//
// String literals (double-quoted and backtick) pass through untouched.
func preprocessSource(source string) string {
	b := []byte(source)
	out := make([]byte, 0, len(b)+len(b)/4)
	for i := 0; i < len(b); {
		switch c := b[i]; {
		case c == '"' || c == '`':
			j := skipString(b, i)
			out = append(out, b[i:j]...)
			i = j

		case c == ';':
			out = append(out, '/', '/')
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				out = append(out, b[i])
				i++
			}

		case c == ':' && i+1 < len(b) && b[i+1] == '=':
			out = append(out, ':', '=')
			i += 2

		case c == ':' && i+1 < len(b) && isLetter(b[i+1]):
			j := i + 1
			for j < len(b) && isKWChar(b[j]) {
				j++
			}
			out = append(out, '"')
			out = append(out, kwPrefix...)
			out = append(out, b[i+1:j]...)
			out = append(out, '"')
			i = j

		case c == '-' && i > 0 && i+1 < len(b) && isIdentChar(b[i-1]) && isLetter(b[i+1]):
			out = append(out, '_')
			i++

		default:
			out = append(out, c)
			i++
		}
	}
	return string(out)
}

// skipString returns the index just past the string literal opening at i.
// Backslash escapes are honored in double-quoted strings only.
func skipString(b []byte, i int) int {
	quote := b[i]
	j := i + 1
	for j < len(b) && b[j] != quote {
		if quote == '"' && b[j] == '\\' && j+1 < len(b) {
			j++
		}
		j++
	}
	if j < len(b) {
		j++
	}
	return j
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values between builtins
// ---------------------------------------------------------------------------

type sexpVec3 struct {
	vec v3.Vec
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec.X, v.vec.Y, v.vec.Z)
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// sexpFeature is an element produced by `hole` or `face`, waiting to be
// attached to a body.
type sexpFeature struct {
	element string
	feature attach.Feature
}

func (f *sexpFeature) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(%s %q)", f.feature.Kind, f.element)
}
func (f *sexpFeature) Type() *zygo.RegisteredType { return nil }

type sexpBody struct {
	name string
}

func (b *sexpBody) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(body %q)", b.name)
}
func (b *sexpBody) Type() *zygo.RegisteredType { return nil }

type sexpRef struct {
	ref attach.TargetRef
}

func (r *sexpRef) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(ref %q %q)", r.ref.Object, r.ref.Element)
}
func (r *sexpRef) Type() *zygo.RegisteredType { return nil }

type sexpFastener struct {
	name string
}

func (f *sexpFastener) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(fastener %q)", f.name)
}
func (f *sexpFastener) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW reports whether s is a preprocessed keyword and returns its name.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok || !strings.HasPrefix(str.S, kwPrefix) {
		return "", false
	}
	return str.S[len(kwPrefix):], true
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
// A keyword in last position with no value maps to SexpNull.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	for i := 0; i < len(args); i++ {
		name, ok := isKW(args[i])
		switch {
		case !ok:
			result.positional = append(result.positional, args[i])
		case i+1 < len(args):
			result.kw[name] = args[i+1]
			i++
		default:
			result.kw[name] = zygo.SexpNull
		}
	}
	return result
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toKeywordString accepts a keyword (:auto) or a plain string ("M6").
func toKeywordString(s zygo.Sexp) (string, error) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", fmt.Errorf("expected keyword or string, got %T (%s)", s, s.SexpString(nil))
	}
	return strings.TrimPrefix(str.S, kwPrefix), nil
}

// toBool accepts true/false. A bare trailing flag (SexpNull) counts as true.
func toBool(s zygo.Sexp) (bool, error) {
	switch v := s.(type) {
	case *zygo.SexpBool:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return true, nil
		}
	}
	return false, fmt.Errorf("expected true or false, got %T (%s)", s, s.SexpString(nil))
}

func toVec3(s zygo.Sexp) (v3.Vec, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return v3.Vec{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

// toObjectName accepts a body value or a body name.
func toObjectName(s zygo.Sexp) (string, error) {
	if b, ok := s.(*sexpBody); ok {
		return b.name, nil
	}
	name, err := toString(s)
	if err != nil {
		return "", fmt.Errorf("expected body or name: %w", err)
	}
	return name, nil
}

func toRef(s zygo.Sexp) (attach.TargetRef, error) {
	if r, ok := s.(*sexpRef); ok {
		return r.ref, nil
	}
	return attach.TargetRef{}, fmt.Errorf("expected (ref ...), got %T (%s)", s, s.SexpString(nil))
}

// toDiameter accepts :auto or a catalog designation.
func toDiameter(s zygo.Sexp) (string, error) {
	d, err := toKeywordString(s)
	if err != nil {
		return "", err
	}
	if strings.EqualFold(d, catalog.Auto) {
		return catalog.Auto, nil
	}
	return d, nil
}

// toLength accepts a number or a catalog length string.
func toLength(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	f, err := toFloat64(s)
	if err != nil {
		return "", err
	}
	return catalog.FormatLength(f), nil
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// scope is the state builtins share during one evaluation.
type scope struct {
	doc        *document.Document
	reg        *catalog.Registry
	matchOuter bool
}

// registerBuiltins installs the fasten DSL into env. Source must be
// preprocessed with preprocessSource so keywords are recognizable.
func registerBuiltins(env *zygo.Zlisp, sc *scope) {

	// -----------------------------------------------------------------------
	// (vec3 1 2 3)
	// -----------------------------------------------------------------------
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("vec3 requires exactly 3 arguments, got %d", len(args))
		}
		var c [3]float64
		for i, a := range args {
			f, err := toFloat64(a)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("vec3: %c: %w", "xyz"[i], err)
			}
			c[i] = f
		}
		return &sexpVec3{vec: v3.Vec{X: c[0], Y: c[1], Z: c[2]}}, nil
	})

	// -----------------------------------------------------------------------
	// (hole "Edge1" :at (vec3 0 0 5) :normal (vec3 0 0 1) :diameter 6.4)
	// -----------------------------------------------------------------------
	env.AddFunction("hole", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		sf, err := featureArgs(name, attach.ElementEdge, pa)
		if err != nil {
			return zygo.SexpNull, err
		}
		v, ok := pa.kw["diameter"]
		if !ok {
			return zygo.SexpNull, fmt.Errorf("hole: :diameter is required")
		}
		d, err := toFloat64(v)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("hole: diameter: %w", err)
		}
		sf.feature.InnerRadius = d / 2
		sf.feature.OuterRadius = d / 2
		return sf, nil
	})

	// -----------------------------------------------------------------------
	// (face "Face1" :at (vec3 0 0 5) :normal (vec3 0 0 1) :inner 6 :outer 16)
	// -----------------------------------------------------------------------
	env.AddFunction("face", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		sf, err := featureArgs(name, attach.ElementFace, pa)
		if err != nil {
			return zygo.SexpNull, err
		}
		if v, ok := pa.kw["inner"]; ok {
			d, err := toFloat64(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("face: inner: %w", err)
			}
			sf.feature.InnerRadius = d / 2
		}
		if v, ok := pa.kw["outer"]; ok {
			d, err := toFloat64(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("face: outer: %w", err)
			}
			sf.feature.OuterRadius = d / 2
		}
		return sf, nil
	})

	// -----------------------------------------------------------------------
	// (body "plate" (hole ...) (face ...) ...)
	// -----------------------------------------------------------------------
	env.AddFunction("body", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) < 1 {
			return zygo.SexpNull, fmt.Errorf("body requires a name argument")
		}
		bodyName, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("body: name: %w", err)
		}
		b, err := sc.doc.AddBody(bodyName)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("body: %w", err)
		}
		for i, a := range args[1:] {
			sf, ok := a.(*sexpFeature)
			if !ok {
				return zygo.SexpNull, fmt.Errorf("body %s: element %d: expected hole or face, got %T (%s)",
					bodyName, i+1, a, a.SexpString(nil))
			}
			if err := b.AddFeature(sf.element, sf.feature); err != nil {
				return zygo.SexpNull, err
			}
		}
		return &sexpBody{name: bodyName}, nil
	})

	// -----------------------------------------------------------------------
	// (ref "plate" "Edge1")
	// -----------------------------------------------------------------------
	// References are weak: the body may be defined later or not at all.
	env.AddFunction("ref", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("ref requires an object and an element, got %d arguments", len(args))
		}
		obj, err := toObjectName(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("ref: object: %w", err)
		}
		el, err := toString(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("ref: element: %w", err)
		}
		return &sexpRef{ref: attach.TargetRef{Object: obj, Element: el}}, nil
	})

	// -----------------------------------------------------------------------
	// (fastener "ISO4017" :on (ref "plate" "Edge1") :diameter :auto
	//           :length 20 :thread true :match-outer false
	//           :invert false :offset 0 :name "Bolt")
	// -----------------------------------------------------------------------
	env.AddFunction("fastener", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) < 1 {
			return zygo.SexpNull, fmt.Errorf("fastener requires a type argument")
		}
		typ, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("fastener: type: %w", err)
		}
		return sc.addFastener(name, typ, pa)
	})

	// -----------------------------------------------------------------------
	// (rod :on (ref "plate" "Edge1") :length 35)
	// -----------------------------------------------------------------------
	env.AddFunction("rod", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		return sc.addFastener(name, rodType, parseArgs(args))
	})
}

// rodType is the catalog entry behind the `rod` builtin.
const rodType = "ScrewTap"

// featureArgs reads the element name and the :at/:normal keywords shared by
// hole and face. The normal defaults to +Z.
func featureArgs(fn string, kind attach.ElementKind, pa kwArgs) (*sexpFeature, error) {
	if len(pa.positional) < 1 {
		return nil, fmt.Errorf("%s requires an element name", fn)
	}
	el, err := toString(pa.positional[0])
	if err != nil {
		return nil, fmt.Errorf("%s: element: %w", fn, err)
	}
	sf := &sexpFeature{
		element: el,
		feature: attach.Feature{Kind: kind, Normal: v3.Vec{Z: 1}},
	}
	if v, ok := pa.kw["at"]; ok {
		if sf.feature.Origin, err = toVec3(v); err != nil {
			return nil, fmt.Errorf("%s: at: %w", fn, err)
		}
	}
	if v, ok := pa.kw["normal"]; ok {
		if sf.feature.Normal, err = toVec3(v); err != nil {
			return nil, fmt.Errorf("%s: normal: %w", fn, err)
		}
	}
	return sf, nil
}

func (sc *scope) addFastener(fn, typ string, pa kwArgs) (zygo.Sexp, error) {
	ft, err := sc.reg.Lookup(typ)
	if err != nil {
		return zygo.SexpNull, fmt.Errorf("%s: %w", fn, err)
	}

	instName := sc.doc.UniqueName(ft.ItemText())
	if v, ok := pa.kw["name"]; ok {
		if instName, err = toString(v); err != nil {
			return zygo.SexpNull, fmt.Errorf("%s: name: %w", fn, err)
		}
	}

	inst := fastener.New(instName, typ)
	p := &inst.Props
	p.MatchOuter = sc.matchOuter

	if v, ok := pa.kw["on"]; ok {
		ref, err := toRef(v)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("%s: on: %w", fn, err)
		}
		p.BaseObject = &ref
	}
	if v, ok := pa.kw["diameter"]; ok {
		if p.Diameter, err = toDiameter(v); err != nil {
			return zygo.SexpNull, fmt.Errorf("%s: diameter: %w", fn, err)
		}
	}
	if v, ok := pa.kw["length"]; ok {
		if p.Length, err = toLength(v); err != nil {
			return zygo.SexpNull, fmt.Errorf("%s: length: %w", fn, err)
		}
	}
	if v, ok := pa.kw["offset"]; ok {
		if p.Offset, err = toFloat64(v); err != nil {
			return zygo.SexpNull, fmt.Errorf("%s: offset: %w", fn, err)
		}
	}
	flags := []struct {
		kw  string
		dst *bool
	}{
		{"thread", &p.Thread},
		{"match-outer", &p.MatchOuter},
		{"invert", &p.Invert},
	}
	for _, f := range flags {
		v, ok := pa.kw[f.kw]
		if !ok {
			continue
		}
		if *f.dst, err = toBool(v); err != nil {
			return zygo.SexpNull, fmt.Errorf("%s: %s: %w", fn, f.kw, err)
		}
	}

	if err := sc.doc.AddFastener(inst); err != nil {
		return zygo.SexpNull, fmt.Errorf("%s: %w", fn, err)
	}
	return &sexpFastener{name: inst.Name}, nil
}
