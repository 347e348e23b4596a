package engine

import (
	"strings"
	"testing"

	"github.com/chazu/fasten/pkg/attach"
	"github.com/chazu/fasten/pkg/catalog"
	"github.com/chazu/fasten/pkg/document"
)

// ---------------------------------------------------------------------------
// Preprocessing tests
// ---------------------------------------------------------------------------

func TestPreprocessKeywords(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{
			name:   "simple keyword",
			input:  `(hole "Edge1" :diameter 6)`,
			expect: `(hole "Edge1" "__kw_diameter" 6)`,
		},
		{
			name:   "keyword as value",
			input:  `(fastener "ISO4017" :diameter :auto)`,
			expect: `(fastener "ISO4017" "__kw_diameter" "__kw_auto")`,
		},
		{
			name:   "keyword in string preserved",
			input:  `"thing with :keyword inside"`,
			expect: `"thing with :keyword inside"`,
		},
		{
			name:   "escaped quote in string",
			input:  `"a \" :b" :c`,
			expect: `"a \" :b" "__kw_c"`,
		},
		{
			name:   "backtick string preserved",
			input:  "`raw :text`",
			expect: "`raw :text`",
		},
		{
			name:   "assignment operator preserved",
			input:  `(def x := 10)`,
			expect: `(def x := 10)`,
		},
		{
			name:   "hyphen in keyword preserved",
			input:  `(fastener "ISO4017" :match-outer true)`,
			expect: `(fastener "ISO4017" "__kw_match-outer" true)`,
		},
		{
			name:   "kebab-case identifier",
			input:  `(def hole-size 6)`,
			expect: `(def hole_size 6)`,
		},
		{
			name:   "minus operator preserved",
			input:  `(- 10 5)`,
			expect: `(- 10 5)`,
		},
		{
			name:   "negative number preserved",
			input:  `(vec3 0 0 -1)`,
			expect: `(vec3 0 0 -1)`,
		},
		{
			name:   "comment converted to // style",
			input:  `;; comment with :keyword`,
			expect: `// comment with :keyword`,
		},
		{
			name:   "single semicolon comment",
			input:  "; simple comment\n(+ 1 2)",
			expect: "// simple comment\n(+ 1 2)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := preprocessSource(tt.input)
			if got != tt.expect {
				t.Errorf("preprocessSource(%q)\n got: %q\nwant: %q", tt.input, got, tt.expect)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Builtin tests
// ---------------------------------------------------------------------------

func mustEvaluate(t *testing.T, eng *Engine, source string) *document.Document {
	t.Helper()
	doc, evalErrs, err := eng.Evaluate(source)
	if err != nil {
		t.Fatalf("fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("eval errors: %v", evalErrs)
	}
	if doc == nil {
		t.Fatal("expected non-nil document")
	}
	return doc
}

func TestBodyWithFeatures(t *testing.T) {
	eng := NewEngine(nil)

	doc := mustEvaluate(t, eng, `
(body "plate"
  (hole "Edge1" :at (vec3 10 0 5) :diameter 6.4)
  (face "Face1" :at (vec3 0 0 5) :normal (vec3 0 0 -1) :inner 8 :outer 16))
`)

	plate := doc.Body("plate")
	if plate == nil {
		t.Fatal("expected body named 'plate'")
	}
	if got := plate.Elements(); len(got) != 2 {
		t.Fatalf("expected 2 elements, got %v", got)
	}

	edge := plate.Features["Edge1"]
	if edge.Kind != attach.ElementEdge {
		t.Errorf("expected Edge1 to be an edge, got %s", edge.Kind)
	}
	if edge.Origin.X != 10 || edge.Origin.Z != 5 {
		t.Errorf("unexpected origin %v", edge.Origin)
	}
	if edge.Normal.Z != 1 {
		t.Errorf("expected default normal +Z, got %v", edge.Normal)
	}
	if edge.Diameter(false) != 6.4 {
		t.Errorf("expected hole diameter 6.4, got %f", edge.Diameter(false))
	}

	face := plate.Features["Face1"]
	if face.Kind != attach.ElementFace {
		t.Errorf("expected Face1 to be a face, got %s", face.Kind)
	}
	if face.Normal.Z != -1 {
		t.Errorf("expected normal -Z, got %v", face.Normal)
	}
	if face.Diameter(false) != 8 || face.Diameter(true) != 16 {
		t.Errorf("expected inner 8 / outer 16, got %f / %f", face.Diameter(false), face.Diameter(true))
	}
}

func TestFastenerDefaults(t *testing.T) {
	eng := NewEngine(nil)

	doc := mustEvaluate(t, eng, `
(def plate (body "plate" (hole "Edge1" :diameter 6)))
(fastener "ISO4017" :on (ref plate "Edge1"))
(fastener "ISO4017" :on (ref "plate" "Edge1"))
(fastener "ISO7089")
(rod :on (ref "plate" "Edge1"))
`)

	fs := doc.Fasteners()
	if len(fs) != 4 {
		t.Fatalf("expected 4 fasteners, got %d", len(fs))
	}

	wantNames := []string{"Screw", "Screw001", "Washer", "ScrewTap"}
	for i, inst := range fs {
		if inst.Name != wantNames[i] {
			t.Errorf("fastener %d: name = %q, want %q", i, inst.Name, wantNames[i])
		}
		if inst.Props.Diameter != catalog.Auto {
			t.Errorf("%s: diameter = %q, want Auto", inst.Name, inst.Props.Diameter)
		}
		if inst.Props.UUID == "" {
			t.Errorf("%s: expected a uuid", inst.Name)
		}
	}

	ref := fs[0].Props.BaseObject
	if ref == nil || ref.Object != "plate" || ref.Element != "Edge1" {
		t.Errorf("expected attachment plate.Edge1, got %v", ref)
	}
	if fs[2].Props.BaseObject != nil {
		t.Errorf("expected unattached washer, got %v", fs[2].Props.BaseObject)
	}
	if fs[3].Props.Type != "ScrewTap" {
		t.Errorf("expected rod type ScrewTap, got %q", fs[3].Props.Type)
	}
}

func TestFastenerOptions(t *testing.T) {
	eng := NewEngine(nil)

	doc := mustEvaluate(t, eng, `
(fastener "ISO4762" :name "Bolt" :diameter "M8" :length 30
          :thread true :match-outer true :invert true :offset 1.5)
(fastener "ISO4017" :name "Loose" :diameter :auto :length "25" :thread)
`)

	bolt := doc.Fastener("Bolt")
	if bolt == nil {
		t.Fatal("expected fastener named 'Bolt'")
	}
	p := bolt.Props
	if p.Diameter != "M8" || p.Length != "30" {
		t.Errorf("expected M8 x 30, got %s x %s", p.Diameter, p.Length)
	}
	if !p.Thread || !p.MatchOuter || !p.Invert {
		t.Errorf("expected thread, match-outer and invert set: %+v", p)
	}
	if p.Offset != 1.5 {
		t.Errorf("expected offset 1.5, got %f", p.Offset)
	}

	loose := doc.MustFastener("Loose")
	if loose.Props.Diameter != catalog.Auto {
		t.Errorf("expected Auto, got %q", loose.Props.Diameter)
	}
	if loose.Props.Length != "25" {
		t.Errorf("expected length 25, got %q", loose.Props.Length)
	}
	if !loose.Props.Thread {
		t.Error("expected trailing :thread flag to set thread")
	}
}

func TestMatchOuterDefault(t *testing.T) {
	eng := NewEngine(nil, WithMatchOuterDefault(true))

	doc := mustEvaluate(t, eng, `
(fastener "ISO7089" :name "A")
(fastener "ISO7089" :name "B" :match-outer false)
`)
	if !doc.MustFastener("A").Props.MatchOuter {
		t.Error("expected A to inherit match-outer")
	}
	if doc.MustFastener("B").Props.MatchOuter {
		t.Error("expected B to override match-outer")
	}
}

func TestVariableReference(t *testing.T) {
	eng := NewEngine(nil)

	doc := mustEvaluate(t, eng, `
(def d 8.4)
(def up (vec3 0 0 1))
(body "block" (hole "Edge1" :normal up :diameter d))
`)
	if got := doc.Body("block").Features["Edge1"].Diameter(false); got != 8.4 {
		t.Errorf("expected diameter 8.4 from variable, got %f", got)
	}
}

func TestBuiltinErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"unknown type", `(fastener "NOPE")`, "unknown fastener type"},
		{"vec3 arity", `(vec3 1 2)`, "exactly 3 arguments"},
		{"hole without diameter", `(hole "Edge1")`, "diameter is required"},
		{"zero normal", `(body "b" (hole "Edge1" :normal (vec3 0 0 0) :diameter 6))`, "invalid attachment"},
		{"duplicate body", `(body "b") (body "b")`, "already in use"},
		{"bad element", `(body "b" 42)`, "expected hole or face"},
		{"bad ref", `(fastener "ISO4017" :on "plate")`, "expected (ref"},
		{"bad flag", `(fastener "ISO4017" :thread 1 :name "x")`, "expected true or false"},
		{"duplicate name", `(fastener "ISO4017" :name "S") (fastener "ISO4032" :name "S")`, "already in use"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := NewEngine(nil)
			doc, evalErrs, err := eng.Evaluate(tt.source)
			if err != nil {
				t.Fatalf("expected non-fatal error, got fatal: %v", err)
			}
			if doc != nil {
				t.Error("expected nil document on eval error")
			}
			if len(evalErrs) == 0 {
				t.Fatal("expected an eval error")
			}
			if !strings.Contains(evalErrs[0].Message, tt.want) {
				t.Errorf("error %q does not mention %q", evalErrs[0].Message, tt.want)
			}
		})
	}
}
