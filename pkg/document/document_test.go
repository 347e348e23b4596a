package document_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/chazu/fasten/pkg/attach"
	"github.com/chazu/fasten/pkg/catalog"
	"github.com/chazu/fasten/pkg/document"
	"github.com/chazu/fasten/pkg/fastener"
	"github.com/chazu/fasten/pkg/kernel"
	"github.com/chazu/fasten/pkg/shapecache"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSolid struct{}

func (stubSolid) BoundingBox() (min, max [3]float64) { return min, max }

type countingKernel struct{ builds atomic.Int64 }

func (k *countingKernel) Build(ctx context.Context, _ kernel.Spec) (kernel.Solid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	k.builds.Add(1)
	return &stubSolid{}, nil
}

func (k *countingKernel) Place(s kernel.Solid, _ kernel.Placement) kernel.Solid { return s }

func (k *countingKernel) ToMesh(kernel.Solid) (*kernel.Mesh, error) { return &kernel.Mesh{}, nil }

// plateDoc returns a document with one plate carrying an M6 and an M8 hole.
func plateDoc(t *testing.T) *document.Document {
	t.Helper()
	d := document.New()
	plate, err := d.AddBody("plate")
	require.NoError(t, err)
	require.NoError(t, plate.AddFeature("Edge1", attach.Feature{
		Kind:        attach.ElementEdge,
		Origin:      v3.Vec{Z: 5},
		Normal:      v3.Vec{Z: 1},
		InnerRadius: 3,
		OuterRadius: 3,
	}))
	require.NoError(t, plate.AddFeature("Edge2", attach.Feature{
		Kind:        attach.ElementEdge,
		Origin:      v3.Vec{X: 20, Z: 5},
		Normal:      v3.Vec{Z: 1},
		InnerRadius: 4,
		OuterRadius: 4,
	}))
	return d
}

func addFastener(t *testing.T, d *document.Document, typ, element string) *fastener.Instance {
	t.Helper()
	inst := fastener.New(d.UniqueName(catalog.Default().MustLookup(typ).ItemText()), typ)
	if element != "" {
		inst.Props.BaseObject = &attach.TargetRef{Object: "plate", Element: element}
	}
	require.NoError(t, d.AddFastener(inst))
	return inst
}

func recomputer(d *document.Document) (*fastener.Recomputer, *countingKernel) {
	k := &countingKernel{}
	return fastener.NewRecomputer(catalog.Default(), shapecache.New(nil), k, d), k
}

func TestFeatureLookup(t *testing.T) {
	d := plateDoc(t)

	f, err := d.Feature(attach.TargetRef{Object: "plate", Element: "Edge2"})
	require.NoError(t, err)
	assert.Equal(t, 8.0, f.Diameter(false))

	_, err = d.Feature(attach.TargetRef{Object: "nope", Element: "Edge1"})
	assert.ErrorIs(t, err, attach.ErrInvalidAttachment)
	_, err = d.Feature(attach.TargetRef{Object: "plate", Element: "Face9"})
	assert.ErrorIs(t, err, attach.ErrInvalidAttachment)
}

func TestNames(t *testing.T) {
	d := plateDoc(t)
	_, err := d.AddBody("plate")
	assert.Error(t, err)

	assert.Equal(t, "Screw", d.UniqueName("Screw"))
	addFastener(t, d, "ISO4017", "")
	assert.Equal(t, "Screw001", d.UniqueName("Screw"))
	addFastener(t, d, "ISO4017", "")
	assert.Equal(t, "Screw002", d.UniqueName("Screw"))

	err = d.AddFastener(fastener.New("plate", "ISO4017"))
	assert.Error(t, err, "fastener may not reuse a body name")

	assert.NotNil(t, d.Fastener("Screw001"))
	assert.Panics(t, func() { d.MustFastener("Bolt") })
}

func TestBodyRejectsInvalidFeature(t *testing.T) {
	d := document.New()
	b, err := d.AddBody("block")
	require.NoError(t, err)
	err = b.AddFeature("Face1", attach.Feature{Kind: attach.ElementFace})
	assert.ErrorIs(t, err, attach.ErrInvalidAttachment)
	assert.Empty(t, b.Elements())
}

func TestRecomputeSharesShapes(t *testing.T) {
	d := plateDoc(t)
	a := addFastener(t, d, "ISO4017", "Edge1")
	b := addFastener(t, d, "ISO4017", "Edge1")
	c := addFastener(t, d, "ISO4017", "Edge2")
	w := addFastener(t, d, "ISO7089", "Edge1")

	r, k := recomputer(d)
	require.NoError(t, d.Recompute(context.Background(), r))

	assert.Equal(t, "M6x12-Screw", a.Label)
	assert.Equal(t, "M6x12-Screw", b.Label)
	assert.Equal(t, "M8x16-Screw", c.Label)
	assert.Equal(t, "M6-Washer", w.Label)
	assert.Same(t, a.Shape, b.Shape)
	assert.Equal(t, int64(3), k.builds.Load())
}

func TestRecomputeJoinsErrors(t *testing.T) {
	d := plateDoc(t)
	bad := fastener.New("Broken", "NOPE")
	require.NoError(t, d.AddFastener(bad))
	good := addFastener(t, d, "ISO4032", "Edge1")

	r, _ := recomputer(d)
	err := d.Recompute(context.Background(), r)
	require.ErrorIs(t, err, catalog.ErrUnknownType)
	assert.Contains(t, err.Error(), "Broken")
	assert.Equal(t, "M6-Nut", good.Label)
}

func TestRecomputeParallel(t *testing.T) {
	d := plateDoc(t)
	const n = 40
	for i := range n {
		el := "Edge1"
		if i%2 == 1 {
			el = "Edge2"
		}
		addFastener(t, d, "ISO4762", el)
	}

	r, k := recomputer(d)
	require.NoError(t, d.RecomputeParallel(context.Background(), r, 8))

	assert.Equal(t, int64(2), k.builds.Load())
	for i, inst := range d.Fasteners() {
		want := "M6"
		if i%2 == 1 {
			want = "M8"
		}
		assert.Equal(t, want, inst.Props.Diameter, inst.Name)
		assert.NotNil(t, inst.Shape, inst.Name)
	}
	st := r.Cache().Stats()
	assert.Equal(t, int64(n), st.Hits+st.Misses)
}

func TestSaveLoadRestore(t *testing.T) {
	d := plateDoc(t)
	inst := addFastener(t, d, "ISO4017", "Edge1")
	inst.Props.Diameter = "M8"
	inst.Props.Length = "30"
	inst.Props.Offset = 1.5
	inst.Props.MatchOuter = true

	r, _ := recomputer(d)
	require.NoError(t, d.Restore(context.Background(), r))
	require.NoError(t, d.Recompute(context.Background(), r))
	require.Equal(t, "M8x30-Screw", inst.Label)

	var buf bytes.Buffer
	require.NoError(t, d.Save(&buf))

	loaded, err := document.Load(&buf, document.LoadOptions{})
	require.NoError(t, err)

	got := loaded.MustFastener(inst.Name)
	if diff := cmp.Diff(inst.Props, got.Props); diff != "" {
		t.Errorf("properties changed across save/load (-saved +loaded):\n%s", diff)
	}
	assert.True(t, got.Placed)
	assert.Equal(t, inst.Placement, got.Placement)
	if diff := cmp.Diff(d.Bodies(), loaded.Bodies(), cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("bodies changed (-saved +loaded):\n%s", diff)
	}

	// The explicit M8 survives restore and recompute even though the hole
	// it sits on measures M6.
	r2, k2 := recomputer(loaded)
	require.NoError(t, loaded.Restore(context.Background(), r2))
	assert.Equal(t, int64(0), k2.builds.Load())
	require.NoError(t, loaded.Recompute(context.Background(), r2))
	assert.Equal(t, "M8x30-Screw", got.Label)
}

func TestLoadMigratesVersion1(t *testing.T) {
	const v1 = `{
  "version": 1,
  "bodies": [{"name": "plate", "features": {"Edge1": {"kind": "edge", "origin": {"X": 0, "Y": 0, "Z": 0}, "normal": {"X": 0, "Y": 0, "Z": 1}, "inner_radius": 3}}}],
  "fasteners": [{"name": "Screw", "type": "ISO7380", "diameter": "Auto", "base_object": {"object": "plate", "element": "Edge1"}}]
}`
	d, err := document.Load(strings.NewReader(v1), document.LoadOptions{MatchOuterDefault: true})
	require.NoError(t, err)

	inst := d.MustFastener("Screw")
	assert.True(t, inst.Props.MatchOuter)
	assert.Equal(t, "Screw", inst.Props.ImportName)
	_, err = uuid.Parse(inst.Props.UUID)
	assert.NoError(t, err)

	r, _ := recomputer(d)
	require.NoError(t, d.Restore(context.Background(), r))
	assert.Equal(t, "ISO7380-1", inst.Props.Type)
	require.NoError(t, d.Recompute(context.Background(), r))
	assert.Equal(t, "M6", inst.Props.Diameter)
	assert.True(t, strings.HasSuffix(inst.Label, "-Screw"), inst.Label)
}

func TestLoadRejectsNewerVersion(t *testing.T) {
	_, err := document.Load(strings.NewReader(fmt.Sprintf(`{"version": %d}`, document.SchemaVersion+1)), document.LoadOptions{})
	assert.Error(t, err)
}

func TestLoadRejectsGarbage(t *testing.T) {
	_, err := document.Load(strings.NewReader("not json"), document.LoadOptions{})
	assert.Error(t, err)
	assert.False(t, errors.Is(err, catalog.ErrUnknownType))
}
