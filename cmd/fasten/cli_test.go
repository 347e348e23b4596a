package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/fasten/pkg/catalog"
	"github.com/chazu/fasten/pkg/document"
	"github.com/chazu/fasten/pkg/resolve"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// testCmd sets the package globals the commands read and returns a bare
// command capturing output.
func testCmd(t *testing.T) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	cfg = testConfig()
	logger = zap.NewNop()

	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetContext(context.Background())
	return cmd, &buf
}

func TestCatalogCmd(t *testing.T) {
	cmd, buf := testCmd(t)
	require.NoError(t, runCatalog(cmd, nil))
	out := buf.String()
	assert.Contains(t, out, "ISO4017")
	assert.Contains(t, out, "ScrewTap")

	buf.Reset()
	require.NoError(t, runCatalog(cmd, []string{"ISO4017"}))
	out = buf.String()
	assert.Contains(t, out, "default diameter: M5")
	assert.Contains(t, out, "12 16 20 25")

	buf.Reset()
	require.NoError(t, runCatalog(cmd, []string{"ISO7380"}))
	assert.Contains(t, buf.String(), "ISO7380 is deprecated, showing ISO7380-1")

	err := runCatalog(cmd, []string{"NOPE"})
	assert.ErrorIs(t, err, catalog.ErrUnknownType)
}

func TestResolveCmd(t *testing.T) {
	cmd, buf := testCmd(t)
	t.Cleanup(func() {
		resolveReq = resolve.Request{}
		resolveHole, resolveOuter = 0, 0
	})

	resolveReq = resolve.Request{Type: "ISO4017", Diameter: catalog.Auto, Length: "22"}
	resolveHole = 8.4
	require.NoError(t, runResolve(cmd, nil))

	var out resolveOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, "M8", out.Params.Diameter)
	assert.Equal(t, "25", out.Params.Length)
	assert.Equal(t, catalog.Screw, out.Params.Category)
	assert.Equal(t, "M8x25-Screw", out.Label)
	assert.Equal(t, "M8", out.Request.Diameter)
	assert.Equal(t, catalog.Auto, out.Diameters[0])

	// An explicit diameter is kept even though the hole measures M8.
	buf.Reset()
	resolveReq = resolve.Request{Type: "ISO7089", Diameter: "M6"}
	require.NoError(t, runResolve(cmd, nil))
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, "M6-Washer", out.Label)

	// Sized from the outer circle of an annular face.
	buf.Reset()
	resolveReq = resolve.Request{Type: "ISO7089", Diameter: catalog.Auto, MatchOuter: true}
	resolveHole, resolveOuter = 6.4, 12
	require.NoError(t, runResolve(cmd, nil))
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, "M12-Washer", out.Label)

	resolveHole = -1
	assert.Error(t, runResolve(cmd, nil))
}

func TestEvalAndRecomputeCmds(t *testing.T) {
	cmd, buf := testCmd(t)
	dir := t.TempDir()
	script := filepath.Join(dir, "plate.fasten")
	require.NoError(t, os.WriteFile(script, []byte(`
(body "plate" (hole "Edge1" :at (vec3 0 0 5) :diameter 6.4))
(fastener "ISO4017" :on (ref "plate" "Edge1") :length 18)
(fastener "ISO4032" :on (ref "plate" "Edge1") :invert true :offset 20)
`), 0644))

	meshPath := filepath.Join(dir, "plate.json")
	docPath := filepath.Join(dir, "plate.doc.json")
	evalMeshPath, evalSavePath = meshPath, docPath
	t.Cleanup(func() { evalMeshPath, evalSavePath = "", "" })

	require.NoError(t, runEval(cmd, []string{script}))
	out := buf.String()
	assert.Contains(t, out, "M6x20-Screw")
	assert.Contains(t, out, "M6-Nut")
	assert.Contains(t, out, "shapes: 2 built")

	var meshes []MeshData
	data, err := os.ReadFile(meshPath)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &meshes))
	require.Len(t, meshes, 2)
	assert.Equal(t, "M6x20-Screw", meshes[0].PartName)

	// Change the saved screw to M8 and recompute from disk.
	doc, err := document.LoadFile(docPath, document.LoadOptions{})
	require.NoError(t, err)
	doc.MustFastener("Screw").Props.Diameter = "M8"
	require.NoError(t, doc.SaveFile(docPath))

	buf.Reset()
	outPath := filepath.Join(dir, "out.json")
	recomputeOut = outPath
	t.Cleanup(func() { recomputeOut = "" })
	require.NoError(t, runRecompute(cmd, []string{docPath}))
	assert.Contains(t, buf.String(), "M8x20-Screw")

	saved, err := document.LoadFile(outPath, document.LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, "M8", saved.MustFastener("Screw").Props.Diameter)
	assert.Equal(t, "20", saved.MustFastener("Screw").Props.Length)
}

func TestEvalCmdReportsErrors(t *testing.T) {
	cmd, buf := testCmd(t)
	script := filepath.Join(t.TempDir(), "bad.fasten")
	require.NoError(t, os.WriteFile(script, []byte(`(fastener "NOPE")`), 0644))

	err := runEval(cmd, []string{script})
	require.Error(t, err)
	assert.True(t, strings.Contains(buf.String(), "unknown fastener type"), buf.String())

	assert.Error(t, runEval(cmd, []string{filepath.Join(t.TempDir(), "missing.fasten")}))
}
