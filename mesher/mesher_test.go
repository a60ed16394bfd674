package mesher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/notargets/femprep/config"
	"github.com/notargets/femprep/element"
	"github.com/notargets/femprep/geometry"
	"github.com/notargets/femprep/mesh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const squareMsh = `$MeshFormat
2.2 0 8
$EndMeshFormat
$PhysicalNames
2
1 100 "fixed_left"
2 1 "material"
$EndPhysicalNames
$Nodes
4
1 0 0 0
2 1 0 0
3 1 1 0
4 0 1 0
$EndNodes
$Elements
3
1 1 2 100 4 4 1
2 2 2 1 1 1 2 3
3 2 2 1 1 1 3 4
$EndElements
`

func cantilever() *config.Model {
	return &config.Model{
		ModelName: "cantilever",
		Geometry:  config.NewRectangle(4, 1),
		Mesh:      config.MeshParameters{Size: 0.1},
		Material:  &config.Material{E: 2.1e11, Nu: 0.3},
		BoundaryConditions: []config.BoundaryCondition{{
			Name: "fixed_left", Location: config.EdgeLocation(config.Left), PhysicalID: 100,
			Constraints: config.Constraints{X: config.Fixed, Y: config.Fixed},
		}},
		Loads: []config.Load{{
			Name: "tip_load", Location: config.EdgeLocation(config.Right), PhysicalID: 101,
			Force: config.Force{Y: -1000}, Distribution: config.Uniform,
		}},
	}
}

func script(t *testing.T, m *config.Model) *geometry.Script {
	t.Helper()
	s, err := geometry.Generate(m)
	require.NoError(t, err)
	return s
}

// fakeGmsh writes an executable shell script standing in for gmsh
func fakeGmsh(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake engine is a shell script")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "gmsh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestGmshMesh(t *testing.T) {
	fixture := filepath.Join(t.TempDir(), "square.msh")
	require.NoError(t, os.WriteFile(fixture, []byte(squareMsh), 0o644))
	exe := fakeGmsh(t, `cp "`+fixture+`" "$4"`)

	work := t.TempDir()
	g := &Gmsh{Executable: exe, WorkDir: work}
	m, err := g.Mesh(context.Background(), script(t, cantilever()))
	require.NoError(t, err)

	assert.Equal(t, 4, m.NumPoints())
	assert.Len(t, m.BlocksOfType(element.Triangle), 1)
	assert.FileExists(t, filepath.Join(work, "cantilever.geo"))
	assert.FileExists(t, filepath.Join(work, "cantilever.msh"))
}

func TestGmshFailure(t *testing.T) {
	exe := fakeGmsh(t, "echo boom >&2\nexit 3")

	_, err := (&Gmsh{Executable: exe}).Mesh(context.Background(), script(t, cantilever()))
	require.Error(t, err)
	var engineErr *EngineError
	require.True(t, errors.As(err, &engineErr))
	assert.Equal(t, 3, engineErr.ExitCode)
	assert.Equal(t, "boom", engineErr.Stderr)
	assert.Contains(t, err.Error(), "exit code 3")
}

func TestGmshTimeout(t *testing.T) {
	exe := fakeGmsh(t, "exec sleep 5")

	start := time.Now()
	_, err := (&Gmsh{Executable: exe, Timeout: 100 * time.Millisecond}).Mesh(context.Background(), script(t, cantilever()))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), 4*time.Second)

	var engineErr *EngineError
	require.True(t, errors.As(err, &engineErr))
	assert.Equal(t, -1, engineErr.ExitCode)
}

func TestGmshNotFound(t *testing.T) {
	g := &Gmsh{Executable: filepath.Join(t.TempDir(), "no-such-gmsh")}
	_, err := g.Mesh(context.Background(), script(t, cantilever()))
	assert.True(t, errors.Is(err, ErrEngineNotFound))
}

func TestStructuredCantilever(t *testing.T) {
	m, err := Structured{}.Mesh(context.Background(), script(t, cantilever()))
	require.NoError(t, err)

	assert.Equal(t, 451, m.NumPoints())
	tris := m.BlocksOfType(element.Triangle)
	require.Len(t, tris, 1)
	assert.Equal(t, 800, tris[0].Len())
	assert.Equal(t, 1, tris[0].PhysicalTags[0])

	lines := m.BlocksOfType(element.Line)
	require.Len(t, lines, 2)
	assert.Equal(t, 100, lines[0].PhysicalTags[0])
	assert.Equal(t, 10, lines[0].Len())
	right := lines[1]
	assert.Equal(t, 101, right.PhysicalTags[0])
	nodes := map[int]bool{}
	for _, seg := range right.Connectivity {
		for _, n := range seg {
			nodes[n] = true
			assert.Equal(t, 4.0, m.Points[n][0])
		}
	}
	assert.Len(t, nodes, 11)
	assert.Equal(t, "tip_load", m.PhysicalNames[mesh.PhysicalKey{Dim: 1, Tag: 101}])
}

func TestStructuredQuadCounterClockwise(t *testing.T) {
	model := cantilever()
	model.Mesh.ElementType = "quad"
	m, err := Structured{NX: 4, NY: 2}.Mesh(context.Background(), script(t, model))
	require.NoError(t, err)

	assert.Equal(t, 15, m.NumPoints())
	quads := m.BlocksOfType(element.Quad)
	require.Len(t, quads, 1)
	require.Equal(t, 8, quads[0].Len())
	for _, q := range quads[0].Connectivity {
		var area float64
		for i := range q {
			a, b := m.Points[q[i]], m.Points[q[(i+1)%len(q)]]
			area += a[0]*b[1] - b[0]*a[1]
		}
		assert.Greater(t, area, 0.0)
	}
}

func TestStructuredLayeredSharesInterface(t *testing.T) {
	model := cantilever()
	model.Geometry = config.NewRectangle(2, 1)
	model.Material = nil
	model.Layers = []config.Layer{
		{Name: "L1", Region: []float64{0, 0.5}, PhysicalID: 1, Material: config.Material{E: 2e11, Nu: 0.3}},
		{Name: "L2", Region: []float64{0.5, 1}, PhysicalID: 2, Material: config.Material{E: 7e10, Nu: 0.33}},
	}
	m, err := Structured{NX: 4, NY: 2}.Mesh(context.Background(), script(t, model))
	require.NoError(t, err)

	// 5 columns by 5 rows, the interface row is shared
	assert.Equal(t, 25, m.NumPoints())
	tris := m.BlocksOfType(element.Triangle)
	require.Len(t, tris, 2)
	assert.Equal(t, 1, tris[0].PhysicalTags[0])
	assert.Equal(t, 2, tris[1].PhysicalTags[0])
	assert.Equal(t, 16, tris[0].Len())
	assert.Equal(t, 16, tris[1].Len())

	// the left edge spans both layers
	lines := m.BlocksOfType(element.Line)
	total := 0
	for _, b := range lines {
		if b.PhysicalTags[0] == 100 {
			total += b.Len()
		}
	}
	assert.Equal(t, 4, total)
}

func TestStructuredNotSupported(t *testing.T) {
	lshape := cantilever()
	lshape.Geometry = config.NewLShape(2, 2, 1, 1)
	_, err := Structured{}.Mesh(context.Background(), script(t, lshape))
	var nse *geometry.NotSupportedError
	require.True(t, errors.As(err, &nse))
	assert.Equal(t, "geometry", nse.Kind)

	quadratic := cantilever()
	quadratic.Mesh.ElementType = "triangle6"
	_, err = Structured{}.Mesh(context.Background(), script(t, quadratic))
	require.True(t, errors.As(err, &nse))
	assert.Equal(t, "element type", nse.Kind)
	assert.Equal(t, "triangle6", nse.Name)
}

func TestStructuredCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Structured{}.Mesh(ctx, script(t, cantilever()))
	assert.ErrorIs(t, err, context.Canceled)
}
