package geometry

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/notargets/femprep/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

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

func layered(layers ...config.Layer) *config.Model {
	m := cantilever()
	m.ModelName = "sandwich"
	m.Geometry = config.NewRectangle(2, 1)
	m.Material = nil
	m.Layers = layers
	return m
}

var (
	lower = config.Layer{Name: "L1", Region: []float64{0, 0.5}, PhysicalID: 1,
		Material: config.Material{E: 2e11, Nu: 0.3}}
	upper = config.Layer{Name: "L2", Region: []float64{0.5, 1}, PhysicalID: 2,
		Material: config.Material{E: 7e10, Nu: 0.33}}
)

func TestRectangleText(t *testing.T) {
	s, err := Generate(cantilever())
	require.NoError(t, err)

	want := `// GMSH Geometry File
// Auto-generated from: cantilever
// Element size: 0.1

SetFactory("OpenCASCADE");

Point(1) = {0, 0, 0, 0.1};
Point(2) = {4, 0, 0, 0.1};
Point(3) = {4, 1, 0, 0.1};
Point(4) = {0, 1, 0, 0.1};

Line(1) = {1, 2};  // bottom
Line(2) = {2, 3};  // right
Line(3) = {3, 4};  // top
Line(4) = {4, 1};  // left

Line Loop(1) = {1, 2, 3, 4};
Plane Surface(1) = {1};

// Physical Groups

Physical Surface("material", 1) = {1};

// Boundary Conditions and Loads
Physical Line("fixed_left", 100) = {4};
Physical Line("tip_load", 101) = {2};

// Mesh Settings
Mesh 2;
`
	if diff := cmp.Diff(want, s.Text()); diff != "" {
		t.Errorf("script mismatch (-want +got):\n%s", diff)
	}

	var buf bytes.Buffer
	n, err := s.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(len(want)), n)
}

func TestDeterministic(t *testing.T) {
	for _, m := range []*config.Model{cantilever(), layered(lower, upper)} {
		a, err := Generate(m)
		require.NoError(t, err)
		b, err := Generate(m)
		require.NoError(t, err)
		assert.Equal(t, a.Text(), b.Text())
	}
}

func TestUniqueIDs(t *testing.T) {
	m := cantilever()
	m.Geometry = config.NewPlateWithHole(1, 1, 0.5, 0.5, 0.1)
	s, err := Generate(m)
	require.NoError(t, err)

	points := map[int]bool{}
	for i, p := range s.Points {
		assert.False(t, points[p.ID], "point %d reused", p.ID)
		points[p.ID] = true
		assert.Equal(t, i+1, p.ID)
	}
	curves := map[int]bool{}
	for i, c := range s.Curves {
		assert.False(t, curves[c.ID], "curve %d reused", c.ID)
		curves[c.ID] = true
		assert.Equal(t, i+1, c.ID)
	}
}

func TestLayeredSharedNodes(t *testing.T) {
	s, err := Generate(layered(lower, upper))
	require.NoError(t, err)

	require.Len(t, s.Points, 6)
	require.Len(t, s.Surfaces, 2)
	interfaceLeft := s.Points[2]
	assert.Equal(t, Point{ID: 3, X: 0, Y: 0.5, Size: 0.1}, interfaceLeft)

	// L1 top edge and L2 bottom edge are the same curve with the same end points
	l1, ok := s.Loop(s.Surfaces[0].Loops[0])
	require.True(t, ok)
	l2, ok := s.Loop(s.Surfaces[1].Loops[0])
	require.True(t, ok)
	assert.Equal(t, []int{1, 2, 3, 4}, l1.Curves)
	assert.Equal(t, []int{-3, 5, 6, 7}, l2.Curves)

	top, _ := s.Curve(l1.Curves[2])
	assert.Equal(t, 3, top.End())
	l2Left, _ := s.Curve(l2.Curves[3])
	assert.Equal(t, 3, l2Left.End())

	assert.Equal(t, []int{4, 7}, s.LocationCurves(config.Left))
	assert.Equal(t, []int{2, 5}, s.LocationCurves(config.Right))
	assert.Equal(t, []int{1}, s.LocationCurves(config.Bottom))
	assert.Equal(t, []int{6}, s.LocationCurves(config.Top))

	g1, ok := s.PhysicalGroup(2, 1)
	require.True(t, ok)
	assert.Equal(t, PhysicalGroup{Dim: 2, ID: 1, Name: "L1", Members: []int{1}}, g1)
	g2, ok := s.PhysicalGroup(2, 2)
	require.True(t, ok)
	assert.Equal(t, []int{2}, g2.Members)
	_, ok = s.PhysicalGroup(2, MaterialGroupID+100)
	assert.False(t, ok)

	text := s.Text()
	assert.Contains(t, text, "Line Loop(2) = {-3, 5, 6, 7};")
	assert.Contains(t, text, `Physical Surface("L2", 2) = {2};`)
	assert.NotContains(t, text, `"material"`)
}

func TestLayeredDeclarationOrder(t *testing.T) {
	a, err := Generate(layered(lower, upper))
	require.NoError(t, err)
	b, err := Generate(layered(upper, lower))
	require.NoError(t, err)
	assert.Equal(t, a.Text(), b.Text())
}

func TestLayeredGapUsesUnionOfBounds(t *testing.T) {
	gapUpper := upper
	gapUpper.Region = []float64{0.6, 1}
	s, err := Generate(layered(lower, gapUpper))
	require.NoError(t, err)

	// y = 0, 0.5, 0.6, 1
	require.Len(t, s.Points, 8)
	assert.Len(t, s.Curves, 8)
	// no line is shared across the gap
	l2, ok := s.Loop(s.Surfaces[1].Loops[0])
	require.True(t, ok)
	assert.Equal(t, []int{5, 6, 7, 8}, l2.Curves)
}

func TestLayersNeedRectangle(t *testing.T) {
	for _, geom := range []config.Geometry{
		config.NewLShape(2, 2, 0.5, 0.5),
		config.NewPlateWithHole(1, 1, 0.5, 0.5, 0.1),
	} {
		m := layered(lower, upper)
		m.Geometry = geom
		s, err := Generate(m)
		var nse *NotSupportedError
		require.True(t, errors.As(err, &nse), "%s: %v", geom.Kind, err)
		assert.Equal(t, "geometry", nse.Kind)
		assert.Equal(t, string(geom.Kind), nse.Name)
		assert.Nil(t, s)
	}
}

func TestGenerateLogsModelOnce(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	_, err := Generator{Logger: logger.With("model", "cantilever")}.Generate(cantilever())
	require.NoError(t, err)
	require.Contains(t, buf.String(), "generated geometry script")
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		assert.Equal(t, 1, strings.Count(line, "model="), line)
	}
}

func TestLShape(t *testing.T) {
	m := cantilever()
	m.Geometry = config.NewLShape(2, 2, 0.5, 0.5)
	m.Loads[0].Location = config.EdgeLocation(config.Right)
	s, err := Generate(m)
	require.NoError(t, err)

	want := []Point{
		{ID: 1, X: 0, Y: 0}, {ID: 2, X: 0.5, Y: 0}, {ID: 3, X: 0.5, Y: 1.5},
		{ID: 4, X: 2, Y: 1.5}, {ID: 5, X: 2, Y: 2}, {ID: 6, X: 0, Y: 2},
	}
	for i := range want {
		want[i].Size = 0.1
	}
	assert.Equal(t, want, s.Points)
	assert.Equal(t, []int{2, 4}, s.LocationCurves(config.Right))
	assert.Equal(t, []int{6}, s.LocationCurves(config.Left))

	load, ok := s.PhysicalGroup(1, 101)
	require.True(t, ok)
	assert.Equal(t, []int{2, 4}, load.Members)
}

func TestPlateWithHole(t *testing.T) {
	m := cantilever()
	m.Geometry = config.NewPlateWithHole(1, 1, 0.5, 0.5, 0.1)
	s, err := Generate(m)
	require.NoError(t, err)

	require.Len(t, s.Points, 9)
	assert.Equal(t, Point{ID: 6, X: 0.6, Y: 0.5, Size: 0.1}, s.Points[5])
	assert.Equal(t, []int{5, 6, 7, 8}, s.LocationCurves(Hole))
	arc, ok := s.Curve(5)
	require.True(t, ok)
	assert.Equal(t, ArcCurve, arc.Kind)
	assert.Equal(t, []int{6, 5, 7}, arc.Points)

	require.Len(t, s.Surfaces, 1)
	assert.Equal(t, []int{1, 2}, s.Surfaces[0].Loops)

	text := s.Text()
	assert.Contains(t, text, "Circle(5) = {6, 5, 7};")
	assert.Contains(t, text, "Line Loop(1) = {1, 2, 3, 4};")
	assert.Contains(t, text, "Curve Loop(2) = {5, 6, 7, 8};")
	assert.Contains(t, text, "Plane Surface(1) = {1, 2};")
	assert.Equal(t, []string{"bottom", "hole", "left", "right", "top"}, s.LocationNames())

	_, err = s.Resolve(config.EdgeLocation(Hole))
	var nse *NotSupportedError
	require.True(t, errors.As(err, &nse))
	assert.Equal(t, Hole, nse.Name)
	assert.Equal(t, "location", nse.Kind)
}

func TestHoleCrossingBoundaryWarns(t *testing.T) {
	m := cantilever()
	m.Geometry = config.NewPlateWithHole(1, 1, 0.95, 0.5, 0.1)
	var buf bytes.Buffer
	gen := Generator{Logger: slog.New(slog.NewTextHandler(&buf, nil))}
	_, err := gen.Generate(m)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "hole crosses the plate boundary")

	buf.Reset()
	m.Geometry = config.NewPlateWithHole(1, 1, 0.5, 0.5, 0.1)
	_, err = gen.Generate(m)
	require.NoError(t, err)
	assert.Empty(t, buf.String())
}

func TestResolveNotSupported(t *testing.T) {
	s, err := Generate(cantilever())
	require.NoError(t, err)

	for _, loc := range []config.Location{
		{Coords: []float64{0, 0, 0, 1}},
		config.EdgeLocation("middle"),
		config.EdgeLocation(Hole),
	} {
		_, err := s.Resolve(loc)
		var nse *NotSupportedError
		assert.True(t, errors.As(err, &nse), loc.String())
	}

	ids, err := s.Resolve(config.EdgeLocation(config.Top))
	require.NoError(t, err)
	assert.Equal(t, []int{3}, ids)
}

func TestGenerateCoordinateLocationFails(t *testing.T) {
	m := cantilever()
	m.BoundaryConditions[0].Location = config.Location{Coords: []float64{0, 0, 0, 1}}
	_, err := Generate(m)
	var nse *NotSupportedError
	require.True(t, errors.As(err, &nse))
	assert.True(t, strings.Contains(err.Error(), "fixed_left"))
}

func TestMeshSettings(t *testing.T) {
	m := cantilever()
	m.Mesh = config.MeshParameters{Size: 0.1, ElementType: "quad", Algorithm: 8}
	s, err := Generate(m)
	require.NoError(t, err)
	text := s.Text()
	assert.Contains(t, text, "Mesh.Algorithm = 8;\nRecombine Surface{1};\nMesh 2;\n")

	m.Mesh = config.MeshParameters{Size: 0.1, ElementType: "triangle6"}
	s, err = Generate(m)
	require.NoError(t, err)
	text = s.Text()
	assert.Contains(t, text, "Mesh.ElementOrder = 2;\nMesh 2;\n")
	assert.NotContains(t, text, "Mesh.Algorithm")

	m.Description = "with description"
	s, err = Generate(m)
	require.NoError(t, err)
	assert.Contains(t, s.Text(), "// Description: with description\n")
}
