package templates

import (
	"path/filepath"
	"testing"

	"github.com/notargets/femprep/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDCounter(t *testing.T) {
	c := NewIDCounter(100)
	assert.Equal(t, 100, c.Next())
	assert.Equal(t, 101, c.Next())
	c.AtLeast(50)
	assert.Equal(t, 102, c.Peek())
	c.AtLeast(200)
	assert.Equal(t, 200, c.Next())
}

func TestRectangularPlate(t *testing.T) {
	p := NewRectangularPlate(4, 1, 0.1).SetMaterial(2.1e11, 0.3)
	p.ModelName = "cantilever"
	p.AddBC(config.Left, config.Fixed, config.Fixed, "fixed_left").
		AddLoad(config.Right, 0, -1000, "")

	m, err := p.Build()
	require.NoError(t, err)
	assert.Equal(t, "cantilever", m.ModelName)
	require.Len(t, m.BoundaryConditions, 1)
	assert.Equal(t, 100, m.BoundaryConditions[0].PhysicalID)
	require.Len(t, m.Loads, 1)
	assert.Equal(t, 101, m.Loads[0].PhysicalID)
	assert.Equal(t, "load_right", m.Loads[0].Name)
	assert.Equal(t, config.Uniform, m.Loads[0].Distribution)
	assert.Equal(t, &config.Material{E: 2.1e11, Nu: 0.3}, m.Material)
}

func TestNoLoadsIsNil(t *testing.T) {
	p := NewRectangularPlate(1, 1, 0.1)
	p.AddBC(config.Bottom, config.Free, config.Fixed, "")
	m, err := p.Build()
	require.NoError(t, err)
	assert.Nil(t, m.Loads)
	assert.Equal(t, "bc_bottom", m.BoundaryConditions[0].Name)
}

func TestLayeredPlateIDs(t *testing.T) {
	p := NewLayeredPlate(2, 1, 0.1)
	p.AddLayer("steel", 0, 0.5, 2e11, 0.3).AddLayer("aluminium", 0.5, 1, 7e10, 0.33)
	p.AddBC(config.Left, config.Fixed, config.Fixed, "")

	m, err := p.Build()
	require.NoError(t, err)
	require.Len(t, m.Layers, 2)
	assert.Equal(t, 1, m.Layers[0].PhysicalID)
	assert.Equal(t, 2, m.Layers[1].PhysicalID)
	// two layers push the boundary counter to 3 + 100
	assert.Equal(t, 103, m.BoundaryConditions[0].PhysicalID)
	assert.Nil(t, m.Material)
}

func TestLayeredPlateRequiresLayer(t *testing.T) {
	_, err := NewLayeredPlate(2, 1, 0.1).Build()
	assert.ErrorContains(t, err, "at least one layer")
}

func TestSeparateBuildersDoNotShareIDs(t *testing.T) {
	a := NewRectangularPlate(1, 1, 0.1)
	a.AddBC(config.Left, config.Fixed, config.Fixed, "")
	b := NewRectangularPlate(1, 1, 0.1)
	b.AddBC(config.Left, config.Fixed, config.Fixed, "")

	ma, err := a.Build()
	require.NoError(t, err)
	mb, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, ma.BoundaryConditions[0].PhysicalID, mb.BoundaryConditions[0].PhysicalID)
}

func TestLShapeAndPlateWithHole(t *testing.T) {
	l := NewLShapeBeam(2, 2, 0.5, 0.5, 0.1)
	l.AddBC(config.Bottom, config.Fixed, config.Fixed, "")
	m, err := l.Build()
	require.NoError(t, err)
	assert.Equal(t, config.KindLShape, m.Geometry.Kind)

	h := NewPlateWithHole(0.1, 0.1, 0.05, 0.05, 0.01)
	h.SetMesh(0.005, "quad", 8)
	h.AddBC(config.Left, config.Fixed, config.Free, "")
	m, err = h.Build()
	require.NoError(t, err)
	assert.Equal(t, 8, m.Mesh.Algorithm)
	assert.Equal(t, "quad", m.Mesh.ElementType)

	bad := NewLShapeBeam(1, 1, 2, 0.5, 0.1)
	_, err = bad.Build()
	assert.Error(t, err)
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plate.yaml")
	p := NewRectangularPlate(3, 1, 0.2)
	p.SetDescription("simply supported")
	p.AddBC(config.Left, config.Fixed, config.Fixed, "").AddLoad(config.Top, 0, -10, "")
	require.NoError(t, p.Save(path))

	m, err := config.LoadFile(path)
	require.NoError(t, err)
	want, err := p.Build()
	require.NoError(t, err)
	assert.Equal(t, want, m)
}
