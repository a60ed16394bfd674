// Package templates builds configuration models for the common geometries
// without writing YAML by hand. Physical ids are allocated by explicit
// counters owned by each builder: boundary conditions and loads from 100,
// layers from 1.
package templates

import (
	"fmt"

	"github.com/notargets/femprep/config"
)

const (
	firstBoundaryID = 100
	firstLayerID    = 1
)

// IDCounter hands out increasing physical ids
type IDCounter struct {
	next int
}

// NewIDCounter returns a counter whose first id is start
func NewIDCounter(start int) *IDCounter {
	return &IDCounter{next: start}
}

// Next returns the current id and advances the counter
func (c *IDCounter) Next() int {
	id := c.next
	c.next++
	return id
}

// Peek returns the id the next call to Next will return
func (c *IDCounter) Peek() int {
	return c.next
}

// AtLeast moves the counter forward to n if it is behind
func (c *IDCounter) AtLeast(n int) {
	c.next = max(c.next, n)
}

// Base carries the state shared by every builder
type Base struct {
	ModelName   string
	Description string
	Mesh        config.MeshParameters

	boundaryConditions []config.BoundaryCondition
	loads              []config.Load
	ids                *IDCounter
}

func newBase(modelName string, meshSize float64) Base {
	return Base{
		ModelName: modelName,
		Mesh:      config.MeshParameters{Size: meshSize, ElementType: "triangle"},
		ids:       NewIDCounter(firstBoundaryID),
	}
}

// SetMesh sets the mesh size, element type and gmsh algorithm (0 for the engine default)
func (b *Base) SetMesh(size float64, elementType string, algorithm int) *Base {
	b.Mesh = config.MeshParameters{Size: size, ElementType: elementType, Algorithm: algorithm}
	return b
}

// SetDescription sets the model description
func (b *Base) SetDescription(description string) *Base {
	b.Description = description
	return b
}

// AddBC constrains the named edge; name defaults to bc_<location>
func (b *Base) AddBC(location string, x, y config.Constraint, name string) *Base {
	if name == "" {
		name = "bc_" + location
	}
	b.boundaryConditions = append(b.boundaryConditions, config.BoundaryCondition{
		Name:        name,
		Location:    config.EdgeLocation(location),
		PhysicalID:  b.ids.Next(),
		Constraints: config.Constraints{X: x, Y: y},
	})
	return b
}

// AddLoad applies a uniformly distributed total force to the named edge;
// name defaults to load_<location>
func (b *Base) AddLoad(location string, fx, fy float64, name string) *Base {
	if name == "" {
		name = "load_" + location
	}
	b.loads = append(b.loads, config.Load{
		Name:         name,
		Location:     config.EdgeLocation(location),
		PhysicalID:   b.ids.Next(),
		Force:        config.Force{X: fx, Y: fy},
		Distribution: config.Uniform,
	})
	return b
}

func (b *Base) model(g config.Geometry) *config.Model {
	m := &config.Model{
		ModelName:          b.ModelName,
		Description:        b.Description,
		Geometry:           g,
		Mesh:               b.Mesh,
		BoundaryConditions: append([]config.BoundaryCondition(nil), b.boundaryConditions...),
	}
	if len(b.loads) > 0 {
		m.Loads = append([]config.Load(nil), b.loads...)
	}
	return m
}

func finish(m *config.Model) (*config.Model, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func save(m *config.Model, err error, path string) error {
	if err != nil {
		return err
	}
	return m.SaveYAML(path)
}

// RectangularPlate is a single material rectangle
type RectangularPlate struct {
	Base
	Length, Height float64
	Material       config.Material
}

// NewRectangularPlate returns a plate with E = 1e6 and nu = 0.3
func NewRectangularPlate(length, height, meshSize float64) *RectangularPlate {
	return &RectangularPlate{
		Base:     newBase("rectangular_plate", meshSize),
		Length:   length,
		Height:   height,
		Material: config.Material{E: 1e6, Nu: 0.3},
	}
}

// SetMaterial sets the elastic properties
func (p *RectangularPlate) SetMaterial(E, nu float64) *RectangularPlate {
	p.Material = config.Material{E: E, Nu: nu}
	return p
}

// Build returns the validated model
func (p *RectangularPlate) Build() (*config.Model, error) {
	m := p.model(config.NewRectangle(p.Length, p.Height))
	mat := p.Material
	m.Material = &mat
	return finish(m)
}

// Save writes the validated model as YAML
func (p *RectangularPlate) Save(path string) error {
	m, err := p.Build()
	return save(m, err, path)
}

// LayeredPlate is a rectangle made of horizontal material layers
type LayeredPlate struct {
	Base
	Length, Height float64

	layers   []config.Layer
	layerIDs *IDCounter
}

// NewLayeredPlate returns a plate with no layers
func NewLayeredPlate(length, height, meshSize float64) *LayeredPlate {
	return &LayeredPlate{
		Base:     newBase("layered_plate", meshSize),
		Length:   length,
		Height:   height,
		layerIDs: NewIDCounter(firstLayerID),
	}
}

// AddLayer appends a layer covering y in [yMin, yMax].
// Boundary ids are kept at least 100 above the layer ids.
func (p *LayeredPlate) AddLayer(name string, yMin, yMax, E, nu float64) *LayeredPlate {
	p.layers = append(p.layers, config.Layer{
		Name:       name,
		Region:     []float64{yMin, yMax},
		PhysicalID: p.layerIDs.Next(),
		Material:   config.Material{E: E, Nu: nu},
	})
	p.ids.AtLeast(p.layerIDs.Peek() + firstBoundaryID)
	return p
}

// Build returns the validated model; at least one layer is required
func (p *LayeredPlate) Build() (*config.Model, error) {
	if len(p.layers) == 0 {
		return nil, fmt.Errorf("layered plate %q: at least one layer must be added", p.ModelName)
	}
	m := p.model(config.NewRectangle(p.Length, p.Height))
	m.Layers = append([]config.Layer(nil), p.layers...)
	return finish(m)
}

// Save writes the validated model as YAML
func (p *LayeredPlate) Save(path string) error {
	m, err := p.Build()
	return save(m, err, path)
}

// LShapeBeam is a single material L-shaped outline
type LShapeBeam struct {
	Base
	Shape    config.LShape
	Material config.Material
}

// NewLShapeBeam returns a beam with E = 1e6 and nu = 0.3
func NewLShapeBeam(width, height, flangeWidth, flangeHeight, meshSize float64) *LShapeBeam {
	return &LShapeBeam{
		Base: newBase("lshape_beam", meshSize),
		Shape: config.LShape{
			Width: width, Height: height, FlangeWidth: flangeWidth, FlangeHeight: flangeHeight,
		},
		Material: config.Material{E: 1e6, Nu: 0.3},
	}
}

// SetMaterial sets the elastic properties
func (b *LShapeBeam) SetMaterial(E, nu float64) *LShapeBeam {
	b.Material = config.Material{E: E, Nu: nu}
	return b
}

// Build returns the validated model
func (b *LShapeBeam) Build() (*config.Model, error) {
	s := b.Shape
	m := b.model(config.NewLShape(s.Width, s.Height, s.FlangeWidth, s.FlangeHeight))
	mat := b.Material
	m.Material = &mat
	return finish(m)
}

// Save writes the validated model as YAML
func (b *LShapeBeam) Save(path string) error {
	m, err := b.Build()
	return save(m, err, path)
}

// PlateWithHole is a single material rectangle with a circular hole
type PlateWithHole struct {
	Base
	Plate    config.PlateWithHole
	Material config.Material
}

// NewPlateWithHole returns a plate with E = 1e6, nu = 0.3 and mesh size 0.001
func NewPlateWithHole(length, height, holeX, holeY, holeRadius float64) *PlateWithHole {
	return &PlateWithHole{
		Base: newBase("plate_with_hole", 0.001),
		Plate: config.PlateWithHole{
			Length: length, Height: height, HoleX: holeX, HoleY: holeY, HoleRadius: holeRadius,
		},
		Material: config.Material{E: 1e6, Nu: 0.3},
	}
}

// SetMaterial sets the elastic properties
func (p *PlateWithHole) SetMaterial(E, nu float64) *PlateWithHole {
	p.Material = config.Material{E: E, Nu: nu}
	return p
}

// Build returns the validated model
func (p *PlateWithHole) Build() (*config.Model, error) {
	h := p.Plate
	m := p.model(config.NewPlateWithHole(h.Length, h.Height, h.HoleX, h.HoleY, h.HoleRadius))
	mat := p.Material
	m.Material = &mat
	return finish(m)
}

// Save writes the validated model as YAML
func (p *PlateWithHole) Save(path string) error {
	m, err := p.Build()
	return save(m, err, path)
}
