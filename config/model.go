package config

import (
	"fmt"

	"github.com/notargets/femprep/element"
)

// GeometryKind names the supported domain shapes
type GeometryKind string

const (
	KindRectangle     GeometryKind = "rectangle"
	KindLShape        GeometryKind = "lshape"
	KindPlateWithHole GeometryKind = "plate_with_hole"
)

// Rectangle is a length x height plate with its lower left corner at the origin
type Rectangle struct {
	Length float64 `yaml:"length"`
	Height float64 `yaml:"height"`
}

// LShape is an outline whose lower part is FlangeWidth wide and whose upper
// FlangeHeight band spans the full Width.
type LShape struct {
	Width        float64 `yaml:"width"`         // Total width
	Height       float64 `yaml:"height"`        // Total height
	FlangeWidth  float64 `yaml:"flange_width"`  // Width of the lower (vertical) run
	FlangeHeight float64 `yaml:"flange_height"` // Height of the upper (horizontal) flange
}

// PlateWithHole is a rectangle with one circular hole.
// Only the hole centre is required to lie inside the plate.
type PlateWithHole struct {
	Length     float64 `yaml:"length"`
	Height     float64 `yaml:"height"`
	HoleX      float64 `yaml:"hole_x"`
	HoleY      float64 `yaml:"hole_y"`
	HoleRadius float64 `yaml:"hole_radius"`
}

// HoleInside reports whether the whole hole, not just its centre, is inside the plate
func (p PlateWithHole) HoleInside() bool {
	return p.HoleX-p.HoleRadius >= 0 && p.HoleX+p.HoleRadius <= p.Length &&
		p.HoleY-p.HoleRadius >= 0 && p.HoleY+p.HoleRadius <= p.Height
}

// Geometry is a tagged union: Kind selects which one of the variant pointers is set
type Geometry struct {
	Kind          GeometryKind
	Rectangle     *Rectangle
	LShape        *LShape
	PlateWithHole *PlateWithHole
}

// NewRectangle returns a rectangle geometry
func NewRectangle(length, height float64) Geometry {
	return Geometry{Kind: KindRectangle, Rectangle: &Rectangle{Length: length, Height: height}}
}

// NewLShape returns an L-shape geometry
func NewLShape(width, height, flangeWidth, flangeHeight float64) Geometry {
	return Geometry{Kind: KindLShape, LShape: &LShape{
		Width: width, Height: height, FlangeWidth: flangeWidth, FlangeHeight: flangeHeight,
	}}
}

// NewPlateWithHole returns a plate-with-hole geometry
func NewPlateWithHole(length, height, holeX, holeY, holeRadius float64) Geometry {
	return Geometry{Kind: KindPlateWithHole, PlateWithHole: &PlateWithHole{
		Length: length, Height: height, HoleX: holeX, HoleY: holeY, HoleRadius: holeRadius,
	}}
}

// Extent returns the bounding box size of the geometry
func (g Geometry) Extent() (width, height float64) {
	switch {
	case g.Rectangle != nil:
		return g.Rectangle.Length, g.Rectangle.Height
	case g.LShape != nil:
		return g.LShape.Width, g.LShape.Height
	case g.PlateWithHole != nil:
		return g.PlateWithHole.Length, g.PlateWithHole.Height
	}
	return 0, 0
}

// Material holds linear elastic properties
type Material struct {
	E  float64 `yaml:"E"`  // Young's modulus
	Nu float64 `yaml:"nu"` // Poisson's ratio
}

// Layer is a horizontal material band of a layered rectangle
type Layer struct {
	Name       string    `yaml:"name"`
	Region     []float64 `yaml:"region,flow"` // [yMin, yMax]
	PhysicalID int       `yaml:"physical_id"` // Physical surface ID
	Material   Material  `yaml:"material"`
}

// YMin returns the lower bound of the layer
func (l Layer) YMin() float64 {
	if len(l.Region) == 0 {
		return 0
	}
	return l.Region[0]
}

// YMax returns the upper bound of the layer
func (l Layer) YMax() float64 {
	if len(l.Region) < 2 {
		return 0
	}
	return l.Region[1]
}

// Constraints holds the per-direction constraint of a boundary condition
type Constraints struct {
	X Constraint `yaml:"x"`
	Y Constraint `yaml:"y"`
}

// BoundaryCondition constrains the nodes of a located boundary curve set
type BoundaryCondition struct {
	Name        string      `yaml:"name"`
	Location    Location    `yaml:"location"`
	PhysicalID  int         `yaml:"physical_id"` // Physical line ID
	Constraints Constraints `yaml:"constraints"`
}

// Force is a total force vector
type Force struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// Uniform is the only load distribution policy: the total force is divided
// evenly among the loaded nodes.
const Uniform = "uniform"

// Load applies a total force to a located boundary curve set
type Load struct {
	Name         string   `yaml:"name"`
	Location     Location `yaml:"location"`
	PhysicalID   int      `yaml:"physical_id"` // Physical line ID
	Force        Force    `yaml:"force"`
	Distribution string   `yaml:"distribution,omitempty"`
}

// MeshParameters controls the external mesh generation
type MeshParameters struct {
	Size        float64 `yaml:"size"`                   // Characteristic element size
	ElementType string  `yaml:"element_type,omitempty"` // triangle, triangle6 or quad; triangle when empty
	Algorithm   int     `yaml:"algorithm,omitempty"`    // gmsh Mesh.Algorithm, 0 means engine default
}

// Element returns the requested surface element type
func (mp MeshParameters) Element() (element.Type, error) {
	if mp.ElementType == "" {
		return element.Triangle, nil
	}
	return element.ParseName(mp.ElementType)
}

// Model is the complete description of a 2D elastic problem.
// Exactly one of Material and Layers is set.
type Model struct {
	ModelName          string              `yaml:"model_name"`
	Description        string              `yaml:"description,omitempty"`
	Geometry           Geometry            `yaml:"geometry"`
	Mesh               MeshParameters      `yaml:"mesh"`
	Material           *Material           `yaml:"material,omitempty"`
	Layers             []Layer             `yaml:"layers,omitempty"`
	BoundaryConditions []BoundaryCondition `yaml:"boundary_conditions"`
	Loads              []Load              `yaml:"loads,omitempty"`
}

// Layered reports whether the model uses material layers
func (m *Model) Layered() bool {
	return len(m.Layers) > 0
}

// SolverElementType maps the mesh element type to the solver element type code
func (m *Model) SolverElementType() (int, error) {
	t, err := m.Mesh.Element()
	if err != nil {
		return 0, err
	}
	return element.SolverCode(t)
}

// Materials returns one material per solver material row, in declaration order
func (m *Model) Materials() []Material {
	if m.Layered() {
		mats := make([]Material, len(m.Layers))
		for i, layer := range m.Layers {
			mats[i] = layer.Material
		}
		return mats
	}
	if m.Material == nil {
		return nil
	}
	return []Material{*m.Material}
}

// String returns a one line summary of the model
func (m *Model) String() string {
	w, h := m.Geometry.Extent()
	return fmt.Sprintf("%s: %s %gx%g, %d materials, %d boundary conditions, %d loads, mesh size %g",
		m.ModelName, m.Geometry.Kind, w, h, len(m.Materials()),
		len(m.BoundaryConditions), len(m.Loads), m.Mesh.Size)
}
