package config

import (
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
)

// hclFile is the top-level layout of an .hcl model file:
//
//	model_name = "cantilever"
//	geometry "rectangle" {
//	  length = 4
//	  height = 1
//	}
//	mesh { size = 0.1 }
//	material {
//	  E  = 2.1e11
//	  nu = 0.3
//	}
//	boundary_condition "fixed_left" {
//	  location    = "left"
//	  physical_id = 100
//	  constraints {
//	    x = "fixed"
//	    y = "fixed"
//	  }
//	}
type hclFile struct {
	ModelName          string         `hcl:"model_name"`
	Description        string         `hcl:"description,optional"`
	Geometry           *hclGeometry   `hcl:"geometry,block"`
	Mesh               *hclMesh       `hcl:"mesh,block"`
	Material           *hclMaterial   `hcl:"material,block"`
	Layers             []*hclLayer    `hcl:"layer,block"`
	BoundaryConditions []*hclBoundary `hcl:"boundary_condition,block"`
	Loads              []*hclLoad     `hcl:"load,block"`
}

type hclGeometry struct {
	Type         string  `hcl:"type,label"`
	Length       float64 `hcl:"length,optional"`
	Height       float64 `hcl:"height,optional"`
	Width        float64 `hcl:"width,optional"`
	FlangeWidth  float64 `hcl:"flange_width,optional"`
	FlangeHeight float64 `hcl:"flange_height,optional"`
	HoleX        float64 `hcl:"hole_x,optional"`
	HoleY        float64 `hcl:"hole_y,optional"`
	HoleRadius   float64 `hcl:"hole_radius,optional"`
}

type hclMesh struct {
	Size        float64 `hcl:"size"`
	ElementType string  `hcl:"element_type,optional"`
	Algorithm   int     `hcl:"algorithm,optional"`
}

type hclMaterial struct {
	E  float64 `hcl:"E"`
	Nu float64 `hcl:"nu"`
}

type hclLayer struct {
	Name       string       `hcl:"name,label"`
	Region     []float64    `hcl:"region"`
	PhysicalID int          `hcl:"physical_id"`
	Material   *hclMaterial `hcl:"material,block"`
}

type hclConstraints struct {
	X string `hcl:"x,optional"`
	Y string `hcl:"y,optional"`
}

type hclBoundary struct {
	Name        string          `hcl:"name,label"`
	Location    cty.Value       `hcl:"location"`
	PhysicalID  int             `hcl:"physical_id"`
	Constraints *hclConstraints `hcl:"constraints,block"`
}

type hclForce struct {
	X float64 `hcl:"x,optional"`
	Y float64 `hcl:"y,optional"`
}

type hclLoad struct {
	Name         string    `hcl:"name,label"`
	Location     cty.Value `hcl:"location"`
	PhysicalID   int       `hcl:"physical_id"`
	Force        *hclForce `hcl:"force,block"`
	Distribution string    `hcl:"distribution,optional"`
}

// parseHCL decodes an HCL model; filename is only used in diagnostics
func parseHCL(data []byte, filename string) (*Model, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}

	var f hclFile
	diags = gohcl.DecodeBody(file.Body, nil, &f)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}
	return f.model()
}

func (f *hclFile) model() (*Model, error) {
	m := &Model{
		ModelName:   f.ModelName,
		Description: f.Description,
	}
	if f.Geometry == nil {
		return nil, fmt.Errorf("missing geometry block")
	}
	g, err := f.Geometry.geometry()
	if err != nil {
		return nil, err
	}
	m.Geometry = g

	if f.Mesh == nil {
		return nil, fmt.Errorf("missing mesh block")
	}
	m.Mesh = MeshParameters{
		Size:        f.Mesh.Size,
		ElementType: f.Mesh.ElementType,
		Algorithm:   f.Mesh.Algorithm,
	}

	if f.Material != nil {
		m.Material = &Material{E: f.Material.E, Nu: f.Material.Nu}
	}
	for _, l := range f.Layers {
		layer := Layer{Name: l.Name, Region: l.Region, PhysicalID: l.PhysicalID}
		if l.Material == nil {
			return nil, fmt.Errorf("layer %q: missing material block", l.Name)
		}
		layer.Material = Material{E: l.Material.E, Nu: l.Material.Nu}
		m.Layers = append(m.Layers, layer)
	}

	for _, b := range f.BoundaryConditions {
		loc, err := ctyLocation(b.Location)
		if err != nil {
			return nil, fmt.Errorf("boundary condition %q: %w", b.Name, err)
		}
		bc := BoundaryCondition{Name: b.Name, Location: loc, PhysicalID: b.PhysicalID}
		if b.Constraints != nil {
			if bc.Constraints.X, err = ParseConstraint(b.Constraints.X); err != nil {
				return nil, fmt.Errorf("boundary condition %q: %w", b.Name, err)
			}
			if bc.Constraints.Y, err = ParseConstraint(b.Constraints.Y); err != nil {
				return nil, fmt.Errorf("boundary condition %q: %w", b.Name, err)
			}
		}
		m.BoundaryConditions = append(m.BoundaryConditions, bc)
	}

	for _, l := range f.Loads {
		loc, err := ctyLocation(l.Location)
		if err != nil {
			return nil, fmt.Errorf("load %q: %w", l.Name, err)
		}
		load := Load{Name: l.Name, Location: loc, PhysicalID: l.PhysicalID, Distribution: l.Distribution}
		if l.Force != nil {
			load.Force = Force{X: l.Force.X, Y: l.Force.Y}
		}
		m.Loads = append(m.Loads, load)
	}
	return m, nil
}

func (g *hclGeometry) geometry() (Geometry, error) {
	switch GeometryKind(g.Type) {
	case KindRectangle:
		return NewRectangle(g.Length, g.Height), nil
	case KindLShape:
		return NewLShape(g.Width, g.Height, g.FlangeWidth, g.FlangeHeight), nil
	case KindPlateWithHole:
		return NewPlateWithHole(g.Length, g.Height, g.HoleX, g.HoleY, g.HoleRadius), nil
	}
	return Geometry{}, fmt.Errorf("unknown geometry type %q", g.Type)
}

// ctyLocation accepts a string edge name or a tuple/list of numbers
func ctyLocation(v cty.Value) (Location, error) {
	if v.IsNull() || !v.IsKnown() {
		return Location{}, fmt.Errorf("location is required")
	}
	ty := v.Type()
	switch {
	case ty.Equals(cty.String):
		return EdgeLocation(v.AsString()), nil
	case ty.IsTupleType() || ty.IsListType():
		coords := make([]float64, 0, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			_, elem := it.Element()
			if elem.IsNull() || !elem.Type().Equals(cty.Number) {
				return Location{}, fmt.Errorf("location coordinates must be numbers")
			}
			f, _ := elem.AsBigFloat().Float64()
			coords = append(coords, f)
		}
		return Location{Coords: coords}, nil
	}
	return Location{}, fmt.Errorf("location must be an edge name or a coordinate list, got %s",
		ty.FriendlyName())
}
