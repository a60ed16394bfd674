package config

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError lists every problem found in a model
type ValidationError struct {
	ModelName string
	Problems  []error
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.Error()
	}
	return fmt.Sprintf("invalid configuration %q: %s", e.ModelName, strings.Join(msgs, "; "))
}

func (e *ValidationError) Unwrap() []error {
	return e.Problems
}

// ErrDuplicatePhysicalID is wrapped by problems reporting a reused physical id
var ErrDuplicatePhysicalID = errors.New("duplicate physical_id")

// Validate checks the invariants the geometry generator and the converter rely on.
//
// The hole radius of a plate with hole is not checked against the plate
// boundary; only the hole centre must be inside the plate.
func (m *Model) Validate() error {
	var problems []error
	add := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Errorf(format, args...))
	}

	if strings.TrimSpace(m.ModelName) == "" {
		add("model_name is required")
	}

	problems = append(problems, m.Geometry.validate()...)

	// Mesh
	if m.Mesh.Size <= 0 {
		add("mesh.size must be > 0, got %g", m.Mesh.Size)
	}
	if _, err := m.SolverElementType(); err != nil {
		add("mesh.element_type: %v", err)
	}
	if m.Mesh.Algorithm != 0 && (m.Mesh.Algorithm < 1 || m.Mesh.Algorithm > 9) {
		add("mesh.algorithm must be between 1 and 9, got %d", m.Mesh.Algorithm)
	}

	// Materials
	switch {
	case m.Material != nil && len(m.Layers) > 0:
		add("specify either \"material\" or \"layers\", not both")
	case m.Material == nil && len(m.Layers) == 0:
		add("must specify either \"material\" or \"layers\"")
	}
	if m.Material != nil {
		if err := m.Material.validate(); err != nil {
			add("material: %v", err)
		}
	}
	if len(m.Layers) > 0 && m.Geometry.Kind != KindRectangle {
		add("layers are only supported for rectangle geometry, got %s", m.Geometry.Kind)
	}
	for i, layer := range m.Layers {
		if len(layer.Region) != 2 {
			add("layer %q: region must have exactly 2 values, got %d", layer.Name, len(layer.Region))
		} else if layer.Region[0] >= layer.Region[1] {
			add("layer %q: region[0] must be < region[1]", layer.Name)
		}
		if layer.PhysicalID < 1 {
			add("layer %q: physical_id must be >= 1", layer.Name)
		}
		if err := layer.Material.validate(); err != nil {
			add("layer %q material: %v", layer.Name, err)
		}
		for _, other := range m.Layers[i+1:] {
			if len(layer.Region) != 2 || len(other.Region) != 2 {
				continue
			}
			if !(layer.YMax() <= other.YMin() || other.YMax() <= layer.YMin()) {
				add("layers %q and %q overlap", layer.Name, other.Name)
			}
		}
	}

	// Boundary conditions and loads
	for _, bc := range m.BoundaryConditions {
		if bc.PhysicalID < 1 {
			add("boundary condition %q: physical_id must be >= 1", bc.Name)
		}
		if bc.Location.IsEdge() && bc.Location.Edge == "" {
			add("boundary condition %q: location is required", bc.Name)
		}
	}
	for _, load := range m.Loads {
		if load.PhysicalID < 1 {
			add("load %q: physical_id must be >= 1", load.Name)
		}
		if load.Location.IsEdge() && load.Location.Edge == "" {
			add("load %q: location is required", load.Name)
		}
		if load.Distribution != "" && load.Distribution != Uniform {
			add("load %q: distribution must be %q, got %q", load.Name, Uniform, load.Distribution)
		}
	}

	// physical_id is the join key between the geometry script and the mesh
	seen := make(map[int]string)
	claim := func(id int, owner string) {
		if prev, ok := seen[id]; ok {
			problems = append(problems, fmt.Errorf("%w: %d used by %s and %s",
				ErrDuplicatePhysicalID, id, prev, owner))
			return
		}
		seen[id] = owner
	}
	for _, bc := range m.BoundaryConditions {
		claim(bc.PhysicalID, fmt.Sprintf("boundary condition %q", bc.Name))
	}
	for _, load := range m.Loads {
		claim(load.PhysicalID, fmt.Sprintf("load %q", load.Name))
	}
	for _, layer := range m.Layers {
		claim(layer.PhysicalID, fmt.Sprintf("layer %q", layer.Name))
	}

	if len(problems) > 0 {
		return &ValidationError{ModelName: m.ModelName, Problems: problems}
	}
	return nil
}

func (mat Material) validate() error {
	if mat.E <= 0 {
		return fmt.Errorf("E must be > 0, got %g", mat.E)
	}
	if mat.Nu < 0 || mat.Nu >= 0.5 {
		return fmt.Errorf("nu must be in [0, 0.5), got %g", mat.Nu)
	}
	return nil
}

func (g Geometry) validate() (problems []error) {
	add := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Errorf(format, args...))
	}
	positive := func(name string, v float64) {
		if v <= 0 {
			add("geometry.%s must be > 0, got %g", name, v)
		}
	}

	switch g.Kind {
	case KindRectangle:
		if g.Rectangle == nil {
			add("rectangle geometry has no parameters")
			return
		}
		positive("length", g.Rectangle.Length)
		positive("height", g.Rectangle.Height)
	case KindLShape:
		if g.LShape == nil {
			add("lshape geometry has no parameters")
			return
		}
		ls := g.LShape
		positive("width", ls.Width)
		positive("height", ls.Height)
		positive("flange_width", ls.FlangeWidth)
		positive("flange_height", ls.FlangeHeight)
		if ls.FlangeWidth > ls.Width {
			add("flange_width must be <= width")
		}
		if ls.FlangeHeight > ls.Height {
			add("flange_height must be <= height")
		}
	case KindPlateWithHole:
		if g.PlateWithHole == nil {
			add("plate_with_hole geometry has no parameters")
			return
		}
		p := g.PlateWithHole
		positive("length", p.Length)
		positive("height", p.Height)
		positive("hole_radius", p.HoleRadius)
		if p.HoleX < 0 || p.HoleX > p.Length {
			add("hole_x must be between 0 and %g", p.Length)
		}
		if p.HoleY < 0 || p.HoleY > p.Height {
			add("hole_y must be between 0 and %g", p.Height)
		}
	default:
		add("unknown geometry type %q", g.Kind)
	}
	return
}
