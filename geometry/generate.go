package geometry

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/notargets/femprep/config"
	"github.com/notargets/femprep/utils"
)

// MaterialGroupID is the physical surface id of a single material model
const MaterialGroupID = 1

// Generator builds scripts; Logger receives non-fatal warnings (nil means slog.Default)
type Generator struct {
	Logger *slog.Logger
}

// Generate builds the script of m with the default logger
func Generate(m *config.Model) (*Script, error) {
	return Generator{}.Generate(m)
}

// Generate builds the script of a model.
// The only failure for a valid model is a *NotSupportedError from a
// boundary condition or load location; layers on a geometry other than a
// rectangle are reported the same way.
func (g Generator) Generate(m *config.Model) (*Script, error) {
	logger := utils.OrDefault(g.Logger)
	elementType, err := m.Mesh.Element()
	if err != nil {
		return nil, err
	}
	s := newScript(m, elementType)

	geom := m.Geometry
	switch {
	case m.Layered() && geom.Kind != config.KindRectangle:
		return nil, &NotSupportedError{Kind: "geometry", Name: string(geom.Kind),
			Reason: "material layers require a rectangle"}
	case geom.Kind == config.KindRectangle && geom.Rectangle != nil && m.Layered():
		s.layeredRectangle(*geom.Rectangle, m.Layers)
	case geom.Kind == config.KindRectangle && geom.Rectangle != nil:
		s.rectangle(*geom.Rectangle)
	case geom.Kind == config.KindLShape && geom.LShape != nil:
		s.lshape(*geom.LShape)
	case geom.Kind == config.KindPlateWithHole && geom.PlateWithHole != nil:
		p := *geom.PlateWithHole
		if !p.HoleInside() {
			logger.Warn("hole crosses the plate boundary",
				"hole_x", p.HoleX, "hole_y", p.HoleY, "hole_radius", p.HoleRadius,
				"length", p.Length, "height", p.Height)
		}
		s.plateWithHole(p)
	default:
		return nil, fmt.Errorf("model %q: unsupported geometry %q", m.ModelName, geom.Kind)
	}

	if err := s.physicalGroups(m); err != nil {
		return nil, err
	}
	logger.Debug("generated geometry script",
		"points", len(s.Points), "curves", len(s.Curves),
		"surfaces", len(s.Surfaces), "physical_groups", len(s.PhysicalGroups))
	return s, nil
}

func (s *Script) rectangle(r config.Rectangle) {
	p1 := s.addPoint(0, 0)
	p2 := s.addPoint(r.Length, 0)
	p3 := s.addPoint(r.Length, r.Height)
	p4 := s.addPoint(0, r.Height)

	bottom := s.addLine(p1, p2, config.Bottom)
	right := s.addLine(p2, p3, config.Right)
	top := s.addLine(p3, p4, config.Top)
	left := s.addLine(p4, p1, config.Left)

	loop := s.addLoop(false, bottom, right, top, left)
	s.addSurface(loop)

	s.Locations[config.Bottom] = []int{bottom}
	s.Locations[config.Right] = []int{right}
	s.Locations[config.Top] = []int{top}
	s.Locations[config.Left] = []int{left}
}

// layeredRectangle builds one surface per layer over a shared grid of points.
// Layers meeting at a common y reuse the same two points and the same
// interface line, so the mesh is conforming across the interface.
func (s *Script) layeredRectangle(r config.Rectangle, layers []config.Layer) {
	sorted := append([]config.Layer(nil), layers...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].YMin() < sorted[j].YMin() })

	ys := []float64{0}
	for _, layer := range sorted {
		ys = append(ys, layer.YMin(), layer.YMax())
	}
	sort.Float64s(ys)
	ys = uniqueSorted(ys)

	type corner struct{ left, right int }
	grid := make(map[float64]corner, len(ys))
	for _, y := range ys {
		grid[y] = corner{left: s.addPoint(0, y), right: s.addPoint(r.Length, y)}
	}

	// horizontal lines keyed by their y, drawn right to left as layer tops
	topLine := make(map[float64]int)

	var lefts, rights []int
	for i, layer := range sorted {
		lo, hi := grid[layer.YMin()], grid[layer.YMax()]

		var bottom, loopBottom int
		if id, ok := topLine[layer.YMin()]; ok {
			bottom, loopBottom = id, -id
		} else {
			bottom = s.addLine(lo.left, lo.right, "")
			loopBottom = bottom
		}
		right := s.addLine(lo.right, hi.right, "")
		top := s.addLine(hi.right, hi.left, "")
		left := s.addLine(hi.left, lo.left, "")
		topLine[layer.YMax()] = top

		loop := s.addLoop(false, loopBottom, right, top, left)
		s.addSurface(loop)

		lefts = append(lefts, left)
		rights = append(rights, right)
		if i == 0 {
			s.Locations[config.Bottom] = []int{bottom}
		}
		if i == len(sorted)-1 {
			s.Locations[config.Top] = []int{top}
		}
	}
	s.Locations[config.Left] = lefts
	s.Locations[config.Right] = rights
}

func (s *Script) lshape(l config.LShape) {
	innerY := l.Height - l.FlangeHeight
	p1 := s.addPoint(0, 0)
	p2 := s.addPoint(l.FlangeWidth, 0)
	p3 := s.addPoint(l.FlangeWidth, innerY)
	p4 := s.addPoint(l.Width, innerY)
	p5 := s.addPoint(l.Width, l.Height)
	p6 := s.addPoint(0, l.Height)

	l1 := s.addLine(p1, p2, "")
	l2 := s.addLine(p2, p3, "")
	l3 := s.addLine(p3, p4, "")
	l4 := s.addLine(p4, p5, "")
	l5 := s.addLine(p5, p6, "")
	l6 := s.addLine(p6, p1, "")

	loop := s.addLoop(false, l1, l2, l3, l4, l5, l6)
	s.addSurface(loop)

	s.Locations[config.Bottom] = []int{l1}
	s.Locations[config.Left] = []int{l6}
	s.Locations[config.Right] = []int{l2, l4}
	s.Locations[config.Top] = []int{l5}
}

// Hole is the location key of the four hole arcs
const Hole = "hole"

func (s *Script) plateWithHole(p config.PlateWithHole) {
	p1 := s.addPoint(0, 0)
	p2 := s.addPoint(p.Length, 0)
	p3 := s.addPoint(p.Length, p.Height)
	p4 := s.addPoint(0, p.Height)

	centre := s.addPoint(p.HoleX, p.HoleY)
	east := s.addPoint(p.HoleX+p.HoleRadius, p.HoleY)
	north := s.addPoint(p.HoleX, p.HoleY+p.HoleRadius)
	west := s.addPoint(p.HoleX-p.HoleRadius, p.HoleY)
	south := s.addPoint(p.HoleX, p.HoleY-p.HoleRadius)

	l1 := s.addLine(p1, p2, "")
	l2 := s.addLine(p2, p3, "")
	l3 := s.addLine(p3, p4, "")
	l4 := s.addLine(p4, p1, "")

	// quarter arcs, counter-clockwise from the east point
	a1 := s.addArc(east, centre, north)
	a2 := s.addArc(north, centre, west)
	a3 := s.addArc(west, centre, south)
	a4 := s.addArc(south, centre, east)

	outer := s.addLoop(false, l1, l2, l3, l4)
	hole := s.addLoop(true, a1, a2, a3, a4)
	s.addSurface(outer, hole)

	s.Locations[config.Bottom] = []int{l1}
	s.Locations[config.Right] = []int{l2}
	s.Locations[config.Top] = []int{l3}
	s.Locations[config.Left] = []int{l4}
	s.Locations[Hole] = []int{a1, a2, a3, a4}
}

func (s *Script) physicalGroups(m *config.Model) error {
	if m.Layered() {
		// surfaces were created in ascending layer order
		sorted := append([]config.Layer(nil), m.Layers...)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].YMin() < sorted[j].YMin() })
		for i, layer := range sorted {
			s.PhysicalGroups = append(s.PhysicalGroups, PhysicalGroup{
				Dim: 2, ID: layer.PhysicalID, Name: layer.Name, Members: []int{s.Surfaces[i].ID},
			})
		}
	} else {
		ids := make([]int, len(s.Surfaces))
		for i, surf := range s.Surfaces {
			ids[i] = surf.ID
		}
		s.PhysicalGroups = append(s.PhysicalGroups, PhysicalGroup{
			Dim: 2, ID: MaterialGroupID, Name: "material", Members: ids,
		})
	}

	for _, bc := range m.BoundaryConditions {
		curves, err := s.Resolve(bc.Location)
		if err != nil {
			return fmt.Errorf("boundary condition %q: %w", bc.Name, err)
		}
		s.PhysicalGroups = append(s.PhysicalGroups, PhysicalGroup{
			Dim: 1, ID: bc.PhysicalID, Name: bc.Name, Members: curves,
		})
	}
	for _, load := range m.Loads {
		curves, err := s.Resolve(load.Location)
		if err != nil {
			return fmt.Errorf("load %q: %w", load.Name, err)
		}
		s.PhysicalGroups = append(s.PhysicalGroups, PhysicalGroup{
			Dim: 1, ID: load.PhysicalID, Name: load.Name, Members: curves,
		})
	}
	return nil
}

func uniqueSorted(vals []float64) []float64 {
	var out []float64
	for _, v := range vals {
		if len(out) == 0 || v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}
