// Package geometry builds the gmsh .geo script of a model: points, curves,
// loops, surfaces and the named physical groups the converter later joins on.
package geometry

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/notargets/femprep/config"
	"github.com/notargets/femprep/element"
	"github.com/notargets/femprep/utils"
)

// CurveKind distinguishes straight lines from circular arcs
type CurveKind uint8

const (
	LineCurve CurveKind = iota
	ArcCurve
)

// Point is a geometry vertex with its characteristic mesh size
type Point struct {
	ID   int
	X, Y float64
	Size float64
}

// Curve is a line {start, end} or an arc {start, centre, end}
type Curve struct {
	ID     int
	Kind   CurveKind
	Points []int
	Label  string
}

// Start returns the first point id
func (c Curve) Start() int { return c.Points[0] }

// End returns the last point id
func (c Curve) End() int { return c.Points[len(c.Points)-1] }

// Loop is a closed chain of signed curve ids; a negative id traverses the curve backwards
type Loop struct {
	ID     int
	Curves []int
	Hole   bool
}

// Surface is a plane surface bounded by its outer loop minus any hole loops
type Surface struct {
	ID    int
	Loops []int
}

// PhysicalGroup names a set of curves (Dim 1) or surfaces (Dim 2)
type PhysicalGroup struct {
	Dim     int
	ID      int
	Name    string
	Members []int
}

// Script is the complete entity model of one .geo file, in creation order
type Script struct {
	ModelName   string
	Description string
	Size        float64
	ElementType element.Type
	Algorithm   int

	Points         []Point
	Curves         []Curve
	Loops          []Loop
	Surfaces       []Surface
	PhysicalGroups []PhysicalGroup

	// Locations maps a boundary name to its curve ids
	Locations map[string][]int

	nextPoint, nextCurve, nextLoop, nextSurface int
}

func newScript(m *config.Model, elementType element.Type) *Script {
	return &Script{
		ModelName:   m.ModelName,
		Description: m.Description,
		Size:        m.Mesh.Size,
		ElementType: elementType,
		Algorithm:   m.Mesh.Algorithm,
		Locations:   make(map[string][]int),
		nextPoint:   1,
		nextCurve:   1,
		nextLoop:    1,
		nextSurface: 1,
	}
}

func (s *Script) addPoint(x, y float64) int {
	id := s.nextPoint
	s.nextPoint++
	s.Points = append(s.Points, Point{ID: id, X: x, Y: y, Size: s.Size})
	return id
}

func (s *Script) addLine(p1, p2 int, label string) int {
	id := s.nextCurve
	s.nextCurve++
	s.Curves = append(s.Curves, Curve{ID: id, Kind: LineCurve, Points: []int{p1, p2}, Label: label})
	return id
}

func (s *Script) addArc(start, centre, end int) int {
	id := s.nextCurve
	s.nextCurve++
	s.Curves = append(s.Curves, Curve{ID: id, Kind: ArcCurve, Points: []int{start, centre, end}})
	return id
}

func (s *Script) addLoop(hole bool, curves ...int) int {
	id := s.nextLoop
	s.nextLoop++
	s.Loops = append(s.Loops, Loop{ID: id, Curves: curves, Hole: hole})
	return id
}

func (s *Script) addSurface(loops ...int) int {
	id := s.nextSurface
	s.nextSurface++
	s.Surfaces = append(s.Surfaces, Surface{ID: id, Loops: loops})
	return id
}

// Point returns the point with the given id
func (s *Script) Point(id int) (Point, bool) {
	for _, p := range s.Points {
		if p.ID == id {
			return p, true
		}
	}
	return Point{}, false
}

// Curve returns the curve with the given id; the sign of id is ignored
func (s *Script) Curve(id int) (Curve, bool) {
	if id < 0 {
		id = -id
	}
	for _, c := range s.Curves {
		if c.ID == id {
			return c, true
		}
	}
	return Curve{}, false
}

// Loop returns the loop with the given id
func (s *Script) Loop(id int) (Loop, bool) {
	for _, l := range s.Loops {
		if l.ID == id {
			return l, true
		}
	}
	return Loop{}, false
}

// LocationCurves returns the curve ids recorded under a location key, including "hole"
func (s *Script) LocationCurves(name string) []int {
	return append([]int(nil), s.Locations[name]...)
}

// LocationNames returns the recorded location keys in sorted order
func (s *Script) LocationNames() []string {
	names := make([]string, 0, len(s.Locations))
	for name := range s.Locations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// canonicalEdges are the only locations boundary conditions and loads may use
var canonicalEdges = map[string]bool{
	config.Left: true, config.Right: true, config.Top: true, config.Bottom: true,
}

// Resolve maps a boundary condition or load location to curve ids
func (s *Script) Resolve(loc config.Location) ([]int, error) {
	if !loc.IsEdge() {
		return nil, locationError(loc.String(), "explicit line coordinates cannot be resolved")
	}
	if !canonicalEdges[loc.Edge] {
		reason := "unknown location"
		if _, ok := s.Locations[loc.Edge]; ok {
			reason = "location cannot carry boundary conditions or loads"
		}
		return nil, locationError(loc.Edge, reason)
	}
	ids, ok := s.Locations[loc.Edge]
	if !ok || len(ids) == 0 {
		return nil, locationError(loc.Edge, "no curves recorded for location")
	}
	return append([]int(nil), ids...), nil
}

// PhysicalGroup returns the group with the given dimension and id
func (s *Script) PhysicalGroup(dim, id int) (PhysicalGroup, bool) {
	for _, g := range s.PhysicalGroups {
		if g.Dim == dim && g.ID == id {
			return g, true
		}
	}
	return PhysicalGroup{}, false
}

// NotSupportedError reports an input the pipeline cannot handle, such as a
// location that does not resolve to curves
type NotSupportedError struct {
	Kind   string // "location", "element type", "geometry"
	Name   string
	Reason string
}

func (e *NotSupportedError) Error() string {
	return fmt.Sprintf("%s %q not supported: %s", e.Kind, e.Name, e.Reason)
}

func locationError(name, reason string) *NotSupportedError {
	return &NotSupportedError{Kind: "location", Name: name, Reason: reason}
}

func joinIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ", ")
}

// Text renders the script as .geo source. Identical scripts render identically.
func (s *Script) Text() string {
	var sb strings.Builder

	sb.WriteString("// GMSH Geometry File\n")
	fmt.Fprintf(&sb, "// Auto-generated from: %s\n", s.ModelName)
	if s.Description != "" {
		fmt.Fprintf(&sb, "// Description: %s\n", s.Description)
	}
	fmt.Fprintf(&sb, "// Element size: %s\n\n", utils.FormatFloat(s.Size))
	sb.WriteString("SetFactory(\"OpenCASCADE\");\n\n")

	for _, p := range s.Points {
		fmt.Fprintf(&sb, "Point(%d) = {%s, %s, 0, %s};\n", p.ID, utils.FormatFloat(p.X), utils.FormatFloat(p.Y), utils.FormatFloat(p.Size))
	}
	sb.WriteString("\n")

	for _, c := range s.Curves {
		keyword := "Line"
		if c.Kind == ArcCurve {
			keyword = "Circle"
		}
		fmt.Fprintf(&sb, "%s(%d) = {%s};", keyword, c.ID, joinIDs(c.Points))
		if c.Label != "" {
			fmt.Fprintf(&sb, "  // %s", c.Label)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	loopIdx := 0
	for _, surf := range s.Surfaces {
		// loops are emitted just ahead of the first surface that uses them
		for loopIdx < len(s.Loops) && s.Loops[loopIdx].ID <= maxID(surf.Loops) {
			l := s.Loops[loopIdx]
			keyword := "Line Loop"
			if l.Hole {
				keyword = "Curve Loop"
			}
			fmt.Fprintf(&sb, "%s(%d) = {%s};\n", keyword, l.ID, joinIDs(l.Curves))
			loopIdx++
		}
		fmt.Fprintf(&sb, "Plane Surface(%d) = {%s};\n", surf.ID, joinIDs(surf.Loops))
	}
	sb.WriteString("\n")

	sb.WriteString("// Physical Groups\n\n")
	var surfaces, lines []PhysicalGroup
	for _, g := range s.PhysicalGroups {
		if g.Dim == 2 {
			surfaces = append(surfaces, g)
		} else {
			lines = append(lines, g)
		}
	}
	for _, g := range surfaces {
		fmt.Fprintf(&sb, "Physical Surface(%q, %d) = {%s};\n", g.Name, g.ID, joinIDs(g.Members))
	}
	if len(surfaces) > 0 {
		sb.WriteString("\n")
	}
	if len(lines) > 0 {
		sb.WriteString("// Boundary Conditions and Loads\n")
		for _, g := range lines {
			fmt.Fprintf(&sb, "Physical Line(%q, %d) = {%s};\n", g.Name, g.ID, joinIDs(g.Members))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("// Mesh Settings\n")
	if s.Algorithm > 0 {
		fmt.Fprintf(&sb, "Mesh.Algorithm = %d;\n", s.Algorithm)
	}
	switch s.ElementType {
	case element.Triangle6:
		sb.WriteString("Mesh.ElementOrder = 2;\n")
	case element.Quad:
		ids := make([]int, len(s.Surfaces))
		for i, surf := range s.Surfaces {
			ids[i] = surf.ID
		}
		fmt.Fprintf(&sb, "Recombine Surface{%s};\n", joinIDs(ids))
	}
	sb.WriteString("Mesh 2;\n")
	return sb.String()
}

// WriteTo writes the rendered script to w
func (s *Script) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, s.Text())
	return int64(n), err
}

func maxID(ids []int) int {
	m := 0
	for _, id := range ids {
		m = max(m, id)
	}
	return m
}
