package element

import (
	"fmt"
	"strings"
)

// Dimensionality represents the spatial dimension of an element
type Dimensionality uint8

const (
	D0 Dimensionality = iota // 0D elements (points)
	D1                       // 1D elements (lines, edges)
	D2                       // 2D elements (triangles, quadrilaterals)
)

// GeometryType identifies the shape of an element
type GeometryType uint8

const (
	Point GeometryType = iota
	Segment
	Tri
	Rectangle
)

// Type enumerates the mesh element types the preprocessor understands
type Type uint8

const (
	Unknown Type = iota
	Vertex
	Line
	Line3
	Triangle
	Triangle6
	Quad
	Quad8
	Quad9
)

// Properties contains metadata describing an element type
type Properties struct {
	Name       string         // meshio-style name (e.g., "triangle6")
	Geometry   GeometryType   // Element shape
	Order      int            // Polynomial order of the geometric map
	Np         int            // Number of nodes per element
	Dimensions Dimensionality // Spatial dimension
	GmshCode   int            // Element type number in the gmsh .msh format
}

var properties = map[Type]Properties{
	Vertex:    {Name: "vertex", Geometry: Point, Order: 0, Np: 1, Dimensions: D0, GmshCode: 15},
	Line:      {Name: "line", Geometry: Segment, Order: 1, Np: 2, Dimensions: D1, GmshCode: 1},
	Line3:     {Name: "line3", Geometry: Segment, Order: 2, Np: 3, Dimensions: D1, GmshCode: 8},
	Triangle:  {Name: "triangle", Geometry: Tri, Order: 1, Np: 3, Dimensions: D2, GmshCode: 2},
	Triangle6: {Name: "triangle6", Geometry: Tri, Order: 2, Np: 6, Dimensions: D2, GmshCode: 9},
	Quad:      {Name: "quad", Geometry: Rectangle, Order: 1, Np: 4, Dimensions: D2, GmshCode: 3},
	Quad8:     {Name: "quad8", Geometry: Rectangle, Order: 2, Np: 8, Dimensions: D2, GmshCode: 16},
	Quad9:     {Name: "quad9", Geometry: Rectangle, Order: 2, Np: 9, Dimensions: D2, GmshCode: 10},
}

// solverCodes is the element type numbering of the downstream solver.
// Only the three surface element families it can assemble are present.
var solverCodes = map[Type]int{
	Triangle:  3,
	Triangle6: 2,
	Quad:      1,
}

// Np returns the number of nodes per element
func (t Type) Np() int {
	return properties[t].Np
}

// String returns the meshio-style name of the element type
func (t Type) String() string {
	if p, ok := properties[t]; ok {
		return p.Name
	}
	return "unknown"
}

// IsLine reports whether t is a boundary (1D) element
func (t Type) IsLine() bool {
	return properties[t].Dimensions == D1
}

// ParseName converts a meshio-style element name to a Type
func ParseName(name string) (Type, error) {
	lowerName := strings.ToLower(strings.TrimSpace(name))
	for t, p := range properties {
		if p.Name == lowerName {
			return t, nil
		}
	}
	return Unknown, fmt.Errorf("unknown element type %q", name)
}

// FromGmshCode maps a gmsh element type number to a Type
func FromGmshCode(code int) (Type, bool) {
	for t, p := range properties {
		if p.GmshCode == code {
			return t, true
		}
	}
	return Unknown, false
}

// GmshNodeCount returns the node count of any gmsh element type number,
// including the ones without a Type, so readers can check the field count
// of records they skip. Unlisted codes give 0.
func GmshNodeCount(code int) int {
	nodeCounts := map[int]int{
		1:  2,  // 2-node line
		2:  3,  // 3-node triangle
		3:  4,  // 4-node quadrangle
		4:  4,  // 4-node tetrahedron
		5:  8,  // 8-node hexahedron
		6:  6,  // 6-node prism
		7:  5,  // 5-node pyramid
		8:  3,  // 3-node second order line
		9:  6,  // 6-node second order triangle
		10: 9,  // 9-node second order quadrangle
		11: 10, // 10-node second order tetrahedron
		15: 1,  // 1-node point
		16: 8,  // 8-node second order quadrangle
		20: 9,  // 9-node third order triangle
		21: 10, // 10-node third order triangle
	}
	return nodeCounts[code]
}

// SolverCode returns the solver element type code for t.
// triangle -> 3, triangle6 -> 2, quad -> 1
func SolverCode(t Type) (int, error) {
	code, ok := solverCodes[t]
	if !ok {
		return 0, fmt.Errorf("element type %s has no solver type code", t)
	}
	return code, nil
}
