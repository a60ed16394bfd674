// Package converter maps a discretized mesh onto the array layout of the
// SolidsPy solver: a node table with boundary flags, an element table, a
// material table and an optional nodal load table.
//
// Every function depends only on its arguments. Running state, the node
// flags and the element id counter, is threaded through by the caller.
package converter

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/femprep/config"
	"github.com/notargets/femprep/element"
	"github.com/notargets/femprep/geometry"
	"github.com/notargets/femprep/mesh"
)

// Node table columns
const (
	NodeID = iota
	NodeX
	NodeY
	NodeBCX
	NodeBCY
	nodeCols
)

// Elements rows are {id, solver type code, material tag, nodes...}
type Elements [][]int

// Arrays is the full solver input
type Arrays struct {
	Nodes     *mat.Dense // {id, x, y, bcX, bcY}
	Elements  Elements
	Materials *mat.Dense // {E, nu, 0}
	Loads     *mat.Dense // {node, fx, fy}; nil when the model has no loads
}

// ElementSubsetNotFoundError is returned when no element of a type carries
// the requested physical surface tag
type ElementSubsetNotFoundError struct {
	ElementType element.Type
	PhysicalID  int
}

func (e *ElementSubsetNotFoundError) Error() string {
	return fmt.Sprintf("no %s elements with physical id %d", e.ElementType, e.PhysicalID)
}

// PhysicalGroupNotFoundError is returned when no line element carries the
// requested physical line tag
type PhysicalGroupNotFoundError struct {
	Kind       string // "physical line"
	PhysicalID int
}

func (e *PhysicalGroupNotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found in mesh", e.Kind, e.PhysicalID)
}

// Nodes returns one row per mesh point, unconstrained. The z coordinate is dropped.
func Nodes(m *mesh.Mesh) *mat.Dense {
	n := m.NumPoints()
	if n == 0 {
		return &mat.Dense{}
	}
	nodes := mat.NewDense(n, nodeCols, nil)
	for i, p := range m.Points {
		nodes.Set(i, NodeID, float64(i))
		nodes.Set(i, NodeX, p[0])
		nodes.Set(i, NodeY, p[1])
	}
	return nodes
}

// ExtractElementSubset collects the elements of type t tagged physicalID from
// every block of that type and numbers them from start. It returns the next
// free element id, to be passed as start of the following call.
func ExtractElementSubset(m *mesh.Mesh, t element.Type, physicalID, solverType, materialTag, start int) (end int, elems Elements, err error) {
	end = start
	for _, b := range m.BlocksOfType(t) {
		for i, tag := range b.PhysicalTags {
			if tag != physicalID {
				continue
			}
			row := make([]int, 0, 3+len(b.Connectivity[i]))
			row = append(row, end, solverType, materialTag)
			row = append(row, b.Connectivity[i]...)
			elems = append(elems, row)
			end++
		}
	}
	if len(elems) == 0 {
		return start, nil, &ElementSubsetNotFoundError{ElementType: t, PhysicalID: physicalID}
	}
	return end, elems, nil
}

// lineNodes returns the distinct nodes, ascending, of all line elements tagged physicalID
func lineNodes(m *mesh.Mesh, physicalID int) ([]int, error) {
	seen := make(map[int]bool)
	for _, b := range m.Blocks {
		if !b.Type.IsLine() {
			continue
		}
		for i, tag := range b.PhysicalTags {
			if tag != physicalID {
				continue
			}
			for _, n := range b.Connectivity[i] {
				seen[n] = true
			}
		}
	}
	if len(seen) == 0 {
		return nil, &PhysicalGroupNotFoundError{Kind: "physical line", PhysicalID: physicalID}
	}
	ids := make([]int, 0, len(seen))
	for n := range seen {
		ids = append(ids, n)
	}
	sort.Ints(ids)
	return ids, nil
}

// ApplyConstraint overwrites the boundary flags of every node on the
// physical line. A later call on an overlapping line wins.
func ApplyConstraint(m *mesh.Mesh, physicalLineID int, nodes *mat.Dense, bcX, bcY int) error {
	ids, err := lineNodes(m, physicalLineID)
	if err != nil {
		return err
	}
	rows, _ := nodes.Dims()
	for _, n := range ids {
		if n >= rows {
			return fmt.Errorf("physical line %d: node %d outside node table of %d rows", physicalLineID, n, rows)
		}
		nodes.Set(n, NodeBCX, float64(bcX))
		nodes.Set(n, NodeBCY, float64(bcY))
	}
	return nil
}

// ApplyLoad splits the force (fx, fy) equally over the nodes of the
// physical line, one row per node in ascending node order
func ApplyLoad(m *mesh.Mesh, physicalLineID int, fx, fy float64) (*mat.Dense, error) {
	ids, err := lineNodes(m, physicalLineID)
	if err != nil {
		return nil, err
	}
	n := float64(len(ids))
	loads := mat.NewDense(len(ids), 3, nil)
	for i, id := range ids {
		loads.SetRow(i, []float64{float64(id), fx / n, fy / n})
	}
	return loads, nil
}

// Materials returns one row per material, in order
func Materials(ms []config.Material) *mat.Dense {
	if len(ms) == 0 {
		return &mat.Dense{}
	}
	out := mat.NewDense(len(ms), 3, nil)
	for i, mt := range ms {
		out.SetRow(i, []float64{mt.E, mt.Nu, 0})
	}
	return out
}

// Convert builds the solver arrays of model from its mesh.
// Layers are extracted in declaration order with the layer index as
// material tag; a single material model is one extraction of the
// material group with tag 0.
func Convert(m *mesh.Mesh, model *config.Model) (*Arrays, error) {
	t, err := model.Mesh.Element()
	if err != nil {
		return nil, err
	}
	solverType, err := element.SolverCode(t)
	if err != nil {
		return nil, err
	}

	out := &Arrays{
		Nodes:     Nodes(m),
		Materials: Materials(model.Materials()),
	}

	if model.Layered() {
		next := 0
		for i, layer := range model.Layers {
			var elems Elements
			if next, elems, err = ExtractElementSubset(m, t, layer.PhysicalID, solverType, i, next); err != nil {
				return nil, fmt.Errorf("layer %q: %w", layer.Name, err)
			}
			out.Elements = append(out.Elements, elems...)
		}
	} else {
		if _, out.Elements, err = ExtractElementSubset(m, t, geometry.MaterialGroupID, solverType, 0, 0); err != nil {
			return nil, err
		}
	}

	for _, bc := range model.BoundaryConditions {
		err := ApplyConstraint(m, bc.PhysicalID, out.Nodes, bc.Constraints.X.Flag(), bc.Constraints.Y.Flag())
		if err != nil {
			return nil, fmt.Errorf("boundary condition %q: %w", bc.Name, err)
		}
	}

	var loads []*mat.Dense
	for _, load := range model.Loads {
		l, err := ApplyLoad(m, load.PhysicalID, load.Force.X, load.Force.Y)
		if err != nil {
			return nil, fmt.Errorf("load %q: %w", load.Name, err)
		}
		loads = append(loads, l)
	}
	out.Loads = stack(loads)
	return out, nil
}

func stack(tables []*mat.Dense) *mat.Dense {
	if len(tables) == 0 {
		return nil
	}
	rows := 0
	for _, t := range tables {
		r, _ := t.Dims()
		rows += r
	}
	out := mat.NewDense(rows, 3, nil)
	i := 0
	for _, t := range tables {
		r, _ := t.Dims()
		for k := 0; k < r; k++ {
			out.SetRow(i, t.RawRowView(k))
			i++
		}
	}
	return out
}
