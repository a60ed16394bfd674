package mesh

import (
	"fmt"
	"sort"
	"strings"

	"github.com/notargets/femprep/element"
	"github.com/notargets/femprep/utils"
)

// Block is a set of elements of one type from one geometric entity.
// PhysicalTags runs parallel to Connectivity.
type Block struct {
	Type         element.Type
	Connectivity [][]int // 0-based indices into Mesh.Points
	PhysicalTags []int
	EntityTag    int
}

// Len returns the number of elements in the block
func (b Block) Len() int {
	return len(b.Connectivity)
}

// Mesh is a discretized domain: a coordinate array plus element blocks.
// A physical group may be split across several blocks.
type Mesh struct {
	Points        [][3]float64
	Blocks        []Block
	PhysicalNames map[PhysicalKey]string
}

// PhysicalKey identifies a physical group by dimension and tag
type PhysicalKey struct {
	Dim, Tag int
}

// NumPoints returns the number of nodes
func (m *Mesh) NumPoints() int {
	return len(m.Points)
}

// BlocksOfType returns the blocks holding elements of type t, in file order
func (m *Mesh) BlocksOfType(t element.Type) []Block {
	var out []Block
	for _, b := range m.Blocks {
		if b.Type == t {
			out = append(out, b)
		}
	}
	return out
}

// AddBlock appends a block whose elements all carry the same physical tag
func (m *Mesh) AddBlock(t element.Type, entity, physical int, conn [][]int) {
	tags := make([]int, len(conn))
	for i := range tags {
		tags[i] = physical
	}
	m.Blocks = append(m.Blocks, Block{Type: t, Connectivity: conn, PhysicalTags: tags, EntityTag: entity})
}

// Validate checks that every connectivity index refers to a point and that
// each block has one physical tag per element
func (m *Mesh) Validate() error {
	n := len(m.Points)
	for bi, b := range m.Blocks {
		if len(b.PhysicalTags) != len(b.Connectivity) {
			return fmt.Errorf("block %d: %d physical tags for %d elements",
				bi, len(b.PhysicalTags), len(b.Connectivity))
		}
		np := b.Type.Np()
		for ei, conn := range b.Connectivity {
			if np > 0 && len(conn) != np {
				return fmt.Errorf("block %d element %d: %d nodes, %s has %d", bi, ei, len(conn), b.Type, np)
			}
			for _, idx := range conn {
				if idx < 0 || idx >= n {
					return fmt.Errorf("block %d element %d: node index %d out of range [0, %d)", bi, ei, idx, n)
				}
			}
		}
	}
	return nil
}

// String returns a human readable summary of the mesh
func (m *Mesh) String() string {
	var sb strings.Builder

	sb.WriteString("=== Mesh Summary ===\n")
	sb.WriteString(fmt.Sprintf("  Nodes: %d\n", len(m.Points)))
	if len(m.Points) > 0 {
		xs := make([]float64, len(m.Points))
		ys := make([]float64, len(m.Points))
		for i, p := range m.Points {
			xs[i], ys[i] = p[0], p[1]
		}
		sb.WriteString(fmt.Sprintf("  X range: [%.4f, %.4f]\n", utils.MinFloat64(xs), utils.MaxFloat64(xs)))
		sb.WriteString(fmt.Sprintf("  Y range: [%.4f, %.4f]\n", utils.MinFloat64(ys), utils.MaxFloat64(ys)))
	}

	sb.WriteString("\n--- Element Blocks ---\n")
	counts := make(map[element.Type]int)
	for _, b := range m.Blocks {
		counts[b.Type] += b.Len()
		tag := 0
		if len(b.PhysicalTags) > 0 {
			tag = b.PhysicalTags[0]
		}
		sb.WriteString(fmt.Sprintf("  %-10s entity %-4d physical %-4d elements %d\n",
			b.Type, b.EntityTag, tag, b.Len()))
	}

	types := make([]element.Type, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	sb.WriteString("\n--- Totals ---\n")
	for _, t := range types {
		sb.WriteString(fmt.Sprintf("  %s: %d\n", t, counts[t]))
	}

	if len(m.PhysicalNames) > 0 {
		keys := make([]PhysicalKey, 0, len(m.PhysicalNames))
		for k := range m.PhysicalNames {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool {
			if keys[i].Dim != keys[j].Dim {
				return keys[i].Dim < keys[j].Dim
			}
			return keys[i].Tag < keys[j].Tag
		})
		sb.WriteString("\n--- Physical Names ---\n")
		for _, k := range keys {
			sb.WriteString(fmt.Sprintf("  (%d, %d) %s\n", k.Dim, k.Tag, m.PhysicalNames[k]))
		}
	}
	return sb.String()
}
