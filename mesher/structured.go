package mesher

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/notargets/femprep/element"
	"github.com/notargets/femprep/geometry"
	"github.com/notargets/femprep/mesh"
	"github.com/notargets/femprep/utils"
)

// Structured meshes scripts made only of axis-aligned rectangular surfaces
// bounded by four lines, without an external engine. Each surface gets an
// NX by NY grid of quads, or of quads split into two triangles. Nodes at the
// same coordinates are shared, so adjacent surfaces are conforming.
type Structured struct {
	NX, NY int // divisions per surface; zero derives them from the script element size
	Logger *slog.Logger
}

type gridKey struct {
	x, y int64
}

func keyOf(x, y float64) gridKey {
	const scale = 1e9
	return gridKey{int64(math.Round(x * scale)), int64(math.Round(y * scale))}
}

type rect struct {
	x0, y0, x1, y1 float64
}

type structuredBuilder struct {
	points [][3]float64
	index  map[gridKey]int
}

func (b *structuredBuilder) node(x, y float64) int {
	k := keyOf(x, y)
	if idx, ok := b.index[k]; ok {
		return idx
	}
	idx := len(b.points)
	b.index[k] = idx
	b.points = append(b.points, [3]float64{x, y, 0})
	return idx
}

// Mesh builds the grid. Surfaces and curves appear in the result only
// through the physical groups that reference them.
func (st Structured) Mesh(ctx context.Context, s *geometry.Script) (*mesh.Mesh, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logger := utils.OrDefault(st.Logger)

	if s.ElementType != element.Triangle && s.ElementType != element.Quad {
		return nil, &geometry.NotSupportedError{Kind: "element type", Name: s.ElementType.String(),
			Reason: "the structured mesher produces triangle or quad elements only"}
	}

	rects := make(map[int]rect, len(s.Surfaces))
	for _, surf := range s.Surfaces {
		r, err := surfaceRect(s, surf)
		if err != nil {
			return nil, err
		}
		rects[surf.ID] = r
	}

	b := &structuredBuilder{index: make(map[gridKey]int)}
	cells := make(map[int][][]int, len(s.Surfaces))
	for _, surf := range s.Surfaces {
		cells[surf.ID] = st.grid(b, rects[surf.ID], s.Size, s.ElementType)
	}

	m := &mesh.Mesh{PhysicalNames: make(map[mesh.PhysicalKey]string)}
	for _, g := range s.PhysicalGroups {
		m.PhysicalNames[mesh.PhysicalKey{Dim: g.Dim, Tag: g.ID}] = g.Name
		for _, member := range g.Members {
			switch g.Dim {
			case 2:
				conn, ok := cells[member]
				if !ok {
					return nil, fmt.Errorf("physical surface %d references unknown surface %d", g.ID, member)
				}
				m.AddBlock(s.ElementType, member, g.ID, conn)
			case 1:
				conn, err := b.segments(s, member)
				if err != nil {
					return nil, fmt.Errorf("physical line %d: %w", g.ID, err)
				}
				m.AddBlock(element.Line, member, g.ID, conn)
			}
		}
	}
	m.Points = b.points

	logger.Debug("structured mesh", "model", s.ModelName, "nodes", len(m.Points), "blocks", len(m.Blocks))
	return m, m.Validate()
}

// surfaceRect checks that a surface is a single loop of four axis-aligned lines
func surfaceRect(s *geometry.Script, surf geometry.Surface) (rect, error) {
	unsupported := &geometry.NotSupportedError{Kind: "geometry", Name: fmt.Sprintf("surface %d", surf.ID),
		Reason: "the structured mesher needs rectangles bounded by four lines"}
	if len(surf.Loops) != 1 {
		return rect{}, unsupported
	}
	loop, ok := s.Loop(surf.Loops[0])
	if !ok || len(loop.Curves) != 4 {
		return rect{}, unsupported
	}

	var xs, ys []float64
	for _, cid := range loop.Curves {
		c, ok := s.Curve(cid)
		if !ok || c.Kind != geometry.LineCurve {
			return rect{}, unsupported
		}
		p0, ok0 := s.Point(c.Start())
		p1, ok1 := s.Point(c.End())
		if !ok0 || !ok1 || (p0.X != p1.X && p0.Y != p1.Y) {
			return rect{}, unsupported
		}
		xs = append(xs, p0.X, p1.X)
		ys = append(ys, p0.Y, p1.Y)
	}
	r := rect{
		x0: utils.MinFloat64(xs), x1: utils.MaxFloat64(xs),
		y0: utils.MinFloat64(ys), y1: utils.MaxFloat64(ys),
	}
	if r.x0 == r.x1 || r.y0 == r.y1 {
		return rect{}, unsupported
	}
	return r, nil
}

func divisions(fixed int, extent, size float64) int {
	if fixed > 0 {
		return fixed
	}
	if size <= 0 {
		return 1
	}
	return max(1, int(math.Ceil(extent/size-1e-6)))
}

// at returns the i-th of n+1 evenly spaced values, hitting both ends exactly
func at(a, b float64, i, n int) float64 {
	if i == n {
		return b
	}
	return a + (b-a)*float64(i)/float64(n)
}

// grid creates the nodes of r row by row and returns its cells
// counter-clockwise, split into two triangles unless quads are requested
func (st Structured) grid(b *structuredBuilder, r rect, size float64, typ element.Type) [][]int {
	nx := divisions(st.NX, r.x1-r.x0, size)
	ny := divisions(st.NY, r.y1-r.y0, size)

	ids := make([][]int, ny+1)
	for j := 0; j <= ny; j++ {
		ids[j] = make([]int, nx+1)
		y := at(r.y0, r.y1, j, ny)
		for i := 0; i <= nx; i++ {
			ids[j][i] = b.node(at(r.x0, r.x1, i, nx), y)
		}
	}

	var conn [][]int
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			a, c := ids[j][i], ids[j+1][i+1]
			bb, d := ids[j][i+1], ids[j+1][i]
			if typ == element.Quad {
				conn = append(conn, []int{a, bb, c, d})
				continue
			}
			conn = append(conn, []int{a, bb, c}, []int{a, c, d})
		}
	}
	return conn
}

// segments returns the line elements along a curve, through the grid nodes lying on it
func (b *structuredBuilder) segments(s *geometry.Script, curveID int) ([][]int, error) {
	c, ok := s.Curve(curveID)
	if !ok {
		return nil, fmt.Errorf("unknown curve %d", curveID)
	}
	if c.Kind != geometry.LineCurve {
		return nil, &geometry.NotSupportedError{Kind: "geometry", Name: fmt.Sprintf("curve %d", curveID),
			Reason: "the structured mesher needs straight boundary curves"}
	}
	p0, _ := s.Point(c.Start())
	p1, _ := s.Point(c.End())
	dx, dy := p1.X-p0.X, p1.Y-p0.Y
	length2 := dx*dx + dy*dy
	if length2 == 0 {
		return nil, fmt.Errorf("curve %d has zero length", curveID)
	}
	tol := 1e-9 * math.Sqrt(length2)

	type onCurve struct {
		idx int
		t   float64
	}
	var hits []onCurve
	for idx, p := range b.points {
		rx, ry := p[0]-p0.X, p[1]-p0.Y
		if math.Abs(rx*dy-ry*dx)/math.Sqrt(length2) > tol {
			continue
		}
		t := (rx*dx + ry*dy) / length2
		if t < -1e-9 || t > 1+1e-9 {
			continue
		}
		hits = append(hits, onCurve{idx, t})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].t < hits[j].t })
	if len(hits) < 2 {
		return nil, fmt.Errorf("curve %d has no mesh nodes", curveID)
	}

	conn := make([][]int, 0, len(hits)-1)
	for i := 0; i+1 < len(hits); i++ {
		conn = append(conn, []int{hits[i].idx, hits[i+1].idx})
	}
	return conn, nil
}
