// Package readers parses gmsh .msh files (ASCII formats 2.2 and 4.1) into
// mesh.Mesh element blocks.
package readers

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/notargets/femprep/element"
	"github.com/notargets/femprep/mesh"
)

// ReadMeshFile reads a gmsh mesh file
func ReadMeshFile(filename string) (*mesh.Mesh, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	m, err := Read(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return m, nil
}

// entityKey identifies a geometric entity by dimension and tag
type entityKey struct {
	dim, tag int
}

type gmshReader struct {
	scanner *bufio.Scanner
	line    int

	version  string
	mesh     *mesh.Mesh
	nodeIdx  map[int]int // gmsh node tag -> 0-based point index
	entities map[entityKey][]int
}

// Read parses a gmsh mesh from r. Node tags are renumbered to dense 0-based
// indices in file order; elements of unknown types are skipped.
func Read(r io.Reader) (*mesh.Mesh, error) {
	scanner := bufio.NewScanner(r)
	const maxScanTokenSize = 1024 * 1024 * 10 // 10MB
	scanner.Buffer(make([]byte, 64*1024), maxScanTokenSize)

	rd := &gmshReader{
		scanner:  scanner,
		mesh:     &mesh.Mesh{PhysicalNames: make(map[mesh.PhysicalKey]string)},
		nodeIdx:  make(map[int]int),
		entities: make(map[entityKey][]int),
	}
	if err := rd.read(); err != nil {
		return nil, err
	}
	if err := rd.mesh.Validate(); err != nil {
		return nil, err
	}
	return rd.mesh, nil
}

func (rd *gmshReader) next() bool {
	if rd.scanner.Scan() {
		rd.line++
		return true
	}
	return false
}

func (rd *gmshReader) text() string {
	return strings.TrimSpace(rd.scanner.Text())
}

// fields reads the next line as whitespace separated fields
func (rd *gmshReader) fields(section string) ([]string, error) {
	if !rd.next() {
		return nil, fmt.Errorf("unexpected EOF in %s", section)
	}
	return strings.Fields(rd.scanner.Text()), nil
}

func (rd *gmshReader) errorf(format string, args ...interface{}) error {
	return fmt.Errorf("line %d: %s", rd.line, fmt.Sprintf(format, args...))
}

func (rd *gmshReader) atoi(s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, rd.errorf("invalid integer %q", s)
	}
	return v, nil
}

func (rd *gmshReader) atoiAll(fields []string) ([]int, error) {
	out := make([]int, len(fields))
	for i, f := range fields {
		v, err := rd.atoi(f)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (rd *gmshReader) read() error {
	for rd.next() {
		var err error
		switch rd.text() {
		case "$MeshFormat":
			err = rd.readMeshFormat()
		case "$PhysicalNames":
			err = rd.readPhysicalNames()
		case "$Entities":
			err = rd.readEntities()
		case "$Nodes":
			if rd.version == "" {
				return rd.errorf("$Nodes before $MeshFormat")
			}
			if rd.isV2() {
				err = rd.readNodes2()
			} else {
				err = rd.readNodes4()
			}
		case "$Elements":
			if rd.version == "" {
				return rd.errorf("$Elements before $MeshFormat")
			}
			if rd.isV2() {
				err = rd.readElements2()
			} else {
				err = rd.readElements4()
			}
		default:
			if name, ok := strings.CutPrefix(rd.text(), "$"); ok && !strings.HasPrefix(name, "End") {
				err = rd.skipSection("$End" + name)
			}
		}
		if err != nil {
			return err
		}
	}
	if err := rd.scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}
	if rd.version == "" {
		return fmt.Errorf("missing $MeshFormat section")
	}
	return nil
}

func (rd *gmshReader) isV2() bool {
	return strings.HasPrefix(rd.version, "2")
}

func (rd *gmshReader) readMeshFormat() error {
	parts, err := rd.fields("MeshFormat")
	if err != nil {
		return err
	}
	if len(parts) < 3 {
		return rd.errorf("invalid MeshFormat line")
	}
	rd.version = parts[0]
	if parts[1] != "0" {
		return fmt.Errorf("binary mesh files are not supported")
	}
	switch {
	case strings.HasPrefix(rd.version, "2."), rd.version == "4.1":
	default:
		return fmt.Errorf("unsupported mesh format version %s", rd.version)
	}
	return rd.skipSection("$EndMeshFormat")
}

func (rd *gmshReader) readPhysicalNames() error {
	header, err := rd.fields("PhysicalNames")
	if err != nil {
		return err
	}
	if len(header) < 1 {
		return rd.errorf("invalid PhysicalNames header")
	}
	n, err := rd.atoi(header[0])
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		fields, err := rd.fields("PhysicalNames")
		if err != nil {
			return err
		}
		if len(fields) < 3 {
			return rd.errorf("invalid physical name entry")
		}
		dim, err := rd.atoi(fields[0])
		if err != nil {
			return err
		}
		tag, err := rd.atoi(fields[1])
		if err != nil {
			return err
		}
		name := strings.Trim(strings.Join(fields[2:], " "), `"`)
		rd.mesh.PhysicalNames[mesh.PhysicalKey{Dim: dim, Tag: tag}] = name
	}
	return rd.skipSection("$EndPhysicalNames")
}

// readEntities records the physical tags of every curve and surface entity
func (rd *gmshReader) readEntities() error {
	counts, err := rd.fields("Entities")
	if err != nil {
		return err
	}
	if len(counts) < 4 {
		return rd.errorf("invalid entity counts")
	}
	nums, err := rd.atoiAll(counts[:4])
	if err != nil {
		return err
	}

	for dim, n := range nums {
		for i := 0; i < n; i++ {
			fields, err := rd.fields("Entities")
			if err != nil {
				return err
			}
			// points carry X Y Z, higher dimensions a 6 value bounding box
			offset := 7
			if dim == 0 {
				offset = 4
			}
			if len(fields) < offset+1 {
				return rd.errorf("invalid entity line for dimension %d", dim)
			}
			tag, err := rd.atoi(fields[0])
			if err != nil {
				return err
			}
			numPhys, err := rd.atoi(fields[offset])
			if err != nil {
				return err
			}
			if len(fields) < offset+1+numPhys {
				return rd.errorf("entity %d: expected %d physical tags", tag, numPhys)
			}
			phys, err := rd.atoiAll(fields[offset+1 : offset+1+numPhys])
			if err != nil {
				return err
			}
			rd.entities[entityKey{dim, tag}] = phys
		}
	}
	return rd.skipSection("$EndEntities")
}

func (rd *gmshReader) addNode(tag int, fields []string) error {
	if len(fields) < 3 {
		return rd.errorf("invalid node coordinate line")
	}
	var p [3]float64
	for k := 0; k < 3; k++ {
		v, err := strconv.ParseFloat(fields[k], 64)
		if err != nil {
			return rd.errorf("invalid coordinate %q", fields[k])
		}
		p[k] = v
	}
	if _, dup := rd.nodeIdx[tag]; dup {
		return rd.errorf("duplicate node tag %d", tag)
	}
	rd.nodeIdx[tag] = len(rd.mesh.Points)
	rd.mesh.Points = append(rd.mesh.Points, p)
	return nil
}

func (rd *gmshReader) readNodes2() error {
	header, err := rd.fields("Nodes")
	if err != nil {
		return err
	}
	if len(header) < 1 {
		return rd.errorf("invalid Nodes header")
	}
	n, err := rd.atoi(header[0])
	if err != nil {
		return err
	}
	rd.mesh.Points = make([][3]float64, 0, n)
	for i := 0; i < n; i++ {
		fields, err := rd.fields("Nodes")
		if err != nil {
			return err
		}
		if len(fields) < 4 {
			return rd.errorf("invalid node line")
		}
		tag, err := rd.atoi(fields[0])
		if err != nil {
			return err
		}
		if err := rd.addNode(tag, fields[1:]); err != nil {
			return err
		}
	}
	return rd.skipSection("$EndNodes")
}

func (rd *gmshReader) readNodes4() error {
	// numEntityBlocks numNodes minNodeTag maxNodeTag
	header, err := rd.fields("Nodes")
	if err != nil {
		return err
	}
	if len(header) < 4 {
		return rd.errorf("invalid Nodes header")
	}
	nums, err := rd.atoiAll(header[:2])
	if err != nil {
		return err
	}
	numBlocks, total := nums[0], nums[1]
	rd.mesh.Points = make([][3]float64, 0, total)

	for b := 0; b < numBlocks; b++ {
		// entityDim entityTag parametric numNodesInBlock
		bh, err := rd.fields("Nodes")
		if err != nil {
			return err
		}
		if len(bh) < 4 {
			return rd.errorf("invalid node block header")
		}
		parametric, err := rd.atoi(bh[2])
		if err != nil {
			return err
		}
		if parametric != 0 {
			return rd.errorf("parametric node coordinates are not supported")
		}
		n, err := rd.atoi(bh[3])
		if err != nil {
			return err
		}
		tags := make([]int, n)
		for j := range tags {
			fields, err := rd.fields("Nodes")
			if err != nil {
				return err
			}
			if len(fields) < 1 {
				return rd.errorf("missing node tag")
			}
			if tags[j], err = rd.atoi(fields[0]); err != nil {
				return err
			}
		}
		for j := range tags {
			fields, err := rd.fields("Nodes")
			if err != nil {
				return err
			}
			if err := rd.addNode(tags[j], fields); err != nil {
				return err
			}
		}
	}
	return rd.skipSection("$EndNodes")
}

// connectivity maps gmsh node tags to point indices
func (rd *gmshReader) connectivity(tags []int) ([]int, error) {
	conn := make([]int, len(tags))
	for i, tag := range tags {
		idx, ok := rd.nodeIdx[tag]
		if !ok {
			return nil, rd.errorf("element references unknown node %d", tag)
		}
		conn[i] = idx
	}
	return conn, nil
}

func (rd *gmshReader) readElements2() error {
	header, err := rd.fields("Elements")
	if err != nil {
		return err
	}
	if len(header) < 1 {
		return rd.errorf("invalid Elements header")
	}
	n, err := rd.atoi(header[0])
	if err != nil {
		return err
	}

	var cur *mesh.Block
	flush := func() {
		if cur != nil && cur.Len() > 0 {
			rd.mesh.Blocks = append(rd.mesh.Blocks, *cur)
		}
		cur = nil
	}
	for i := 0; i < n; i++ {
		fields, err := rd.fields("Elements")
		if err != nil {
			return err
		}
		// elm-number elm-type number-of-tags <tags> node-number-list
		if len(fields) < 3 {
			return rd.errorf("invalid element line")
		}
		vals, err := rd.atoiAll(fields)
		if err != nil {
			return err
		}
		gmshType, numTags := vals[1], vals[2]
		typ, known := element.FromGmshCode(gmshType)
		np := element.GmshNodeCount(gmshType)
		if np > 0 && len(vals) != 3+numTags+np {
			return rd.errorf("element %d: expected %d fields, got %d", vals[0], 3+numTags+np, len(vals))
		}
		if !known {
			continue
		}
		physical, entity := 0, 0
		if numTags > 0 {
			physical = vals[3]
		}
		if numTags > 1 {
			entity = vals[4]
		}
		conn, err := rd.connectivity(vals[3+numTags:])
		if err != nil {
			return err
		}

		if cur == nil || cur.Type != typ || cur.EntityTag != entity || cur.PhysicalTags[0] != physical {
			flush()
			cur = &mesh.Block{Type: typ, EntityTag: entity}
		}
		cur.Connectivity = append(cur.Connectivity, conn)
		cur.PhysicalTags = append(cur.PhysicalTags, physical)
	}
	flush()
	return rd.skipSection("$EndElements")
}

func (rd *gmshReader) readElements4() error {
	// numEntityBlocks numElements minElementTag maxElementTag
	header, err := rd.fields("Elements")
	if err != nil {
		return err
	}
	if len(header) < 4 {
		return rd.errorf("invalid Elements header")
	}
	numBlocks, err := rd.atoi(header[0])
	if err != nil {
		return err
	}

	for b := 0; b < numBlocks; b++ {
		// entityDim entityTag elementType numElementsInBlock
		bh, err := rd.fields("Elements")
		if err != nil {
			return err
		}
		if len(bh) < 4 {
			return rd.errorf("invalid element block header")
		}
		vals, err := rd.atoiAll(bh[:4])
		if err != nil {
			return err
		}
		dim, entity, gmshType, n := vals[0], vals[1], vals[2], vals[3]

		typ, known := element.FromGmshCode(gmshType)
		if !known {
			for j := 0; j < n; j++ {
				if !rd.next() {
					return fmt.Errorf("unexpected EOF in Elements")
				}
			}
			continue
		}

		np := typ.Np()
		conn := make([][]int, 0, n)
		for j := 0; j < n; j++ {
			fields, err := rd.fields("Elements")
			if err != nil {
				return err
			}
			if len(fields) != 1+np {
				return rd.errorf("invalid element line: expected %d fields, got %d", 1+np, len(fields))
			}
			tags, err := rd.atoiAll(fields[1:])
			if err != nil {
				return err
			}
			c, err := rd.connectivity(tags)
			if err != nil {
				return err
			}
			conn = append(conn, c)
		}

		// one block per physical group the entity belongs to
		phys := rd.entities[entityKey{dim, entity}]
		if len(phys) == 0 {
			rd.mesh.AddBlock(typ, entity, 0, conn)
			continue
		}
		for _, p := range phys {
			rd.mesh.AddBlock(typ, entity, p, conn)
		}
	}
	return rd.skipSection("$EndElements")
}

// skipSection advances past the named end marker
func (rd *gmshReader) skipSection(end string) error {
	for rd.next() {
		if rd.text() == end {
			return nil
		}
	}
	return fmt.Errorf("unexpected EOF looking for %s", end)
}
