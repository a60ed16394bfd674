// Package solverio writes and reads the whitespace separated text tables
// consumed by the SolidsPy solver.
package solverio

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/femprep/converter"
)

// File name suffixes, prefixed by the caller supplied prefix
const (
	NodesFile     = "nodes.txt"
	ElementsFile  = "eles.txt"
	MaterialsFile = "mater.txt"
	LoadsFile     = "loads.txt"
)

// Write stores the arrays in dir as <prefix>nodes.txt, <prefix>eles.txt,
// <prefix>mater.txt and, when there are loads, <prefix>loads.txt.
// It returns the paths written.
func Write(dir, prefix string, a *converter.Arrays) ([]string, error) {
	if a == nil {
		return nil, errors.New("no arrays to write")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	type table struct {
		name  string
		write func(io.Writer) error
	}
	files := []table{
		{NodesFile, func(w io.Writer) error { return WriteNodes(w, a.Nodes) }},
		{ElementsFile, func(w io.Writer) error { return WriteElements(w, a.Elements) }},
		{MaterialsFile, func(w io.Writer) error { return WriteMaterials(w, a.Materials) }},
	}
	if a.Loads != nil {
		files = append(files, table{LoadsFile, func(w io.Writer) error { return WriteLoads(w, a.Loads) }})
	}

	var paths []string
	for _, f := range files {
		path := filepath.Join(dir, prefix+f.name)
		if err := writeFile(path, f.write); err != nil {
			return paths, fmt.Errorf("failed to write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	w := bufio.NewWriter(f)
	if err = write(w); err != nil {
		return err
	}
	return w.Flush()
}

func rows(m *mat.Dense) int {
	if m == nil || m.IsEmpty() {
		return 0
	}
	r, _ := m.Dims()
	return r
}

// WriteNodes writes rows "id x y bcX bcY"
func WriteNodes(w io.Writer, nodes *mat.Dense) error {
	for i := 0; i < rows(nodes); i++ {
		row := nodes.RawRowView(i)
		if _, err := fmt.Fprintf(w, "%d %.4f %.4f %d %d\n",
			int(row[0]), row[1], row[2], int(row[3]), int(row[4])); err != nil {
			return err
		}
	}
	return nil
}

// WriteElements writes every column as an integer
func WriteElements(w io.Writer, elems converter.Elements) error {
	for _, row := range elems {
		fields := make([]string, len(row))
		for i, v := range row {
			fields[i] = strconv.Itoa(v)
		}
		if _, err := fmt.Fprintln(w, strings.Join(fields, " ")); err != nil {
			return err
		}
	}
	return nil
}

// WriteMaterials writes every column in exponent notation
func WriteMaterials(w io.Writer, mats *mat.Dense) error {
	for i := 0; i < rows(mats); i++ {
		row := mats.RawRowView(i)
		fields := make([]string, len(row))
		for j, v := range row {
			fields[j] = fmt.Sprintf("%.6e", v)
		}
		if _, err := fmt.Fprintln(w, strings.Join(fields, " ")); err != nil {
			return err
		}
	}
	return nil
}

// WriteLoads writes rows "node fx fy"
func WriteLoads(w io.Writer, loads *mat.Dense) error {
	for i := 0; i < rows(loads); i++ {
		row := loads.RawRowView(i)
		if _, err := fmt.Fprintf(w, "%d %.6f %.6f\n", int(row[0]), row[1], row[2]); err != nil {
			return err
		}
	}
	return nil
}

// Read loads the tables written by Write. The loads table is optional.
func Read(dir, prefix string) (*converter.Arrays, error) {
	a := &converter.Arrays{}
	var err error
	if a.Nodes, err = readDense(filepath.Join(dir, prefix+NodesFile), 5); err != nil {
		return nil, err
	}
	if a.Materials, err = readDense(filepath.Join(dir, prefix+MaterialsFile), 3); err != nil {
		return nil, err
	}
	if a.Elements, err = readElements(filepath.Join(dir, prefix+ElementsFile)); err != nil {
		return nil, err
	}
	loads, err := readDense(filepath.Join(dir, prefix+LoadsFile), 3)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		a.Loads = loads
	}
	return a, nil
}

// scanFields calls fn with the fields of every non blank line of path
func scanFields(path string, fn func(fields []string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if err := fn(fields); err != nil {
			return fmt.Errorf("%s:%d: %w", path, line, err)
		}
	}
	return scanner.Err()
}

func readDense(path string, cols int) (*mat.Dense, error) {
	var data []float64
	n := 0
	err := scanFields(path, func(fields []string) error {
		if len(fields) != cols {
			return fmt.Errorf("expected %d columns, got %d", cols, len(fields))
		}
		for _, s := range fields {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return err
			}
			data = append(data, v)
		}
		n++
		return nil
	})
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return &mat.Dense{}, nil
	}
	return mat.NewDense(n, cols, data), nil
}

func readElements(path string) (converter.Elements, error) {
	var elems converter.Elements
	err := scanFields(path, func(fields []string) error {
		if len(fields) < 4 {
			return fmt.Errorf("element row has %d columns", len(fields))
		}
		row := make([]int, len(fields))
		for i, s := range fields {
			v, err := strconv.Atoi(s)
			if err != nil {
				return err
			}
			row[i] = v
		}
		elems = append(elems, row)
		return nil
	})
	return elems, err
}
