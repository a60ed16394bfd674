package solverio

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/femprep/converter"
)

func arrays() *converter.Arrays {
	return &converter.Arrays{
		Nodes: mat.NewDense(4, 5, []float64{
			0, 0, 0, -1, -1,
			1, 1, 0, 0, 0,
			2, 1, 1, 0, 0,
			3, 0, 1, -1, 0,
		}),
		Elements:  converter.Elements{{0, 3, 0, 0, 1, 2}, {1, 3, 0, 0, 2, 3}},
		Materials: mat.NewDense(1, 3, []float64{2.1e11, 0.3, 0}),
		Loads:     mat.NewDense(2, 3, []float64{1, 0, -500, 2, 0, -500}),
	}
}

func TestWriteFormats(t *testing.T) {
	a := arrays()
	var buf bytes.Buffer

	require.NoError(t, WriteNodes(&buf, a.Nodes))
	assert.Equal(t, "0 0.0000 0.0000 -1 -1\n1 1.0000 0.0000 0 0\n2 1.0000 1.0000 0 0\n3 0.0000 1.0000 -1 0\n", buf.String())

	buf.Reset()
	require.NoError(t, WriteElements(&buf, a.Elements))
	assert.Equal(t, "0 3 0 0 1 2\n1 3 0 0 2 3\n", buf.String())

	buf.Reset()
	require.NoError(t, WriteMaterials(&buf, a.Materials))
	assert.Equal(t, "2.100000e+11 3.000000e-01 0.000000e+00\n", buf.String())

	buf.Reset()
	require.NoError(t, WriteLoads(&buf, a.Loads))
	assert.Equal(t, "1 0.000000 -500.000000\n2 0.000000 -500.000000\n", buf.String())
}

func TestWriteRead(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	paths, err := Write(dir, "cantilever_", arrays())
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "cantilever_nodes.txt"),
		filepath.Join(dir, "cantilever_eles.txt"),
		filepath.Join(dir, "cantilever_mater.txt"),
		filepath.Join(dir, "cantilever_loads.txt"),
	}, paths)

	got, err := Read(dir, "cantilever_")
	require.NoError(t, err)
	want := arrays()
	assert.True(t, mat.Equal(want.Nodes, got.Nodes))
	assert.Equal(t, want.Elements, got.Elements)
	assert.True(t, mat.EqualApprox(want.Materials, got.Materials, 1e-6))
	assert.True(t, mat.Equal(want.Loads, got.Loads))
}

func TestWriteWithoutLoads(t *testing.T) {
	dir := t.TempDir()
	a := arrays()
	a.Loads = nil
	paths, err := Write(dir, "", a)
	require.NoError(t, err)
	assert.Len(t, paths, 3)
	assert.NoFileExists(t, filepath.Join(dir, LoadsFile))

	got, err := Read(dir, "")
	require.NoError(t, err)
	assert.Nil(t, got.Loads)
}

func TestReadErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := Read(dir, "")
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Write(dir, "", arrays())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, MaterialsFile), []byte("1 2\n"), 0o644))
	_, err = Read(dir, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mater.txt:1: expected 3 columns")

	_, err = Write(dir, "", nil)
	assert.Error(t, err)
}
