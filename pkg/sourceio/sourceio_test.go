package sourceio

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"

	"volmath/pkg/combine"
	"volmath/pkg/config"
	"volmath/pkg/models"
	"volmath/pkg/ndarray"
	"volmath/pkg/stl"
)

// writeUniformSlice writes a width x height JPEG filled with a single gray level.
func writeUniformSlice(t *testing.T, path string, width, height int, level uint8) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetGray(x, y, color.Gray{Y: level})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, jpeg.Encode(f, img, &jpeg.Options{Quality: 100}))
}

func TestLoadSliceStackOrdersByNumber(t *testing.T) {
	dir := t.TempDir()
	writeUniformSlice(t, filepath.Join(dir, "slice_10.jpg"), 8, 6, 255)
	writeUniformSlice(t, filepath.Join(dir, "slice_2.jpg"), 8, 6, 0)
	writeUniformSlice(t, filepath.Join(dir, "slice_5.jpeg"), 8, 6, 128)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644))

	src, err := NewLoader(nil, zap.NewNop()).Load(dir)
	require.NoError(t, err)

	assert.Equal(t, models.Volumetric, src.Kind)
	assert.Equal(t, dir, src.Path)
	assert.Equal(t, []int{3, 6, 8}, src.Data.Shape())
	assert.InDelta(t, 0.0, src.Data.At(0, 3, 4), 0.02)
	assert.InDelta(t, 128.0/255, src.Data.At(1, 3, 4), 0.02)
	assert.InDelta(t, 1.0, src.Data.At(2, 3, 4), 0.02)
}

func TestSliceStackProjectsAcrossSlices(t *testing.T) {
	dir := t.TempDir()
	for i, level := range []uint8{0, 128, 255} {
		writeUniformSlice(t, filepath.Join(dir, fmt.Sprintf("slice_%d.jpg", i)), 5, 4, level)
	}

	src, err := NewLoader(nil, nil).Load(dir)
	require.NoError(t, err)
	require.Equal(t, []int{3, 4, 5}, src.Data.Shape())

	res, err := combine.Combine(src, combine.ZProjectSum, 1, nil)
	require.NoError(t, err)
	require.Equal(t, []int{4, 5}, res.Data.Shape())
	assert.InDelta(t, 1+128.0/255, res.Data.At(3, 4), 0.05)

	res, err = combine.Combine(src, combine.ZProjectMax, 1, nil)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, res.Data.At(0, 0), 0.02)
}

func TestLoadSliceStackRejectsMixedSizes(t *testing.T) {
	dir := t.TempDir()
	writeUniformSlice(t, filepath.Join(dir, "1.jpg"), 8, 6, 10)
	writeUniformSlice(t, filepath.Join(dir, "2.jpg"), 4, 6, 10)

	_, err := NewLoader(nil, nil).Load(dir)
	require.ErrorIs(t, err, models.ErrMalformedSource)
}

func TestLoadEmptyDirectory(t *testing.T) {
	_, err := NewLoader(nil, nil).Load(t.TempDir())
	assert.Error(t, err)
}

func TestLoadSingleImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plane.jpg")
	writeUniformSlice(t, path, 5, 3, 255)

	src, err := NewLoader(nil, nil).Load(path)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 5}, src.Data.Shape())
	assert.Equal(t, "plane", src.Name)
	assert.Equal(t, path, src.Label())
}

func TestLoadUnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte("1,2"), 0644))

	_, err := NewLoader(config.DefaultConfig(), nil).Load(path)
	assert.Error(t, err)
}

func TestLoadManifests(t *testing.T) {
	dir := t.TempDir()

	points := filepath.Join(dir, "points.yaml")
	require.NoError(t, os.WriteFile(points, []byte(`
kind: points
name: spots
points:
  - [1, 2, 3]
  - [4, 5, 6]
`), 0644))

	mesh := filepath.Join(dir, "mesh.yml")
	require.NoError(t, os.WriteFile(mesh, []byte(`
kind: surface
vertices:
  - [0, 0, 0]
  - [1, 0, 0]
  - [0, 1, 0]
faces:
  - [0, 1, 2]
colors:
  - [0.1]
  - [0.2]
  - [0.3]
`), 0644))

	volume := filepath.Join(dir, "volume.yaml")
	require.NoError(t, os.WriteFile(volume, []byte(`
kind: volume
shape: [2, 2]
data: [1, 2, 3, 4]
`), 0644))

	loader := NewLoader(nil, nil)

	p, err := loader.Load(points)
	require.NoError(t, err)
	assert.Equal(t, models.PointSet, p.Kind)
	assert.Equal(t, "spots", p.Name)
	assert.Equal(t, points, p.Path)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, p.Data.Data())

	m, err := loader.Load(mesh)
	require.NoError(t, err)
	assert.Equal(t, models.Mesh, m.Kind)
	assert.Equal(t, "mesh", m.Name)
	assert.Equal(t, [][]int{{0, 1, 2}}, m.Mesh.Faces)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, m.Mesh.Colors.Data())

	v, err := loader.Load(volume)
	require.NoError(t, err)
	assert.Equal(t, 4.0, v.Data.At(1, 1))
}

func TestLoadMalformedManifests(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"ragged.yaml":  "kind: points\npoints:\n  - [1, 2]\n  - [3]\n",
		"shape.yaml":   "kind: volume\nshape: [3]\ndata: [1, 2]\n",
		"face.yaml":    "kind: mesh\nvertices:\n  - [0, 0]\nfaces:\n  - [0, 1, 2]\n",
		"empty.yaml":   "kind: points\n",
		"kind.yaml":    "kind: labels\n",
		"invalid.yaml": "kind: [",
	}
	loader := NewLoader(nil, nil)
	for name, content := range cases {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
		_, err := loader.Load(path)
		assert.Error(t, err, name)
	}
}

func TestLoadSTL(t *testing.T) {
	verts, err := ndarray.New([]int{4, 3}, []float64{0, 0, 0, 1, 0, 0, 0, 1, 0, 1, 1, 0})
	require.NoError(t, err)
	triangles, err := stl.FromMesh(verts, [][]int{{0, 1, 2}, {1, 3, 2}})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "quad.stl")
	require.NoError(t, stl.SaveToSTL(path, triangles))

	src, err := NewLoader(nil, nil).Load(path)
	require.NoError(t, err)
	assert.Equal(t, models.Mesh, src.Kind)
	assert.Equal(t, []int{4, 3}, src.Mesh.Vertices.Shape())
	assert.Len(t, src.Mesh.Faces, 2)
	assert.NoError(t, src.Validate())
}

func readInfo(t *testing.T, dir string) map[string]any {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join(dir, MetadataFile))
	require.NoError(t, err)
	var info map[string]any
	require.NoError(t, yaml.Unmarshal(raw, &info))
	return info
}

func TestSaveVolumeResult(t *testing.T) {
	data := make([]float64, 2*3*4)
	for i := range data {
		data[i] = float64(i)
	}
	vol, err := ndarray.New([]int{2, 3, 4}, data)
	require.NoError(t, err)

	res, err := combine.Combine(models.NewVolume("v", "/in/v", vol), combine.Add, 1, nil)
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "out")
	written, err := NewWriter(nil, nil).Save(dir, res)
	require.NoError(t, err)
	assert.Contains(t, written, filepath.Join(dir, SlicesDir))

	for z := 0; z < 2; z++ {
		_, err := os.Stat(filepath.Join(dir, SlicesDir, fmt.Sprintf("slice_z_%03d.jpg", z)))
		assert.NoError(t, err)
	}

	st, err := os.Stat(filepath.Join(dir, VolumeFile))
	require.NoError(t, err)
	assert.Equal(t, int64(8*len(data)), st.Size())

	info := readInfo(t, dir)
	assert.Equal(t, "volumetric", info["kind"])
	assert.Equal(t, "/in/v", info["layer0"])
	assert.Equal(t, "add", info["operation"])
	_, hasLayer1 := info["layer1"]
	assert.False(t, hasLayer1)
}

func TestSaveProjectionWritesImage(t *testing.T) {
	vol, err := ndarray.Zeros(3, 3, 3)
	require.NoError(t, err)
	res, err := combine.Combine(models.NewVolume("v", "", vol), combine.ZProjectMax, 1, nil)
	require.NoError(t, err)

	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Output.Normalize = false
	_, err = NewWriter(cfg, nil).Save(dir, res)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, ImageFile))
	assert.NoError(t, err)
}

func TestSaveMeshResultRoundTrips(t *testing.T) {
	verts := mat.NewDense(3, 3, []float64{0, 0, 0, 1, 0, 0, 0, 1, 0})
	colors := mat.NewDense(3, 1, []float64{1, 2, 3})
	mesh, err := models.NewMesh("tri", "", verts, [][]int{{0, 1, 2}}, colors)
	require.NoError(t, err)

	res, err := combine.Combine(mesh, combine.Multiply, 2, nil)
	require.NoError(t, err)

	dir := t.TempDir()
	_, err = NewWriter(nil, nil).Save(dir, res)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, MeshFile))
	assert.NoError(t, err)

	back, err := NewLoader(nil, nil).Load(filepath.Join(dir, ManifestFile))
	require.NoError(t, err)
	assert.Equal(t, models.Mesh, back.Kind)
	assert.Equal(t, []float64{0, 0, 0, 2, 0, 0, 0, 2, 0}, back.Mesh.Vertices.Data())
	assert.Equal(t, [][]int{{0, 1, 2}}, back.Mesh.Faces)
	assert.Equal(t, []float64{1, 2, 3}, back.Mesh.Colors.Data())
}

func TestSaveQuadMeshSkipsSTL(t *testing.T) {
	verts := mat.NewDense(4, 3, []float64{0, 0, 0, 1, 0, 0, 1, 1, 0, 0, 1, 0})
	mesh, err := models.NewMesh("quad", "", verts, [][]int{{0, 1, 2, 3}}, nil)
	require.NoError(t, err)

	res, err := combine.Combine(mesh, combine.Add, 1, nil)
	require.NoError(t, err)

	dir := t.TempDir()
	written, err := NewWriter(nil, nil).Save(dir, res)
	require.NoError(t, err)
	assert.NotContains(t, written, filepath.Join(dir, MeshFile))
	assert.Contains(t, written, filepath.Join(dir, ManifestFile))
}

func TestSavePointResult(t *testing.T) {
	pts := models.NewPointSet("p", "", mat.NewDense(2, 2, []float64{1, 2, 3, 4}))
	res, err := combine.Combine(pts, combine.Subtract, 1, nil)
	require.NoError(t, err)

	dir := t.TempDir()
	_, err = NewWriter(nil, nil).Save(dir, res)
	require.NoError(t, err)

	back, err := NewLoader(nil, nil).Load(filepath.Join(dir, ManifestFile))
	require.NoError(t, err)
	assert.Equal(t, models.PointSet, back.Kind)
	assert.Equal(t, []float64{0, 1, 2, 3}, back.Data.Data())
	assert.Equal(t, "subtract", back.Name)
}
