// Package stl reads and writes binary STL files and converts between STL
// triangle soups and indexed meshes.
package stl

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"volmath/pkg/ndarray"
)

// ErrNotTriangulated is returned by FromMesh for meshes that are not made of
// triangles in 3-D space.
var ErrNotTriangulated = errors.New("stl: mesh is not a 3-D triangle mesh")

const headerSize = 80

// Triangle is one STL facet.
type Triangle struct {
	Normal  [3]float32
	Vertex1 [3]float32
	Vertex2 [3]float32
	Vertex3 [3]float32
}

// record is the on-disk layout of a facet.
type record struct {
	Triangle
	Attr uint16
}

// SaveToSTL writes triangles to filename in binary STL format.
func SaveToSTL(filename string, triangles []Triangle) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create STL file: %w", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	if err := WriteSTL(w, triangles); err != nil {
		return err
	}
	return w.Flush()
}

// WriteSTL encodes triangles as binary STL.
func WriteSTL(w io.Writer, triangles []Triangle) error {
	var header [headerSize]byte
	copy(header[:], "volmath binary STL")
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("failed to write STL header: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(triangles))); err != nil {
		return fmt.Errorf("failed to write triangle count: %w", err)
	}
	for i := range triangles {
		if err := binary.Write(w, binary.LittleEndian, record{Triangle: triangles[i]}); err != nil {
			return fmt.Errorf("failed to write triangle %d: %w", i, err)
		}
	}
	return nil
}

// LoadSTL reads a binary STL file.
func LoadSTL(filename string) ([]Triangle, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return ReadSTL(bufio.NewReader(file))
}

// ReadSTL decodes binary STL.
func ReadSTL(r io.Reader) ([]Triangle, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("failed to read STL header: %w", err)
	}
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("failed to read triangle count: %w", err)
	}

	triangles := make([]Triangle, 0, min(count, 1<<20))
	for i := uint32(0); i < count; i++ {
		var rec record
		if err := binary.Read(r, binary.LittleEndian, &rec); err != nil {
			return nil, fmt.Errorf("failed to read triangle %d of %d: %w", i, count, err)
		}
		triangles = append(triangles, rec.Triangle)
	}
	return triangles, nil
}

// FromMesh converts an indexed mesh to STL facets with unit normals computed
// from the winding order. vertices must have shape (count, 3) and every face
// must have exactly three indices.
func FromMesh(vertices *ndarray.Array, faces [][]int) ([]Triangle, error) {
	if vertices.NDim() != 2 || vertices.Dim(1) != 3 {
		return nil, fmt.Errorf("%w: vertices have shape %v", ErrNotTriangulated, vertices.Shape())
	}
	count := vertices.Dim(0)
	vertex := func(i int) [3]float32 {
		return [3]float32{
			float32(vertices.At(i, 0)),
			float32(vertices.At(i, 1)),
			float32(vertices.At(i, 2)),
		}
	}

	triangles := make([]Triangle, len(faces))
	for i, f := range faces {
		if len(f) != 3 {
			return nil, fmt.Errorf("%w: face %d has %d vertices", ErrNotTriangulated, i, len(f))
		}
		for _, idx := range f {
			if idx < 0 || idx >= count {
				return nil, fmt.Errorf("%w: face %d references vertex %d of %d", ErrNotTriangulated, i, idx, count)
			}
		}
		tri := Triangle{Vertex1: vertex(f[0]), Vertex2: vertex(f[1]), Vertex3: vertex(f[2])}
		tri.Normal = normal(tri.Vertex1, tri.Vertex2, tri.Vertex3)
		triangles[i] = tri
	}
	return triangles, nil
}

// ToMesh converts STL facets to an indexed mesh, merging vertices with
// identical coordinates. The vertex array has shape (count, 3).
func ToMesh(triangles []Triangle) (*ndarray.Array, [][]int, error) {
	index := make(map[[3]float32]int)
	var coords []float64
	faces := make([][]int, len(triangles))

	lookup := func(v [3]float32) int {
		if i, ok := index[v]; ok {
			return i
		}
		i := len(index)
		index[v] = i
		coords = append(coords, float64(v[0]), float64(v[1]), float64(v[2]))
		return i
	}

	for i, tri := range triangles {
		faces[i] = []int{lookup(tri.Vertex1), lookup(tri.Vertex2), lookup(tri.Vertex3)}
	}

	vertices, err := ndarray.New([]int{len(index), 3}, coords)
	if err != nil {
		return nil, nil, err
	}
	return vertices, faces, nil
}

// normal returns the unit normal of the triangle (a, b, c), or zero for a
// degenerate triangle.
func normal(a, b, c [3]float32) [3]float32 {
	ux, uy, uz := float64(b[0]-a[0]), float64(b[1]-a[1]), float64(b[2]-a[2])
	vx, vy, vz := float64(c[0]-a[0]), float64(c[1]-a[1]), float64(c[2]-a[2])

	nx := uy*vz - uz*vy
	ny := uz*vx - ux*vz
	nz := ux*vy - uy*vx

	mag := math.Sqrt(nx*nx + ny*ny + nz*nz)
	if mag == 0 {
		return [3]float32{}
	}
	return [3]float32{float32(nx / mag), float32(ny / mag), float32(nz / mag)}
}
