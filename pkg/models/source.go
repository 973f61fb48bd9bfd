// Package models defines the data sources volmath combines: volumetric
// images, point sets and surface meshes.
package models

import (
	"errors"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"

	"volmath/pkg/ndarray"
)

// ErrMalformedSource reports a source whose structural parts are missing or
// inconsistent, e.g. a mesh without vertices or a face pointing past the
// vertex table.
var ErrMalformedSource = errors.New("models: malformed source")

// Kind identifies the structural kind of a Source.
type Kind int

const (
	// KindNone is the zero Kind. It is used where no source was supplied.
	KindNone Kind = iota

	// Volumetric is an n-dimensional grid of scalars (image or label volume).
	Volumetric

	// PointSet is an unordered collection of coordinate tuples.
	PointSet

	// Mesh is vertices plus face connectivity plus optional colors.
	Mesh
)

var kindNames = [...]string{
	KindNone:   "none",
	Volumetric: "volumetric",
	PointSet:   "points",
	Mesh:       "mesh",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind maps a kind name back to its Kind. "image" and "surface" are
// accepted as aliases for volumetric and mesh.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "volumetric", "volume", "image":
		return Volumetric, nil
	case "points", "pointset":
		return PointSet, nil
	case "mesh", "surface":
		return Mesh, nil
	}
	return KindNone, fmt.Errorf("models: unknown source kind %q", name)
}

// MeshData holds the structural parts of a mesh. Only Vertices take part in
// arithmetic; Faces and Colors travel alongside unchanged.
type MeshData struct {
	// Vertices has shape (count, dimensionality).
	Vertices *ndarray.Array

	// Faces lists vertex indices per face.
	Faces [][]int

	// Colors holds per-vertex or per-face values. It may be nil.
	Colors *ndarray.Array
}

// Source is a single data source. Exactly one of Data (Volumetric, PointSet)
// or Mesh (Mesh) is populated, selected by Kind.
type Source struct {
	Kind Kind

	// Name is the display name.
	Name string

	// Path is the originating file path, empty when unknown.
	Path string

	// Data is the volume grid or the (count, dimensionality) point table.
	Data *ndarray.Array

	// Mesh is set for Kind == Mesh.
	Mesh *MeshData
}

// NewVolume wraps an n-dimensional grid as a volumetric source.
func NewVolume(name, path string, data *ndarray.Array) *Source {
	return &Source{Kind: Volumetric, Name: name, Path: path, Data: data}
}

// NewPointSet builds a point set from a (count, dimensionality) matrix.
func NewPointSet(name, path string, coords mat.Matrix) *Source {
	return &Source{Kind: PointSet, Name: name, Path: path, Data: ndarray.FromDense(coords)}
}

// NewMesh builds a mesh source. colors may be nil.
func NewMesh(name, path string, vertices mat.Matrix, faces [][]int, colors mat.Matrix) (*Source, error) {
	md := &MeshData{
		Vertices: ndarray.FromDense(vertices),
		Faces:    faces,
	}
	if colors != nil {
		md.Colors = ndarray.FromDense(colors)
	}
	s := &Source{Kind: Mesh, Name: name, Path: path, Mesh: md}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Label identifies the source in result metadata: the origin path when known,
// then the display name, then the kind name.
func (s *Source) Label() string {
	switch {
	case s.Path != "":
		return s.Path
	case s.Name != "":
		return s.Name
	default:
		return s.Kind.String()
	}
}

// Validate checks that the parts required by the source's kind are present.
func (s *Source) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: nil source", ErrMalformedSource)
	}
	switch s.Kind {
	case Volumetric:
		if s.Data == nil {
			return fmt.Errorf("%w: volume %q has no data", ErrMalformedSource, s.Label())
		}
	case PointSet:
		if s.Data == nil {
			return fmt.Errorf("%w: point set %q has no coordinates", ErrMalformedSource, s.Label())
		}
		if s.Data.NDim() != 2 {
			return fmt.Errorf("%w: point set %q has shape %v, want (count, dims)", ErrMalformedSource, s.Label(), s.Data.Shape())
		}
	case Mesh:
		return s.validateMesh()
	default:
		return fmt.Errorf("%w: unsupported kind %s", ErrMalformedSource, s.Kind)
	}
	return nil
}

func (s *Source) validateMesh() error {
	if s.Mesh == nil || s.Mesh.Vertices == nil {
		return fmt.Errorf("%w: mesh %q has no vertices", ErrMalformedSource, s.Label())
	}
	v := s.Mesh.Vertices
	if v.NDim() != 2 {
		return fmt.Errorf("%w: mesh %q vertices have shape %v, want (count, dims)", ErrMalformedSource, s.Label(), v.Shape())
	}
	if s.Mesh.Faces == nil {
		return fmt.Errorf("%w: mesh %q has no faces", ErrMalformedSource, s.Label())
	}
	count := v.Dim(0)
	for i, f := range s.Mesh.Faces {
		for _, idx := range f {
			if idx < 0 || idx >= count {
				return fmt.Errorf("%w: mesh %q face %d references vertex %d of %d", ErrMalformedSource, s.Label(), i, idx, count)
			}
		}
	}
	return nil
}
