package sourceio

import (
	"fmt"
	"os"

	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"

	"volmath/pkg/models"
	"volmath/pkg/ndarray"
)

// Manifest is the YAML form of a data source.
//
// Volumes use Shape and Data (row-major). Point sets use Points, one row per
// point. Meshes use Vertices, Faces and optionally Colors.
type Manifest struct {
	Kind string `yaml:"kind"`
	Name string `yaml:"name,omitempty"`

	Shape []int     `yaml:"shape,omitempty"`
	Data  []float64 `yaml:"data,omitempty,flow"`

	Points [][]float64 `yaml:"points,omitempty"`

	Vertices [][]float64 `yaml:"vertices,omitempty"`
	Faces    [][]int     `yaml:"faces,omitempty"`
	Colors   [][]float64 `yaml:"colors,omitempty"`
}

// ReadManifest parses a manifest file into a source whose Path is path.
func ReadManifest(path string) (*models.Source, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	src, err := m.Source()
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	src.Path = path
	return src, nil
}

// WriteManifest writes src as YAML to path.
func WriteManifest(path string, src *models.Source) error {
	m, err := ManifestFor(src)
	if err != nil {
		return err
	}
	raw, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	return os.WriteFile(path, raw, 0644)
}

// Source converts the manifest into a data source.
func (m *Manifest) Source() (*models.Source, error) {
	kind, err := models.ParseKind(m.Kind)
	if err != nil {
		return nil, err
	}

	switch kind {
	case models.Volumetric:
		data, err := ndarray.New(m.Shape, m.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrMalformedSource, err)
		}
		return models.NewVolume(m.Name, "", data), nil

	case models.PointSet:
		pts, err := rowsToDense(m.Points)
		if err != nil {
			return nil, fmt.Errorf("points: %w", err)
		}
		return models.NewPointSet(m.Name, "", pts), nil

	default:
		verts, err := rowsToDense(m.Vertices)
		if err != nil {
			return nil, fmt.Errorf("vertices: %w", err)
		}
		var colors mat.Matrix
		if len(m.Colors) > 0 {
			c, err := rowsToDense(m.Colors)
			if err != nil {
				return nil, fmt.Errorf("colors: %w", err)
			}
			colors = c
		}
		faces := m.Faces
		if faces == nil {
			faces = [][]int{}
		}
		return models.NewMesh(m.Name, "", verts, faces, colors)
	}
}

// ManifestFor converts a source into its manifest.
func ManifestFor(src *models.Source) (*Manifest, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}
	m := &Manifest{Kind: src.Kind.String(), Name: src.Name}
	switch src.Kind {
	case models.Volumetric:
		m.Shape = src.Data.Shape()
		m.Data = src.Data.Data()
	case models.PointSet:
		m.Points = rows(src.Data)
	case models.Mesh:
		m.Vertices = rows(src.Mesh.Vertices)
		m.Faces = src.Mesh.Faces
		if src.Mesh.Colors != nil {
			m.Colors = rows(src.Mesh.Colors)
		}
	}
	return m, nil
}

func rowsToDense(rows [][]float64) (*mat.Dense, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("%w: empty table", models.ErrMalformedSource)
	}
	cols := len(rows[0])
	data := make([]float64, 0, len(rows)*cols)
	for i, r := range rows {
		if len(r) != cols {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", models.ErrMalformedSource, i, len(r), cols)
		}
		data = append(data, r...)
	}
	return mat.NewDense(len(rows), cols, data), nil
}

// rows splits a 2-D array into row slices. A 1-D array becomes a single column.
func rows(a *ndarray.Array) [][]float64 {
	data := a.Data()
	cols := 1
	if a.NDim() == 2 {
		cols = a.Dim(1)
	}
	if cols == 0 {
		return nil
	}
	out := make([][]float64, 0, len(data)/cols)
	for i := 0; i+cols <= len(data); i += cols {
		out = append(out, append([]float64(nil), data[i:i+cols]...))
	}
	return out
}
