// Package extract turns a data source of any kind into the single numeric
// array the combination engine operates on.
package extract

import (
	"volmath/pkg/models"
	"volmath/pkg/ndarray"
)

// extractors maps each kind to the array that takes part in arithmetic.
var extractors = map[models.Kind]func(*models.Source) *ndarray.Array{
	models.Volumetric: func(s *models.Source) *ndarray.Array { return s.Data },
	models.PointSet:   func(s *models.Source) *ndarray.Array { return s.Data },
	models.Mesh:       func(s *models.Source) *ndarray.Array { return s.Mesh.Vertices },
}

// Extract returns the numeric array of src without copying it. For meshes only
// the vertex coordinates are returned. The source is assumed to be
// structurally valid (see models.Source.Validate); the result must not be
// modified.
func Extract(src *models.Source) *ndarray.Array {
	fn, ok := extractors[src.Kind]
	if !ok {
		return nil
	}
	return fn(src)
}

// Parts returns the structural parts that are reattached to a result of the
// same kind as src. Non-mesh sources have none.
func Parts(src *models.Source) (faces [][]int, colors *ndarray.Array) {
	if src.Kind != models.Mesh || src.Mesh == nil {
		return nil, nil
	}
	return src.Mesh.Faces, src.Mesh.Colors
}
