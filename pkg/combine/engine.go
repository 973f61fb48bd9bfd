// Package combine implements the combination engine: it applies an
// arithmetic, logical or reduction operator to one or two data sources and
// reassembles the result in the structural form of the first source.
//
// The engine holds no state between calls. Every invocation is a pure
// function of its inputs, so a single Engine may be shared by goroutines.
//
// Shapes are compared in natural axis order (axis 0 slowest). When two volumes
// of different shape are combined they are aligned at their fastest-varying
// axis and clipped to the overlapping region; see reconcile.
package combine

import (
	"fmt"

	"go.uber.org/zap"

	"volmath/pkg/extract"
	"volmath/pkg/models"
	"volmath/pkg/ndarray"
)

// Metadata records the provenance of a result.
type Metadata struct {
	Layer0    string  `yaml:"layer0"`
	Operation string  `yaml:"operation"`
	Scalar    float64 `yaml:"scalar"`

	// Layer1 is empty for unary calls.
	Layer1 string `yaml:"layer1,omitempty"`
}

// Map returns the metadata as the mapping handed to a host. The layer1 key
// is present only when a second source took part.
func (m Metadata) Map() map[string]any {
	md := map[string]any{
		"layer0":    m.Layer0,
		"operation": m.Operation,
		"scalar":    m.Scalar,
	}
	if m.Layer1 != "" {
		md["layer1"] = m.Layer1
	}
	return md
}

// Result is a newly built payload in the structural kind of source A.
type Result struct {
	Kind models.Kind

	// Data is the plain result array, or the new vertex coordinates of a mesh.
	Data *ndarray.Array

	// Faces and Colors are copies of source A's mesh parts. Colors may be nil.
	Faces  [][]int
	Colors *ndarray.Array

	Metadata Metadata
}

// Source wraps the result as a new data source of the result kind.
func (r *Result) Source(name string) *models.Source {
	if r.Kind == models.Mesh {
		return &models.Source{
			Kind: models.Mesh,
			Name: name,
			Mesh: &models.MeshData{Vertices: r.Data, Faces: r.Faces, Colors: r.Colors},
		}
	}
	return &models.Source{Kind: r.Kind, Name: name, Data: r.Data}
}

// Engine executes combinations. The zero value is not usable; call NewEngine.
type Engine struct {
	logger *zap.Logger
}

// NewEngine creates an engine that logs its strategy decisions to logger.
// A nil logger disables logging.
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger}
}

var defaultEngine = NewEngine(nil)

// Combine runs op on a default engine. See Engine.Combine.
func Combine(a *models.Source, op Operation, scalar float64, b *models.Source) (*Result, error) {
	return defaultEngine.Combine(a, op, scalar, b)
}

// Combine applies op to source a and either scalar alone (b == nil) or
// scalar*b. Reductions ignore scalar and b. Inputs are never modified.
func (e *Engine) Combine(a *models.Source, op Operation, scalar float64, b *models.Source) (*Result, error) {
	if !op.valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOperation, op)
	}
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("source A: %w", err)
	}
	if b != nil && op.UsesPartner() {
		if err := b.Validate(); err != nil {
			return nil, fmt.Errorf("source B: %w", err)
		}
	}

	var (
		data *ndarray.Array
		err  error
	)
	switch {
	case op.IsReduction():
		data, err = e.project(a, op)
	case b == nil:
		data = e.unary(a, op, scalar)
	default:
		data, err = e.binary(a, b, op, scalar)
	}
	if err != nil {
		return nil, err
	}

	res := &Result{Kind: a.Kind, Data: data, Metadata: metadataFor(a, op, scalar, b)}
	reassemble(res, a)
	return res, nil
}

func (e *Engine) unary(a *models.Source, op Operation, scalar float64) *ndarray.Array {
	fn := op.binary()
	e.logger.Debug("applying scalar operation",
		zap.String("operation", op.String()),
		zap.Stringer("kind", a.Kind),
		zap.Float64("scalar", scalar))
	return extract.Extract(a).Map(func(x float64) float64 { return fn(x, scalar) })
}

func (e *Engine) project(a *models.Source, op Operation) (*ndarray.Array, error) {
	if a.Kind != models.Volumetric {
		return nil, unsupported(op, a.Kind, models.KindNone, "projection needs a volumetric source")
	}
	data := extract.Extract(a)
	if data.NDim() < projectionDepth {
		return nil, unsupported(op, a.Kind, models.KindNone, "projection needs at least %d axes, got shape %v", projectionDepth, data.Shape())
	}
	axis := projectionAxis(data.NDim())
	if data.Dim(axis) == 0 {
		return nil, unsupported(op, a.Kind, models.KindNone, "projection axis is empty in shape %v", data.Shape())
	}
	e.logger.Debug("projecting volume",
		zap.String("operation", op.String()),
		zap.Ints("shape", data.Shape()),
		zap.Int("axis", axis))
	return data.Reduce(axis, op.reducer())
}

func (e *Engine) binary(a, b *models.Source, op Operation, scalar float64) (*ndarray.Array, error) {
	if a.Kind != models.Volumetric || b.Kind != models.Volumetric {
		return nil, unsupported(op, a.Kind, b.Kind, "")
	}
	da, db := extract.Extract(a), extract.Extract(b)

	if ndarray.SameShape(da, db) {
		e.logger.Debug("combining equal shapes",
			zap.String("operation", op.String()),
			zap.Ints("shape", da.Shape()))
		return ndarray.ZipWith(da, db.Scale(scalar), op.binary())
	}

	ca, cb, err := reconcile(da, db)
	if err != nil {
		return nil, unsupported(op, a.Kind, b.Kind, "%v", err)
	}
	e.logger.Debug("combining clipped volumes",
		zap.String("operation", op.String()),
		zap.Ints("shapeA", da.Shape()),
		zap.Ints("shapeB", db.Shape()),
		zap.Ints("clipped", ca.Shape()))
	return ndarray.ZipWith(ca, cb.Scale(scalar), op.binary())
}

// reconcile clips two volumes of different shape to their common region.
//
// Axes are paired from the last (fastest-varying) axis backward. Each paired
// axis is clipped to [0, min extent), which is empty when either extent is 0.
// Leading axes present only in the higher rank operand are clipped to [0, 1).
// Length-1 axes are then squeezed out of both operands, which normally leaves
// them with identical shapes.
func reconcile(a, b *ndarray.Array) (*ndarray.Array, *ndarray.Array, error) {
	na, nb := a.NDim(), b.NDim()
	lo := min(na, nb)

	overlap := make([]int, lo)
	for i := 0; i < lo; i++ {
		overlap[i] = min(a.Dim(na-1-i), b.Dim(nb-1-i))
	}

	ca, err := a.Clip(clipRegion(a, overlap))
	if err != nil {
		return nil, nil, err
	}
	cb, err := b.Clip(clipRegion(b, overlap))
	if err != nil {
		return nil, nil, err
	}

	ca, cb = ca.Squeeze(), cb.Squeeze()
	if !ndarray.SameShape(ca, cb) {
		return nil, nil, fmt.Errorf("shapes %v and %v cannot be clip-reconciled", a.Shape(), b.Shape())
	}
	return ca, cb, nil
}

// clipRegion builds the region for a given the overlap extents listed from
// the last axis backward.
func clipRegion(a *ndarray.Array, overlap []int) []ndarray.Range {
	n := a.NDim()
	region := make([]ndarray.Range, n)
	for axis := range region {
		fromEnd := n - 1 - axis
		if fromEnd < len(overlap) {
			region[axis] = ndarray.Range{Start: 0, Stop: overlap[fromEnd]}
		} else {
			region[axis] = ndarray.Range{Start: 0, Stop: min(1, a.Dim(axis))}
		}
	}
	return region
}

func metadataFor(a *models.Source, op Operation, scalar float64, b *models.Source) Metadata {
	md := Metadata{Layer0: a.Label(), Operation: op.String(), Scalar: scalar}
	if b != nil {
		md.Layer1 = b.Label()
	}
	return md
}

// reassemble attaches copies of a's mesh parts to a mesh result.
func reassemble(res *Result, a *models.Source) {
	faces, colors := extract.Parts(a)
	if a.Kind != models.Mesh {
		return
	}
	res.Faces = make([][]int, len(faces))
	for i, f := range faces {
		res.Faces[i] = append([]int(nil), f...)
	}
	if colors != nil {
		res.Colors = colors.Clone()
	}
}
