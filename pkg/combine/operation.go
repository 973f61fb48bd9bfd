package combine

import (
	"errors"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"volmath/pkg/models"
)

// ErrUnknownOperation is returned by ParseOperation for names outside the
// supported set.
var ErrUnknownOperation = errors.New("combine: unknown operation")

// Operation is one of the fixed set of arithmetic, logical and reduction
// operators.
type Operation int

const (
	Add Operation = iota
	Subtract
	Multiply
	Divide
	And
	Or
	Xor
	ZProjectSum
	ZProjectMean
	ZProjectMax
)

var operationNames = [...]string{
	Add:          "add",
	Subtract:     "subtract",
	Multiply:     "multiply",
	Divide:       "divide",
	And:          "and",
	Or:           "or",
	Xor:          "xor",
	ZProjectSum:  "z-project sum",
	ZProjectMean: "z-project mean",
	ZProjectMax:  "z-project max",
}

// projectionDepth is the position of the z axis counted from the last axis.
// Volumes are stored as (..., z, y, x), the same trailing-axis view reconcile
// aligns on, so z is the third axis from the end.
const projectionDepth = 3

// projectionAxis returns the natural-order index of the z axis for an array
// of ndim axes.
func projectionAxis(ndim int) int { return ndim - projectionDepth }

func (o Operation) String() string {
	if !o.valid() {
		return fmt.Sprintf("Operation(%d)", int(o))
	}
	return operationNames[o]
}

func (o Operation) valid() bool {
	return o >= 0 && int(o) < len(operationNames)
}

// ParseOperation maps an operator name such as "add" or "z-project mean" to
// its Operation.
func ParseOperation(name string) (Operation, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for i, s := range operationNames {
		if s == n {
			return Operation(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownOperation, name)
}

// Operations lists every operation in declaration order.
func Operations() []Operation {
	ops := make([]Operation, len(operationNames))
	for i := range ops {
		ops[i] = Operation(i)
	}
	return ops
}

// IsReduction reports whether o collapses an axis of a single volume.
func (o Operation) IsReduction() bool {
	return o == ZProjectSum || o == ZProjectMean || o == ZProjectMax
}

// UsesPartner reports whether o takes a scalar and an optional second source.
// Reductions ignore both.
func (o Operation) UsesPartner() bool { return !o.IsReduction() }

// binary returns the elementwise function of o. Reductions have none.
func (o Operation) binary() func(x, y float64) float64 {
	switch o {
	case Add:
		return func(x, y float64) float64 { return x + y }
	case Subtract:
		return func(x, y float64) float64 { return x - y }
	case Multiply:
		return func(x, y float64) float64 { return x * y }
	case Divide:
		// IEEE semantics: x/0 is ±Inf, 0/0 is NaN.
		return func(x, y float64) float64 { return x / y }
	case And:
		return func(x, y float64) float64 { return truth(x != 0 && y != 0) }
	case Or:
		return func(x, y float64) float64 { return truth(x != 0 || y != 0) }
	case Xor:
		return func(x, y float64) float64 { return truth((x != 0) != (y != 0)) }
	}
	return nil
}

// reducer returns the fiber reduction of a z-projection.
func (o Operation) reducer() func(fiber []float64) float64 {
	switch o {
	case ZProjectSum:
		return floats.Sum
	case ZProjectMean:
		return func(f []float64) float64 { return stat.Mean(f, nil) }
	case ZProjectMax:
		return floats.Max
	}
	return nil
}

// truth encodes a logical result as 1 or 0. NaN counts as true, being nonzero.
func truth(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// LegalOperations returns the operations a host should offer for a primary
// source of the given kind. Arithmetic applies to every kind; logical
// operators and z-projections only make sense on volumes.
func LegalOperations(kind models.Kind) []Operation {
	ops := []Operation{Add, Subtract, Multiply, Divide}
	if kind == models.Volumetric {
		ops = append(ops, And, Or, Xor, ZProjectSum, ZProjectMean, ZProjectMax)
	}
	return ops
}

// CandidatePartners filters sources down to those that may be offered as the
// second operand for a. Only volumes pair with other volumes.
func CandidatePartners(a *models.Source, sources []*models.Source) []*models.Source {
	if a == nil || a.Kind != models.Volumetric {
		return nil
	}
	var out []*models.Source
	for _, s := range sources {
		if s != nil && s.Kind == a.Kind {
			out = append(out, s)
		}
	}
	return out
}
