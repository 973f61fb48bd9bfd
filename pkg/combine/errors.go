package combine

import (
	"errors"
	"fmt"

	"volmath/pkg/models"
)

// ErrUnsupportedCombination matches every *UnsupportedCombinationError via
// errors.Is.
var ErrUnsupportedCombination = errors.New("combine: unsupported combination")

// UnsupportedCombinationError reports a kind pairing or shape relationship
// that no combination strategy covers.
type UnsupportedCombinationError struct {
	Operation Operation
	KindA     models.Kind
	KindB     models.Kind

	// Reason is an optional detail such as the offending shapes.
	Reason string
}

func (e *UnsupportedCombinationError) Error() string {
	msg := fmt.Sprintf("combine: there is currently no support for %s on %s and %s", e.Operation, e.KindA, e.KindB)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// Is makes errors.Is(err, ErrUnsupportedCombination) succeed.
func (e *UnsupportedCombinationError) Is(target error) bool {
	return target == ErrUnsupportedCombination
}

func unsupported(op Operation, a, b models.Kind, format string, args ...any) error {
	return &UnsupportedCombinationError{
		Operation: op,
		KindA:     a,
		KindB:     b,
		Reason:    fmt.Sprintf(format, args...),
	}
}
