package combine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"volmath/pkg/models"
)

func TestParseOperationRoundTrip(t *testing.T) {
	for _, op := range Operations() {
		got, err := ParseOperation(op.String())
		require.NoError(t, err)
		assert.Equal(t, op, got)
	}

	got, err := ParseOperation("  Z-Project Mean ")
	require.NoError(t, err)
	assert.Equal(t, ZProjectMean, got)

	_, err = ParseOperation("modulo")
	require.ErrorIs(t, err, ErrUnknownOperation)
	assert.Equal(t, "Operation(-1)", Operation(-1).String())
}

func TestReductionFlags(t *testing.T) {
	for _, op := range Operations() {
		assert.Equal(t, op.IsReduction(), !op.UsesPartner(), op.String())
		assert.Equal(t, op.IsReduction(), op.binary() == nil, op.String())
		assert.Equal(t, op.IsReduction(), op.reducer() != nil, op.String())
	}
}

func TestLegalOperations(t *testing.T) {
	arith := []Operation{Add, Subtract, Multiply, Divide}
	assert.Equal(t, arith, LegalOperations(models.Mesh))
	assert.Equal(t, arith, LegalOperations(models.PointSet))
	assert.Equal(t, Operations(), LegalOperations(models.Volumetric))
}

func TestCandidatePartners(t *testing.T) {
	vol := models.NewVolume("a", "", nil)
	vol2 := models.NewVolume("b", "", nil)
	pts := models.NewPointSet("p", "", mat.NewDense(1, 2, nil))

	all := []*models.Source{vol, pts, vol2, nil}
	assert.Equal(t, []*models.Source{vol, vol2}, CandidatePartners(vol, all))
	assert.Empty(t, CandidatePartners(pts, all))
	assert.Empty(t, CandidatePartners(nil, all))
}
