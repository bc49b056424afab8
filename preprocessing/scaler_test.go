package preprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/estatelab/rentfold/pkg/errors"
)

func TestStandardScaler(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		1, 10,
		2, 10,
		3, 10,
		4, 10,
	})

	scaler, err := FitStandardScaler(X)
	require.NoError(t, err)

	assert.InDeltaSlice(t, []float64{2.5, 10}, scaler.Mean(), 1e-12)
	assert.InDelta(t, 1.118033988749895, scaler.Scale()[0], 1e-12)
	assert.Equal(t, 1.0, scaler.Scale()[1], "constant column keeps unit scale")

	scaled, err := scaler.Transform(X)
	require.NoError(t, err)
	assert.InDelta(t, -1.3416407864998738, scaled.At(0, 0), 1e-12)
	assert.Equal(t, 0.0, scaled.At(3, 1))

	back, err := scaler.InverseTransform(scaled)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(X, back, 1e-12))

	_, err = scaler.Transform(mat.NewDense(1, 3, nil))
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(err, &dimErr))
}
