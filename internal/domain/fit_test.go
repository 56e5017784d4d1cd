package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFitResult_StdErrs(t *testing.T) {
	f := FitResult{
		Params:     []float64{100, 0.01},
		Covariance: [][]float64{{4, 0}, {0, 0.0001}},
	}
	se := f.StdErrs()
	require.Len(t, se, 2)
	assert.InDelta(t, 2.0, se[0], 1e-12)
	assert.InDelta(t, 0.01, se[1], 1e-12)
}

func TestFitResult_StdErrs_NoCovariance(t *testing.T) {
	assert.Nil(t, FitResult{Params: []float64{1, 2}}.StdErrs())
}

func TestFitResult_RMSE(t *testing.T) {
	f := FitResult{
		Cost:      8,
		Predicted: PredictedSeries{{ElapsedDays: 0, Rate: 1}, {ElapsedDays: 30, Rate: 2}},
	}
	assert.InDelta(t, 2.0, f.RMSE(), 1e-12)
}

func TestFitResult_RMSE_EmptySeries(t *testing.T) {
	assert.Equal(t, 0.0, FitResult{Cost: 8}.RMSE())
}
