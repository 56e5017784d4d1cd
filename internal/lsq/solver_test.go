package lsq

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Modelos de prueba: las dos curvas de declino que el solver ajusta en producción.

func expModel(t float64, p []float64) float64 {
	return p[0] * math.Exp(-p[1]*t)
}

func hypModel(t float64, p []float64) float64 {
	return p[0] / math.Pow(1+p[1]*p[2]*t, 1/p[1])
}

// sampleSeries evalúa el modelo en n instantes espaciados dt.
func sampleSeries(model ModelFunc, p []float64, n int, dt float64) (ts, ys []float64) {
	for i := 0; i < n; i++ {
		t := float64(i) * dt
		ts = append(ts, t)
		ys = append(ys, model(t, p))
	}
	return ts, ys
}

// --- recuperación exacta ---

func TestSolve_RecoversExponentialExactly(t *testing.T) {
	truth := []float64{100, 0.01}
	ts, ys := sampleSeries(expModel, truth, 12, 30)
	b := NewBounds([]float64{0, 0}, []float64{1000, 1})

	res, err := Solve(expModel, ts, ys, b, []float64{80, 0.05}, Options{})
	require.NoError(t, err)
	assert.True(t, res.Converged)
	assert.False(t, res.ClampedGuess)
	assert.InEpsilon(t, 100.0, res.Params[0], 1e-4)
	assert.InEpsilon(t, 0.01, res.Params[1], 1e-4)
}

func TestSolve_RecoversHyperbolicExactly(t *testing.T) {
	truth := []float64{500, 0.9, 0.04}
	ts, ys := sampleSeries(hypModel, truth, 18, 30)
	b := NewBounds([]float64{0, 1e-6, 0}, []float64{2000, 2, 1})

	res, err := Solve(hypModel, ts, ys, b, []float64{400, 1.0, 0.01}, Options{})
	require.NoError(t, err)
	assert.True(t, res.Converged)
	assert.InEpsilon(t, 500.0, res.Params[0], 1e-4)
	assert.InEpsilon(t, 0.9, res.Params[1], 1e-4)
	assert.InEpsilon(t, 0.04, res.Params[2], 1e-4)
}

func TestSolve_KnownDeclineScenario(t *testing.T) {
	// q(t) = 100·e^(−0.01·t) redondeado a dos decimales en t = 0, 30, 60.
	// La caja acota qi por el pico observado, como hace el pipeline.
	ts := []float64{0, 30, 60}
	ys := []float64{100, 74.08, 54.88}
	b := NewBounds([]float64{0, 0}, []float64{100, 20})

	res, err := Solve(expModel, ts, ys, b, []float64{90, 0.05}, Options{})
	require.NoError(t, err)
	assert.InEpsilon(t, 100.0, res.Params[0], 0.01)
	assert.InEpsilon(t, 0.01, res.Params[1], 0.01)
}

func TestSolve_ConvergesPinnedAtBoundary(t *testing.T) {
	// Datos cuyo óptimo libre (qi ≈ 120) queda fuera de la caja: el ajuste
	// se queda pegado al borde qi = 100 y aun así debe declarar convergencia
	// en vez de quemar iteraciones rechazando pasos nulos.
	truth := []float64{120, 0.02}
	ts, ys := sampleSeries(expModel, truth, 12, 30)
	b := NewBounds([]float64{0, 0}, []float64{100, 1})

	res, err := Solve(expModel, ts, ys, b, []float64{90, 0.02}, Options{})
	require.NoError(t, err)
	assert.True(t, res.Converged)
	assert.InDelta(t, 100.0, res.Params[0], 1e-3)
	assert.True(t, b.Contains(res.Params))
}

// --- ruido ---

func TestSolve_ToleratesModerateNoise(t *testing.T) {
	truth := []float64{250, 0.02}
	ts, ys := sampleSeries(expModel, truth, 24, 15)
	rng := rand.New(rand.NewSource(7))
	for i := range ys {
		ys[i] *= 1 + 0.04*(rng.Float64()-0.5) // ruido multiplicativo ±2%
	}
	b := NewBounds([]float64{0, 0}, []float64{1000, 1})

	res, err := Solve(expModel, ts, ys, b, []float64{200, 0.05}, Options{})
	require.NoError(t, err)
	assert.InEpsilon(t, 250.0, res.Params[0], 0.10)
	assert.InEpsilon(t, 0.02, res.Params[1], 0.10)
}

// --- caja ---

func TestSolve_ParamsStayInsideBox(t *testing.T) {
	// El óptimo sin restricciones (di = 0.05) queda fuera de la caja.
	truth := []float64{100, 0.05}
	ts, ys := sampleSeries(expModel, truth, 12, 30)
	b := NewBounds([]float64{0, 0}, []float64{120, 0.01})

	res, _ := Solve(expModel, ts, ys, b, []float64{100, 0.005}, Options{})
	assert.True(t, b.Contains(res.Params))
}

func TestSolve_ClampsOutOfBoxGuess(t *testing.T) {
	truth := []float64{100, 0.01}
	ts, ys := sampleSeries(expModel, truth, 12, 30)
	b := NewBounds([]float64{0, 0}, []float64{1000, 1})

	res, err := Solve(expModel, ts, ys, b, []float64{5000, -0.3}, Options{})
	require.NoError(t, err)
	assert.True(t, res.ClampedGuess)
	assert.InEpsilon(t, 100.0, res.Params[0], 1e-3)
	assert.InEpsilon(t, 0.01, res.Params[1], 1e-3)
}

// --- determinismo ---

func TestSolve_Deterministic(t *testing.T) {
	truth := []float64{500, 0.9, 0.04}
	ts, ys := sampleSeries(hypModel, truth, 18, 30)
	b := NewBounds([]float64{0, 1e-6, 0}, []float64{2000, 2, 1})
	p0 := []float64{400, 1.0, 0.01}

	first, err1 := Solve(hypModel, ts, ys, b, p0, Options{})
	second, err2 := Solve(hypModel, ts, ys, b, p0, Options{})
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, first.Params, second.Params)
	assert.Equal(t, first.Iterations, second.Iterations)
	assert.Equal(t, first.Cost, second.Cost)
}

// --- modos de fallo ---

func TestSolve_InsufficientDistinctPoints(t *testing.T) {
	b := NewBounds([]float64{0, 1e-6, 0}, []float64{1000, 2, 1})
	_, err := Solve(hypModel, []float64{0}, []float64{100}, b, nil, Options{})
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestSolve_DuplicateTimesDontCount(t *testing.T) {
	// Tres observaciones pero un solo instante distinto.
	b := NewBounds([]float64{0, 0}, []float64{1000, 1})
	_, err := Solve(expModel, []float64{5, 5, 5}, []float64{90, 91, 89}, b, nil, Options{})
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestSolve_MaxIterationsExhausted(t *testing.T) {
	truth := []float64{100, 0.01}
	ts, ys := sampleSeries(expModel, truth, 12, 30)
	b := NewBounds([]float64{0, 0}, []float64{1000, 1})

	res, err := Solve(expModel, ts, ys, b, []float64{900, 0.9}, Options{MaxIterations: 2})
	assert.ErrorIs(t, err, ErrMaxIterations)
	assert.False(t, res.Converged)
	assert.Equal(t, 2, res.Iterations)
	assert.True(t, b.Contains(res.Params))
}

func TestSolve_NonFiniteModel(t *testing.T) {
	bad := func(float64, []float64) float64 { return math.NaN() }
	b := NewBounds([]float64{0, 0}, []float64{10, 10})
	_, err := Solve(bad, []float64{0, 1, 2}, []float64{1, 2, 3}, b, nil, Options{})
	assert.ErrorIs(t, err, ErrNonFinite)
}

func TestSolve_MismatchedSeries(t *testing.T) {
	b := NewBounds([]float64{0, 0}, []float64{10, 10})
	_, err := Solve(expModel, []float64{0, 1}, []float64{1}, b, nil, Options{})
	assert.Error(t, err)
}

func TestSolve_BadGuessDimension(t *testing.T) {
	b := NewBounds([]float64{0, 0}, []float64{10, 10})
	_, err := Solve(expModel, []float64{0, 1, 2}, []float64{5, 4, 3}, b, []float64{1, 1, 1}, Options{})
	assert.Error(t, err)
}

// --- covarianza ---

func TestSolve_CovarianceShape(t *testing.T) {
	truth := []float64{250, 0.02}
	ts, ys := sampleSeries(expModel, truth, 24, 15)
	rng := rand.New(rand.NewSource(11))
	for i := range ys {
		ys[i] *= 1 + 0.04*(rng.Float64()-0.5)
	}
	b := NewBounds([]float64{0, 0}, []float64{1000, 1})

	res, err := Solve(expModel, ts, ys, b, []float64{200, 0.05}, Options{})
	require.NoError(t, err)
	require.NotNil(t, res.Covariance)
	require.Len(t, res.Covariance, 2)
	for _, row := range res.Covariance {
		require.Len(t, row, 2)
	}
	// Varianzas no negativas y matriz simétrica.
	assert.GreaterOrEqual(t, res.Covariance[0][0], 0.0)
	assert.GreaterOrEqual(t, res.Covariance[1][1], 0.0)
	assert.InDelta(t, res.Covariance[0][1], res.Covariance[1][0], 1e-10)
}

func TestSolve_NoCovarianceWithoutDOF(t *testing.T) {
	// n == k: el ajuste es exacto y σ² no tiene grados de libertad.
	ts := []float64{0, 40}
	ys := []float64{100, 100 * math.Exp(-0.01*40)}
	b := NewBounds([]float64{0, 0}, []float64{1000, 1})

	res, err := Solve(expModel, ts, ys, b, []float64{90, 0.02}, Options{})
	require.NoError(t, err)
	assert.Nil(t, res.Covariance)
}

// --- defaults ---

func TestDefaultOptions_FillZeroFields(t *testing.T) {
	opts := Options{MaxIterations: 50}.withDefaults()
	assert.Equal(t, 50, opts.MaxIterations)
	assert.Equal(t, DefaultOptions().TolStep, opts.TolStep)
	assert.Equal(t, DefaultOptions().Damping, opts.Damping)
}
