package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// PredictedPoint es la tasa del modelo ajustado en un instante observado.
type PredictedPoint struct {
	ElapsedDays int
	Rate        float64
}

// PredictedSeries va alineada 1:1 con las observaciones de la serie del pozo.
type PredictedSeries []PredictedPoint

// FitResult es el resultado de ajustar una variante sobre un pozo.
type FitResult struct {
	Variant    Variant
	Params     []float64
	ParamNames []string
	// Covariance es σ²·(JᵗJ)⁻¹ en el óptimo; nil cuando no hay grados de
	// libertad (n ≤ k) o el sistema quedó singular.
	Covariance [][]float64

	// --- Diagnóstico del solver ---
	Converged    bool
	Iterations   int
	Cost         float64 // suma de cuadrados de los residuos
	ClampedGuess bool    // el estimado inicial hubo que recortarlo a la caja

	Predicted PredictedSeries
}

// StdErrs devuelve el error estándar de cada parámetro (raíz de la diagonal
// de la covarianza), o nil si no hay covarianza.
func (f FitResult) StdErrs() []float64 {
	if f.Covariance == nil {
		return nil
	}
	out := make([]float64, len(f.Params))
	for i := range out {
		v := f.Covariance[i][i]
		if v < 0 {
			v = 0
		}
		out[i] = math.Sqrt(v)
	}
	return out
}

// RMSE devuelve la raíz del error cuadrático medio del ajuste sobre las
// observaciones de su serie, que Predicted refleja 1:1.
func (f FitResult) RMSE() float64 {
	if len(f.Predicted) == 0 {
		return 0
	}
	return math.Sqrt(f.Cost / float64(len(f.Predicted)))
}

// FitFailure registra una variante que no pudo ajustarse y el motivo.
// Un fallo de variante nunca aborta a la otra variante ni a otros pozos.
type FitFailure struct {
	Variant Variant
	Err     error
}

// WellDecline es el paquete de salida por pozo: su serie, el qi estimado y
// el resultado o fallo de cada variante ajustada.
type WellDecline struct {
	Series     WellSeries
	QiEstimate float64
	Fits       []FitResult
	Failures   []FitFailure
	FittedAt   time.Time
}

// WellID devuelve el identificador del pozo de la serie.
func (d WellDecline) WellID() string {
	return d.Series.WellID
}

// RunSummary resume una corrida completa del pipeline.
type RunSummary struct {
	ID        uuid.UUID
	StartedAt time.Time
	Product   Product
	Wells     int // pozos procesados
	Fitted    int // ajustes con éxito (pozo × variante)
	Failed    int // ajustes fallidos (pozo × variante)
	Duration  time.Duration
}
