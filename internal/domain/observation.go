package domain

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/alejandrodnm/wellfit/internal/lsq"
)

// Product es la magnitud medida que se ajusta.
type Product string

const (
	ProductOil Product = "oil"
	ProductGas Product = "gas"
)

// Observation es una medición cruda de producción: un pozo, la fecha del
// reporte y la tasa medida. Rate puede venir NaN (celda vacía en origen) o
// ≤ 0; FilterValid las descarta antes de cualquier ajuste.
type Observation struct {
	WellID     string
	RecordDate time.Time
	Rate       float64
}

// AnchoredObservation es una observación con su pozo ya anclado: lleva la
// fecha online resuelta del pozo y los días enteros transcurridos desde ella.
type AnchoredObservation struct {
	Observation
	OnlineDate  time.Time
	ElapsedDays int // días enteros desde OnlineDate, nunca negativo
}

// WellSeries es la serie anclada de un pozo, ordenada por días transcurridos.
type WellSeries struct {
	WellID       string
	OnlineDate   time.Time
	Observations []AnchoredObservation
}

// Times devuelve los días transcurridos como float64, en el orden de la serie.
func (s WellSeries) Times() []float64 {
	ts := make([]float64, len(s.Observations))
	for i, o := range s.Observations {
		ts[i] = float64(o.ElapsedDays)
	}
	return ts
}

// Rates devuelve las tasas observadas, alineadas con Times.
func (s WellSeries) Rates() []float64 {
	ys := make([]float64, len(s.Observations))
	for i, o := range s.Observations {
		ys[i] = o.Rate
	}
	return ys
}

// FilterValid descarta las observaciones sin tasa utilizable: NaN o ≤ 0.
// Mantiene el orden de entrada y no modifica el slice original.
func FilterValid(obs []Observation) []Observation {
	out := make([]Observation, 0, len(obs))
	for _, o := range obs {
		if math.IsNaN(o.Rate) || o.Rate <= 0 {
			continue
		}
		out = append(out, o)
	}
	return out
}

// ResolveOnlineDates calcula la fecha online de cada pozo: la fecha de
// reporte más antigua entre sus observaciones. Una sola pasada O(n) con
// mínimo acumulado por pozo; no asume ningún orden de entrada.
func ResolveOnlineDates(obs []Observation) map[string]time.Time {
	online := make(map[string]time.Time, 64)
	for _, o := range obs {
		cur, seen := online[o.WellID]
		if !seen || o.RecordDate.Before(cur) {
			online[o.WellID] = o.RecordDate
		}
	}
	return online
}

// Anchor convierte observaciones crudas en ancladas usando las fechas online
// resueltas. Las observaciones de pozos sin fecha online se omiten.
func Anchor(obs []Observation, online map[string]time.Time) []AnchoredObservation {
	out := make([]AnchoredObservation, 0, len(obs))
	for _, o := range obs {
		od, ok := online[o.WellID]
		if !ok {
			continue
		}
		out = append(out, AnchoredObservation{
			Observation: o,
			OnlineDate:  od,
			ElapsedDays: elapsedDays(od, o.RecordDate),
		})
	}
	return out
}

// elapsedDays devuelve los días enteros entre dos instantes, truncando la
// fracción: de 2016-01-15 a 2016-02-14 son 30 días.
func elapsedDays(from, to time.Time) int {
	return int(to.Sub(from) / (24 * time.Hour))
}

// GroupByWell agrupa observaciones ancladas en una serie por pozo. El orden
// de las series es el de primera aparición del pozo en la entrada, y dentro
// de cada serie se ordena por días transcurridos con orden estable. Ningún
// orden de iteración de mapas se filtra al resultado.
func GroupByWell(obs []AnchoredObservation) []WellSeries {
	idx := make(map[string]int, 64)
	series := make([]WellSeries, 0, 64)
	for _, o := range obs {
		i, seen := idx[o.WellID]
		if !seen {
			i = len(series)
			idx[o.WellID] = i
			series = append(series, WellSeries{WellID: o.WellID, OnlineDate: o.OnlineDate})
		}
		series[i].Observations = append(series[i].Observations, o)
	}
	for i := range series {
		obs := series[i].Observations
		sort.SliceStable(obs, func(a, b int) bool {
			return obs[a].ElapsedDays < obs[b].ElapsedDays
		})
	}
	return series
}

// PeakInitialRate estima el caudal inicial qi de un pozo: la tasa máxima
// entre las primeras window observaciones de su serie. El valor acota la
// caja del ajuste (qi nunca supera el pico observado). Con window fuera de
// rango se usa la serie completa; una serie vacía no tiene estimado posible.
func PeakInitialRate(s WellSeries, window int) (float64, error) {
	if len(s.Observations) == 0 {
		return 0, fmt.Errorf("domain.PeakInitialRate: pozo %s sin observaciones: %w", s.WellID, lsq.ErrInsufficientData)
	}
	if window <= 0 || window > len(s.Observations) {
		window = len(s.Observations)
	}
	peak := s.Observations[0].Rate
	for _, o := range s.Observations[1:window] {
		if o.Rate > peak {
			peak = o.Rate
		}
	}
	return peak, nil
}
