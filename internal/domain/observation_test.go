package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/wellfit/internal/lsq"
)

func day(s string) time.Time {
	d, _ := time.Parse("2006-01-02", s)
	return d
}

func anchored(well string, days int, rate float64) AnchoredObservation {
	return AnchoredObservation{
		Observation: Observation{WellID: well, Rate: rate},
		ElapsedDays: days,
	}
}

// --- FilterValid ---

func TestFilterValid_DropsNaNAndNonPositive(t *testing.T) {
	obs := []Observation{
		{WellID: "A", RecordDate: day("2016-01-01"), Rate: 120},
		{WellID: "A", RecordDate: day("2016-02-01"), Rate: math.NaN()},
		{WellID: "A", RecordDate: day("2016-03-01"), Rate: 0},
		{WellID: "A", RecordDate: day("2016-04-01"), Rate: -5},
		{WellID: "A", RecordDate: day("2016-05-01"), Rate: 80},
	}
	got := FilterValid(obs)
	require.Len(t, got, 2)
	assert.Equal(t, 120.0, got[0].Rate)
	assert.Equal(t, 80.0, got[1].Rate)
	assert.Len(t, obs, 5) // la entrada no se toca
}

func TestFilterValid_Empty(t *testing.T) {
	assert.Empty(t, FilterValid(nil))
}

// --- ResolveOnlineDates ---

func TestResolveOnlineDates_EarliestPerWell(t *testing.T) {
	// Entrada desordenada a propósito: la fecha más antigua de B llega tercera.
	obs := []Observation{
		{WellID: "B", RecordDate: day("2016-03-01"), Rate: 50},
		{WellID: "A", RecordDate: day("2016-02-01"), Rate: 100},
		{WellID: "B", RecordDate: day("2016-01-15"), Rate: 60},
		{WellID: "A", RecordDate: day("2016-04-01"), Rate: 90},
	}
	online := ResolveOnlineDates(obs)
	require.Len(t, online, 2)
	assert.Equal(t, day("2016-02-01"), online["A"])
	assert.Equal(t, day("2016-01-15"), online["B"])
}

// --- Anchor ---

func TestAnchor_ElapsedWholeDays(t *testing.T) {
	online := map[string]time.Time{"A": day("2016-01-15")}
	obs := []Observation{
		{WellID: "A", RecordDate: day("2016-01-15"), Rate: 100},
		{WellID: "A", RecordDate: day("2016-02-14"), Rate: 90},
	}
	got := Anchor(obs, online)
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].ElapsedDays)
	assert.Equal(t, 30, got[1].ElapsedDays)
	assert.Equal(t, day("2016-01-15"), got[1].OnlineDate)
}

func TestAnchor_TruncatesFractions(t *testing.T) {
	online := map[string]time.Time{"A": day("2016-01-15")}
	rec := day("2016-01-16").Add(23 * time.Hour) // 1 día y 23 horas después
	got := Anchor([]Observation{{WellID: "A", RecordDate: rec, Rate: 90}}, online)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].ElapsedDays)
}

func TestAnchor_SkipsUnresolvedWells(t *testing.T) {
	obs := []Observation{{WellID: "Z", RecordDate: day("2016-01-15"), Rate: 10}}
	assert.Empty(t, Anchor(obs, map[string]time.Time{}))
}

// --- GroupByWell ---

func TestGroupByWell_FirstAppearanceOrder(t *testing.T) {
	in := []AnchoredObservation{
		anchored("B", 30, 90),
		anchored("A", 0, 100),
		anchored("B", 0, 95),
		anchored("A", 30, 80),
	}
	series := GroupByWell(in)
	require.Len(t, series, 2)
	assert.Equal(t, "B", series[0].WellID) // B apareció primero
	assert.Equal(t, "A", series[1].WellID)

	// Dentro de cada serie, orden por días transcurridos.
	assert.Equal(t, 0, series[0].Observations[0].ElapsedDays)
	assert.Equal(t, 30, series[0].Observations[1].ElapsedDays)
}

func TestGroupByWell_Deterministic(t *testing.T) {
	wells := []string{"W3", "W1", "W5", "W2", "W4"}
	var in []AnchoredObservation
	for d := 0; d < 12; d++ {
		for _, w := range wells {
			in = append(in, anchored(w, d*30, 100-float64(d)))
		}
	}
	first := GroupByWell(in)
	second := GroupByWell(in)
	assert.Equal(t, first, second)
	for i, w := range wells {
		assert.Equal(t, w, first[i].WellID)
	}
}

// --- PeakInitialRate ---

func TestPeakInitialRate_WindowPeak(t *testing.T) {
	s := WellSeries{WellID: "A", Observations: []AnchoredObservation{
		anchored("A", 0, 80),
		anchored("A", 30, 120),
		anchored("A", 60, 95),
		anchored("A", 90, 300), // pico tardío, fuera de la ventana
	}}
	qi, err := PeakInitialRate(s, 3)
	require.NoError(t, err)
	assert.Equal(t, 120.0, qi)
}

func TestPeakInitialRate_WindowLargerThanSeries(t *testing.T) {
	s := WellSeries{WellID: "A", Observations: []AnchoredObservation{
		anchored("A", 0, 80),
		anchored("A", 30, 120),
	}}
	qi, err := PeakInitialRate(s, 10)
	require.NoError(t, err)
	assert.Equal(t, 120.0, qi)
}

func TestPeakInitialRate_EmptySeries(t *testing.T) {
	_, err := PeakInitialRate(WellSeries{WellID: "A"}, 3)
	assert.ErrorIs(t, err, lsq.ErrInsufficientData)
}

// --- Times / Rates ---

func TestWellSeries_TimesRatesAligned(t *testing.T) {
	s := WellSeries{Observations: []AnchoredObservation{
		anchored("A", 0, 100),
		anchored("A", 30, 90),
		anchored("A", 60, 81),
	}}
	assert.Equal(t, []float64{0, 30, 60}, s.Times())
	assert.Equal(t, []float64{100, 90, 81}, s.Rates())
}
