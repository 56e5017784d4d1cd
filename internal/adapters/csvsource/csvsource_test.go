package csvsource_test

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/wellfit/internal/adapters/csvsource"
	"github.com/alejandrodnm/wellfit/internal/domain"
)

const fixture = "../../../testdata/fixtures/production.csv"

func TestFetch_ReadsOilObservations(t *testing.T) {
	src := csvsource.New(fixture, domain.ProductOil, csvsource.Columns{})

	obs, err := src.Fetch(context.Background())
	require.NoError(t, err)

	// 8 filas de datos, 2 malformadas (fecha inválida y fila corta).
	require.Len(t, obs, 6)

	first := obs[0]
	assert.Equal(t, "33-053-05764", first.WellID)
	assert.True(t, first.RecordDate.Equal(time.Date(2016, 1, 31, 0, 0, 0, 0, time.UTC)))
	assert.InDelta(t, 10432.0, first.Rate, 1e-9)

	// La celda de Oil vacía llega como NaN, no como error.
	assert.True(t, math.IsNaN(obs[2].Rate))

	// Fecha en formato M/D/YYYY.
	assert.Equal(t, "33-105-02339", obs[3].WellID)
	assert.True(t, obs[3].RecordDate.Equal(time.Date(2016, 1, 31, 0, 0, 0, 0, time.UTC)))
}

func TestFetch_GasColumn(t *testing.T) {
	src := csvsource.New(fixture, domain.ProductGas, csvsource.Columns{})

	obs, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, obs, 6)

	// La fila con Oil vacío sí tiene Gas.
	assert.InDelta(t, 9675.0, obs[2].Rate, 1e-9)
	assert.InDelta(t, 12801.0, obs[0].Rate, 1e-9)
}

func TestFetch_CustomColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.csv")
	data := "Well,Date,OilRate\nA-1,2015-06-30,120.5\nA-1,2015-07-31,98.2\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	src := csvsource.New(path, domain.ProductOil, csvsource.Columns{
		Entity: "Well",
		Date:   "Date",
		Oil:    "OilRate",
	})

	obs, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, obs, 2)
	assert.Equal(t, "A-1", obs[0].WellID)
	assert.InDelta(t, 120.5, obs[0].Rate, 1e-9)
}

func TestFetch_HeaderMatchingIsCaseInsensitive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.csv")
	data := "api_wellno, reportdate ,oil,gas\nB-2,2015-06-30,77,0\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	src := csvsource.New(path, domain.ProductOil, csvsource.Columns{})

	obs, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, obs, 1)
	assert.Equal(t, "B-2", obs[0].WellID)
}

func TestFetch_MissingRateColumn(t *testing.T) {
	src := csvsource.New(fixture, domain.ProductOil, csvsource.Columns{Oil: "Condensate"})

	_, err := src.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Condensate")
}

func TestFetch_MissingFile(t *testing.T) {
	src := csvsource.New("nope.csv", domain.ProductOil, csvsource.Columns{})

	_, err := src.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open")
}

func TestFetch_CancelledContext(t *testing.T) {
	src := csvsource.New(fixture, domain.ProductOil, csvsource.Columns{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := src.Fetch(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
