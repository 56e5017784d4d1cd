// Package csvsource implementa ports.ObservationSource sobre un export CSV
// de producción mensual (una fila por pozo y fecha de reporte).
package csvsource

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/wellfit/internal/domain"
)

// Encabezados por defecto, los del export público de producción de ND.
const (
	defaultEntityColumn = "API_WELLNO"
	defaultDateColumn   = "ReportDate"
	defaultOilColumn    = "Oil"
	defaultGasColumn    = "Gas"
)

// Columns mapea los encabezados del CSV a los campos del dominio.
type Columns struct {
	Entity string
	Date   string
	Oil    string
	Gas    string
}

// withDefaults rellena los encabezados vacíos con los del export estándar.
func (c Columns) withDefaults() Columns {
	if c.Entity == "" {
		c.Entity = defaultEntityColumn
	}
	if c.Date == "" {
		c.Date = defaultDateColumn
	}
	if c.Oil == "" {
		c.Oil = defaultOilColumn
	}
	if c.Gas == "" {
		c.Gas = defaultGasColumn
	}
	return c
}

// Source lee observaciones desde un archivo CSV.
type Source struct {
	path    string
	product domain.Product
	cols    Columns
}

// New crea una fuente CSV para el archivo y producto dados.
// Los nombres de columna vacíos usan los encabezados del export estándar.
func New(path string, product domain.Product, cols Columns) *Source {
	return &Source{path: path, product: product, cols: cols.withDefaults()}
}

// Fetch abre el archivo y devuelve todas las observaciones del producto
// configurado. Las filas malformadas se saltan con un warning; una celda de
// tasa vacía se entrega como NaN para que el filtrado aguas abajo la descarte.
func (s *Source) Fetch(ctx context.Context) ([]domain.Observation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("csvsource.Fetch: open %q: %w", s.path, err)
	}
	defer f.Close()

	obs, err := s.parse(f)
	if err != nil {
		return nil, fmt.Errorf("csvsource.Fetch: %q: %w", s.path, err)
	}
	return obs, nil
}

// parse consume el CSV completo desde el reader.
func (s *Source) parse(r io.Reader) ([]domain.Observation, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx, err := s.columnIndexes(header)
	if err != nil {
		return nil, err
	}

	rateCol := idx.oil
	if s.product == domain.ProductGas {
		rateCol = idx.gas
	}

	var obs []domain.Observation
	skipped := 0
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			skipped++
			slog.Warn("csv row skipped", "line", line, "err", err)
			continue
		}

		o, err := parseRow(rec, idx.entity, idx.date, rateCol)
		if err != nil {
			skipped++
			slog.Warn("csv row skipped", "line", line, "err", err)
			continue
		}
		obs = append(obs, o)
	}

	slog.Debug("csv loaded", "rows", len(obs), "skipped", skipped)
	return obs, nil
}

// colIdx son las posiciones de las columnas configuradas dentro del encabezado.
type colIdx struct {
	entity, date, oil, gas int
}

// columnIndexes localiza las columnas configuradas en el encabezado.
// El matching ignora mayúsculas y espacios alrededor del nombre.
func (s *Source) columnIndexes(header []string) (colIdx, error) {
	find := func(name string) int {
		for i, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), name) {
				return i
			}
		}
		return -1
	}

	idx := colIdx{
		entity: find(s.cols.Entity),
		date:   find(s.cols.Date),
		oil:    find(s.cols.Oil),
		gas:    find(s.cols.Gas),
	}
	if idx.entity < 0 {
		return colIdx{}, fmt.Errorf("header has no column %q", s.cols.Entity)
	}
	if idx.date < 0 {
		return colIdx{}, fmt.Errorf("header has no column %q", s.cols.Date)
	}

	switch s.product {
	case domain.ProductOil:
		if idx.oil < 0 {
			return colIdx{}, fmt.Errorf("header has no column %q", s.cols.Oil)
		}
	case domain.ProductGas:
		if idx.gas < 0 {
			return colIdx{}, fmt.Errorf("header has no column %q", s.cols.Gas)
		}
	default:
		return colIdx{}, fmt.Errorf("unknown product %q", s.product)
	}
	return idx, nil
}

// parseRow convierte una fila en observación. La celda de tasa vacía se
// convierte en NaN en lugar de error: la fila existe, el dato no.
func parseRow(rec []string, entityCol, dateCol, rateCol int) (domain.Observation, error) {
	well := strings.TrimSpace(rec[entityCol])
	if well == "" {
		return domain.Observation{}, fmt.Errorf("row has empty well id")
	}

	when, err := parseDate(strings.TrimSpace(rec[dateCol]))
	if err != nil {
		return domain.Observation{}, err
	}

	rate := math.NaN()
	if cell := strings.TrimSpace(rec[rateCol]); cell != "" {
		rate, err = strconv.ParseFloat(cell, 64)
		if err != nil {
			return domain.Observation{}, fmt.Errorf("rate %q: %w", cell, err)
		}
	}

	return domain.Observation{WellID: well, RecordDate: when, Rate: rate}, nil
}

// parseDate acepta los dos formatos que traen los exports: ISO y M/D/YYYY.
func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", "1/2/2006"} {
		if d, err := time.Parse(layout, s); err == nil {
			return d, nil
		}
	}
	return time.Time{}, fmt.Errorf("date %q not recognized", s)
}
