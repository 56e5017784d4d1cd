package prodapi

// observations.go — fetch paginado del histórico de producción mensual.

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/alejandrodnm/wellfit/internal/domain"
)

const productionPath = "/production"

// Source implementa ports.ObservationSource contra el API remoto.
type Source struct {
	client  *Client
	product domain.Product
}

// NewSource crea una fuente para el producto dado sobre el client.
func NewSource(client *Client, product domain.Product) *Source {
	return &Source{client: client, product: product}
}

// Fetch descarga todas las páginas del histórico y las mapea al dominio.
// Pagina por offset hasta recibir una página corta.
func (s *Source) Fetch(ctx context.Context) ([]domain.Observation, error) {
	var all []domain.Observation
	offset := 0

	for {
		url := fmt.Sprintf("%s%s?product=%s&limit=%d&offset=%d",
			s.client.baseURL, productionPath, s.product, s.client.pageSize, offset)

		var resp productionResponse
		if err := s.client.get(ctx, url, &resp); err != nil {
			return nil, fmt.Errorf("prodapi.Fetch: offset %d: %w", offset, err)
		}

		obs, skipped := mapRecords(resp.Data, s.product)
		all = append(all, obs...)

		slog.Debug("fetched production page",
			"count", len(resp.Data),
			"total", len(all),
			"skipped", skipped,
		)

		if len(resp.Data) < s.client.pageSize {
			break
		}
		offset += len(resp.Data)
	}

	slog.Info("production records fetched", "total", len(all))
	return all, nil
}

// mapRecords convierte las filas del API en observaciones del dominio.
// Una tasa null llega como NaN para que el filtrado aguas abajo la descarte;
// una fecha ilegible descarta la fila entera.
func mapRecords(records []apiRecord, product domain.Product) ([]domain.Observation, int) {
	obs := make([]domain.Observation, 0, len(records))
	skipped := 0

	for _, rec := range records {
		if rec.WellID == "" {
			skipped++
			continue
		}
		when, err := parseReportDate(rec.ReportDate)
		if err != nil {
			skipped++
			slog.Warn("production record skipped", "well", rec.WellID, "err", err)
			continue
		}

		rate := rec.Oil
		if product == domain.ProductGas {
			rate = rec.Gas
		}
		value := math.NaN()
		if rate != nil {
			value = *rate
		}

		obs = append(obs, domain.Observation{
			WellID:     rec.WellID,
			RecordDate: when,
			Rate:       value,
		})
	}
	return obs, skipped
}

// parseReportDate acepta fecha ISO con o sin componente de hora.
func parseReportDate(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if d, err := time.Parse(layout, s); err == nil {
			return d, nil
		}
	}
	return time.Time{}, fmt.Errorf("report date %q not recognized", s)
}
