package ports

import (
	"context"

	"github.com/alejandrodnm/wellfit/internal/domain"
)

// Storage persiste los resultados de cada corrida del pipeline.
type Storage interface {
	// SaveRun persiste el resumen de la corrida y los ajustes por pozo.
	SaveRun(ctx context.Context, run domain.RunSummary, declines []domain.WellDecline) error

	// GetWellFits devuelve los últimos ajustes guardados del pozo, uno por
	// variante que haya ajustado con éxito.
	GetWellFits(ctx context.Context, wellID string) ([]domain.FitResult, error)

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}
