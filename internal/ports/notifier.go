package ports

import (
	"context"

	"github.com/alejandrodnm/wellfit/internal/domain"
)

// Notifier presenta los resultados de una corrida al usuario.
type Notifier interface {
	// Notify muestra los ajustes por pozo y el resumen de la corrida.
	// En la implementación de consola, imprime tablas formateadas.
	Notify(ctx context.Context, run domain.RunSummary, declines []domain.WellDecline) error
}
