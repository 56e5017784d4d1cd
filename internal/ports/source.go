package ports

import (
	"context"

	"github.com/alejandrodnm/wellfit/internal/domain"
)

// ObservationSource entrega las observaciones crudas de producción sobre las
// que corre el pipeline. La implementación decide de dónde salen (CSV local,
// API remota) y qué producto medido traen.
type ObservationSource interface {
	// Fetch devuelve todas las observaciones disponibles, en el orden en
	// que la fuente las entrega. No filtra ni ancla: eso es del pipeline.
	Fetch(ctx context.Context) ([]domain.Observation, error)
}
