package fitter

// concurrent.go — worker pool para el ajuste paralelo de pozos.
//
// El ajuste es vergonzosamente paralelo: cada pozo se ajusta de forma
// independiente y no comparte estado con los demás. Los resultados se
// escriben por índice, así el orden de salida es el orden de las series de
// entrada sin importar qué worker terminó primero: misma entrada, misma
// salida, con 1 o con N workers.

import (
	"context"
	"log/slog"
	"runtime"
	"sync"

	"github.com/alejandrodnm/wellfit/internal/domain"
)

// fitWellsConcurrent ajusta todas las series usando un worker pool.
// Si cfg.FitWorkers <= 0 usa runtime.NumCPU().
func fitWellsConcurrent(ctx context.Context, cfg Config, series []domain.WellSeries) []domain.WellDecline {
	workers := cfg.FitWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	type work struct {
		idx    int
		series domain.WellSeries
	}

	workCh := make(chan work, len(series))
	results := make([]domain.WellDecline, len(series))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for w := range workCh {
				if err := ctx.Err(); err != nil {
					// Corrida cancelada: los pozos restantes se marcan
					// como fallidos con el motivo de la cancelación.
					results[w.idx] = domain.WellDecline{
						Series:   w.series,
						Failures: cancelFailures(err),
					}
					continue
				}
				results[w.idx] = FitWell(w.series, cfg)
			}
		}()
	}

	for i, s := range series {
		workCh <- work{idx: i, series: s}
	}
	close(workCh)
	wg.Wait()

	slog.Debug("concurrent fitting complete",
		"wells", len(series),
		"workers", workers,
	)
	return results
}

// cancelFailures marca ambas variantes como falladas por el error dado.
func cancelFailures(err error) []domain.FitFailure {
	fs := make([]domain.FitFailure, 0, 2)
	for _, m := range domain.Models() {
		fs = append(fs, domain.FitFailure{Variant: m.Variant(), Err: err})
	}
	return fs
}
