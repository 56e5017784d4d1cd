package fitter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/wellfit/internal/domain"
	"github.com/alejandrodnm/wellfit/internal/lsq"
	"github.com/alejandrodnm/wellfit/internal/ports"
)

// Config contiene la configuración del pipeline de ajuste.
type Config struct {
	Product domain.Product
	// Window es cuántas observaciones iniciales se consideran para estimar
	// el pico de caudal qi.
	Window int
	// Wells restringe la corrida a estos pozos (vacío = todos).
	Wells []string
	// OnlineFrom/OnlineTo acotan opcionalmente la fecha online de los pozos
	// a ajustar; el cero deja el lado abierto.
	OnlineFrom time.Time
	OnlineTo   time.Time

	Bounds domain.ModelBounds
	Solver lsq.Options
	// FitWorkers son las goroutines del ajuste paralelo (0 = NumCPU).
	FitWorkers int
}

// Validate comprueba la configuración del pipeline. Cualquier error aquí es
// fatal: una configuración malformada no arranca una corrida parcial.
// Los ceros significan "usar default"; lo que se rechaza son valores
// explícitamente inválidos.
func (c Config) Validate() error {
	if c.Product != domain.ProductOil && c.Product != domain.ProductGas {
		return fmt.Errorf("fitter: producto desconocido %q", c.Product)
	}
	if c.Window <= 0 {
		return fmt.Errorf("fitter: window debe ser > 0, es %d", c.Window)
	}
	if c.Bounds.DiMax < 0 || c.Bounds.BMin < 0 || c.Bounds.BMax < 0 {
		return fmt.Errorf("fitter: tope de caja negativo: di_max=%g b_min=%g b_max=%g",
			c.Bounds.DiMax, c.Bounds.BMin, c.Bounds.BMax)
	}
	if c.Bounds.BMax > 0 && c.Bounds.BMin > c.Bounds.BMax {
		return fmt.Errorf("fitter: b_min %g > b_max %g", c.Bounds.BMin, c.Bounds.BMax)
	}
	if c.Solver.TolStep < 0 || c.Solver.TolCost < 0 || c.Solver.TolGrad < 0 || c.Solver.Damping < 0 {
		return fmt.Errorf("fitter: tolerancia del solver negativa")
	}
	if c.Solver.MaxIterations < 0 {
		return fmt.Errorf("fitter: max_iterations negativo: %d", c.Solver.MaxIterations)
	}
	if !c.OnlineFrom.IsZero() && !c.OnlineTo.IsZero() && c.OnlineTo.Before(c.OnlineFrom) {
		return fmt.Errorf("fitter: ventana online invertida: from=%s to=%s",
			c.OnlineFrom.Format("2006-01-02"), c.OnlineTo.Format("2006-01-02"))
	}
	return nil
}

// Fitter es el orquestador del pipeline: ingesta, preprocesado, ajuste
// concurrente por pozo y entrega de resultados.
type Fitter struct {
	cfg      Config
	source   ports.ObservationSource
	storage  ports.Storage
	notifier ports.Notifier
}

// New crea un Fitter con las dependencias inyectadas. storage y notifier
// pueden ser nil para correr sin persistencia o sin salida. La configuración
// se valida una sola vez aquí y nunca más.
func New(cfg Config, source ports.ObservationSource, storage ports.Storage, notifier ports.Notifier) (*Fitter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if source == nil {
		return nil, fmt.Errorf("fitter.New: falta la fuente de observaciones")
	}
	return &Fitter{cfg: cfg, source: source, storage: storage, notifier: notifier}, nil
}

// Run ejecuta una corrida completa y entrega los resultados al notifier y al
// storage. Los errores de salida degradan a warning: una corrida con ajustes
// válidos no se pierde porque falle la consola o la base.
func (f *Fitter) Run(ctx context.Context) error {
	start := time.Now()
	slog.Info("fit run starting",
		"product", f.cfg.Product,
		"window", f.cfg.Window,
		"workers", f.cfg.FitWorkers,
	)

	declines, err := f.RunOnce(ctx)
	if err != nil {
		return err
	}

	run := summarize(f.cfg.Product, start, declines)

	if f.notifier != nil {
		if err := f.notifier.Notify(ctx, run, declines); err != nil {
			slog.Warn("notifier error", "err", err)
		}
	}
	if f.storage != nil {
		if err := f.storage.SaveRun(ctx, run, declines); err != nil {
			slog.Warn("storage error", "err", err)
		}
	}

	slog.Info("fit run complete",
		"run_id", run.ID,
		"wells", run.Wells,
		"fitted", run.Fitted,
		"failed", run.Failed,
		"duration", run.Duration.Round(time.Millisecond),
	)
	return nil
}

// RunOnce ejecuta el pipeline completo y devuelve los paquetes por pozo,
// sin notificar ni persistir.
func (f *Fitter) RunOnce(ctx context.Context) ([]domain.WellDecline, error) {
	raw, err := f.source.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fitter.RunOnce: fetch observations: %w", err)
	}

	valid := domain.FilterValid(raw)
	online := domain.ResolveOnlineDates(valid)
	anchored := domain.Anchor(valid, online)
	series := f.selectWells(domain.GroupByWell(anchored))

	slog.Debug("preprocessing complete",
		"raw", len(raw),
		"valid", len(valid),
		"wells", len(series),
	)

	declines := fitWellsConcurrent(ctx, f.cfg, series)
	if err := ctx.Err(); err != nil {
		return declines, err
	}
	return declines, nil
}

// selectWells aplica los filtros opcionales de la corrida: la ventana de
// fecha online y la lista explícita de pozos. El orden relativo se mantiene.
func (f *Fitter) selectWells(series []domain.WellSeries) []domain.WellSeries {
	var allow map[string]bool
	if len(f.cfg.Wells) > 0 {
		allow = make(map[string]bool, len(f.cfg.Wells))
		for _, w := range f.cfg.Wells {
			allow[w] = true
		}
	}

	keep := make([]domain.WellSeries, 0, len(series))
	for _, s := range series {
		if allow != nil && !allow[s.WellID] {
			continue
		}
		if !f.cfg.OnlineFrom.IsZero() && s.OnlineDate.Before(f.cfg.OnlineFrom) {
			continue
		}
		if !f.cfg.OnlineTo.IsZero() && s.OnlineDate.After(f.cfg.OnlineTo) {
			continue
		}
		keep = append(keep, s)
	}
	return keep
}

// FitWell ajusta ambas variantes de declino sobre una serie. Cada variante
// fallida se registra como FitFailure: nunca interrumpe a la otra variante
// ni al resto de la corrida.
func FitWell(series domain.WellSeries, cfg Config) domain.WellDecline {
	d := domain.WellDecline{Series: series, FittedAt: time.Now()}

	qi, err := domain.PeakInitialRate(series, cfg.Window)
	if err != nil {
		for _, m := range domain.Models() {
			d.Failures = append(d.Failures, domain.FitFailure{Variant: m.Variant(), Err: err})
		}
		return d
	}
	d.QiEstimate = qi

	ts, ys := series.Times(), series.Rates()
	for _, m := range domain.Models() {
		res, err := lsq.Solve(m.Rate, ts, ys, m.Bounds(qi, cfg.Bounds), m.InitialGuess(qi), cfg.Solver)
		if err != nil {
			slog.Debug("fit failed",
				"well", series.WellID,
				"variant", m.Variant(),
				"err", err,
			)
			d.Failures = append(d.Failures, domain.FitFailure{Variant: m.Variant(), Err: err})
			continue
		}
		if res.ClampedGuess {
			slog.Debug("initial guess clamped into bounds",
				"well", series.WellID,
				"variant", m.Variant(),
			)
		}
		d.Fits = append(d.Fits, domain.FitResult{
			Variant:      m.Variant(),
			Params:       res.Params,
			ParamNames:   m.ParamNames(),
			Covariance:   res.Covariance,
			Converged:    res.Converged,
			Iterations:   res.Iterations,
			Cost:         res.Cost,
			ClampedGuess: res.ClampedGuess,
			Predicted:    predictSeries(m, res.Params, series),
		})
	}
	return d
}

// predictSeries evalúa el modelo ajustado en cada instante observado,
// alineado 1:1 con las observaciones de la serie.
func predictSeries(m domain.DeclineModel, p []float64, s domain.WellSeries) domain.PredictedSeries {
	out := make(domain.PredictedSeries, len(s.Observations))
	for i, o := range s.Observations {
		out[i] = domain.PredictedPoint{
			ElapsedDays: o.ElapsedDays,
			Rate:        m.Rate(float64(o.ElapsedDays), p),
		}
	}
	return out
}

// summarize arma el resumen de la corrida a partir de los paquetes por pozo.
func summarize(product domain.Product, start time.Time, declines []domain.WellDecline) domain.RunSummary {
	run := domain.RunSummary{
		ID:        uuid.New(),
		StartedAt: start,
		Product:   product,
		Wells:     len(declines),
	}
	for _, d := range declines {
		run.Fitted += len(d.Fits)
		run.Failed += len(d.Failures)
	}
	run.Duration = time.Since(start)
	return run
}
