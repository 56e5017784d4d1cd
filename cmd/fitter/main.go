package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alejandrodnm/wellfit/config"
	"github.com/alejandrodnm/wellfit/internal/adapters/csvsource"
	"github.com/alejandrodnm/wellfit/internal/adapters/notify"
	"github.com/alejandrodnm/wellfit/internal/adapters/prodapi"
	"github.com/alejandrodnm/wellfit/internal/adapters/storage"
	"github.com/alejandrodnm/wellfit/internal/domain"
	"github.com/alejandrodnm/wellfit/internal/fitter"
	"github.com/alejandrodnm/wellfit/internal/lsq"
	"github.com/alejandrodnm/wellfit/internal/ports"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	csvPath := flag.String("csv", "", "CSV file with production data (forces the csv source)")
	product := flag.String("product", "", "product to fit: oil|gas (overrides config)")
	wells := flag.String("wells", "", "comma-separated well ids (overrides config)")
	history := flag.String("history", "", "print stored fits for a well id and exit")
	noStore := flag.Bool("no-store", false, "fit without persisting results")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	table := flag.Bool("table", false, "print full fit table (default: compact 1-line)")
	validate := flag.Bool("validate", false, "print observed vs predicted for the first wells")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	if *csvPath != "" {
		cfg.Ingest.Source = "csv"
		cfg.Ingest.CSV.Path = *csvPath
	}
	if *product != "" {
		cfg.Fit.Product = *product
	}
	if *wells != "" {
		cfg.Fit.Wells = splitList(*wells)
	}

	fitCfg, err := buildFitConfig(cfg.Fit)
	if err != nil {
		slog.Error("invalid fit config", "err", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *history != "" {
		runHistory(ctx, cfg.Storage.DSN, fitCfg.Product, *history)
		return
	}

	slog.Info("wellfit starting",
		"config", *configPath,
		"source", cfg.Ingest.Source,
		"product", cfg.Fit.Product,
		"wells", len(cfg.Fit.Wells),
		"validate", *validate,
	)

	source, err := buildSource(cfg.Ingest, fitCfg.Product)
	if err != nil {
		slog.Error("failed to build source", "err", err)
		os.Exit(1)
	}

	var store ports.Storage
	if !*noStore {
		s, err := storage.NewSQLiteStorage(cfg.Storage.DSN, fitCfg.Product)
		if err != nil {
			slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
			os.Exit(1)
		}
		defer s.Close()
		store = s
	}

	notifier := notify.NewConsole(*table, *validate)

	f, err := fitter.New(fitCfg, source, store, notifier)
	if err != nil {
		slog.Error("failed to build fitter", "err", err)
		os.Exit(1)
	}

	if err := f.Run(ctx); err != nil {
		slog.Error("fit run exited with error", "err", err)
		os.Exit(1)
	}

	slog.Info("wellfit stopped cleanly")
}

// buildFitConfig mapea la configuración YAML al Config del pipeline.
func buildFitConfig(fc config.FitConfig) (fitter.Config, error) {
	from, err := parseConfigDate(fc.OnlineFrom)
	if err != nil {
		return fitter.Config{}, fmt.Errorf("online_from: %w", err)
	}
	to, err := parseConfigDate(fc.OnlineTo)
	if err != nil {
		return fitter.Config{}, fmt.Errorf("online_to: %w", err)
	}

	return fitter.Config{
		Product:    domain.Product(fc.Product),
		Window:     fc.Window,
		Wells:      fc.Wells,
		OnlineFrom: from,
		OnlineTo:   to,
		Bounds: domain.ModelBounds{
			DiMax: fc.Bounds.DiMax,
			BMin:  fc.Bounds.BMin,
			BMax:  fc.Bounds.BMax,
		},
		Solver: lsq.Options{
			TolStep:       fc.Solver.TolStep,
			TolCost:       fc.Solver.TolCost,
			TolGrad:       fc.Solver.TolGrad,
			MaxIterations: fc.Solver.MaxIterations,
			Damping:       fc.Solver.Damping,
		},
		FitWorkers: fc.Workers,
	}, nil
}

// buildSource construye la fuente de observaciones configurada.
func buildSource(ic config.IngestConfig, product domain.Product) (ports.ObservationSource, error) {
	switch ic.Source {
	case "csv":
		cols := csvsource.Columns{
			Entity: ic.CSV.Columns.Entity,
			Date:   ic.CSV.Columns.Date,
			Oil:    ic.CSV.Columns.Oil,
			Gas:    ic.CSV.Columns.Gas,
		}
		return csvsource.New(ic.CSV.Path, product, cols), nil
	case "api":
		client := prodapi.NewClient(ic.API.Base, ic.API.PageSize, ic.API.RatePerSec)
		return prodapi.NewSource(client, product), nil
	default:
		return nil, fmt.Errorf("unknown source %q (want csv or api)", ic.Source)
	}
}

// runHistory imprime los últimos fits guardados de un pozo.
func runHistory(ctx context.Context, dsn string, product domain.Product, wellID string) {
	store, err := storage.NewSQLiteStorage(dsn, product)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", dsn)
		os.Exit(1)
	}
	defer store.Close()

	fits, err := store.GetWellFits(ctx, wellID)
	if err != nil {
		slog.Error("history query failed", "err", err, "well", wellID)
		os.Exit(1)
	}
	if len(fits) == 0 {
		fmt.Printf("no stored fits for well %s (%s)\n", wellID, product)
		return
	}

	for _, fit := range fits {
		parts := make([]string, len(fit.ParamNames))
		for i, name := range fit.ParamNames {
			parts[i] = fmt.Sprintf("%s=%.6g", name, fit.Params[i])
		}
		fmt.Printf("%s %s: %s rmse=%.3f iters=%d converged=%v\n",
			wellID, fit.Variant, strings.Join(parts, " "),
			fit.RMSE(), fit.Iterations, fit.Converged)
	}
}

// splitList parte una lista separada por comas, ignorando vacíos.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseConfigDate convierte una fecha YYYY-MM-DD opcional; vacía es cero.
func parseConfigDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q not in YYYY-MM-DD form", s)
	}
	return d, nil
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
