package storage

// sqlite.go — persistencia del histórico de ajustes.
//
// Estrategia:
//   - `runs`: una fila por corrida con los conteos agregados. Liviana.
//   - `fits`: UNA fila por (pozo, variante, producto) con UPSERT. El último
//     ajuste manda; guardar cada corrida no aporta porque los parámetros
//     solo cambian cuando entran datos nuevos.
//   - La serie predicha va como JSON comprimido con s2: con cientos de pozos
//     y decenas de puntos por pozo, el blob domina el tamaño de la DB.
//   - Una variante que falló también pisa su fila, con el motivo en `failure`
//     y sin parámetros: la tabla guarda el último estado conocido, sea cual sea.
//   - Prune automático al arrancar: runs > 90 días.
//
// Las fechas se guardan como texto RFC3339 en UTC, que ordena igual
// lexicográfica y cronológicamente.

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alejandrodnm/wellfit/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
-- Una fila por corrida del pipeline
CREATE TABLE IF NOT EXISTS runs (
    id          TEXT PRIMARY KEY,
    started_at  TEXT    NOT NULL,
    product     TEXT    NOT NULL,
    wells       INTEGER NOT NULL DEFAULT 0,
    fitted      INTEGER NOT NULL DEFAULT 0,
    failed      INTEGER NOT NULL DEFAULT 0,
    duration_ms INTEGER NOT NULL DEFAULT 0
);

-- Una fila por pozo, variante y producto, sin duplicados
CREATE TABLE IF NOT EXISTS fits (
    well_id     TEXT NOT NULL,
    variant     TEXT NOT NULL,
    product     TEXT NOT NULL,
    run_id      TEXT NOT NULL,
    online_date TEXT NOT NULL,
    qi_estimate REAL NOT NULL DEFAULT 0,
    params      TEXT NOT NULL,
    param_names TEXT NOT NULL,
    covariance  TEXT,
    converged   INTEGER NOT NULL DEFAULT 0,
    clamped     INTEGER NOT NULL DEFAULT 0,
    iterations  INTEGER NOT NULL DEFAULT 0,
    cost        REAL    NOT NULL DEFAULT 0,
    rmse        REAL    NOT NULL DEFAULT 0,
    predicted   BLOB,
    failure     TEXT,
    fitted_at   TEXT NOT NULL,
    PRIMARY KEY (well_id, variant, product)
);

CREATE INDEX IF NOT EXISTS idx_runs_at     ON runs(started_at DESC);
CREATE INDEX IF NOT EXISTS idx_fits_run    ON fits(run_id);
CREATE INDEX IF NOT EXISTS idx_fits_fitted ON fits(fitted_at DESC);
`

// retentionRuns es cuánto histórico de corridas se conserva.
const retentionRuns = 90 * 24 * time.Hour

// SQLiteStorage implementa ports.Storage usando SQLite (pure Go, sin CGo).
type SQLiteStorage struct {
	db      *sql.DB
	product domain.Product
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada.
// Aplica el schema y limpia corridas antiguas.
func NewSQLiteStorage(path string, product domain.Product) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}

	s := &SQLiteStorage{db: db, product: product}
	s.pruneOld(context.Background())
	return s, nil
}

// SaveRun persiste el resumen de la corrida y hace upsert del último estado
// de cada (pozo, variante): los ajustes con sus parámetros, los fallos con
// su motivo.
func (s *SQLiteStorage) SaveRun(ctx context.Context, run domain.RunSummary, declines []domain.WellDecline) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, product, wells, fitted, failed, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID.String(),
		run.StartedAt.UTC().Format(time.RFC3339),
		string(run.Product),
		run.Wells, run.Fitted, run.Failed,
		run.Duration.Milliseconds(),
	); err != nil {
		return fmt.Errorf("storage.SaveRun: insert run: %w", err)
	}

	if len(declines) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveRun: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO fits
			(well_id, variant, product, run_id, online_date, qi_estimate,
			 params, param_names, covariance, converged, clamped,
			 iterations, cost, rmse, predicted, failure, fitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(well_id, variant, product) DO UPDATE SET
			run_id      = excluded.run_id,
			online_date = excluded.online_date,
			qi_estimate = excluded.qi_estimate,
			params      = excluded.params,
			param_names = excluded.param_names,
			covariance  = excluded.covariance,
			converged   = excluded.converged,
			clamped     = excluded.clamped,
			iterations  = excluded.iterations,
			cost        = excluded.cost,
			rmse        = excluded.rmse,
			predicted   = excluded.predicted,
			failure     = excluded.failure,
			fitted_at   = excluded.fitted_at
	`)
	if err != nil {
		return fmt.Errorf("storage.SaveRun: prepare: %w", err)
	}
	defer stmt.Close()

	for _, d := range declines {
		for _, fit := range d.Fits {
			if err := s.upsertFit(ctx, stmt, run, d, fit); err != nil {
				return err
			}
		}
		for _, fl := range d.Failures {
			if err := s.upsertFailure(ctx, stmt, run, d, fl); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveRun: commit: %w", err)
	}
	return nil
}

// upsertFit serializa y escribe un fit individual.
func (s *SQLiteStorage) upsertFit(ctx context.Context, stmt *sql.Stmt, run domain.RunSummary, d domain.WellDecline, fit domain.FitResult) error {
	params, err := json.Marshal(fit.Params)
	if err != nil {
		return fmt.Errorf("storage.SaveRun: encode params %s: %w", d.WellID(), err)
	}
	names, err := json.Marshal(fit.ParamNames)
	if err != nil {
		return fmt.Errorf("storage.SaveRun: encode param names %s: %w", d.WellID(), err)
	}
	cov, err := json.Marshal(fit.Covariance)
	if err != nil {
		return fmt.Errorf("storage.SaveRun: encode covariance %s: %w", d.WellID(), err)
	}
	blob, err := encodePredicted(fit.Predicted)
	if err != nil {
		return fmt.Errorf("storage.SaveRun: encode predicted %s: %w", d.WellID(), err)
	}

	converged := 0
	if fit.Converged {
		converged = 1
	}
	clamped := 0
	if fit.ClampedGuess {
		clamped = 1
	}

	if _, err := stmt.ExecContext(ctx,
		d.WellID(),
		string(fit.Variant),
		string(run.Product),
		run.ID.String(),
		d.Series.OnlineDate.UTC().Format(time.RFC3339),
		d.QiEstimate,
		string(params),
		string(names),
		string(cov),
		converged,
		clamped,
		fit.Iterations,
		fit.Cost,
		fit.RMSE(),
		blob,
		nil, // failure
		d.FittedAt.UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("storage.SaveRun: upsert %s %s: %w", d.WellID(), fit.Variant, err)
	}
	return nil
}

// upsertFailure deja constancia de una variante que no pudo ajustarse.
// Pisa cualquier fit previo de la variante: el último estado conocido manda.
func (s *SQLiteStorage) upsertFailure(ctx context.Context, stmt *sql.Stmt, run domain.RunSummary, d domain.WellDecline, fl domain.FitFailure) error {
	if _, err := stmt.ExecContext(ctx,
		d.WellID(),
		string(fl.Variant),
		string(run.Product),
		run.ID.String(),
		d.Series.OnlineDate.UTC().Format(time.RFC3339),
		d.QiEstimate,
		"null", // params
		"null", // param_names
		"null", // covariance
		0,      // converged
		0,      // clamped
		0,      // iterations
		0.0,    // cost
		0.0,    // rmse
		nil,    // predicted
		fl.Err.Error(),
		d.FittedAt.UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("storage.SaveRun: upsert failure %s %s: %w", d.WellID(), fl.Variant, err)
	}
	return nil
}

// GetWellFits devuelve los últimos fits guardados del pozo para el producto
// configurado, ordenados por variante. Las variantes cuyo último estado fue
// un fallo no se devuelven: no hay parámetros que reportar.
func (s *SQLiteStorage) GetWellFits(ctx context.Context, wellID string) ([]domain.FitResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT variant, params, param_names, covariance,
		       converged, clamped, iterations, cost, predicted
		FROM fits
		WHERE well_id = ? AND product = ? AND failure IS NULL
		ORDER BY variant
	`, wellID, string(s.product))
	if err != nil {
		return nil, fmt.Errorf("storage.GetWellFits: query: %w", err)
	}
	defer rows.Close()

	var fits []domain.FitResult
	for rows.Next() {
		var (
			fit       domain.FitResult
			variant   string
			params    string
			names     string
			cov       sql.NullString
			converged int
			clamped   int
			blob      []byte
		)
		if err := rows.Scan(&variant, &params, &names, &cov,
			&converged, &clamped, &fit.Iterations, &fit.Cost, &blob); err != nil {
			return nil, fmt.Errorf("storage.GetWellFits: scan row: %w", err)
		}

		fit.Variant = domain.Variant(variant)
		if err := json.Unmarshal([]byte(params), &fit.Params); err != nil {
			return nil, fmt.Errorf("storage.GetWellFits: decode params: %w", err)
		}
		if err := json.Unmarshal([]byte(names), &fit.ParamNames); err != nil {
			return nil, fmt.Errorf("storage.GetWellFits: decode param names: %w", err)
		}
		if cov.Valid {
			if err := json.Unmarshal([]byte(cov.String), &fit.Covariance); err != nil {
				return nil, fmt.Errorf("storage.GetWellFits: decode covariance: %w", err)
			}
		}
		fit.Predicted, err = decodePredicted(blob)
		if err != nil {
			return nil, fmt.Errorf("storage.GetWellFits: decode predicted: %w", err)
		}
		fit.Converged = converged == 1
		fit.ClampedGuess = clamped == 1

		fits = append(fits, fit)
	}
	return fits, rows.Err()
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// pruneOld elimina corridas antiguas para mantener la DB ligera.
func (s *SQLiteStorage) pruneOld(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-retentionRuns).Format(time.RFC3339)
	s.db.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, cutoff)
}
