package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/alejandrodnm/wellfit/internal/domain"
	"github.com/olekukonko/tablewriter"
)

// overlayWellsMax limita cuántos pozos imprime el modo validación.
const overlayWellsMax = 3

// Console implementa ports.Notifier.
type Console struct {
	out      io.Writer
	table    bool
	validate bool
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole(table, validate bool) *Console {
	return &Console{out: os.Stdout, table: table, validate: validate}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer, table, validate bool) *Console {
	return &Console{out: w, table: table, validate: validate}
}

// Notify imprime los resultados del run en el modo configurado.
func (c *Console) Notify(_ context.Context, run domain.RunSummary, declines []domain.WellDecline) error {
	if len(declines) == 0 {
		fmt.Fprintf(c.out, "[%s] no wells to fit\n", run.StartedAt.Format("15:04:05"))
		return nil
	}

	if c.table {
		c.printFull(run, declines)
	} else {
		c.printCompact(run, declines)
	}

	if c.validate {
		c.printOverlay(declines)
	}

	return nil
}

// printCompact imprime el resumen del run en una línea.
func (c *Console) printCompact(run domain.RunSummary, declines []domain.WellDecline) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s: %d wells → fits:%d fails:%d (%s)",
		run.StartedAt.Format("15:04:05"), run.Product,
		run.Wells, run.Fitted, run.Failed,
		run.Duration.Round(time.Millisecond))

	shown := 0
	for _, d := range declines {
		if shown >= 4 {
			break
		}
		for _, fit := range d.Fits {
			if fit.Variant != domain.VariantExponential {
				continue
			}
			fmt.Fprintf(&sb, " | %s qi=%.1f di=%.4f", d.WellID(), fit.Params[0], fit.Params[1])
			shown++
			break
		}
	}

	fmt.Fprintln(c.out, sb.String())
}

// printFull imprime la tabla con una fila por pozo y variante.
func (c *Console) printFull(run domain.RunSummary, declines []domain.WellDecline) {
	fmt.Fprintf(c.out, "\n[%s] run %s — %s, %d wells, fits:%d fails:%d (%s)\n",
		run.StartedAt.Format("15:04:05"), shortID(run.ID.String()), run.Product,
		run.Wells, run.Fitted, run.Failed,
		run.Duration.Round(time.Millisecond))

	table := tablewriter.NewWriter(c.out)
	table.Header("Well", "Variant", "qi", "b", "di", "RMSE", "Iters", "Conv", "Notes")

	for _, d := range declines {
		for _, fit := range d.Fits {
			qi, b, di := paramColumns(fit)

			conv := "yes"
			if !fit.Converged {
				conv = "no"
			}
			notes := ""
			if fit.ClampedGuess {
				notes = "guess clamped"
			}

			table.Append(
				d.WellID(),
				string(fit.Variant),
				qi, b, di,
				fmt.Sprintf("%.3f", fit.RMSE()),
				fmt.Sprintf("%d", fit.Iterations),
				conv,
				notes,
			)
		}
	}

	table.Render()
	c.printFailures(declines)
}

// printFailures lista las variantes que no pudieron ajustarse.
func (c *Console) printFailures(declines []domain.WellDecline) {
	header := false
	for _, d := range declines {
		for _, fl := range d.Failures {
			if !header {
				fmt.Fprintln(c.out, "\n  Fit failures:")
				header = true
			}
			fmt.Fprintf(c.out, "    %s %s: %v\n", d.WellID(), fl.Variant, fl.Err)
		}
	}
}

// printOverlay imprime observado vs predicho por día transcurrido, el
// equivalente textual de la gráfica de control. Solo los primeros pozos:
// el overlay es para inspeccionar el ajuste, no para volcar el campo entero.
func (c *Console) printOverlay(declines []domain.WellDecline) {
	fmt.Fprintln(c.out, "\n=== VALIDATION — observed vs predicted ===")

	shown := 0
	for _, d := range declines {
		if shown >= overlayWellsMax {
			break
		}
		if len(d.Fits) == 0 {
			continue
		}
		shown++

		fmt.Fprintf(c.out, "\n--- %s (online %s, qi estimate %.1f) ---\n",
			d.WellID(), d.Series.OnlineDate.Format("2006-01-02"), d.QiEstimate)

		exp := predictedFor(d, domain.VariantExponential)
		hyp := predictedFor(d, domain.VariantHyperbolic)

		table := tablewriter.NewWriter(c.out)
		table.Header("Days", "Observed", "Exponential", "Hyperbolic")
		for i, o := range d.Series.Observations {
			table.Append(
				fmt.Sprintf("%d", o.ElapsedDays),
				fmt.Sprintf("%.2f", o.Rate),
				predAt(exp, i),
				predAt(hyp, i),
			)
		}
		table.Render()
	}
}

// --- helpers ---

// paramColumns formatea qi, b y di según los nombres de parámetros del fit.
// Con covarianza disponible añade el error estándar como valor±err.
func paramColumns(fit domain.FitResult) (qi, b, di string) {
	qi, b, di = "-", "-", "-"
	se := fit.StdErrs()

	for i, name := range fit.ParamNames {
		v := fmt.Sprintf("%.4g", fit.Params[i])
		if se != nil {
			v = fmt.Sprintf("%.4g±%.2g", fit.Params[i], se[i])
		}
		switch name {
		case "qi":
			qi = v
		case "b":
			b = v
		case "di":
			di = v
		}
	}
	return qi, b, di
}

// predictedFor devuelve la serie predicha de la variante, o nil si no ajustó.
func predictedFor(d domain.WellDecline, v domain.Variant) domain.PredictedSeries {
	for _, fit := range d.Fits {
		if fit.Variant == v {
			return fit.Predicted
		}
	}
	return nil
}

// predAt formatea el punto i de la serie, o "-" si no existe.
func predAt(s domain.PredictedSeries, i int) string {
	if i >= len(s) {
		return "-"
	}
	return fmt.Sprintf("%.2f", s[i].Rate)
}

// shortID recorta un UUID a su primer bloque.
func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}
