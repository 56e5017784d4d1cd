package lsq

// solver.go — Levenberg–Marquardt con proyección a caja.
//
// Reemplaza la llamada opaca a una librería de curve fitting por un loop
// explícito y observable: el manejo de bounds, el damping y los modos de
// fallo forman parte del contrato. Dado el mismo input, el solver produce
// bit a bit el mismo resultado: no hay aleatoriedad ni iteración de mapas
// en el camino numérico.

import (
	"errors"
	"fmt"
	"math"
)

// ModelFunc evalúa el modelo en el tiempo t con el vector de parámetros p.
type ModelFunc func(t float64, p []float64) float64

// Errores del solver, clasificables con errors.Is.
var (
	// ErrInsufficientData indica menos puntos de tiempo distintos que parámetros.
	ErrInsufficientData = errors.New("insufficient distinct data points")
	// ErrMaxIterations indica que se agotó el presupuesto de iteraciones sin converger.
	ErrMaxIterations = errors.New("max iterations exhausted without convergence")
	// ErrSingular indica ecuaciones normales singulares que el damping no pudo rescatar.
	ErrSingular = errors.New("singular normal equations")
	// ErrNonFinite indica un residuo o jacobiano NaN/Inf durante la iteración.
	ErrNonFinite = errors.New("non-finite residual")
)

const (
	machineEps = 2.220446049250313e-16

	// Rango del factor de damping λ. Por encima de dampingMax un sistema
	// que sigue singular ya no es rescatable; por debajo de dampingMin el
	// paso es esencialmente Gauss-Newton puro.
	dampingMax = 1e12
	dampingMin = 1e-12

	// costTiny evita la división por cero al calcular la caída relativa de coste.
	costTiny = 1e-300
)

// Options controla las tolerancias de convergencia y el presupuesto de
// iteraciones del solver. Los campos en cero toman los defaults.
type Options struct {
	// TolStep: convergencia cuando ‖Δp‖ ≤ TolStep·(1 + ‖p‖).
	TolStep float64
	// TolCost: convergencia cuando la caída relativa de coste de un paso
	// aceptado queda por debajo de este valor.
	TolCost float64
	// TolGrad: convergencia cuando la norma ∞ del gradiente Jᵗr queda
	// por debajo de este valor.
	TolGrad float64
	// MaxIterations acota la latencia en el peor caso: superarlo sin
	// cumplir ninguna tolerancia es ErrMaxIterations.
	MaxIterations int
	// Damping es el λ inicial del loop Levenberg–Marquardt.
	Damping float64
}

// DefaultOptions devuelve las tolerancias por defecto del solver.
func DefaultOptions() Options {
	return Options{
		TolStep:       1e-8,
		TolCost:       1e-8,
		TolGrad:       1e-8,
		MaxIterations: 200,
		Damping:       1e-3,
	}
}

// withDefaults rellena los campos sin valor con los defaults.
func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.TolStep <= 0 {
		o.TolStep = def.TolStep
	}
	if o.TolCost <= 0 {
		o.TolCost = def.TolCost
	}
	if o.TolGrad <= 0 {
		o.TolGrad = def.TolGrad
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = def.MaxIterations
	}
	if o.Damping <= 0 {
		o.Damping = def.Damping
	}
	return o
}

// Result es el resultado de un ajuste, converja o no.
type Result struct {
	// Params es el vector de parámetros final, siempre dentro de la caja.
	Params []float64
	// Covariance es σ²·(JᵗJ)⁻¹ en el punto convergido, con σ² = SSR/(n−k).
	// nil cuando n ≤ k o cuando JᵗJ no es invertible.
	Covariance [][]float64
	// Iterations es el número de iteraciones consumidas.
	Iterations int
	// Converged indica si alguna tolerancia se cumplió dentro del presupuesto.
	Converged bool
	// Cost es la suma de cuadrados de los residuos en Params.
	Cost float64
	// ClampedGuess indica que el estimado inicial estaba fuera de la caja
	// y hubo que recortarlo antes de la primera iteración. Es un
	// diagnóstico, nunca un fallo.
	ClampedGuess bool
}

// Solve ajusta los parámetros del modelo a las observaciones {(tᵢ, yᵢ)}
// minimizando Σᵢ (yᵢ − model(tᵢ, p))², sujeto a lo ≤ p ≤ hi componente a
// componente.
//
// El loop por iteración:
//  1. Jacobiano J (∂q̂ᵢ/∂pⱼ) por diferencia central, residuos r = y − q̂.
//  2. Resolver las ecuaciones normales amortiguadas (JᵗJ + λ·diag(JᵗJ))·Δp = Jᵗr.
//  3. Proponer p' = clip(p + Δp, lo, hi): un paso que se sale de la caja se
//     trunca al borde y aún así se evalúa.
//  4. Si el coste mejora se acepta y λ baja (÷10); si no, se rechaza y λ sube (×10).
//
// Si p0 es nil se arranca en el centro de la caja; si viene fuera de la caja
// se recorta al borde más cercano y se anota en Result.ClampedGuess.
func Solve(model ModelFunc, ts, ys []float64, bounds Bounds, p0 []float64, opts Options) (Result, error) {
	if len(ts) != len(ys) {
		return Result{}, fmt.Errorf("lsq.Solve: series de longitudes distintas: t=%d y=%d", len(ts), len(ys))
	}
	if err := bounds.Validate(); err != nil {
		return Result{}, fmt.Errorf("lsq.Solve: %w", err)
	}
	opts = opts.withDefaults()

	n := len(ts)
	k := bounds.Len()
	if d := distinctPoints(ts); d < k {
		return Result{}, fmt.Errorf("lsq.Solve: %d punto(s) de tiempo distinto(s) para %d parámetros: %w", d, k, ErrInsufficientData)
	}

	var res Result
	p := make([]float64, k)
	if len(p0) > 0 {
		if len(p0) != k {
			return Result{}, fmt.Errorf("lsq.Solve: estimado inicial de dimensión %d, la caja tiene %d", len(p0), k)
		}
		copy(p, p0)
		res.ClampedGuess = bounds.Clamp(p)
	} else {
		p = bounds.Midpoint()
	}

	cost, finite := costAt(model, ts, ys, p)
	if !finite {
		res.Params = p
		return res, fmt.Errorf("lsq.Solve: coste no finito en el estimado inicial: %w", ErrNonFinite)
	}

	lambda := opts.Damping
	r := make([]float64, n)
	jac := make([][]float64, n)
	for i := range jac {
		jac[i] = make([]float64, k)
	}
	g := make([]float64, k)
	jtj := make([][]float64, k)
	for j := range jtj {
		jtj[j] = make([]float64, k)
	}
	scratch := make([]float64, k)
	trial := make([]float64, k)

	for iter := 1; iter <= opts.MaxIterations; iter++ {
		res.Iterations = iter

		if !residualsAt(model, ts, ys, p, r) {
			res.Params, res.Cost = p, cost
			return res, fmt.Errorf("lsq.Solve: residuo no finito en la iteración %d: %w", iter, ErrNonFinite)
		}
		if !jacobian(model, ts, p, jac, scratch) {
			res.Params, res.Cost = p, cost
			return res, fmt.Errorf("lsq.Solve: jacobiano no finito en la iteración %d: %w", iter, ErrNonFinite)
		}
		buildNormal(jac, r, g, jtj)

		// Gradiente plano: ya estamos en un punto estacionario.
		if maxAbs(g) <= opts.TolGrad {
			res.Converged = true
			break
		}

		// Ecuaciones normales amortiguadas. Un sistema singular sube λ y
		// reintenta; si ni con el damping máximo se puede resolver, la
		// geometría del problema está degenerada.
		var step []float64
		for {
			var ok bool
			step, ok = solveLinear(dampedNormal(jtj, lambda), g)
			if ok {
				break
			}
			if lambda >= dampingMax {
				res.Params, res.Cost = p, cost
				return res, fmt.Errorf("lsq.Solve: ecuaciones normales singulares con λ=%g: %w", lambda, ErrSingular)
			}
			lambda *= 10
		}

		for j := range trial {
			trial[j] = p[j] + step[j]
		}
		bounds.Clamp(trial)

		trialCost, finiteTrial := costAt(model, ts, ys, trial)
		if !finiteTrial {
			res.Params, res.Cost = p, cost
			return res, fmt.Errorf("lsq.Solve: coste no finito en el paso propuesto (iteración %d): %w", iter, ErrNonFinite)
		}

		stepNorm := 0.0
		for j := range trial {
			d := trial[j] - p[j]
			stepNorm += d * d
		}
		stepNorm = math.Sqrt(stepNorm)

		if trialCost < cost {
			relDrop := (cost - trialCost) / math.Max(trialCost, costTiny)

			copy(p, trial)
			cost = trialCost
			if lambda > dampingMin {
				lambda /= 10
			}

			if cost == 0 || stepNorm <= opts.TolStep*(1+norm2(p)) || relDrop <= opts.TolCost {
				res.Converged = true
				break
			}
		} else {
			// Paso rechazado. Si el paso ya recortado a la caja no se
			// distingue del punto actual no hay a dónde moverse; pasa
			// cuando el óptimo queda pegado a un borde de la caja.
			if stepNorm <= opts.TolStep*(1+norm2(p)) {
				res.Converged = true
				break
			}
			if lambda < dampingMax {
				lambda *= 10
			}
		}
	}

	res.Params = p
	res.Cost = cost
	if !res.Converged {
		return res, fmt.Errorf("lsq.Solve: sin convergencia tras %d iteraciones: %w", opts.MaxIterations, ErrMaxIterations)
	}

	res.Covariance = covarianceAt(model, ts, ys, p, cost, jac, scratch, jtj)
	return res, nil
}

// covarianceAt estima la covarianza de los parámetros en el punto convergido:
// σ²·(JᵗJ)⁻¹ con σ² = SSR/(n−k). Devuelve nil si n ≤ k (sin grados de
// libertad) o si JᵗJ no es invertible; la covarianza ausente no es un fallo.
func covarianceAt(model ModelFunc, ts, ys, p []float64, cost float64, jac [][]float64, scratch []float64, jtj [][]float64) [][]float64 {
	n, k := len(ts), len(p)
	if n <= k {
		return nil
	}
	if !jacobian(model, ts, p, jac, scratch) {
		return nil
	}
	for j := 0; j < k; j++ {
		for l := 0; l < k; l++ {
			sum := 0.0
			for i := 0; i < n; i++ {
				sum += jac[i][j] * jac[i][l]
			}
			jtj[j][l] = sum
		}
	}
	inv, ok := invert(jtj)
	if !ok {
		return nil
	}
	sigma2 := cost / float64(n-k)
	for j := 0; j < k; j++ {
		for l := 0; l < k; l++ {
			inv[j][l] *= sigma2
		}
	}
	return inv
}

// buildNormal acumula g = Jᵗr y jtj = JᵗJ a partir del jacobiano y los residuos.
func buildNormal(jac [][]float64, r, g []float64, jtj [][]float64) {
	k := len(g)
	for j := 0; j < k; j++ {
		g[j] = 0
		for l := j; l < k; l++ {
			jtj[j][l] = 0
		}
	}
	for i := range jac {
		for j := 0; j < k; j++ {
			g[j] += jac[i][j] * r[i]
			for l := j; l < k; l++ {
				jtj[j][l] += jac[i][j] * jac[i][l]
			}
		}
	}
	for j := 0; j < k; j++ {
		for l := 0; l < j; l++ {
			jtj[j][l] = jtj[l][j]
		}
	}
}

// dampedNormal devuelve una copia de JᵗJ con la diagonal amortiguada:
// A = JᵗJ + λ·diag(JᵗJ).
func dampedNormal(jtj [][]float64, lambda float64) [][]float64 {
	k := len(jtj)
	a := make([][]float64, k)
	for i := 0; i < k; i++ {
		a[i] = make([]float64, k)
		copy(a[i], jtj[i])
		a[i][i] += lambda * jtj[i][i]
	}
	return a
}

// jacobian llena jac[i][j] = ∂model(tᵢ, p)/∂pⱼ por diferencia central con
// paso max(|pⱼ|, 1)·√ε, estable frente a parámetros de escalas muy distintas.
// Devuelve false si alguna derivada evalúa a NaN/Inf.
func jacobian(model ModelFunc, ts, p []float64, jac [][]float64, scratch []float64) bool {
	for j := range p {
		h := math.Sqrt(machineEps) * math.Max(math.Abs(p[j]), 1)
		copy(scratch, p)

		scratch[j] = p[j] + h
		for i := range ts {
			jac[i][j] = model(ts[i], scratch)
		}
		scratch[j] = p[j] - h
		for i := range ts {
			d := (jac[i][j] - model(ts[i], scratch)) / (2 * h)
			if math.IsNaN(d) || math.IsInf(d, 0) {
				return false
			}
			jac[i][j] = d
		}
	}
	return true
}

// residualsAt llena r con y − model(t, p). Devuelve false ante un residuo no finito.
func residualsAt(model ModelFunc, ts, ys, p, r []float64) bool {
	for i := range ts {
		r[i] = ys[i] - model(ts[i], p)
		if math.IsNaN(r[i]) || math.IsInf(r[i], 0) {
			return false
		}
	}
	return true
}

// costAt devuelve la suma de cuadrados de los residuos en p.
func costAt(model ModelFunc, ts, ys, p []float64) (float64, bool) {
	cost := 0.0
	for i := range ts {
		r := ys[i] - model(ts[i], p)
		if math.IsNaN(r) || math.IsInf(r, 0) {
			return 0, false
		}
		cost += r * r
	}
	if math.IsInf(cost, 0) {
		return 0, false
	}
	return cost, true
}

// distinctPoints cuenta los valores de tiempo distintos de la serie.
func distinctPoints(ts []float64) int {
	seen := make(map[float64]struct{}, len(ts))
	for _, t := range ts {
		seen[t] = struct{}{}
	}
	return len(seen)
}
