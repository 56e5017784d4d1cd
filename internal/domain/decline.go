package domain

// decline.go — modelos de curva de declino de Arps.
//
// Las dos variantes comparten la misma interfaz para que el pipeline ajuste
// ambas sin conocer sus fórmulas. Nunca se elige "la mejor" variante: ambas
// se ajustan y se reportan por separado.

import (
	"math"

	"github.com/alejandrodnm/wellfit/internal/lsq"
)

// Variant identifica una variante de modelo de declino.
type Variant string

const (
	VariantExponential Variant = "exponential"
	VariantHyperbolic  Variant = "hyperbolic"
)

// Topes por defecto de la caja de parámetros.
const (
	// DefaultDiMax acota la tasa de declino di (1/día).
	DefaultDiMax = 20.0
	// DefaultBMin mantiene al exponente b estrictamente por encima de la
	// singularidad b = 0, con margen sobre el paso de diferencia finita
	// del solver (~1.5e-8).
	DefaultBMin = 1e-6
	// DefaultBMax acota el exponente b por arriba.
	DefaultBMax = 2.0
)

// ModelBounds son los topes configurables de la caja de parámetros.
// Los campos en cero toman los defaults.
type ModelBounds struct {
	DiMax float64
	BMin  float64
	BMax  float64
}

func (mb ModelBounds) withDefaults() ModelBounds {
	if mb.DiMax <= 0 {
		mb.DiMax = DefaultDiMax
	}
	if mb.BMin <= 0 {
		mb.BMin = DefaultBMin
	}
	if mb.BMax <= 0 {
		mb.BMax = DefaultBMax
	}
	return mb
}

// DeclineModel es una variante de curva de declino ajustable.
type DeclineModel interface {
	// Variant identifica la variante.
	Variant() Variant
	// ParamCount es el número de parámetros libres del modelo.
	ParamCount() int
	// ParamNames da los nombres de los parámetros en el orden del vector.
	ParamNames() []string
	// Rate evalúa q(t) con el vector de parámetros p. Es pura y sirve
	// directamente como lsq.ModelFunc.
	Rate(t float64, p []float64) float64
	// Bounds construye la caja de parámetros para un pozo cuyo caudal
	// inicial estimado es qiMax.
	Bounds(qiMax float64, limits ModelBounds) lsq.Bounds
	// InitialGuess da el punto de arranque del solver para ese mismo pozo.
	InitialGuess(qiMax float64) []float64
}

// Models devuelve las variantes que el pipeline ajusta, en orden fijo.
func Models() []DeclineModel {
	return []DeclineModel{Exponential{}, Hyperbolic{}}
}

// Exponential es el declino exponencial de Arps:
//
//	q(t) = qi·e^(−di·t)
//
// con parámetros [qi, di].
type Exponential struct{}

func (Exponential) Variant() Variant { return VariantExponential }

func (Exponential) ParamCount() int { return 2 }

func (Exponential) ParamNames() []string { return []string{"qi", "di"} }

// Rate evalúa qi·e^(−di·t).
func (Exponential) Rate(t float64, p []float64) float64 {
	return p[0] * math.Exp(-p[1]*t)
}

// Bounds acota qi por el pico observado y di por el tope configurado.
func (Exponential) Bounds(qiMax float64, limits ModelBounds) lsq.Bounds {
	limits = limits.withDefaults()
	return lsq.NewBounds([]float64{0, 0}, []float64{qiMax, limits.DiMax})
}

// InitialGuess arranca en el pico observado con un declino nominal.
func (Exponential) InitialGuess(qiMax float64) []float64 {
	return []float64{qiMax, 0.01}
}

// Hyperbolic es el declino hiperbólico de Arps:
//
//	q(t) = qi / (1 + b·di·t)^(1/b)
//
// con parámetros [qi, b, di]. En b = 0 la fórmula degenera; su límite b→0
// es exactamente el declino exponencial y Rate lo usa como rama de guarda
// para callers directos. La caja mantiene b ≥ BMin > 0, así que el solver
// nunca pisa la singularidad.
type Hyperbolic struct{}

func (Hyperbolic) Variant() Variant { return VariantHyperbolic }

func (Hyperbolic) ParamCount() int { return 3 }

func (Hyperbolic) ParamNames() []string { return []string{"qi", "b", "di"} }

// Rate evalúa qi / (1 + b·di·t)^(1/b), con el límite exponencial en b = 0.
func (Hyperbolic) Rate(t float64, p []float64) float64 {
	qi, b, di := p[0], p[1], p[2]
	if b == 0 {
		return qi * math.Exp(-di*t)
	}
	return qi / math.Pow(1+b*di*t, 1/b)
}

// Bounds acota qi por el pico observado, b por [BMin, BMax] y di por DiMax.
func (Hyperbolic) Bounds(qiMax float64, limits ModelBounds) lsq.Bounds {
	limits = limits.withDefaults()
	return lsq.NewBounds(
		[]float64{0, limits.BMin, 0},
		[]float64{qiMax, limits.BMax, limits.DiMax},
	)
}

// InitialGuess arranca en el pico observado, b armónico y declino nominal.
func (Hyperbolic) InitialGuess(qiMax float64) []float64 {
	return []float64{qiMax, 1.0, 0.01}
}
