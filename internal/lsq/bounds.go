package lsq

import "fmt"

// Bounds es una caja de restricciones: un intervalo [Lo[j], Hi[j]] inclusivo
// e independiente por cada parámetro.
type Bounds struct {
	Lo []float64
	Hi []float64
}

// NewBounds crea una caja a partir de los límites dados.
func NewBounds(lo, hi []float64) Bounds {
	return Bounds{Lo: lo, Hi: hi}
}

// Len devuelve la dimensión de la caja.
func (b Bounds) Len() int {
	return len(b.Lo)
}

// Validate comprueba que la caja esté bien formada: misma dimensión en ambos
// lados, al menos un parámetro, y lo ≤ hi componente a componente.
// Una caja mal formada es un error de programación del caller, no de datos.
func (b Bounds) Validate() error {
	if len(b.Lo) == 0 {
		return fmt.Errorf("lsq: bounds vacíos")
	}
	if len(b.Lo) != len(b.Hi) {
		return fmt.Errorf("lsq: bounds con dimensiones distintas: lo=%d hi=%d", len(b.Lo), len(b.Hi))
	}
	for j := range b.Lo {
		if b.Lo[j] > b.Hi[j] {
			return fmt.Errorf("lsq: bound invertido en componente %d: lo=%g > hi=%g", j, b.Lo[j], b.Hi[j])
		}
	}
	return nil
}

// Contains devuelve true si p está dentro de la caja (bordes incluidos).
func (b Bounds) Contains(p []float64) bool {
	for j := range p {
		if p[j] < b.Lo[j] || p[j] > b.Hi[j] {
			return false
		}
	}
	return true
}

// Clamp recorta cada componente de p a su intervalo, in place.
// Devuelve true si algún componente tuvo que corregirse.
func (b Bounds) Clamp(p []float64) bool {
	clamped := false
	for j := range p {
		if p[j] < b.Lo[j] {
			p[j] = b.Lo[j]
			clamped = true
		} else if p[j] > b.Hi[j] {
			p[j] = b.Hi[j]
			clamped = true
		}
	}
	return clamped
}

// Midpoint devuelve el centro de la caja, el punto de arranque por defecto
// cuando el caller no aporta un estimado inicial.
func (b Bounds) Midpoint() []float64 {
	mid := make([]float64, len(b.Lo))
	for j := range b.Lo {
		mid[j] = b.Lo[j] + (b.Hi[j]-b.Lo[j])/2
	}
	return mid
}
