package lsq

// linalg.go — álgebra lineal densa mínima para las ecuaciones normales.
// Los sistemas son k×k con k = 2 o 3 parámetros; eliminación gaussiana con
// pivoteo parcial es suficiente y completamente determinista.

import "math"

// pivotTiny es el umbral de condicionamiento: un pivote por debajo de esto
// (relativo a la escala de la matriz) marca el sistema como singular.
const pivotTiny = 1e-14

// solveLinear resuelve A·x = v por eliminación gaussiana con pivoteo parcial.
// A y v se copian, nunca se modifican. Devuelve ok=false si la matriz es
// singular dentro del umbral de condicionamiento.
func solveLinear(a [][]float64, v []float64) (x []float64, ok bool) {
	k := len(v)

	// Copia de trabajo de la matriz aumentada
	m := make([][]float64, k)
	scale := 0.0
	for i := 0; i < k; i++ {
		m[i] = make([]float64, k+1)
		copy(m[i], a[i])
		m[i][k] = v[i]
		for j := 0; j < k; j++ {
			if abs := math.Abs(a[i][j]); abs > scale {
				scale = abs
			}
		}
	}
	if scale == 0 {
		return nil, false
	}

	for col := 0; col < k; col++ {
		// Pivoteo parcial: fila con el mayor valor absoluto en la columna
		pivot := col
		for row := col + 1; row < k; row++ {
			if math.Abs(m[row][col]) > math.Abs(m[pivot][col]) {
				pivot = row
			}
		}
		if math.Abs(m[pivot][col]) < pivotTiny*scale {
			return nil, false
		}
		m[col], m[pivot] = m[pivot], m[col]

		for row := col + 1; row < k; row++ {
			factor := m[row][col] / m[col][col]
			for j := col; j <= k; j++ {
				m[row][j] -= factor * m[col][j]
			}
		}
	}

	// Sustitución hacia atrás
	x = make([]float64, k)
	for i := k - 1; i >= 0; i-- {
		sum := m[i][k]
		for j := i + 1; j < k; j++ {
			sum -= m[i][j] * x[j]
		}
		x[i] = sum / m[i][i]
	}
	return x, true
}

// invert devuelve la inversa de A por Gauss-Jordan con pivoteo parcial,
// o ok=false si A es singular. Se usa solo para la covarianza final.
func invert(a [][]float64) (inv [][]float64, ok bool) {
	k := len(a)

	// Matriz aumentada [A | I]
	m := make([][]float64, k)
	scale := 0.0
	for i := 0; i < k; i++ {
		m[i] = make([]float64, 2*k)
		copy(m[i], a[i])
		m[i][k+i] = 1
		for j := 0; j < k; j++ {
			if abs := math.Abs(a[i][j]); abs > scale {
				scale = abs
			}
		}
	}
	if scale == 0 {
		return nil, false
	}

	for col := 0; col < k; col++ {
		pivot := col
		for row := col + 1; row < k; row++ {
			if math.Abs(m[row][col]) > math.Abs(m[pivot][col]) {
				pivot = row
			}
		}
		if math.Abs(m[pivot][col]) < pivotTiny*scale {
			return nil, false
		}
		m[col], m[pivot] = m[pivot], m[col]

		div := m[col][col]
		for j := 0; j < 2*k; j++ {
			m[col][j] /= div
		}
		for row := 0; row < k; row++ {
			if row == col {
				continue
			}
			factor := m[row][col]
			for j := 0; j < 2*k; j++ {
				m[row][j] -= factor * m[col][j]
			}
		}
	}

	inv = make([][]float64, k)
	for i := 0; i < k; i++ {
		inv[i] = make([]float64, k)
		copy(inv[i], m[i][k:])
	}
	return inv, true
}

// norm2 devuelve la norma euclídea del vector.
func norm2(v []float64) float64 {
	sum := 0.0
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// maxAbs devuelve la norma infinito (máximo valor absoluto) del vector.
func maxAbs(v []float64) float64 {
	max := 0.0
	for _, x := range v {
		if abs := math.Abs(x); abs > max {
			max = abs
		}
	}
	return max
}
