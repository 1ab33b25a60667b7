// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// CubeTransform returns the rotation a renderer applies to the sensor model:
// start from identity, rotate by roll about X, then by pitch about Y.
// Yaw is not applied.
func CubeTransform(p Pose) *mat.Dense {
	r := p.Roll * math.Pi / 180
	q := p.Pitch * math.Pi / 180

	rx := mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, math.Cos(r), -math.Sin(r),
		0, math.Sin(r), math.Cos(r),
	})
	ry := mat.NewDense(3, 3, []float64{
		math.Cos(q), 0, math.Sin(q),
		0, 1, 0,
		-math.Sin(q), 0, math.Cos(q),
	})

	var out mat.Dense
	out.Mul(ry, rx)
	return &out
}

// TransformRows flattens m into row slices for JSON payloads.
func TransformRows(m mat.Matrix) [][]float64 {
	rows, cols := m.Dims()
	out := make([][]float64, rows)
	for i := range out {
		out[i] = make([]float64, cols)
		for j := range out[i] {
			out[i][j] = m.At(i, j)
		}
	}
	return out
}
