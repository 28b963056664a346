// Package pose implements the hypothesis search for the rigid transform
// between two frames: random 3-point sampling, parallel Gauss-Newton
// refinement over a large hypothesis pool, consensus scoring and the replay
// of the winning pose. The batch stages run as compute kernels; a CPU
// reference path mirrors them for verification and device-free use.
package pose

import "math"

// Twist is a minimal rigid motion: translation then rotation parameters
// (tx, ty, tz, rx, ry, rz).
type Twist [6]float64

// Mat4 is a row-major 4x4 rigid transform. Applied to homogeneous points
// (u, v, 1, q): ray direction at unit depth, scaled by inverse depth q, so
// the translation column multiplies q.
type Mat4 [16]float64

// Identity returns the identity transform.
func Identity() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Exp maps a twist to its rigid transform, Rodrigues form with a Taylor
// fallback near zero rotation.
func Exp(x Twist) Mat4 {
	tx, ty, tz := x[0], x[1], x[2]
	rx, ry, rz := x[3], x[4], x[5]

	tsq := rx*rx + ry*ry + rz*rz

	var ca, cb, cc float64
	if tsq < 1e-8 {
		ca = 1 - tsq/6
		cb = 0.5 - tsq/24
		cc = 1.0/6 - tsq/120
	} else {
		theta := math.Sqrt(tsq)
		ca = math.Sin(theta) / theta
		cb = (1 - math.Cos(theta)) / tsq
		cc = (1 - ca) / tsq
	}

	w := [9]float64{
		0, -rz, ry,
		rz, 0, -rx,
		-ry, rx, 0,
	}
	var w2 [9]float64
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			var s float64
			for k := 0; k < 3; k++ {
				s += w[r*3+k] * w[k*3+c]
			}
			w2[r*3+c] = s
		}
	}

	m := Identity()
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			id := 0.0
			if r == c {
				id = 1
			}
			m[r*4+c] = id + ca*w[r*3+c] + cb*w2[r*3+c]
		}
	}

	t := [3]float64{tx, ty, tz}
	for r := 0; r < 3; r++ {
		var s float64
		for c := 0; c < 3; c++ {
			id := 0.0
			if r == c {
				id = 1
			}
			s += (id + cb*w[r*3+c] + cc*w2[r*3+c]) * t[c]
		}
		m[r*4+3] = s
	}
	return m
}

// Mul returns m * o.
func (m Mat4) Mul(o Mat4) Mat4 {
	var out Mat4
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			var s float64
			for k := 0; k < 4; k++ {
				s += m[r*4+k] * o[k*4+c]
			}
			out[r*4+c] = s
		}
	}
	return out
}

// Transform applies the pose to the homogeneous point (u, v, 1, q) and
// returns the transformed coordinates before projection.
func (m Mat4) Transform(u, v, q float64) (x, y, z float64) {
	x = m[0]*u + m[1]*v + m[2] + m[3]*q
	y = m[4]*u + m[5]*v + m[6] + m[7]*q
	z = m[8]*u + m[9]*v + m[10] + m[11]*q
	return x, y, z
}

// Translation returns the translation column, in units of the inverse-depth
// scale.
func (m Mat4) Translation() [3]float64 {
	return [3]float64{m[3], m[7], m[11]}
}

// RotationAngle returns the rotation magnitude in radians, from the trace
// of the rotation block.
func (m Mat4) RotationAngle() float64 {
	c := (m[0] + m[5] + m[10] - 1) / 2
	if c > 1 {
		c = 1
	} else if c < -1 {
		c = -1
	}
	return math.Acos(c)
}

// FromFloats rebuilds a pose from the row-major float32 layout the kernels
// use.
func FromFloats(vals []float32) Mat4 {
	var m Mat4
	for i := range m {
		m[i] = float64(vals[i])
	}
	return m
}
