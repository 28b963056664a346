package pose

import "math"

// Tuple is one correspondence on the host: a reference ray with its
// inverse-depth coordinate and the query ray it should land on.
type Tuple struct {
	U, V, Q float64
	U2, V2  float64
}

// pcg is the 32-bit permuted-congruential hash the sampler kernel uses.
// Host and device must agree bit for bit or replayed runs diverge.
func pcg(x uint32) uint32 {
	s := x*747796405 + 2891336453
	w := ((s >> ((s >> 28) + 4)) ^ s) * 277803737
	return (w >> 22) ^ w
}

// mixIndex returns the tuple index hypothesis h draws for slot s.
func mixIndex(seed, h, s, count uint32) uint32 {
	return pcg(seed^pcg(h*3+s)) % count
}

const (
	cpuZMin     = 1e-6
	cpuPivotMin = 1e-12
)

// normalEquations accumulates the 6x6 Gauss-Newton system of the three
// tuples around pose m. Tuples that transform behind the camera contribute
// nothing.
func normalEquations(trip [3]Tuple, m Mat4) (a [36]float64, b [6]float64) {
	for _, t := range trip {
		x, y, z := m.Transform(t.U, t.V, t.Q)
		if z <= cpuZMin {
			continue
		}
		iz := 1 / z
		px := x * iz
		py := y * iz
		ex := t.U2 - px
		ey := t.V2 - py

		// Generators of SE(3) applied to the pre-transform point, for
		// parameters (tx, ty, tz, rx, ry, rz).
		gx := [6]float64{t.Q, 0, 0, 0, 1, -t.V}
		gy := [6]float64{0, t.Q, 0, -1, 0, t.U}
		gz := [6]float64{0, 0, t.Q, t.V, -t.U, 0}

		var jx, jy [6]float64
		for k := 0; k < 6; k++ {
			dx := m[0]*gx[k] + m[1]*gy[k] + m[2]*gz[k]
			dy := m[4]*gx[k] + m[5]*gy[k] + m[6]*gz[k]
			dz := m[8]*gx[k] + m[9]*gy[k] + m[10]*gz[k]
			jx[k] = (dx - px*dz) * iz
			jy[k] = (dy - py*dz) * iz
		}
		for r := 0; r < 6; r++ {
			for c := 0; c < 6; c++ {
				a[r*6+c] += jx[r]*jx[c] + jy[r]*jy[c]
			}
			b[r] += jx[r]*ex + jy[r]*ey
		}
	}
	return a, b
}

// solveNormal6 solves A x = b by Cholesky factorization. A degenerate pivot
// leaves x zero and reports false, matching the device solver.
func solveNormal6(a [36]float64, b [6]float64) (Twist, bool) {
	var l [36]float64
	for i := 0; i < 6; i++ {
		for j := 0; j <= i; j++ {
			s := a[i*6+j]
			for k := 0; k < j; k++ {
				s -= l[i*6+k] * l[j*6+k]
			}
			if i == j {
				if s <= cpuPivotMin {
					return Twist{}, false
				}
				l[i*6+i] = math.Sqrt(s)
			} else {
				l[i*6+j] = s / l[j*6+j]
			}
		}
	}
	var y [6]float64
	for i := 0; i < 6; i++ {
		s := b[i]
		for k := 0; k < i; k++ {
			s -= l[i*6+k] * y[k]
		}
		y[i] = s / l[i*6+i]
	}
	var x Twist
	for i := 5; i >= 0; i-- {
		s := y[i]
		for k := i + 1; k < 6; k++ {
			s -= l[k*6+i] * x[k]
		}
		x[i] = s / l[i*6+i]
	}
	return x, true
}

// refineTriple runs the Gauss-Newton loop for one hypothesis triple.
func refineTriple(trip [3]Tuple, iterations int) Mat4 {
	m := Identity()
	for it := 0; it < iterations; it++ {
		a, b := normalEquations(trip, m)
		x, ok := solveNormal6(a, b)
		if !ok {
			x = Twist{}
		}
		m = m.Mul(Exp(x))
	}
	return m
}

// Score accumulates the soft inlier weight of pose m over the tuple pool:
// each tuple within bound of its reprojection contributes 1 - r^2/bound^2.
func Score(tuples []Tuple, m Mat4, bound, zmin float64) float64 {
	bound2 := bound * bound
	var score float64
	for _, t := range tuples {
		x, y, z := m.Transform(t.U, t.V, t.Q)
		if z <= zmin {
			continue
		}
		ex := t.U2 - x/z
		ey := t.V2 - y/z
		r2 := ex*ex + ey*ey
		if w := 1 - r2/bound2; w > 0 {
			score += w
		}
	}
	return score
}

// RefineCPU runs the whole hypothesis pool on the host: sample triples with
// the device hash, refine each by Gauss-Newton, score against the full pool.
// It exists as a fallback for devices without compute support and as the
// reference the device path is checked against. An empty tuple list yields
// the identity with all-zero scores.
func RefineCPU(tuples []Tuple, pool, iterations int, seed uint32, bound, zmin float64) (Mat4, int, []float64) {
	scores := make([]float64, pool)
	if len(tuples) == 0 || pool == 0 {
		return Identity(), 0, scores
	}
	count := uint32(len(tuples))
	best := Identity()
	bestIndex := 0
	bestScore := math.Inf(-1)
	for h := 0; h < pool; h++ {
		var trip [3]Tuple
		for s := uint32(0); s < 3; s++ {
			trip[s] = tuples[mixIndex(seed, uint32(h), s, count)]
		}
		m := refineTriple(trip, iterations)
		sc := Score(tuples, m, bound, zmin)
		scores[h] = sc
		if sc > bestScore {
			bestScore = sc
			bestIndex = h
			best = m
		}
	}
	return best, bestIndex, scores
}
