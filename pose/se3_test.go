package pose

import (
	"math"
	"testing"
)

func TestExpZeroIsIdentity(t *testing.T) {
	m := Exp(Twist{})
	if m != Identity() {
		t.Fatalf("Exp(0) = %v, want exact identity", m)
	}
}

func TestExpPureTranslation(t *testing.T) {
	m := Exp(Twist{0.5, -0.25, 2, 0, 0, 0})
	want := Identity()
	want[3], want[7], want[11] = 0.5, -0.25, 2
	if m != want {
		t.Fatalf("Exp(translation) = %v, want %v", m, want)
	}
}

func TestExpRotationAngle(t *testing.T) {
	axes := [][3]float64{
		{1, 0, 0},
		{0, 0, 1},
		{0.6, -0.8, 0},
		{1, 1, 1},
	}
	angles := []float64{1e-5, 0.05, 0.3, 1.2}
	for _, axis := range axes {
		n := math.Sqrt(axis[0]*axis[0] + axis[1]*axis[1] + axis[2]*axis[2])
		for _, theta := range angles {
			x := Twist{0, 0, 0,
				axis[0] / n * theta,
				axis[1] / n * theta,
				axis[2] / n * theta,
			}
			m := Exp(x)
			if got := m.RotationAngle(); math.Abs(got-theta) > 1e-9 {
				t.Errorf("axis %v theta %g: RotationAngle = %g", axis, theta, got)
			}
		}
	}
}

func TestExpRotationOrthonormal(t *testing.T) {
	m := Exp(Twist{0.1, -0.2, 0.3, 0.4, -0.1, 0.25})
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			var dot float64
			for k := 0; k < 3; k++ {
				dot += m[k*4+r] * m[k*4+c]
			}
			want := 0.0
			if r == c {
				want = 1
			}
			if math.Abs(dot-want) > 1e-12 {
				t.Errorf("R^T R [%d][%d] = %g, want %g", r, c, dot, want)
			}
		}
	}
	if m[12] != 0 || m[13] != 0 || m[14] != 0 || m[15] != 1 {
		t.Errorf("bottom row = %v %v %v %v", m[12], m[13], m[14], m[15])
	}
}

func TestExpInverseComposes(t *testing.T) {
	x := Twist{0.05, -0.02, 0.1, 0.2, -0.15, 0.1}
	var neg Twist
	for i := range x {
		neg[i] = -x[i]
	}
	m := Exp(x).Mul(Exp(neg))
	id := Identity()
	for i := range m {
		if math.Abs(m[i]-id[i]) > 1e-12 {
			t.Fatalf("Exp(x)*Exp(-x)[%d] = %g, want %g", i, m[i], id[i])
		}
	}
}

func TestMulIdentity(t *testing.T) {
	m := Exp(Twist{1, 2, 3, 0.1, 0.2, 0.3})
	if got := m.Mul(Identity()); got != m {
		t.Errorf("m * I = %v, want %v", got, m)
	}
	if got := Identity().Mul(m); got != m {
		t.Errorf("I * m = %v, want %v", got, m)
	}
}

func TestTransform(t *testing.T) {
	m := Identity()
	m[3] = 0.5
	m[11] = -0.125
	x, y, z := m.Transform(0.25, -0.5, 2)
	if x != 0.25+0.5*2 || y != -0.5 || z != 1-0.125*2 {
		t.Fatalf("Transform = (%g, %g, %g)", x, y, z)
	}
}

func TestTranslation(t *testing.T) {
	m := Identity()
	m[3], m[7], m[11] = 1, 2, 3
	if got := m.Translation(); got != [3]float64{1, 2, 3} {
		t.Fatalf("Translation = %v", got)
	}
}

func TestRotationAngleClamped(t *testing.T) {
	m := Identity()
	m[0] = 1 + 1e-9
	if got := m.RotationAngle(); got != 0 || math.IsNaN(got) {
		t.Fatalf("RotationAngle of near-identity = %g, want 0", got)
	}
}

func TestFromFloats(t *testing.T) {
	vals := make([]float32, 16)
	for i := range vals {
		vals[i] = float32(i) * 0.5
	}
	m := FromFloats(vals)
	for i := range m {
		if m[i] != float64(i)*0.5 {
			t.Fatalf("FromFloats[%d] = %g", i, m[i])
		}
	}
}
