package pose

import (
	"math"
	"testing"
)

func TestBestScore(t *testing.T) {
	tests := []struct {
		name   string
		scores []float32
		index  int
		value  float32
	}{
		{"empty", nil, -1, 0},
		{"single", []float32{4}, 0, 4},
		{"max in middle", []float32{3, 5, 2}, 1, 5},
		{"tie keeps lowest index", []float32{1, 7, 7, 7}, 1, 7},
		{"all equal", []float32{2, 2, 2}, 0, 2},
		{"all zero", []float32{0, 0, 0}, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, val := BestScore(tt.scores)
			if idx != tt.index || val != tt.value {
				t.Fatalf("BestScore = (%d, %g), want (%d, %g)", idx, val, tt.index, tt.value)
			}
		})
	}
}

func TestSummarize(t *testing.T) {
	st := Summarize([]float32{0, 2, 2, 1})
	if st.Supported != 3 || st.Total != 4 {
		t.Errorf("Supported/Total = %d/%d, want 3/4", st.Supported, st.Total)
	}
	if math.Abs(st.Mean-1.25) > 1e-12 {
		t.Errorf("Mean = %g, want 1.25", st.Mean)
	}
	if st.Median != 1 {
		t.Errorf("Median = %g, want 1", st.Median)
	}
	if st.Best != 2 || st.BestIndex != 1 {
		t.Errorf("Best = %g at %d, want 2 at 1", st.Best, st.BestIndex)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	st := Summarize(nil)
	if st.Total != 0 || st.Supported != 0 || st.BestIndex != -1 {
		t.Fatalf("Summarize(nil) = %+v", st)
	}
}
