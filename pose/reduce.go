package pose

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// BestScore scans a downloaded score buffer for the winning hypothesis.
// Ties keep the lowest index, so reruns over identical scores pick the same
// winner. An empty slice returns index -1.
func BestScore(scores []float32) (int, float32) {
	best := -1
	var bestVal float32
	for i, s := range scores {
		if best < 0 || s > bestVal {
			best = i
			bestVal = s
		}
	}
	return best, bestVal
}

// ScoreStats summarizes the consensus scores of one hypothesis pool.
type ScoreStats struct {
	Supported int // hypotheses with any inlier support at all
	Total     int
	Mean      float64
	Median    float64
	Best      float64
	BestIndex int
}

// Summarize reduces a score buffer to the figures the report prints.
func Summarize(scores []float32) ScoreStats {
	st := ScoreStats{Total: len(scores), BestIndex: -1}
	if len(scores) == 0 {
		return st
	}
	vals := make([]float64, len(scores))
	for i, s := range scores {
		if s > 0 {
			st.Supported++
		}
		vals[i] = float64(s)
	}
	st.Mean = stat.Mean(vals, nil)
	st.BestIndex = floats.MaxIdx(vals)
	st.Best = vals[st.BestIndex]

	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)
	st.Median = stat.Quantile(0.5, stat.Empirical, sorted, nil)
	return st
}
