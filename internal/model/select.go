package model

import (
	"math"
	"sort"
)

// FeatureScore pairs a feature name with its univariate significance.
type FeatureScore struct {
	Name  string
	Score float64
}

// SelectTopK ranks features by a one-way F statistic against the binary
// label and keeps the K most significant. Reducing dimensionality before the
// fit keeps specialists from leaning on noise columns with no univariate
// signal. Input order is preserved in the returned subset.
func SelectTopK(rows [][]float64, y []int8, featureNames []string, k int) []string {
	if k <= 0 || k >= len(featureNames) {
		return featureNames
	}

	scores := make([]FeatureScore, len(featureNames))
	for j, name := range featureNames {
		scores[j] = FeatureScore{Name: name, Score: fStatistic(rows, y, j)}
	}

	ranked := make([]FeatureScore, len(scores))
	copy(ranked, scores)
	sort.Slice(ranked, func(a, b int) bool { return ranked[a].Score > ranked[b].Score })

	keep := make(map[string]bool, k)
	for _, fs := range ranked[:k] {
		keep[fs.Name] = true
	}

	selected := make([]string, 0, k)
	for _, name := range featureNames {
		if keep[name] {
			selected = append(selected, name)
		}
	}
	return selected
}

// fStatistic computes the one-way ANOVA F statistic for column j split by
// the binary label: between-class variance over within-class variance.
func fStatistic(rows [][]float64, y []int8, j int) float64 {
	var sum0, sum1 float64
	var n0, n1 int
	for i, row := range rows {
		if y[i] == 1 {
			sum1 += row[j]
			n1++
		} else {
			sum0 += row[j]
			n0++
		}
	}
	if n0 < 2 || n1 < 2 {
		return 0
	}

	mean0 := sum0 / float64(n0)
	mean1 := sum1 / float64(n1)
	grand := (sum0 + sum1) / float64(n0+n1)

	var ss0, ss1 float64
	for i, row := range rows {
		if y[i] == 1 {
			d := row[j] - mean1
			ss1 += d * d
		} else {
			d := row[j] - mean0
			ss0 += d * d
		}
	}

	between := float64(n0)*(mean0-grand)*(mean0-grand) + float64(n1)*(mean1-grand)*(mean1-grand)
	within := (ss0 + ss1) / float64(n0+n1-2)
	if within < 1e-12 {
		return 0
	}
	f := between / within
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
