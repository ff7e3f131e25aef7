package risk

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// rocAUC computes the area under the ROC curve for the held-out scores.
// Degenerate partitions (one class only, or empty) yield NaN, which the
// report renders as such rather than inventing a number.
func rocAUC(scores []float64, y []int) float64 {
	if len(scores) == 0 {
		return math.NaN()
	}
	pos, neg := 0, 0
	for _, v := range y {
		if v == 1 {
			pos++
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return math.NaN()
	}

	// stat.ROC needs scores ascending with classes aligned.
	type pair struct {
		s float64
		c bool
	}
	pairs := make([]pair, len(scores))
	for i, s := range scores {
		pairs[i] = pair{s: s, c: y[i] == 1}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].s < pairs[j].s })

	sorted := make([]float64, len(pairs))
	classes := make([]bool, len(pairs))
	for i, p := range pairs {
		sorted[i] = p.s
		classes[i] = p.c
	}

	// Trapezoidal area under the (FPR, TPR) staircase. FPR is monotone
	// along the returned curve, so the absolute sum is orientation-free.
	tpr, fpr, _ := stat.ROC(nil, sorted, classes, nil)
	auc := 0.0
	for i := 1; i < len(fpr); i++ {
		auc += (fpr[i] - fpr[i-1]) * (tpr[i] + tpr[i-1]) / 2
	}
	return math.Abs(auc)
}

// classificationReport computes per-class precision/recall/F1/support at
// the 0.5 decision threshold, keyed "0" and "1".
func classificationReport(scores []float64, y []int) map[string]ClassMetrics {
	report := make(map[string]ClassMetrics, 2)
	for class, key := range map[int]string{0: "0", 1: "1"} {
		tp, fp, fn, support := 0, 0, 0, 0
		for i, s := range scores {
			pred := 0
			if s >= 0.5 {
				pred = 1
			}
			if y[i] == class {
				support++
				if pred == class {
					tp++
				} else {
					fn++
				}
			} else if pred == class {
				fp++
			}
		}

		var m ClassMetrics
		m.Support = support
		if tp+fp > 0 {
			m.Precision = float64(tp) / float64(tp+fp)
		}
		if tp+fn > 0 {
			m.Recall = float64(tp) / float64(tp+fn)
		}
		if m.Precision+m.Recall > 0 {
			m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
		}
		report[key] = m
	}
	return report
}
