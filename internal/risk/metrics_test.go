package risk

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRocAUC_PerfectSeparation(t *testing.T) {
	auc := rocAUC([]float64{0.9, 0.8, 0.2, 0.1}, []int{1, 1, 0, 0})
	assert.InDelta(t, 1.0, auc, 1e-9)
}

func TestRocAUC_Inverted(t *testing.T) {
	auc := rocAUC([]float64{0.1, 0.2, 0.8, 0.9}, []int{1, 1, 0, 0})
	assert.InDelta(t, 0.0, auc, 1e-9)
}

func TestRocAUC_Half(t *testing.T) {
	auc := rocAUC([]float64{0.9, 0.8, 0.3, 0.2}, []int{1, 0, 0, 1})
	assert.InDelta(t, 0.5, auc, 1e-9)
}

func TestRocAUC_DegenerateIsNaN(t *testing.T) {
	assert.True(t, math.IsNaN(rocAUC(nil, nil)))
	assert.True(t, math.IsNaN(rocAUC([]float64{0.5, 0.6}, []int{1, 1})), "single class has no ROC")
}

func TestClassificationReport(t *testing.T) {
	scores := []float64{0.9, 0.7, 0.4, 0.2, 0.6}
	y := []int{1, 0, 1, 0, 1}
	// predictions: 1, 1, 0, 0, 1
	report := classificationReport(scores, y)

	pos, ok := report["1"]
	require.True(t, ok)
	assert.Equal(t, 3, pos.Support)
	assert.InDelta(t, 2.0/3.0, pos.Precision, 1e-9) // tp=2 fp=1
	assert.InDelta(t, 2.0/3.0, pos.Recall, 1e-9)    // fn=1

	neg, ok := report["0"]
	require.True(t, ok)
	assert.Equal(t, 2, neg.Support)
	assert.InDelta(t, 0.5, neg.Precision, 1e-9) // tp=1 fp=1
	assert.InDelta(t, 0.5, neg.Recall, 1e-9)
	assert.InDelta(t, 0.5, neg.F1, 1e-9)
}

func TestForest_LearnsSeparableSignal(t *testing.T) {
	var X [][]float64
	var y []int
	for i := 0; i < 40; i++ {
		if i%2 == 0 {
			X = append(X, []float64{100, 40, 0.01 + float64(i)*0.0005})
			y = append(y, 1)
		} else {
			X = append(X, []float64{100, 40, 0.1 + float64(i)*0.001})
			y = append(y, 0)
		}
	}

	f := fitForest(X, y, Features, []float64{100, 40, 0.05}, 30, 6, 42)

	assert.Greater(t, f.Predict([]float64{100, 40, 0.015}), 0.5)
	assert.Less(t, f.Predict([]float64{100, 40, 0.15}), 0.5)

	// The separating feature should dominate the importances.
	assert.Greater(t, f.Importances[2], f.Importances[0])
	assert.Greater(t, f.Importances[2], f.Importances[1])
}
