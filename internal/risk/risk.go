// Package risk trains the ghost classifier on the audited table and
// scores the eligible population.
package risk

import (
	"math"
	"math/rand/v2"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/sells-group/ghost-audit/internal/dataset"
	"github.com/sells-group/ghost-audit/internal/sensing"
)

// Features is the fixed model feature set, in artifact order.
var Features = []string{"total_loan_usd", "cpi_score", "ndvi_change_metric"}

// Options configures training.
type Options struct {
	Trees        int
	MaxDepth     int
	TestFraction float64
	Seed         int64
	ModelPath    string
}

// ClassMetrics is one row of the classification report.
type ClassMetrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// Summary holds everything the training run produced besides the scored
// table: held-out metrics, importances, and whether the model artifact
// actually reached disk.
type Summary struct {
	ROCAUC            float64                 `json:"roc_auc"`
	Report            map[string]ClassMetrics `json:"classification_report"`
	FeatureImportance map[string]float64      `json:"feature_importance"`
	FillValues        map[string]float64      `json:"fill_values"`
	TrainRows         int                     `json:"train_rows"`
	TestRows          int                     `json:"test_rows"`
	ScoredRows        int                     `json:"scored_rows"`
	ModelPersisted    bool                    `json:"model_persisted"`
	ModelPath         string                  `json:"model_path"`
}

// Train fits the classifier and scores every eligible project. Rows whose
// change metric is the sensing sentinel are excluded from both training
// and scoring; rows without a ground-truth label are additionally
// excluded from training. The returned table is the eligible population
// with a ghost_risk_score column attached. Model-artifact write failure
// is non-fatal and reflected in Summary.ModelPersisted.
func Train(t *dataset.Table, opts Options) (*Summary, *dataset.Table, error) {
	log := zap.L().With(zap.String("stage", "risk"))

	eligible, X, y, labeled, err := designMatrix(t, "audited table")
	if err != nil {
		return nil, nil, err
	}

	// Held-out split precedes every imputation statistic.
	testIdx, trainIdx := heldOutSplit(len(labeled), opts.TestFraction, opts.Seed)

	// Per-feature means from the training partition only; these exact
	// values are reused for the held-out partition and full scoring.
	fill := make([]float64, len(Features))
	for j := range Features {
		var observed []float64
		for _, k := range trainIdx {
			if v := X[labeled[k]][j]; !math.IsNaN(v) {
				observed = append(observed, v)
			}
		}
		if len(observed) > 0 {
			fill[j] = stat.Mean(observed, nil)
		}
	}

	imputed := func(i int) []float64 { return imputeRow(X[i], fill) }

	trainX := make([][]float64, len(trainIdx))
	trainY := make([]int, len(trainIdx))
	for i, k := range trainIdx {
		trainX[i] = imputed(labeled[k])
		trainY[i] = y[k]
	}

	forest := fitForest(trainX, trainY, Features, fill, opts.Trees, opts.MaxDepth, opts.Seed)

	// Held-out evaluation.
	testScores := make([]float64, len(testIdx))
	testY := make([]int, len(testIdx))
	for i, k := range testIdx {
		testScores[i] = forest.Predict(imputed(labeled[k]))
		testY[i] = y[k]
	}

	summary := &Summary{
		ROCAUC:            rocAUC(testScores, testY),
		Report:            classificationReport(testScores, testY),
		FeatureImportance: make(map[string]float64, len(Features)),
		FillValues:        make(map[string]float64, len(Features)),
		TrainRows:         len(trainIdx),
		TestRows:          len(testIdx),
		ModelPath:         opts.ModelPath,
	}
	for j, f := range Features {
		summary.FeatureImportance[f] = forest.Importances[j]
		summary.FillValues[f] = fill[j]
	}

	// Full-population scoring with the training-derived imputation.
	for i, r := range eligible.Rows {
		r["ghost_risk_score"] = dataset.FormatFloat(forest.Predict(imputed(i)))
	}
	if !eligible.HasColumn("ghost_risk_score") {
		eligible.Columns = append(eligible.Columns, "ghost_risk_score")
	}
	summary.ScoredRows = eligible.Len()

	if opts.ModelPath != "" {
		if err := Save(forest, opts.ModelPath); err != nil {
			log.Warn("model artifact write failed, continuing with score-only result",
				zap.String("path", opts.ModelPath),
				zap.Error(err),
			)
		} else {
			summary.ModelPersisted = true
		}
	}

	log.Info("risk model trained",
		zap.Int("train_rows", summary.TrainRows),
		zap.Int("test_rows", summary.TestRows),
		zap.Int("scored_rows", summary.ScoredRows),
		zap.Float64("roc_auc", summary.ROCAUC),
		zap.Bool("model_persisted", summary.ModelPersisted),
	)
	return summary, eligible, nil
}

// Apply scores the eligible population with a previously fitted forest
// and re-derives the held-out metrics from the forest's own seed and
// fill values, so a summary rebuilt from the artifact matches the
// training run that produced it.
func Apply(t *dataset.Table, forest *Forest, testFraction float64) (*Summary, *dataset.Table, error) {
	if len(forest.Features) != len(Features) {
		return nil, nil, eris.Errorf("risk: model artifact has %d features, expected %d; retrain the model",
			len(forest.Features), len(Features))
	}
	for j, f := range Features {
		if forest.Features[j] != f {
			return nil, nil, eris.Errorf("risk: model artifact feature %d is %q, expected %q; retrain the model",
				j, forest.Features[j], f)
		}
	}

	eligible, X, y, labeled, err := designMatrix(t, "scored table")
	if err != nil {
		return nil, nil, err
	}

	testIdx, trainIdx := heldOutSplit(len(labeled), testFraction, forest.Seed)
	fill := forest.FillValues

	testScores := make([]float64, len(testIdx))
	testY := make([]int, len(testIdx))
	for i, k := range testIdx {
		testScores[i] = forest.Predict(imputeRow(X[labeled[k]], fill))
		testY[i] = y[k]
	}

	summary := &Summary{
		ROCAUC:            rocAUC(testScores, testY),
		Report:            classificationReport(testScores, testY),
		FeatureImportance: make(map[string]float64, len(Features)),
		FillValues:        make(map[string]float64, len(Features)),
		TrainRows:         len(trainIdx),
		TestRows:          len(testIdx),
		ModelPersisted:    true,
	}
	for j, f := range Features {
		summary.FeatureImportance[f] = forest.Importances[j]
		summary.FillValues[f] = fill[j]
	}

	for i, r := range eligible.Rows {
		r["ghost_risk_score"] = dataset.FormatFloat(forest.Predict(imputeRow(X[i], fill)))
	}
	if !eligible.HasColumn("ghost_risk_score") {
		eligible.Columns = append(eligible.Columns, "ghost_risk_score")
	}
	summary.ScoredRows = eligible.Len()

	zap.L().Info("risk model applied",
		zap.Int("scored_rows", summary.ScoredRows),
		zap.Float64("roc_auc", summary.ROCAUC),
	)
	return summary, eligible, nil
}

// designMatrix builds the eligible population and its raw feature
// matrix. Rows carrying the sensing sentinel are dropped entirely;
// labeled holds the eligible-row indices with a usable ground truth.
func designMatrix(t *dataset.Table, source string) (eligible *dataset.Table, X [][]float64, y []int, labeled []int, err error) {
	if err := t.RequireColumns(source, append([]string{"is_ghost"}, Features...)...); err != nil {
		return nil, nil, nil, nil, err
	}

	// No sensing signal, no prediction.
	eligible = t.Filter(func(r dataset.Row) bool {
		v, ok := r.Float("ndvi_change_metric")
		return ok && v != sensing.Sentinel
	})

	for i, r := range eligible.Rows {
		x := make([]float64, len(Features))
		for j, f := range Features {
			if v, ok := r.Float(f); ok {
				x[j] = v
			} else {
				x[j] = math.NaN()
			}
		}
		X = append(X, x)
		if !r.IsNA("is_ghost") {
			if v, ok := r.Float("is_ghost"); ok {
				y = append(y, int(v))
				labeled = append(labeled, i)
			}
		}
	}
	if len(labeled) < 2 {
		return nil, nil, nil, nil, eris.Errorf("risk: only %d labeled rows after sentinel exclusion; not enough to split; run the audit stage first", len(labeled))
	}
	return eligible, X, y, labeled, nil
}

// heldOutSplit permutes the labeled indices with the given seed and
// carves off ceil(fraction*n) of them, never the whole set.
func heldOutSplit(n int, fraction float64, seed int64) (testIdx, trainIdx []int) {
	rng := rand.New(rand.NewPCG(uint64(seed), 0))
	perm := rng.Perm(n)
	testN := int(math.Ceil(fraction * float64(n)))
	if testN >= n {
		testN = n - 1
	}
	return perm[:testN], perm[testN:]
}

func imputeRow(raw, fill []float64) []float64 {
	x := make([]float64, len(raw))
	for j, v := range raw {
		if math.IsNaN(v) {
			x[j] = fill[j]
		} else {
			x[j] = v
		}
	}
	return x
}
