package impact

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/ghost-audit/internal/dataset"
)

func scoredFixture() *dataset.Table {
	tb := dataset.New("project_name", "total_loan_usd", "funded_capacity_mw", "is_ghost", "ghost_risk_score")
	tb.Append(dataset.Row{"project_name": "a", "total_loan_usd": "100", "funded_capacity_mw": "50", "is_ghost": "1", "ghost_risk_score": "0.95"})
	tb.Append(dataset.Row{"project_name": "b", "total_loan_usd": "200", "funded_capacity_mw": "80", "is_ghost": "0", "ghost_risk_score": "0.85"})
	tb.Append(dataset.Row{"project_name": "c", "total_loan_usd": "", "funded_capacity_mw": "30", "is_ghost": "0", "ghost_risk_score": "0.4"})
	tb.Append(dataset.Row{"project_name": "d", "total_loan_usd": "garbage", "funded_capacity_mw": "", "is_ghost": "1", "ghost_risk_score": "0.2"})
	return tb
}

func TestMeasure_Totals(t *testing.T) {
	m := Measure(scoredFixture(), 0.8)

	assert.Equal(t, 4, m.TotalProjects)
	// Missing and unparseable financials contribute zero.
	assert.Equal(t, 300.0, m.TotalPortfolioLoanUSD)
	assert.Equal(t, 160.0, m.TotalPortfolioCapacityMW)
}

func TestMeasure_AuditedImpact(t *testing.T) {
	m := Measure(scoredFixture(), 0.8)

	assert.Equal(t, 2, m.AuditedGhostProjectCount)
	assert.Equal(t, 100.0, m.AuditedLostLoanUSD)
	assert.Equal(t, 50.0, m.AuditedLostCapacityMW)
}

func TestMeasure_PredictedAtRisk(t *testing.T) {
	m := Measure(scoredFixture(), 0.8)

	// Threshold is inclusive: 0.85 and 0.95 qualify.
	assert.Equal(t, 2, m.PredictedAtRiskProjectCount)
	assert.Equal(t, 300.0, m.PredictedAtRiskLoanUSD)
	assert.Equal(t, 130.0, m.PredictedAtRiskCapacityMW)
	assert.InDelta(t, 1.0, m.PctLoansAtRisk, 1e-9)
	assert.InDelta(t, 130.0/160.0, m.PctCapacityAtRisk, 1e-9)
}

func TestMeasure_ThresholdRespected(t *testing.T) {
	m := Measure(scoredFixture(), 0.9)
	assert.Equal(t, 1, m.PredictedAtRiskProjectCount)
	assert.Equal(t, 0.9, m.RiskThreshold)
}

func TestMeasure_ZeroPortfolioYieldsZeroRatios(t *testing.T) {
	tb := dataset.New("total_loan_usd", "funded_capacity_mw", "is_ghost", "ghost_risk_score")
	tb.Append(dataset.Row{"total_loan_usd": "", "funded_capacity_mw": "", "is_ghost": "1", "ghost_risk_score": "0.99"})

	m := Measure(tb, 0.8)
	assert.Equal(t, 0.0, m.PctLoansAtRisk)
	assert.Equal(t, 0.0, m.PctCapacityAtRisk)
}

func TestMeasure_RowsWithoutScoreNeverAtRisk(t *testing.T) {
	tb := dataset.New("total_loan_usd", "funded_capacity_mw", "is_ghost", "ghost_risk_score")
	tb.Append(dataset.Row{"total_loan_usd": "100", "funded_capacity_mw": "10", "is_ghost": "0", "ghost_risk_score": ""})

	m := Measure(tb, 0.0)
	assert.Equal(t, 0, m.PredictedAtRiskProjectCount)
}
