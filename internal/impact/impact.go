// Package impact reconciles ground-truth labels and predicted risk
// scores against portfolio financing and capacity totals.
package impact

import (
	"go.uber.org/zap"

	"github.com/sells-group/ghost-audit/internal/dataset"
)

// Metrics is the flat mapping injected into the report. Sums treat
// missing or unparseable financing/capacity as zero, which understates
// projects with absent financial data; that bias is accepted and
// documented, not corrected.
type Metrics struct {
	RiskThreshold float64 `json:"risk_threshold"`
	TotalProjects int     `json:"total_projects"`

	TotalPortfolioLoanUSD    float64 `json:"total_portfolio_loan_usd"`
	TotalPortfolioCapacityMW float64 `json:"total_portfolio_capacity_mw"`

	AuditedLostLoanUSD       float64 `json:"audited_lost_loan_usd"`
	AuditedLostCapacityMW    float64 `json:"audited_lost_capacity_mw"`
	AuditedGhostProjectCount int     `json:"audited_ghost_project_count"`

	PredictedAtRiskLoanUSD      float64 `json:"predicted_at_risk_loan_usd"`
	PredictedAtRiskCapacityMW   float64 `json:"predicted_at_risk_capacity_mw"`
	PredictedAtRiskProjectCount int     `json:"predicted_at_risk_project_count"`

	PctLoansAtRisk    float64 `json:"pct_loans_at_risk"`
	PctCapacityAtRisk float64 `json:"pct_capacity_at_risk"`
}

// Measure aggregates the scored table at the given risk threshold.
func Measure(t *dataset.Table, riskThreshold float64) Metrics {
	m := Metrics{
		RiskThreshold: riskThreshold,
		TotalProjects: t.Len(),
	}

	for _, r := range t.Rows {
		loan, _ := r.Float("total_loan_usd")
		capacity, _ := r.Float("funded_capacity_mw")

		m.TotalPortfolioLoanUSD += loan
		m.TotalPortfolioCapacityMW += capacity

		if r.String("is_ghost") == "1" {
			m.AuditedGhostProjectCount++
			m.AuditedLostLoanUSD += loan
			m.AuditedLostCapacityMW += capacity
		}

		if score, ok := r.Float("ghost_risk_score"); ok && score >= riskThreshold {
			m.PredictedAtRiskProjectCount++
			m.PredictedAtRiskLoanUSD += loan
			m.PredictedAtRiskCapacityMW += capacity
		}
	}

	// Zero portfolio means zero at risk, not a division error.
	if m.TotalPortfolioLoanUSD > 0 {
		m.PctLoansAtRisk = m.PredictedAtRiskLoanUSD / m.TotalPortfolioLoanUSD
	}
	if m.TotalPortfolioCapacityMW > 0 {
		m.PctCapacityAtRisk = m.PredictedAtRiskCapacityMW / m.TotalPortfolioCapacityMW
	}

	zap.L().Info("impact measured",
		zap.Int("total_projects", m.TotalProjects),
		zap.Float64("total_portfolio_loan_usd", m.TotalPortfolioLoanUSD),
		zap.Int("predicted_at_risk_projects", m.PredictedAtRiskProjectCount),
		zap.Float64("predicted_at_risk_loan_usd", m.PredictedAtRiskLoanUSD),
		zap.Float64("risk_threshold", riskThreshold),
	)
	return m
}
