package main

import (
	"fmt"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/ghost-audit/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full audit pipeline",
	Long: `Run every stage end to end: merge the raw sources into the master
table, attach the satellite change metric and ghost label, train the
risk model, measure portfolio impact, write the ranked index, and
render the HTML report.

Examples:
  # Full run with simulated sensing (the default)
  ghost-audit run

  # Full run against a real sensing endpoint
  ghost-audit run --sensing remote --endpoint https://eo.example.com/change

  # Reproduce a run with a different seed and stricter threshold
  ghost-audit run --seed 7 --risk-threshold 0.9

  # Produce artifacts only, no report
  ghost-audit run --skip-report`,
	RunE: runRun,
}

func init() {
	f := runCmd.Flags()
	f.String("data-dir", "", "raw data directory (overrides config)")
	f.String("sensing", "", "sensing mode: synthetic or remote (overrides config)")
	f.String("endpoint", "", "remote sensing endpoint (overrides config)")
	f.Int64("seed", -1, "random seed for split/training/simulation (overrides config)")
	f.Float64("risk-threshold", 0, "at-risk score threshold (overrides config)")
	f.Bool("skip-report", false, "skip the HTML report stage")

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	f := cmd.Flags()
	if v, _ := f.GetString("data-dir"); v != "" {
		cfg.Data.RawDir = v
	}
	if v, _ := f.GetString("sensing"); v != "" {
		cfg.Sensing.Mode = v
	}
	if v, _ := f.GetString("endpoint"); v != "" {
		cfg.Sensing.Endpoint = v
	}
	if v, _ := f.GetInt64("seed"); v >= 0 {
		cfg.Sensing.Seed = v
		cfg.Model.Seed = v
	}
	if v, _ := f.GetFloat64("risk-threshold"); v > 0 {
		cfg.Impact.RiskThreshold = v
	}
	skipReport, _ := f.GetBool("skip-report")

	result, err := pipeline.Run(ctx, cfg, pipeline.Options{SkipReport: skipReport})
	if err != nil {
		return err
	}

	printSummary(cmd, result)
	zap.L().Info("pipeline completed")
	return nil
}

func printSummary(cmd *cobra.Command, result *pipeline.Result) {
	cmd.Printf("\nModel performance\n")
	cmd.Printf("  ROC AUC: %.4f\n", result.Model.ROCAUC)

	type fi struct {
		name  string
		value float64
	}
	var features []fi
	for k, v := range result.Model.FeatureImportance {
		features = append(features, fi{k, v})
	}
	sort.SliceStable(features, func(i, j int) bool { return features[i].value > features[j].value })
	cmd.Printf("  Feature importances:\n")
	for _, f := range features {
		cmd.Printf("    - %s: %.4f\n", f.name, f.value)
	}

	im := result.Impact
	cmd.Printf("\nPortfolio impact (threshold %.2f)\n", im.RiskThreshold)
	cmd.Printf("  Total: $%.0f across %d projects, %.1f MW\n",
		im.TotalPortfolioLoanUSD, im.TotalProjects, im.TotalPortfolioCapacityMW)
	cmd.Printf("  Audited ghosts: %d projects, $%.0f, %.1f MW\n",
		im.AuditedGhostProjectCount, im.AuditedLostLoanUSD, im.AuditedLostCapacityMW)
	cmd.Printf("  Predicted at risk: %d projects, $%.0f (%.1f%%), %.1f MW (%.1f%%)\n",
		im.PredictedAtRiskProjectCount, im.PredictedAtRiskLoanUSD, im.PctLoansAtRisk*100,
		im.PredictedAtRiskCapacityMW, im.PctCapacityAtRisk*100)

	cmd.Printf("\nTop riskiest projects\n")
	for i, r := range result.FinalIndex.Rows {
		if i >= 5 {
			break
		}
		score, _ := r.Float("ghost_risk_score")
		fmt.Fprintf(cmd.OutOrStdout(), "  %d. %s (%s): %.3f\n",
			i+1, r.String("project_name"), r.String("country"), score)
	}
}
