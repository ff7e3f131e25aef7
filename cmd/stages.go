package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/ghost-audit/internal/dataset"
	"github.com/sells-group/ghost-audit/internal/impact"
	"github.com/sells-group/ghost-audit/internal/index"
	"github.com/sells-group/ghost-audit/internal/merge"
	"github.com/sells-group/ghost-audit/internal/pipeline"
	"github.com/sells-group/ghost-audit/internal/report"
	"github.com/sells-group/ghost-audit/internal/risk"
)

// Stage commands rerun one pipeline step over the snapshot the previous
// step persisted, for iterating on a single stage without a full run.

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Build the master project table from the raw sources",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := os.MkdirAll(filepath.Dir(cfg.Data.MasterPath), 0o755); err != nil {
			return eris.Wrap(err, "merge: create output directory")
		}
		if err := merge.Preflight(cfg.Data.RawDir); err != nil {
			return err
		}
		_, err := merge.Run(cfg.Data.RawDir, cfg.Data.MasterPath)
		return err
	},
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Attach the sensing metric and ghost label to the master table",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		master, err := dataset.Load(cfg.Data.MasterPath, dataset.Options{})
		if err != nil {
			return err
		}
		_, err = pipeline.Audit(ctx, master, cfg)
		return err
	},
}

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the risk model and score the audited table",
	RunE: func(cmd *cobra.Command, _ []string) error {
		audited, err := dataset.Load(cfg.Data.AuditedPath, dataset.Options{})
		if err != nil {
			return err
		}
		summary, scored, err := risk.Train(audited, risk.Options{
			Trees:        cfg.Model.Trees,
			MaxDepth:     cfg.Model.MaxDepth,
			TestFraction: cfg.Model.TestFraction,
			Seed:         cfg.Model.Seed,
			ModelPath:    cfg.Model.Path,
		})
		if err != nil {
			return err
		}
		if err := scored.WriteCSV(cfg.Data.ScoredPath); err != nil {
			return err
		}
		return printJSON(cmd, summary)
	},
}

var impactCmd = &cobra.Command{
	Use:   "impact",
	Short: "Measure portfolio impact over the scored table",
	RunE: func(cmd *cobra.Command, _ []string) error {
		scored, err := dataset.Load(cfg.Data.ScoredPath, dataset.Options{})
		if err != nil {
			return err
		}
		return printJSON(cmd, impact.Measure(scored, cfg.Impact.RiskThreshold))
	},
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Write the ranked index and its map views",
	RunE: func(cmd *cobra.Command, _ []string) error {
		scored, err := dataset.Load(cfg.Data.ScoredPath, dataset.Options{})
		if err != nil {
			return err
		}
		_, err = index.Build(scored, cfg.Data.IndexPath, cfg.Data.MapJSONPath(), cfg.Data.GeoJSONPath())
		return err
	},
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render the HTML report from the scored table",
	RunE: func(cmd *cobra.Command, _ []string) error {
		scored, err := dataset.Load(cfg.Data.ScoredPath, dataset.Options{})
		if err != nil {
			return err
		}

		// Prefer the persisted artifact; retrain only when it is
		// missing or unreadable. Both paths are deterministic for a
		// fixed seed.
		var summary *risk.Summary
		if forest, lerr := risk.Load(cfg.Model.Path); lerr == nil {
			summary, _, err = risk.Apply(scored, forest, cfg.Model.TestFraction)
			if err != nil {
				return err
			}
			summary.ModelPath = cfg.Model.Path
		} else {
			zap.L().Warn("model artifact unavailable, retraining for the report",
				zap.String("path", cfg.Model.Path),
				zap.Error(lerr),
			)
			summary, _, err = risk.Train(scored, risk.Options{
				Trees:        cfg.Model.Trees,
				MaxDepth:     cfg.Model.MaxDepth,
				TestFraction: cfg.Model.TestFraction,
				Seed:         cfg.Model.Seed,
			})
			if err != nil {
				return err
			}
		}
		final, err := index.Build(scored, cfg.Data.IndexPath, cfg.Data.MapJSONPath(), cfg.Data.GeoJSONPath())
		if err != nil {
			return err
		}
		metrics := impact.Measure(final, cfg.Impact.RiskThreshold)
		return report.Generate(cfg.Report.TemplatePath, cfg.Report.OutputPath,
			summary, final, metrics, cfg.Report.TopN, time.Now())
	},
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrap(err, "cmd: marshal output")
	}
	cmd.Println(string(data))
	return nil
}

func init() {
	rootCmd.AddCommand(mergeCmd, auditCmd, trainCmd, impactCmd, indexCmd, reportCmd)
}
