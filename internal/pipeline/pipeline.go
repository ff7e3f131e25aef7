// Package pipeline sequences the audit stages: merge, satellite audit,
// risk model, impact, index, report. Each stage fully materializes its
// table before the next begins.
package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/ghost-audit/internal/audit"
	"github.com/sells-group/ghost-audit/internal/config"
	"github.com/sells-group/ghost-audit/internal/dataset"
	"github.com/sells-group/ghost-audit/internal/impact"
	"github.com/sells-group/ghost-audit/internal/index"
	"github.com/sells-group/ghost-audit/internal/merge"
	"github.com/sells-group/ghost-audit/internal/report"
	"github.com/sells-group/ghost-audit/internal/risk"
	"github.com/sells-group/ghost-audit/internal/sensing"
	"github.com/sells-group/ghost-audit/internal/store"
)

// Result is what a full run produces beyond its file artifacts.
type Result struct {
	Model      *risk.Summary  `json:"model"`
	Impact     impact.Metrics `json:"impact"`
	FinalIndex *dataset.Table `json:"-"`
}

// Options tweaks a single invocation beyond the loaded config.
type Options struct {
	SkipReport bool
}

// Run executes the whole pipeline. Analytical artifacts persist as soon
// as their stage completes; a report failure is returned as an error but
// never unwinds them.
func Run(ctx context.Context, cfg *config.Config, opts Options) (*Result, error) {
	log := zap.L().With(zap.String("command", "pipeline"))

	if err := ensureDirs(cfg); err != nil {
		return nil, err
	}
	if err := merge.Preflight(cfg.Data.RawDir); err != nil {
		return nil, err
	}

	st := openStore(ctx, cfg.Store.Path)
	if st != nil {
		defer st.Close()
	}
	run := createRun(ctx, st)

	result, err := runStages(ctx, cfg)
	if err != nil {
		failRun(ctx, st, run, err)
		return nil, err
	}

	metricsJSON, _ := json.Marshal(result)
	completeRun(ctx, st, run, string(metricsJSON), cfg.Data.IndexPath, cfg.Report.OutputPath)

	if opts.SkipReport {
		return result, nil
	}
	if err := report.Generate(cfg.Report.TemplatePath, cfg.Report.OutputPath,
		result.Model, result.FinalIndex, result.Impact, cfg.Report.TopN, time.Now()); err != nil {
		// Index, model, and metrics are already on disk and stay valid.
		log.Error("report stage failed; analytical artifacts remain usable", zap.Error(err))
		return result, err
	}
	return result, nil
}

func runStages(ctx context.Context, cfg *config.Config) (*Result, error) {
	master, err := merge.Run(cfg.Data.RawDir, cfg.Data.MasterPath)
	if err != nil {
		return nil, err
	}

	audited, err := Audit(ctx, master, cfg)
	if err != nil {
		return nil, err
	}

	summary, scored, err := risk.Train(audited, risk.Options{
		Trees:        cfg.Model.Trees,
		MaxDepth:     cfg.Model.MaxDepth,
		TestFraction: cfg.Model.TestFraction,
		Seed:         cfg.Model.Seed,
		ModelPath:    cfg.Model.Path,
	})
	if err != nil {
		return nil, err
	}

	// Stage-boundary snapshot: the impact, index, and report commands
	// rerun over this file.
	if err := scored.WriteCSV(cfg.Data.ScoredPath); err != nil {
		return nil, err
	}

	metrics := impact.Measure(scored, cfg.Impact.RiskThreshold)

	final, err := index.Build(scored, cfg.Data.IndexPath, cfg.Data.MapJSONPath(), cfg.Data.GeoJSONPath())
	if err != nil {
		return nil, err
	}

	return &Result{Model: summary, Impact: metrics, FinalIndex: final}, nil
}

// Audit runs the labeling stage with the configured sensing path. The
// synthetic and remote paths stay distinct: simulation never silently
// stands in for real data.
func Audit(ctx context.Context, master *dataset.Table, cfg *config.Config) (*dataset.Table, error) {
	switch cfg.Sensing.Mode {
	case "synthetic", "":
		zap.L().Info("sensing: simulating satellite audit", zap.Int64("seed", cfg.Sensing.Seed))
		return audit.RunSynthetic(master, cfg.Sensing.Seed, cfg.Data.AuditedPath)
	case "remote":
		if cfg.Sensing.Endpoint == "" {
			return nil, eris.New("pipeline: sensing.mode is remote but sensing.endpoint is empty; set the endpoint or switch to synthetic mode")
		}
		provider := sensing.NewRemote(sensing.RemoteOptions{
			Endpoint:          cfg.Sensing.Endpoint,
			RequestsPerSecond: cfg.Sensing.RequestsPerSecond,
			MaxAttempts:       cfg.Sensing.MaxAttempts,
			Timeout:           time.Duration(cfg.Sensing.TimeoutSecs) * time.Second,
		})
		return audit.Run(ctx, master, provider, cfg.Sensing.StartYear, cfg.Sensing.EndYear, cfg.Data.AuditedPath)
	default:
		return nil, eris.Errorf("pipeline: unknown sensing.mode %q (want synthetic or remote)", cfg.Sensing.Mode)
	}
}

func ensureDirs(cfg *config.Config) error {
	for _, p := range []string{
		cfg.Data.RawDir,
		filepath.Dir(cfg.Data.MasterPath),
		filepath.Dir(cfg.Data.ScoredPath),
		filepath.Dir(cfg.Model.Path),
		filepath.Dir(cfg.Data.IndexPath),
		filepath.Dir(cfg.Report.OutputPath),
		filepath.Dir(cfg.Store.Path),
	} {
		if err := os.MkdirAll(p, 0o755); err != nil {
			return eris.Wrapf(err, "pipeline: create directory %s", p)
		}
	}
	return nil
}

// openStore opens the run-history store best-effort. History is
// bookkeeping; a broken store degrades to logging only.
func openStore(ctx context.Context, path string) store.Store {
	if path == "" {
		return nil
	}
	st, err := store.NewSQLite(path)
	if err != nil {
		zap.L().Warn("pipeline: run store unavailable", zap.Error(err))
		return nil
	}
	if err := st.Migrate(ctx); err != nil {
		zap.L().Warn("pipeline: run store migration failed", zap.Error(err))
		st.Close()
		return nil
	}
	return st
}

func createRun(ctx context.Context, st store.Store) *store.Run {
	if st == nil {
		return nil
	}
	run, err := st.CreateRun(ctx)
	if err != nil {
		zap.L().Warn("pipeline: record run start failed", zap.Error(err))
		return nil
	}
	return run
}

func completeRun(ctx context.Context, st store.Store, run *store.Run, metricsJSON, indexPath, reportPath string) {
	if st == nil || run == nil {
		return
	}
	if err := st.CompleteRun(ctx, run.ID, metricsJSON, indexPath, reportPath); err != nil {
		zap.L().Warn("pipeline: record run completion failed", zap.Error(err))
	}
}

func failRun(ctx context.Context, st store.Store, run *store.Run, cause error) {
	if st == nil || run == nil {
		return
	}
	if err := st.FailRun(ctx, run.ID, cause.Error()); err != nil {
		zap.L().Warn("pipeline: record run failure failed", zap.Error(err))
	}
}
