// Package store keeps a local history of audit runs so successive batch
// invocations stay inspectable. History is bookkeeping: store failures
// never fail the pipeline.
package store

import (
	"context"
	"time"
)

// RunStatus is the lifecycle state of a recorded run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one recorded pipeline invocation. Metrics holds the JSON-encoded
// model summary and impact metrics of completed runs.
type Run struct {
	ID         string    `json:"id"`
	Status     RunStatus `json:"status"`
	Metrics    string    `json:"metrics,omitempty"`
	Error      string    `json:"error,omitempty"`
	IndexPath  string    `json:"index_path,omitempty"`
	ReportPath string    `json:"report_path,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}

// Store defines the run-history persistence interface.
type Store interface {
	CreateRun(ctx context.Context) (*Run, error)
	CompleteRun(ctx context.Context, runID, metricsJSON, indexPath, reportPath string) error
	FailRun(ctx context.Context, runID, errMsg string) error
	ListRuns(ctx context.Context, limit int) ([]Run, error)

	Migrate(ctx context.Context) error
	Close() error
}
