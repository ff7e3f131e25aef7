// Package sensing defines the remote-sensing collaborator contract: a
// per-coordinate vegetation-change query that either yields a scalar
// metric or fails for that one project without affecting the batch.
package sensing

import "context"

// Sentinel is the reserved metric value written to tables and artifacts
// for projects with no usable sensing data. Inside the program a failed
// query is a tagged Result, not a magic float; the sentinel exists only
// at the file boundary for artifact compatibility.
const Sentinel = 999.0

// Result is the outcome of one change query.
type Result struct {
	Value      float64
	FailReason string
}

// Ok reports whether the query produced a usable metric.
func (r Result) Ok() bool { return r.FailReason == "" }

// Metric returns the value for successful results and Sentinel otherwise.
func (r Result) Metric() float64 {
	if !r.Ok() {
		return Sentinel
	}
	return r.Value
}

// Value wraps a successful measurement.
func Value(v float64) Result { return Result{Value: v} }

// Failure wraps a failed query with its reason (cloud cover, missing
// imagery, timeout, quota).
func Failure(reason string) Result { return Result{FailReason: reason} }

// Provider answers change queries. Implementations must treat each call
// as independent: a failure is reported in the Result, never as an
// aborting error.
type Provider interface {
	// Change returns the drop in mean vegetation index at (lat, lon)
	// between startYear and endYear. Positive values mean vegetation
	// loss, the signature of site preparation.
	Change(ctx context.Context, lat, lon float64, startYear, endYear int) Result
}
