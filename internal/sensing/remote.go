package sensing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RemoteOptions configures the HTTP change-metric provider.
type RemoteOptions struct {
	Endpoint          string
	RequestsPerSecond float64
	MaxAttempts       int
	Timeout           time.Duration
}

// Remote queries an external Earth-observation service for the change
// metric. Requests are rate limited and retried with backoff; any
// terminal failure degrades to a failed Result for that project only.
type Remote struct {
	opts    RemoteOptions
	client  *http.Client
	limiter *rate.Limiter
}

// NewRemote builds a provider for the given endpoint.
func NewRemote(opts RemoteOptions) *Remote {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 2.0
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Remote{
		opts:    opts,
		client:  &http.Client{Timeout: opts.Timeout},
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
	}
}

type changeResponse struct {
	Change *float64 `json:"change"`
	Reason string   `json:"reason"`
}

// Change implements Provider.
func (r *Remote) Change(ctx context.Context, lat, lon float64, startYear, endYear int) Result {
	var lastErr error
	for attempt := 0; attempt < r.opts.MaxAttempts; attempt++ {
		if err := r.limiter.Wait(ctx); err != nil {
			return Failure(fmt.Sprintf("cancelled: %v", err))
		}

		res, err := r.query(ctx, lat, lon, startYear, endYear)
		if err == nil {
			return res
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}

		if attempt < r.opts.MaxAttempts-1 {
			delay := backoff(attempt)
			zap.L().Debug("sensing: retrying change query",
				zap.Float64("lat", lat),
				zap.Float64("lon", lon),
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay),
				zap.Error(err),
			)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return Failure(fmt.Sprintf("cancelled: %v", ctx.Err()))
			}
		}
	}
	zap.L().Warn("sensing: change query failed, degrading to sentinel",
		zap.Float64("lat", lat),
		zap.Float64("lon", lon),
		zap.Error(lastErr),
	)
	return Failure(fmt.Sprintf("query failed: %v", lastErr))
}

func (r *Remote) query(ctx context.Context, lat, lon float64, startYear, endYear int) (Result, error) {
	q := url.Values{}
	q.Set("lat", fmt.Sprintf("%f", lat))
	q.Set("lon", fmt.Sprintf("%f", lon))
	q.Set("start_year", fmt.Sprintf("%d", startYear))
	q.Set("end_year", fmt.Sprintf("%d", endYear))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.opts.Endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return Result{}, err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}

	var cr changeResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return Result{}, err
	}
	if cr.Change == nil {
		// The service answered but has no usable imagery for the point.
		reason := cr.Reason
		if reason == "" {
			reason = "no imagery"
		}
		return Failure(reason), nil
	}
	return Value(*cr.Change), nil
}

func backoff(attempt int) time.Duration {
	base := 500 * time.Millisecond << attempt
	jitter := time.Duration(rand.Int64N(int64(base) / 4))
	return base + jitter
}
