// Package monitoring collects job health metrics and raises webhook alerts
// when failure, review or stuck-job thresholds are crossed.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/docextract/internal/model"
	"github.com/sells-group/docextract/internal/store"
)

// MetricsSnapshot holds a point-in-time view of extraction health.
type MetricsSnapshot struct {
	// Job metrics (created within the lookback window).
	JobsTotal      int                     `json:"jobs_total"`
	JobsPending    int                     `json:"jobs_pending"`
	JobsProcessing int                     `json:"jobs_processing"`
	JobsCompleted  int                     `json:"jobs_completed"`
	JobsFailed     int                     `json:"jobs_failed"`
	FailRate       float64                 `json:"fail_rate"`
	FailuresByKind map[model.ErrorKind]int `json:"failures_by_kind,omitempty"`
	RetryableFails int                     `json:"retryable_failures"`
	StuckJobs      []string                `json:"stuck_jobs,omitempty"`

	// Result metrics (created within the lookback window).
	ResultsTotal int                          `json:"results_total"`
	ByConfidence map[model.ConfidenceTier]int `json:"by_confidence"`
	ReviewRate   float64                      `json:"review_rate"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Collector gathers metrics from the store.
type Collector struct {
	store      store.Store
	stuckAfter time.Duration
	now        func() time.Time
}

// NewCollector creates a new metrics collector. Jobs that have not left a
// non-terminal state for stuckAfter are reported as stuck; zero disables
// the check.
func NewCollector(st store.Store, stuckAfter time.Duration) *Collector {
	return &Collector{store: st, stuckAfter: stuckAfter, now: time.Now}
}

// Collect gathers a snapshot of job metrics over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := c.now().UTC()
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}
	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)

	jobs, err := c.store.ListJobs(ctx, store.JobFilter{
		CreatedAfter: cutoff,
		Limit:        10000,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list jobs")
	}

	snap.JobsTotal = len(jobs)
	for _, j := range jobs {
		switch j.Status {
		case model.JobStatusPending:
			snap.JobsPending++
		case model.JobStatusProcessingTextract, model.JobStatusProcessingLLM:
			snap.JobsProcessing++
		case model.JobStatusCompleted:
			snap.JobsCompleted++
		case model.JobStatusFailed:
			snap.JobsFailed++
			if j.ErrorDetails != nil {
				if snap.FailuresByKind == nil {
					snap.FailuresByKind = make(map[model.ErrorKind]int)
				}
				snap.FailuresByKind[j.ErrorDetails.Kind]++
				if j.ErrorDetails.Retryable {
					snap.RetryableFails++
				}
			}
		}
		if c.stuckAfter > 0 && !j.Status.IsTerminal() && now.Sub(j.UpdatedAt) > c.stuckAfter {
			snap.StuckJobs = append(snap.StuckJobs, j.ID)
		}
	}
	if finished := snap.JobsCompleted + snap.JobsFailed; finished > 0 {
		snap.FailRate = float64(snap.JobsFailed) / float64(finished)
	}

	counts, err := c.store.CountResultsByConfidence(ctx, cutoff)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: count results by confidence")
	}
	snap.ByConfidence = counts
	for _, n := range counts {
		snap.ResultsTotal += n
	}
	if snap.ResultsTotal > 0 {
		snap.ReviewRate = float64(counts[model.ConfidenceReviewRequired]) / float64(snap.ResultsTotal)
	}

	return snap, nil
}
