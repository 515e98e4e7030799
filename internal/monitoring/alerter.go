package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/docextract/internal/config"
	"github.com/sells-group/docextract/internal/model"
	"github.com/sells-group/docextract/internal/resilience"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertFailureRate AlertType = "job_failure_rate"
	AlertReviewRate  AlertType = "review_rate"
	AlertStuckJobs   AlertType = "stuck_jobs"
)

// minSample is the number of finished jobs (or results) below which rates
// are too noisy to alert on.
const minSample = 5

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter turns snapshots into alerts and delivers them to a webhook.
// Delivery retries on transient webhook failures.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
	retry  resilience.RetryConfig
}

// NewAlerter creates an Alerter for cfg.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		retry: resilience.RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: time.Second,
			MaxBackoff:     5 * time.Second,
		},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	finished := snap.JobsCompleted + snap.JobsFailed
	if finished >= minSample && snap.FailRate > a.cfg.FailureRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertFailureRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Job failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d finished in last %dh)",
				snap.FailRate*100, a.cfg.FailureRateThreshold*100,
				snap.JobsFailed, finished, snap.LookbackHours,
			),
			Details: map[string]any{
				"failure_rate":     snap.FailRate,
				"threshold":        a.cfg.FailureRateThreshold,
				"failed":           snap.JobsFailed,
				"finished":         finished,
				"failures_by_kind": snap.FailuresByKind,
				"retryable":        snap.RetryableFails,
			},
			Timestamp: now,
		})
	}

	if a.cfg.ReviewRateThreshold > 0 && snap.ResultsTotal >= minSample && snap.ReviewRate > a.cfg.ReviewRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertReviewRate,
			Severity: "medium",
			Message: fmt.Sprintf(
				"Review rate %.1f%% exceeds threshold %.1f%% (%d of %d results need review in last %dh)",
				snap.ReviewRate*100, a.cfg.ReviewRateThreshold*100,
				snap.ByConfidence[model.ConfidenceReviewRequired], snap.ResultsTotal, snap.LookbackHours,
			),
			Details: map[string]any{
				"review_rate":   snap.ReviewRate,
				"threshold":     a.cfg.ReviewRateThreshold,
				"by_confidence": snap.ByConfidence,
			},
			Timestamp: now,
		})
	}

	if len(snap.StuckJobs) > 0 {
		alerts = append(alerts, Alert{
			Type:     AlertStuckJobs,
			Severity: "high",
			Message: fmt.Sprintf(
				"%d job(s) stuck in a processing state for more than %dm",
				len(snap.StuckJobs), a.cfg.StuckJobThresholdMins,
			),
			Details: map[string]any{
				"job_ids": snap.StuckJobs,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts posts each alert to the webhook and returns how many were
// accepted. Failed deliveries are logged and skipped.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		log := zap.L().With(zap.String("alert", string(alert.Type)), zap.String("severity", alert.Severity))
		retry := a.retry
		retry.OnRetry = resilience.RetryLogger("webhook", "send alert")
		_, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, a.post(ctx, alert)
		})
		if err != nil {
			log.Error("monitoring: alert not delivered", zap.Error(err))
			continue
		}
		log.Info("monitoring: alert delivered")
		sent++
	}
	return sent
}

// post sends one alert. 5xx and 429 responses come back transient.
func (a *Alerter) post(ctx context.Context, alert Alert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: encode alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "monitoring: build webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: post webhook")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= http.StatusBadRequest {
		return resilience.WithStatus(
			eris.Errorf("monitoring: webhook status %d", resp.StatusCode),
			resp.StatusCode,
		)
	}
	return nil
}
