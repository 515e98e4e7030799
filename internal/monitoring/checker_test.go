package monitoring

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/docextract/internal/config"
	"github.com/sells-group/docextract/internal/model"
	storemocks "github.com/sells-group/docextract/internal/store/mocks"
)

func countingWebhook(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		received.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(ts.Close)
	return ts, &received
}

func stuckJobStore(t *testing.T) *storemocks.MockStore {
	st := storemocks.NewMockStore(t)
	st.On("ListJobs", mock.Anything, mock.Anything).Return([]model.ExtractionJob{
		{ID: "job-escritura-1", Status: model.JobStatusProcessingLLM, UpdatedAt: time.Now().Add(-time.Hour)},
	}, nil)
	st.On("CountResultsByConfidence", mock.Anything, mock.Anything).Return(nil, nil)
	return st
}

func TestChecker_RunStopsOnCancel(t *testing.T) {
	st := storemocks.NewMockStore(t)
	st.On("ListJobs", mock.Anything, mock.Anything).Return(nil, nil).Maybe()
	st.On("CountResultsByConfidence", mock.Anything, mock.Anything).Return(nil, nil).Maybe()

	cfg := config.MonitoringConfig{CheckIntervalSecs: 1, LookbackHours: 24}
	checker := NewChecker(NewCollector(st, time.Minute), NewAlerter(cfg), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		checker.Run(ctx)
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestChecker_RunChecksImmediately(t *testing.T) {
	ts, received := countingWebhook(t)
	cfg := config.MonitoringConfig{
		WebhookURL:        ts.URL,
		LookbackHours:     24,
		CheckIntervalSecs: 3600,
	}
	checker := NewChecker(NewCollector(stuckJobStore(t), 30*time.Minute), NewAlerter(cfg), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		checker.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return received.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	<-done
}

func TestChecker_DefaultInterval(t *testing.T) {
	st := storemocks.NewMockStore(t)
	checker := NewChecker(NewCollector(st, 0), NewAlerter(config.MonitoringConfig{}), config.MonitoringConfig{})
	assert.Equal(t, defaultCheckInterval, checker.interval)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	checker.Run(ctx)
}

func TestChecker_CheckSendsAlerts(t *testing.T) {
	ts, received := countingWebhook(t)
	cfg := config.MonitoringConfig{
		WebhookURL:            ts.URL,
		LookbackHours:         24,
		FailureRateThreshold:  0.10,
		StuckJobThresholdMins: 30,
	}
	checker := NewChecker(NewCollector(stuckJobStore(t), 30*time.Minute), NewAlerter(cfg), cfg)

	alerts := checker.Check(context.Background())
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertStuckJobs, alerts[0].Type)
	assert.Equal(t, int32(1), received.Load())
}

func TestChecker_CooldownSuppressesRepeats(t *testing.T) {
	ts, received := countingWebhook(t)
	cfg := config.MonitoringConfig{
		WebhookURL:        ts.URL,
		LookbackHours:     24,
		AlertCooldownMins: 60,
	}
	checker := NewChecker(NewCollector(stuckJobStore(t), 30*time.Minute), NewAlerter(cfg), cfg)
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	checker.now = func() time.Time { return now }

	require.Len(t, checker.Check(context.Background()), 1)
	require.Len(t, checker.Check(context.Background()), 1, "alert is still raised while suppressed")
	assert.Equal(t, int32(1), received.Load())

	now = now.Add(61 * time.Minute)
	checker.Check(context.Background())
	assert.Equal(t, int32(2), received.Load())
}

func TestChecker_NoCooldownResends(t *testing.T) {
	ts, received := countingWebhook(t)
	cfg := config.MonitoringConfig{WebhookURL: ts.URL, LookbackHours: 24}
	checker := NewChecker(NewCollector(stuckJobStore(t), 30*time.Minute), NewAlerter(cfg), cfg)

	checker.Check(context.Background())
	checker.Check(context.Background())
	assert.Equal(t, int32(2), received.Load())
}

func TestChecker_CheckCollectError(t *testing.T) {
	st := storemocks.NewMockStore(t)
	st.On("ListJobs", mock.Anything, mock.Anything).Return(nil, assert.AnError)

	cfg := config.MonitoringConfig{LookbackHours: 24}
	checker := NewChecker(NewCollector(st, 0), NewAlerter(cfg), cfg)

	assert.Nil(t, checker.Check(context.Background()))
}
