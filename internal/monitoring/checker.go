package monitoring

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/docextract/internal/config"
)

const defaultCheckInterval = 5 * time.Minute

// Checker evaluates job health on a fixed interval and forwards alerts to
// the webhook. An alert type that already fired is held back until the
// cooldown passes.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	lookback  int
	interval  time.Duration
	cooldown  time.Duration
	now       func() time.Time

	mu       sync.Mutex
	lastSent map[AlertType]time.Time
}

// NewChecker creates a background alert checker.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	interval := time.Duration(cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = defaultCheckInterval
	}
	return &Checker{
		collector: collector,
		alerter:   alerter,
		lookback:  cfg.LookbackHours,
		interval:  interval,
		cooldown:  time.Duration(cfg.AlertCooldownMins) * time.Minute,
		now:       time.Now,
		lastSent:  make(map[AlertType]time.Time),
	}
}

// Run checks once immediately and then on every tick until ctx is done.
func (c *Checker) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("job monitor started",
		zap.Duration("interval", c.interval),
		zap.Int("lookback_hours", c.lookback),
		zap.Duration("cooldown", c.cooldown),
	)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		if ctx.Err() == nil {
			c.Check(ctx)
		}
		select {
		case <-ctx.Done():
			log.Info("job monitor stopped")
			return
		case <-ticker.C:
		}
	}
}

// Check takes one snapshot and returns the alerts it raised. Alerts still
// inside their cooldown are returned but not sent again.
func (c *Checker) Check(ctx context.Context) []Alert {
	log := zap.L().With(zap.String("component", "monitoring.checker"))

	snap, err := c.collector.Collect(ctx, c.lookback)
	if err != nil {
		log.Error("monitoring: collect snapshot", zap.Error(err))
		return nil
	}

	alerts := c.alerter.Evaluate(snap)
	if len(alerts) == 0 {
		log.Debug("monitoring: pipeline healthy",
			zap.Int("jobs", snap.JobsTotal),
			zap.Int("results", snap.ResultsTotal),
		)
		return nil
	}

	due := c.due(alerts)
	sent := c.alerter.SendAlerts(ctx, due)
	log.Info("monitoring: alerts raised",
		zap.Int("raised", len(alerts)),
		zap.Int("suppressed", len(alerts)-len(due)),
		zap.Int("sent", sent),
	)
	return alerts
}

// due filters out alert types sent within the cooldown and stamps the rest.
func (c *Checker) due(alerts []Alert) []Alert {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var out []Alert
	for _, a := range alerts {
		if last, ok := c.lastSent[a.Type]; ok && c.cooldown > 0 && now.Sub(last) < c.cooldown {
			continue
		}
		c.lastSent[a.Type] = now
		out = append(out, a)
	}
	return out
}
