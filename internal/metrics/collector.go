// Package metrics provides Prometheus metrics for pm2watch.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/oteiza/pm2watch/internal/monitor"
	"github.com/oteiza/pm2watch/internal/stats"
)

// --- Build / configuration info ---
var (
	watchInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pm2watch_info",
			Help: "Information about this pm2watch instance (value always 1)",
		},
		[]string{"version", "pm2_binary"},
	)

	watchPollIntervalSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pm2watch_poll_interval_seconds",
			Help: "Configured poll interval",
		},
	)
)

// --- Poll loop ---
var (
	watchPollCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pm2watch_poll_cycles_total",
			Help: "Completed poll cycles",
		},
	)

	watchPollDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pm2watch_poll_duration_seconds",
			Help:    "Duration of one fetch-diff-notify cycle",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	watchEmptyFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pm2watch_empty_fetches_total",
			Help: "Fetches degraded to an empty snapshot, by reason",
		},
		[]string{"reason"},
	)

	watchProcesses = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pm2watch_processes",
			Help: "Processes observed in the latest snapshot",
		},
	)

	watchProcessStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pm2watch_processes_by_status",
			Help: "Processes in the latest snapshot, by status label",
		},
		[]string{"status"},
	)
)

// --- Change events & notifications ---
var (
	watchChangeEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pm2watch_change_events_total",
			Help: "Detected status changes, by kind",
		},
		[]string{"kind"},
	)

	watchNotificationsSentTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pm2watch_notifications_sent_total",
			Help: "Notifications delivered to the audience",
		},
	)

	watchNotificationFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pm2watch_notification_failures_total",
			Help: "Notification deliveries that failed",
		},
	)
)

// --- Command execution ---
var (
	watchCommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pm2watch_commands_total",
			Help: "Shell command executions, by outcome",
		},
		[]string{"outcome"}, // ok, failed, timeout
	)

	watchCommandDurationP50 = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pm2watch_command_duration_p50_seconds",
			Help: "Command execution 50th percentile",
		},
	)

	watchCommandDurationP95 = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pm2watch_command_duration_p95_seconds",
			Help: "Command execution 95th percentile",
		},
	)

	watchCommandDurationP99 = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pm2watch_command_duration_p99_seconds",
			Help: "Command execution 99th percentile",
		},
	)
)

// --- Slack transport ---
var (
	watchSlackCommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pm2watch_slack_commands_total",
			Help: "Slash command invocations, by command",
		},
		[]string{"command"},
	)

	watchSlackUnauthorizedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pm2watch_slack_unauthorized_total",
			Help: "Slash command invocations rejected by the allow-list",
		},
	)
)

// Collector manages all Prometheus metrics for pm2watch.
type Collector struct {
	commandLatency *stats.LatencyTracker

	// Status labels seen so far, so stale gauge series can be zeroed
	// when a status disappears from the fleet.
	mu           sync.Mutex
	seenStatuses map[string]struct{}
}

// CollectorConfig holds configuration for the collector.
type CollectorConfig struct {
	Version        string
	PM2Binary      string
	PollInterval   time.Duration
	CommandLatency *stats.LatencyTracker
}

// NewCollector creates a collector registered on the default registry.
func NewCollector(cfg CollectorConfig) *Collector {
	return NewCollectorWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewCollectorWithRegistry creates a collector with a custom registry.
// Useful for testing.
func NewCollectorWithRegistry(cfg CollectorConfig, registry prometheus.Registerer) *Collector {
	c := &Collector{
		commandLatency: cfg.CommandLatency,
		seenStatuses:   make(map[string]struct{}),
	}

	registry.MustRegister(
		watchInfo,
		watchPollIntervalSeconds,
		watchPollCyclesTotal,
		watchPollDurationSeconds,
		watchEmptyFetchesTotal,
		watchProcesses,
		watchProcessStatus,
		watchChangeEventsTotal,
		watchNotificationsSentTotal,
		watchNotificationFailuresTotal,
		watchCommandsTotal,
		watchCommandDurationP50,
		watchCommandDurationP95,
		watchCommandDurationP99,
		watchSlackCommandsTotal,
		watchSlackUnauthorizedTotal,
	)

	watchInfo.WithLabelValues(cfg.Version, cfg.PM2Binary).Set(1)
	watchPollIntervalSeconds.Set(cfg.PollInterval.Seconds())

	return c
}

// RecordCycle updates poll metrics after one completed cycle.
func (c *Collector) RecordCycle(snapshot monitor.Snapshot, changes []monitor.Change, elapsed time.Duration) {
	watchPollCyclesTotal.Inc()
	watchPollDurationSeconds.Observe(elapsed.Seconds())
	watchProcesses.Set(float64(len(snapshot)))

	counts := make(map[string]int, 4)
	for _, status := range snapshot {
		counts[status]++
	}

	c.mu.Lock()
	for status := range counts {
		c.seenStatuses[status] = struct{}{}
	}
	for status := range c.seenStatuses {
		watchProcessStatus.WithLabelValues(status).Set(float64(counts[status]))
	}
	c.mu.Unlock()

	for _, ch := range changes {
		watchChangeEventsTotal.WithLabelValues(ch.Kind.String()).Inc()
	}
}

// RecordEmptyFetch counts a fetch that degraded to an empty snapshot.
func (c *Collector) RecordEmptyFetch(reason string) {
	watchEmptyFetchesTotal.WithLabelValues(reason).Inc()
}

// RecordNotification counts one delivery attempt.
func (c *Collector) RecordNotification(ok bool) {
	if ok {
		watchNotificationsSentTotal.Inc()
	} else {
		watchNotificationFailuresTotal.Inc()
	}
}

// RecordCommand counts one command execution and refreshes the latency
// percentile gauges from the tracker.
func (c *Collector) RecordCommand(d time.Duration, succeeded, timedOut bool) {
	outcome := "ok"
	switch {
	case timedOut:
		outcome = "timeout"
	case !succeeded:
		outcome = "failed"
	}
	watchCommandsTotal.WithLabelValues(outcome).Inc()

	if c.commandLatency != nil {
		c.commandLatency.Record(d)
		snap := c.commandLatency.Snapshot()
		watchCommandDurationP50.Set(snap.P50.Seconds())
		watchCommandDurationP95.Set(snap.P95.Seconds())
		watchCommandDurationP99.Set(snap.P99.Seconds())
	}
}

// RecordSlackCommand counts one slash command invocation.
func (c *Collector) RecordSlackCommand(name string) {
	watchSlackCommandsTotal.WithLabelValues(name).Inc()
}

// RecordUnauthorized counts one allow-list rejection.
func (c *Collector) RecordUnauthorized() {
	watchSlackUnauthorizedTotal.Inc()
}
