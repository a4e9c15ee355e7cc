package monitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Source provides the current process snapshot. The pm2 client is the
// production implementation; it degrades to an empty snapshot on fetch
// failure rather than returning an error.
type Source interface {
	Snapshot(ctx context.Context) Snapshot
}

// Notifier delivers one notification per change. Rendering the change
// into chat text is the implementation's concern, not the monitor's.
// A delivery failure applies to that single call only.
type Notifier interface {
	NotifyChange(ctx context.Context, c Change) error
}

// Callbacks contains optional hooks invoked by the Monitor.
type Callbacks struct {
	// OnStateChange is called when the monitor's lifecycle state changes.
	OnStateChange func(oldState, newState State)

	// OnCycle is called after each completed poll cycle.
	OnCycle func(snapshot Snapshot, changes []Change, elapsed time.Duration)

	// OnNotifyError is called when a single delivery fails.
	OnNotifyError func(c Change, err error)
}

// ErrNoAudience is returned by Run when no notification audience is
// configured. This is a startup precondition, not a runtime fault.
var ErrNoAudience = errors.New("monitor: no notification audience configured")

// Monitor owns the polling cadence and the previous-snapshot state.
//
// The previous snapshot is owned exclusively by the running loop: it is
// seeded once on entry, replaced wholesale after each diff, and never
// shared with command handlers.
type Monitor struct {
	source    Source
	notifier  Notifier
	interval  time.Duration
	audience  int // configured audience size, checked at startup
	logger    *slog.Logger
	callbacks Callbacks

	state   State
	stateMu sync.RWMutex
}

// Config holds configuration for creating a Monitor.
type Config struct {
	Source   Source
	Notifier Notifier

	// Interval is the poll cadence. Must be positive.
	Interval time.Duration

	// AudienceSize is the number of configured notification recipients.
	// Run refuses to start when it is zero.
	AudienceSize int

	Logger    *slog.Logger
	Callbacks Callbacks
}

// New creates a Monitor.
func New(cfg Config) *Monitor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		source:    cfg.Source,
		notifier:  cfg.Notifier,
		interval:  cfg.Interval,
		audience:  cfg.AudienceSize,
		logger:    logger,
		callbacks: cfg.Callbacks,
		state:     StateCreated,
	}
}

// State returns the monitor's current lifecycle state.
func (m *Monitor) State() State {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.state
}

// Run executes the poll loop until ctx is cancelled.
//
// On entry it performs one fetch to seed the previous snapshot; no
// notifications are produced for processes already present at startup.
// Each subsequent cycle sleeps for the interval, fetches, diffs, and
// delivers one notification per change. Delivery failures are logged
// and counted but never abort the remaining deliveries or the loop.
//
// Cancellation is cooperative: checked between cycles, never mid-fetch.
// A cancelled run returns nil; this is clean shutdown, not a fault.
func (m *Monitor) Run(ctx context.Context) error {
	if m.audience == 0 {
		return ErrNoAudience
	}
	if m.interval <= 0 {
		return errors.New("monitor: poll interval must be positive")
	}

	prev := m.source.Snapshot(ctx)
	m.setState(StateRunning)
	m.logger.Info("monitor_started",
		"interval", m.interval.String(),
		"processes", len(prev),
	)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.setState(StateStopped)
			m.logger.Info("monitor_stopped", "reason", "context_cancelled")
			return nil
		case <-ticker.C:
		}

		start := time.Now()
		curr := m.source.Snapshot(ctx)
		changes := Diff(prev, curr)

		for _, c := range changes {
			m.logger.Info("change_detected",
				"kind", c.Kind.String(),
				"process", c.Name,
				"old", c.Old,
				"new", c.New,
			)
			if err := m.notifier.NotifyChange(ctx, c); err != nil {
				// One failed delivery must not starve the rest of the
				// cycle's notifications.
				m.logger.Warn("notify_failed",
					"process", c.Name,
					"kind", c.Kind.String(),
					"error", err,
				)
				if m.callbacks.OnNotifyError != nil {
					m.callbacks.OnNotifyError(c, err)
				}
			}
		}

		prev = curr

		if m.callbacks.OnCycle != nil {
			m.callbacks.OnCycle(curr, changes, time.Since(start))
		}
	}
}

func (m *Monitor) setState(newState State) {
	m.stateMu.Lock()
	oldState := m.state
	m.state = newState
	m.stateMu.Unlock()

	if m.callbacks.OnStateChange != nil && oldState != newState {
		m.callbacks.OnStateChange(oldState, newState)
	}
}
