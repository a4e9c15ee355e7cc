package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/oteiza/pm2watch/internal/monitor"
	"github.com/oteiza/pm2watch/internal/pm2"
	"github.com/oteiza/pm2watch/internal/stats"
)

// maxRecentChanges bounds the change log shown in the dashboard.
const maxRecentChanges = 8

// =============================================================================
// Messages
// =============================================================================

// TickMsg is sent periodically to trigger a poll.
type TickMsg time.Time

// pollResultMsg carries one completed fetch back into the update loop.
// The fetch itself runs inside a tea.Cmd so a slow PM2 never blocks key
// handling.
type pollResultMsg struct {
	procs   []pm2.Process
	elapsed time.Duration
}

// QuitMsg signals the TUI should exit.
type QuitMsg struct{}

// =============================================================================
// Model
// =============================================================================

// ProcessSource provides the current PM2 process list.
type ProcessSource interface {
	List(ctx context.Context) []pm2.Process
}

// recentChange is one entry in the dashboard's change log.
type recentChange struct {
	at     time.Time
	change monitor.Change
}

// Model represents the TUI state. The TUI drives its own polls through
// the source; it never shares snapshot state with the monitor loop.
type Model struct {
	// Configuration
	pm2Binary   string
	metricsAddr string
	interval    time.Duration

	// Poll source
	source ProcessSource

	// Degraded-fetch counter (optional, wired from the pm2 client)
	emptyFetches func() int64

	// Current state
	procs         []pm2.Process
	prev          monitor.Snapshot
	seeded        bool
	recentChanges []recentChange
	latency       *stats.LatencyTracker
	startTime     time.Time
	lastUpdate    time.Time
	paused        bool

	// Display options
	width  int
	height int

	quitting bool
}

// Config holds TUI configuration.
type Config struct {
	PM2Binary    string
	MetricsAddr  string
	Interval     time.Duration
	Source       ProcessSource
	EmptyFetches func() int64 // optional
}

// New creates a new TUI model.
func New(cfg Config) Model {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return Model{
		pm2Binary:    cfg.PM2Binary,
		metricsAddr:  cfg.MetricsAddr,
		interval:     interval,
		source:       cfg.Source,
		emptyFetches: cfg.EmptyFetches,
		latency:      stats.NewLatencyTracker(),
		startTime:    time.Now(),
		lastUpdate:   time.Now(),
		width:        80,
		height:       24,
	}
}

// =============================================================================
// Bubble Tea Interface
// =============================================================================

// Init initializes the model. The first poll is issued immediately so
// the dashboard does not sit empty for a full interval.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.pollCmd(), m.tickCmd())
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "p":
			m.paused = !m.paused
			return m, nil
		case "r":
			// Force refresh
			return m, m.pollCmd()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case TickMsg:
		if m.paused {
			return m, m.tickCmd()
		}
		return m, tea.Batch(m.pollCmd(), m.tickCmd())

	case pollResultMsg:
		m = m.applyPoll(msg)
		return m, nil

	case QuitMsg:
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	return m.renderDashboard()
}

// =============================================================================
// Polling
// =============================================================================

// pollCmd fetches the process list off the update loop and delivers the
// result as a message.
func (m Model) pollCmd() tea.Cmd {
	source := m.source
	interval := m.interval
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), interval)
		defer cancel()

		start := time.Now()
		procs := source.List(ctx)
		return pollResultMsg{procs: procs, elapsed: time.Since(start)}
	}
}

// applyPoll folds one fetch result into the model: records poll latency
// and diffs against the previous snapshot. The first result seeds the
// snapshot without producing change entries.
func (m Model) applyPoll(msg pollResultMsg) Model {
	m.latency.Record(msg.elapsed)

	procs := msg.procs
	curr := make(monitor.Snapshot, len(procs))
	for _, p := range procs {
		curr[p.Name] = p.Status
	}

	if m.seeded {
		now := time.Now()
		for _, c := range monitor.Diff(m.prev, curr) {
			m.recentChanges = append(m.recentChanges, recentChange{at: now, change: c})
		}
		if n := len(m.recentChanges); n > maxRecentChanges {
			m.recentChanges = m.recentChanges[n-maxRecentChanges:]
		}
	}

	m.procs = procs
	m.prev = curr
	m.seeded = true
	m.lastUpdate = time.Now()
	return m
}

// tickCmd returns a command that sends a tick after the poll interval.
func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// =============================================================================
// Accessors
// =============================================================================

// Elapsed returns the time since the dashboard started.
func (m Model) Elapsed() time.Duration {
	return time.Since(m.startTime)
}

// ProcessCount returns the number of processes in the last poll.
func (m Model) ProcessCount() int {
	return len(m.procs)
}

// OnlineCount returns how many processes are online.
func (m Model) OnlineCount() int {
	n := 0
	for _, p := range m.procs {
		if p.Status == pm2.StatusOnline {
			n++
		}
	}
	return n
}

// EmptyFetches returns the degraded-fetch count, or zero when unwired.
func (m Model) EmptyFetches() int64 {
	if m.emptyFetches == nil {
		return 0
	}
	return m.emptyFetches()
}

// =============================================================================
// Helper for external use
// =============================================================================

// SendQuit sends a quit message to the TUI.
func SendQuit(p *tea.Program) {
	if p != nil {
		p.Send(QuitMsg{})
	}
}

// =============================================================================
// Formatting Helpers (used by view.go)
// =============================================================================

// formatDuration formats a duration as HH:MM:SS.
func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// formatMs formats a duration as milliseconds.
func formatMs(d time.Duration) string {
	ms := d.Milliseconds()
	if ms == 0 && d > 0 {
		return fmt.Sprintf("%d µs", d.Microseconds())
	}
	return fmt.Sprintf("%d ms", ms)
}

// formatBytes formats bytes with KB/MB/GB suffixes.
func formatBytes(n int64) string {
	if n >= 1_000_000_000 {
		return fmt.Sprintf("%.2f GB", float64(n)/1_000_000_000)
	}
	if n >= 1_000_000 {
		return fmt.Sprintf("%.2f MB", float64(n)/1_000_000)
	}
	if n >= 1_000 {
		return fmt.Sprintf("%.2f KB", float64(n)/1_000)
	}
	return fmt.Sprintf("%d B", n)
}
