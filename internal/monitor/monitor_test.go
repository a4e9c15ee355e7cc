package monitor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

// fakeSource replays a fixed sequence of snapshots. The first call
// serves the seed fetch; the last snapshot repeats once exhausted.
type fakeSource struct {
	mu        sync.Mutex
	snapshots []Snapshot
	idx       int
}

func (f *fakeSource) Snapshot(ctx context.Context) Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.idx >= len(f.snapshots) {
		return f.snapshots[len(f.snapshots)-1]
	}
	s := f.snapshots[f.idx]
	f.idx++
	return s
}

// fakeNotifier records deliveries and optionally fails specific names.
type fakeNotifier struct {
	mu       sync.Mutex
	changes  []Change
	failFor  map[string]error
	attempts int
}

func (f *fakeNotifier) NotifyChange(ctx context.Context, c Change) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if err, ok := f.failFor[c.Name]; ok {
		return err
	}
	f.changes = append(f.changes, c)
	return nil
}

func (f *fakeNotifier) delivered() []Change {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Change, len(f.changes))
	copy(out, f.changes)
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// =============================================================================
// Startup Preconditions
// =============================================================================

func TestMonitor_Run_NoAudience(t *testing.T) {
	m := New(Config{
		Source:       &fakeSource{snapshots: []Snapshot{{}}},
		Notifier:     &fakeNotifier{},
		Interval:     time.Millisecond,
		AudienceSize: 0,
		Logger:       discardLogger(),
	})

	err := m.Run(context.Background())
	if !errors.Is(err, ErrNoAudience) {
		t.Fatalf("Run() = %v, want ErrNoAudience", err)
	}
	if m.State() != StateCreated {
		t.Errorf("State() = %v, want created (loop never entered)", m.State())
	}
}

func TestMonitor_Run_NonPositiveInterval(t *testing.T) {
	m := New(Config{
		Source:       &fakeSource{snapshots: []Snapshot{{}}},
		Notifier:     &fakeNotifier{},
		Interval:     0,
		AudienceSize: 1,
		Logger:       discardLogger(),
	})

	if err := m.Run(context.Background()); err == nil {
		t.Fatal("Run() = nil, want error for zero interval")
	}
}

// =============================================================================
// Cycle Behavior
// =============================================================================

// TestMonitor_DeliverySequence feeds the fetch sequence
// [{a:online}, {a:online}, {a:stopped}, {}] and expects deliveries only
// at cycle 3 (transition) and cycle 4 (removal), in that order.
// The first fetch is the seed, so cycles are offset by one.
func TestMonitor_DeliverySequence(t *testing.T) {
	src := &fakeSource{snapshots: []Snapshot{
		{"a": "online"}, // seed
		{"a": "online"}, // cycle 1: no change
		{"a": "online"}, // cycle 2: no change
		{"a": "stopped"}, // cycle 3: transition
		{},               // cycle 4: removal
	}}
	sink := &fakeNotifier{}

	ctx, cancel := context.WithCancel(context.Background())
	var cycleCount int
	done := make(chan struct{})

	m := New(Config{
		Source:       src,
		Notifier:     sink,
		Interval:     5 * time.Millisecond,
		AudienceSize: 1,
		Logger:       discardLogger(),
		Callbacks: Callbacks{
			OnCycle: func(snapshot Snapshot, changes []Change, elapsed time.Duration) {
				cycleCount++
				if cycleCount >= 4 {
					cancel()
				}
			},
		},
	})

	go func() {
		defer close(done)
		if err := m.Run(ctx); err != nil {
			t.Errorf("Run() = %v, want nil on cancellation", err)
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("monitor did not stop within 5s")
	}

	got := sink.delivered()
	if len(got) != 2 {
		t.Fatalf("delivered %d notifications, want 2: %v", len(got), got)
	}
	want0 := Change{Kind: ChangeTransition, Name: "a", Old: "online", New: "stopped"}
	// The removal's last-known label is the status from cycle 3's
	// snapshot, which had already replaced the seed.
	want1 := Change{Kind: ChangeRemoved, Name: "a", Old: "stopped"}
	if got[0] != want0 {
		t.Errorf("delivery[0] = %+v, want %+v", got[0], want0)
	}
	if got[1] != want1 {
		t.Errorf("delivery[1] = %+v, want %+v", got[1], want1)
	}
}

// TestMonitor_SeedSuppressesInitialState verifies no notifications are
// produced for processes already present at startup.
func TestMonitor_SeedSuppressesInitialState(t *testing.T) {
	src := &fakeSource{snapshots: []Snapshot{
		{"a": "online", "b": "online"},
	}}
	sink := &fakeNotifier{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	m := New(Config{
		Source:       src,
		Notifier:     sink,
		Interval:     5 * time.Millisecond,
		AudienceSize: 1,
		Logger:       discardLogger(),
		Callbacks: Callbacks{
			OnCycle: func(Snapshot, []Change, time.Duration) { cancel() },
		},
	})

	go func() {
		defer close(done)
		m.Run(ctx)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("monitor did not stop within 5s")
	}

	if got := sink.delivered(); len(got) != 0 {
		t.Errorf("delivered %d notifications at startup, want 0: %v", len(got), got)
	}
}

// TestMonitor_FailedDeliveryIsIsolated verifies one failing delivery in
// a cycle with several changes does not suppress the others.
func TestMonitor_FailedDeliveryIsIsolated(t *testing.T) {
	src := &fakeSource{snapshots: []Snapshot{
		{"a": "online", "b": "online", "c": "online"}, // seed
		{"a": "stopped", "b": "stopped", "c": "stopped"},
	}}
	sink := &fakeNotifier{failFor: map[string]error{"b": errors.New("slack down")}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	var failed []Change

	m := New(Config{
		Source:       src,
		Notifier:     sink,
		Interval:     5 * time.Millisecond,
		AudienceSize: 1,
		Logger:       discardLogger(),
		Callbacks: Callbacks{
			OnCycle: func(Snapshot, []Change, time.Duration) { cancel() },
			OnNotifyError: func(c Change, err error) {
				failed = append(failed, c)
			},
		},
	})

	go func() {
		defer close(done)
		if err := m.Run(ctx); err != nil {
			t.Errorf("Run() = %v, want nil (delivery failures must not abort the loop)", err)
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("monitor did not stop within 5s")
	}

	got := sink.delivered()
	if len(got) != 2 {
		t.Errorf("delivered %d notifications, want 2 despite one failure: %v", len(got), got)
	}
	for _, c := range got {
		if c.Name == "b" {
			t.Errorf("failing delivery %q reported as delivered", c.Name)
		}
	}
	if len(failed) != 1 || failed[0].Name != "b" {
		t.Errorf("OnNotifyError calls = %v, want exactly one for b", failed)
	}
}

// =============================================================================
// Lifecycle
// =============================================================================

func TestMonitor_CleanShutdown(t *testing.T) {
	src := &fakeSource{snapshots: []Snapshot{{"a": "online"}}}
	sink := &fakeNotifier{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	var transitions [][2]State
	m := New(Config{
		Source:       src,
		Notifier:     sink,
		Interval:     time.Millisecond,
		AudienceSize: 1,
		Logger:       discardLogger(),
		Callbacks: Callbacks{
			OnStateChange: func(oldState, newState State) {
				transitions = append(transitions, [2]State{oldState, newState})
			},
		},
	})

	go func() {
		defer close(done)
		if err := m.Run(ctx); err != nil {
			t.Errorf("Run() = %v, want nil", err)
		}
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("monitor did not stop within 5s")
	}

	if m.State() != StateStopped {
		t.Errorf("State() = %v, want stopped", m.State())
	}
	if !m.State().IsTerminal() {
		t.Error("stopped state should be terminal")
	}
	// No "stopped" notification on shutdown.
	if got := sink.delivered(); len(got) != 0 {
		t.Errorf("delivered %d notifications, want 0", len(got))
	}

	want := [][2]State{
		{StateCreated, StateRunning},
		{StateRunning, StateStopped},
	}
	if len(transitions) != len(want) {
		t.Fatalf("state transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition[%d] = %v, want %v", i, transitions[i], want[i])
		}
	}
}
