package monitor

// State represents the lifecycle state of a Monitor.
type State int

const (
	// StateCreated is the initial state before Run is called.
	StateCreated State = iota

	// StateRunning indicates the poll loop is active.
	StateRunning

	// StateStopped indicates the loop has exited. Terminal.
	StateStopped
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// IsTerminal returns true if the state is terminal.
func (s State) IsTerminal() bool {
	return s == StateStopped
}
