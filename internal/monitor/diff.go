// Package monitor implements the polling loop at the heart of pm2watch:
// fetch a process snapshot, diff it against the previous one, and hand
// each detected change to a notifier.
package monitor

import "fmt"

// Snapshot is a point-in-time mapping of process name to status label.
// Built fresh each poll and never mutated after the fact.
type Snapshot map[string]string

// ChangeKind discriminates the variants of a Change.
type ChangeKind int

const (
	// ChangeTransition is a process whose status label changed.
	ChangeTransition ChangeKind = iota

	// ChangeRemoved is a process present before and gone now.
	ChangeRemoved

	// ChangeAdded is a process absent before and present now.
	ChangeAdded
)

// String returns a human-readable name for the change kind.
func (k ChangeKind) String() string {
	switch k {
	case ChangeTransition:
		return "transition"
	case ChangeRemoved:
		return "removed"
	case ChangeAdded:
		return "added"
	default:
		return "unknown"
	}
}

// Change is one detected difference between two snapshots.
//
// Field use by kind: Transition sets Old and New; Removed sets Old (the
// last known label); Added sets New.
type Change struct {
	Kind ChangeKind
	Name string
	Old  string
	New  string
}

// String renders the change for logs.
func (c Change) String() string {
	switch c.Kind {
	case ChangeTransition:
		return fmt.Sprintf("%s: %s -> %s", c.Name, c.Old, c.New)
	case ChangeRemoved:
		return fmt.Sprintf("%s: removed (was %s)", c.Name, c.Old)
	case ChangeAdded:
		return fmt.Sprintf("%s: added (%s)", c.Name, c.New)
	default:
		return c.Name
	}
}

// Diff computes the changes between two snapshots.
//
// Every name in the union of both key sets yields at most one change:
// a Transition if present in both with differing labels, a Removed if
// present only in prev, an Added if present only in curr. Names present
// in both with equal labels yield nothing.
//
// Transitions come first, then removals, then additions. Order within
// each group follows map iteration and is not guaranteed; display
// ordering is the caller's concern.
//
// Pure function: no I/O, no mutation of either input.
func Diff(prev, curr Snapshot) []Change {
	var changes []Change

	for name, status := range curr {
		old, ok := prev[name]
		if ok && old != status {
			changes = append(changes, Change{
				Kind: ChangeTransition,
				Name: name,
				Old:  old,
				New:  status,
			})
		}
	}

	for name, old := range prev {
		if _, ok := curr[name]; !ok {
			changes = append(changes, Change{
				Kind: ChangeRemoved,
				Name: name,
				Old:  old,
			})
		}
	}

	for name, status := range curr {
		if _, ok := prev[name]; !ok {
			changes = append(changes, Change{
				Kind: ChangeAdded,
				Name: name,
				New:  status,
			})
		}
	}

	return changes
}
