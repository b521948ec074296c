package installer

import "fmt"

// Stage is a step of one installation attempt. Stages only move forward.
type Stage int

const (
	StageIdle Stage = iota
	StageResolving
	StageDownloading
	StageExtracting
	StagePermissionFixing
	StageFinalizing
	StageDone
	// StageFailed is terminal and reachable from any non-terminal stage.
	StageFailed
)

// String returns the string representation of the stage
func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageResolving:
		return "resolving"
	case StageDownloading:
		return "downloading"
	case StageExtracting:
		return "extracting"
	case StagePermissionFixing:
		return "permission-fixing"
	case StageFinalizing:
		return "finalizing"
	case StageDone:
		return "done"
	case StageFailed:
		return "failed"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Terminal reports whether no further transition is allowed.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageFailed
}

// Machine tracks the stage of one attempt. It is not safe for concurrent use;
// the pipeline is sequential.
type Machine struct {
	current  Stage
	failedAt Stage
}

// NewMachine returns a machine in StageIdle.
func NewMachine() *Machine {
	return &Machine{}
}

// Stage returns the current stage.
func (m *Machine) Stage() Stage {
	return m.current
}

// FailedAt returns the stage that was active when Fail was called.
func (m *Machine) FailedAt() Stage {
	return m.failedAt
}

// Advance moves to next. Stages may be skipped but never re-entered, and
// StageFailed is only reachable through Fail.
func (m *Machine) Advance(next Stage) error {
	if m.current.Terminal() {
		return fmt.Errorf("invalid transition %s -> %s: %s is terminal", m.current, next, m.current)
	}
	if next == StageFailed || next <= m.current || next > StageDone {
		return fmt.Errorf("invalid transition %s -> %s", m.current, next)
	}
	m.current = next
	return nil
}

// Fail moves to StageFailed and returns the stage the failure happened in.
// Failing an already failed machine keeps the original stage.
func (m *Machine) Fail() Stage {
	if m.current != StageFailed {
		m.failedAt = m.current
		m.current = StageFailed
	}
	return m.failedAt
}
