// Package worker implements the paced periodic worker thread (a frame
// driver distinct from the thread pool's task workers) and the worker
// commutator that lets any code route a closure onto a specific named
// worker.
package worker

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// PacingPolicy controls how a Thread's run loop paces itself against its
// target frame time.
type PacingPolicy int

const (
	// DontCare runs the frame function back to back with no pacing.
	DontCare PacingPolicy = iota
	// Strict yields the goroutine (runtime.Gosched) and re-checks the
	// clock in a tight loop until the target frame time has elapsed.
	Strict
	// CPUSleep sleeps for the whole remaining frame budget and records
	// how far that sleep overshot ("stolen time"). A later frame whose
	// remaining budget is smaller than the stolen time skips its sleep
	// and deducts the budget from it; a sleep is never shortened.
	CPUSleep
)

func (p PacingPolicy) String() string {
	switch p {
	case DontCare:
		return "DONT_CARE"
	case Strict:
		return "STRICT"
	case CPUSleep:
		return "CPU_SLEEP"
	default:
		return "UNKNOWN"
	}
}

// NoFrameLimit is the target frame time used when no pacing is desired.
const NoFrameLimit = time.Duration(1<<63 - 1)

// MarshalYAML renders a PacingPolicy as its symbolic name
// (DONT_CARE/STRICT/CPU_SLEEP) so EngineConfig's YAML stays readable.
func (p PacingPolicy) MarshalYAML() (interface{}, error) {
	return p.String(), nil
}

// UnmarshalYAML accepts the same symbolic names.
func (p *PacingPolicy) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	switch s {
	case "DONT_CARE":
		*p = DontCare
	case "STRICT":
		*p = Strict
	case "CPU_SLEEP":
		*p = CPUSleep
	default:
		return fmt.Errorf("worker: unknown pacing policy %q", s)
	}
	return nil
}
