package handover

import "fmt"

// coordinatorState represents a two state machine. It has a single
// transition:
// Active → ShuttingDown
//
// ShuttingDown is terminal for the lifetime of the process.
type coordinatorState string

const (
	// Active is the initial state. The coordinator broadcasts its startup
	// time and watches for a newer instance.
	coordinatorStateActive coordinatorState = "active"
	// ShuttingDown is the state of a coordinator that has seen a newer
	// instance and started draining.
	coordinatorStateShuttingDown coordinatorState = "shutting-down"
)

var validTransitions = map[coordinatorState][]coordinatorState{
	coordinatorStateActive: {
		coordinatorStateShuttingDown,
	},
	coordinatorStateShuttingDown: {},
}

func (s *coordinatorState) canTransitionTo(state coordinatorState) error {
	validTargets := validTransitions[*s]

	for _, target := range validTargets {
		if target == state {
			return nil
		}
	}
	return fmt.Errorf("unable to transition from %s to %s", *s, state)
}

func (s *coordinatorState) transitionTo(state coordinatorState) error {
	if err := s.canTransitionTo(state); err != nil {
		return err
	}
	*s = state
	return nil
}
