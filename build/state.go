package build

import (
	"fmt"
)

// State is the orchestrator's lifecycle position.  Transitions only move
// forward; Failed is terminal and the staging directory is discarded on the
// way in.
type State int

const (
	Idle State = iota
	Staging
	Validating
	Promoting
	Promoted
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Staging:
		return "staging"
	case Validating:
		return "validating"
	case Promoting:
		return "promoting"
	case Promoted:
		return "promoted"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

// legalTransitions encodes the state machine edges.
var legalTransitions = map[State][]State{
	Idle:       {Staging},
	Staging:    {Validating, Failed},
	Validating: {Promoting, Failed},
	Promoting:  {Promoted, Failed},
}

func (s State) canTransitionTo(next State) bool {
	for _, t := range legalTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}
