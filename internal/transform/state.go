package transform

import "redraft/internal/types"

// State is a stage of the escalation machine.
type State int

const (
	StateNormal State = iota
	StateStrict
	StateRelaxed
	StateFallback
)

func (s State) String() string {
	switch s {
	case StateNormal:
		return "NORMAL"
	case StateStrict:
		return "STRICT"
	case StateRelaxed:
		return "RELAXED"
	case StateFallback:
		return "FALLBACK"
	default:
		return "UNKNOWN"
	}
}

// transitions is the only way the machine moves. It never goes back.
var transitions = map[State]State{
	StateNormal:  StateStrict,
	StateStrict:  StateRelaxed,
	StateRelaxed: StateFallback,
}

// Next is the state after s. FALLBACK is terminal.
func (s State) Next() State {
	if n, ok := transitions[s]; ok {
		return n
	}
	return StateFallback
}

// CallsModel reports whether the state makes a model attempt.
func (s State) CallsModel() bool {
	_, ok := transitions[s]
	return ok
}

// IsLastAttempt reports whether s is the final model attempt.
func (s State) IsLastAttempt() bool {
	return s.CallsModel() && s.Next() == StateFallback
}

// Mode is the constraint strictness used for the state's prompt.
func (s State) Mode() types.StrictnessMode {
	switch s {
	case StateStrict:
		return types.ModeStrict
	case StateRelaxed:
		return types.ModeRelaxed
	default:
		return types.ModeNormal
	}
}

// MaxAttempts is the number of model calls before fallback.
func MaxAttempts() int {
	n := 0
	for s := StateNormal; s.CallsModel(); s = s.Next() {
		n++
	}
	return n
}
