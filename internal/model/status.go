package model

import "fmt"

type ManagerState string

const (
	StateIdle    ManagerState = "idle"
	StateRunning ManagerState = "running"
	StatePaused  ManagerState = "paused"
)

var allowedTransitions = map[ManagerState]map[ManagerState]bool{
	StateIdle: {
		StateRunning: true,
	},
	StateRunning: {
		StatePaused: true,
		StateIdle:   true,
	},
	StatePaused: {
		StateRunning: true,
		StateIdle:    true, // cancel while suspended
	},
}

func CanTransition(from, to ManagerState) bool {
	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}

func Transition(state *ManagerState, to ManagerState) error {
	from := *state
	if !CanTransition(from, to) {
		return fmt.Errorf("invalid manager state transition: %q -> %q", from, to)
	}
	*state = to
	return nil
}
