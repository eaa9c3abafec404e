package domain

import "fmt"

type Status string

const (
	Idle       Status = "idle"
	Converting Status = "converting"
	Success    Status = "success"
	Failed     Status = "error"
)

// CanTransition reports whether the workflow may move from one status to
// another. Idle is reachable from anywhere because selecting or clearing a
// file resets the workflow.
func CanTransition(from, to Status) bool {
	if to == Idle {
		switch from {
		case Idle, Converting, Success, Failed:
			return true
		}
		return false
	}

	switch from {
	case Idle, Success, Failed:
		return to == Converting
	case Converting:
		return to == Success || to == Failed
	default:
		return false
	}
}

func ValidateTransition(from, to Status) error {
	if from == to {
		return nil
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
