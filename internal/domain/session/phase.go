package session

// Phase represents the lifecycle state of a collection session. It enables
// tracking of the session from initialization through completion or failure.
type Phase string

const (
	// PhaseIdle indicates no run has started since the session was created
	// or reset.
	PhaseIdle Phase = "idle"

	// PhaseRunning indicates the collector is actively reporting progress.
	PhaseRunning Phase = "running"

	// PhaseCompleted indicates the run finished and the collected orders are
	// ready for export or invoice downloads.
	PhaseCompleted Phase = "completed"

	// PhaseError indicates the run stopped on a failure or a user
	// cancellation. A new Start recovers from this state.
	PhaseError Phase = "error"
)

func (p Phase) String() string { return string(p) }

// ParsePhase converts a string to a Phase. Unknown values map to the empty
// phase, which callers treat as "no phase hint".
func ParsePhase(s string) Phase {
	switch s {
	case "idle":
		return PhaseIdle
	case "running":
		return PhaseRunning
	case "completed":
		return PhaseCompleted
	case "error":
		return PhaseError
	default:
		return ""
	}
}

// IsTerminal reports whether the phase ends a run. Both terminal phases can
// still transition back to running via a new Start.
func (p Phase) IsTerminal() bool { return p == PhaseCompleted || p == PhaseError }

// validTransitions defines the allowed phase transitions. A session leaves
// idle when a run starts (or jumps straight to completed when reusing
// existing orders), and leaves a terminal phase only through a new run.
var validTransitions = map[Phase][]Phase{
	PhaseIdle:      {PhaseRunning, PhaseCompleted, PhaseError},
	PhaseRunning:   {PhaseCompleted, PhaseError},
	PhaseCompleted: {PhaseRunning, PhaseError},
	PhaseError:     {PhaseRunning, PhaseCompleted},
}

// CanTransitionTo validates if a phase transition is allowed.
func (p Phase) CanTransitionTo(target Phase) bool {
	if p == target {
		return true
	}
	allowed, exists := validTransitions[p]
	if !exists {
		return false
	}
	for _, a := range allowed {
		if target == a {
			return true
		}
	}
	return false
}

// ValidateTransition checks if a phase transition is valid and returns an
// error if not.
func (p Phase) ValidateTransition(target Phase) error {
	if !p.CanTransitionTo(target) {
		return newInvalidPhaseTransitionError(p, target)
	}
	return nil
}
