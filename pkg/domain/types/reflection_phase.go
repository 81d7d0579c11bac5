package types

// ReflectionPhase is the state of the metabolism state machine. A
// reflection run walks the phases in order and returns to idle.
type ReflectionPhase string

const (
	PhaseIdle         ReflectionPhase = "IDLE"
	PhaseGathering    ReflectionPhase = "GATHERING"
	PhaseSynthesizing ReflectionPhase = "SYNTHESIZING"
	PhaseAssociating  ReflectionPhase = "ASSOCIATING"
	PhasePromoting    ReflectionPhase = "PROMOTING"
	PhaseForgetting   ReflectionPhase = "FORGETTING"
)

// AllReflectionPhases returns the phases in execution order, starting and
// ending with PhaseIdle omitted
func AllReflectionPhases() []ReflectionPhase {
	return []ReflectionPhase{
		PhaseGathering,
		PhaseSynthesizing,
		PhaseAssociating,
		PhasePromoting,
		PhaseForgetting,
	}
}

// IsValid checks if the reflection phase is valid
func (p ReflectionPhase) IsValid() bool {
	switch p {
	case PhaseIdle, PhaseGathering, PhaseSynthesizing, PhaseAssociating, PhasePromoting, PhaseForgetting:
		return true
	default:
		return false
	}
}

// String returns the string representation of the reflection phase
func (p ReflectionPhase) String() string {
	return string(p)
}
