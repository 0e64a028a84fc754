package cycle

// State is the scheduler's position within a tick.
type State int32

const (
	StateIdle State = iota
	StateRefilling
	StateDraining
	StatePublishing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRefilling:
		return "refilling"
	case StateDraining:
		return "draining"
	case StatePublishing:
		return "publishing"
	default:
		return "unknown"
	}
}
