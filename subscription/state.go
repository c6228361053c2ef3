package subscription

// State is the lifecycle position of one subscription.
//
//	Requested -> Active -> Unsubscribing -> Closed
//	Requested -> Failed
type State int32

const (
	StateRequested State = iota
	StateActive
	StateUnsubscribing
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateRequested:
		return "requested"
	case StateActive:
		return "active"
	case StateUnsubscribing:
		return "unsubscribing"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateClosed || s == StateFailed
}
