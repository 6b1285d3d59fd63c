package probe

import "fmt"

// State is the lifecycle position of a probe. States only move forward.
type State int

const (
	StateUnbound State = iota
	StateBound
	StateHeartbeatSent
	StateAckWait
	StateListening
	StateClosed
)

var stateNames = [...]string{
	StateUnbound:       "UNBOUND",
	StateBound:         "BOUND",
	StateHeartbeatSent: "HEARTBEAT_SENT",
	StateAckWait:       "ACK_WAIT",
	StateListening:     "LISTENING",
	StateClosed:        "CLOSED",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// transition checks that to lies ahead of from.
func transition(from, to State) error {
	if to <= from {
		return fmt.Errorf("illegal probe state transition %s -> %s", from, to)
	}
	return nil
}
