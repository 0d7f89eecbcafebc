package turn

import (
	"fmt"
	"strings"
)

// State is the lifecycle position of one turn.
type State int32

const (
	StateIdle State = iota
	StateValidating
	StateEchoed
	StatePending
	StateResolved
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateEchoed:
		return "echoed"
	case StatePending:
		return "pending"
	case StateResolved:
		return "resolved"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// OverlapPolicy decides what happens when a turn is submitted while another
// is still in flight.
type OverlapPolicy string

const (
	// OverlapAllow runs turns concurrently; replies may interleave.
	OverlapAllow OverlapPolicy = "allow"
	// OverlapReject refuses a submit while a turn is in flight.
	OverlapReject OverlapPolicy = "reject"
	// OverlapQueue echoes at once but dispatches and reveals one turn at a time.
	OverlapQueue OverlapPolicy = "queue"
)

// ParseOverlapPolicy accepts allow, reject or queue. Empty means allow.
func ParseOverlapPolicy(raw string) (OverlapPolicy, error) {
	switch p := OverlapPolicy(strings.ToLower(strings.TrimSpace(raw))); p {
	case "":
		return OverlapAllow, nil
	case OverlapAllow, OverlapReject, OverlapQueue:
		return p, nil
	default:
		return "", fmt.Errorf("unknown overlap policy %q", raw)
	}
}

// IsSubmitKey reports whether a key press submits the input: Enter without Shift.
func IsSubmitKey(key string, shift bool) bool {
	return !shift && strings.EqualFold(key, "enter")
}
