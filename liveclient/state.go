// Package liveclient is the viewer-side contract for the live coordinator:
// a websocket client with an explicit connection state machine, a bounded
// reconnect loop, and automatic room re-join, since server-side room
// membership does not survive a transport reconnect.
package liveclient

// State is the viewer connection lifecycle:
// idle -> connecting -> connected <-> reconnecting -> connected | failed.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Event is an observed transport-level occurrence.
type Event int

const (
	// EventDial is the initial user-driven connect call.
	EventDial Event = iota
	// EventConnected fires on a successful dial, first or retried.
	EventConnected
	// EventServerClosed is a disconnect the client did not ask for; it is
	// transient and leads into the retry loop.
	EventServerClosed
	// EventClientClosed is a deliberate local Close. Terminal, no retry.
	EventClientClosed
	// EventDialFailed is a failed dial.
	EventDialFailed
	// EventRetry starts one reconnect attempt and increments the counter;
	// past maxAttempts it parks the machine in StateFailed instead.
	EventRetry
)

// Transition is the pure state function. attempts counts reconnect attempts
// since the last successful connect; it resets on EventConnected. StateFailed
// is terminal: the caller surfaces it instead of silently retrying forever.
func Transition(s State, ev Event, attempts, maxAttempts int) (State, int) {
	switch ev {
	case EventDial:
		if s == StateIdle {
			return StateConnecting, 0
		}
	case EventConnected:
		if s == StateConnecting || s == StateReconnecting {
			return StateConnected, 0
		}
	case EventServerClosed:
		if s == StateConnected {
			return StateReconnecting, attempts
		}
	case EventClientClosed:
		return StateIdle, attempts
	case EventDialFailed:
		if s == StateConnecting {
			return StateReconnecting, attempts
		}
	case EventRetry:
		if s == StateReconnecting {
			if attempts >= maxAttempts {
				return StateFailed, attempts
			}
			return StateReconnecting, attempts + 1
		}
	}
	return s, attempts
}
