// ABOUTME: Connection lifecycle states of the reconnecting stream client
// ABOUTME: Idle, Connecting, Streaming, then Closed or Failed before the next attempt
package client

type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateStreaming
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
