package capture

// State is the lifecycle position of a Session.
type State string

// Session states.
const (
	StateClosed     State = "closed"
	StateOpened     State = "opened"
	StateConfigured State = "configured"
	StateMapped     State = "mapped"
	StateStreaming  State = "streaming"
	StateStopped    State = "stopped"
)

// StreamState is the position of a Streamer.
type StreamState string

// Streamer states.
const (
	StreamStopped   StreamState = "stopped"
	StreamStreaming StreamState = "streaming"
)

// BufferState tracks who owns a buffer's contents.
type BufferState int

// Buffer states.
const (
	BufferFree   BufferState = iota // owned by the application, not queued
	BufferQueued                    // handed to the driver
	BufferFilled                    // dequeued with a frame, not yet requeued
)

func (s BufferState) String() string {
	switch s {
	case BufferFree:
		return "free"
	case BufferQueued:
		return "queued"
	case BufferFilled:
		return "filled"
	default:
		return "invalid"
	}
}
