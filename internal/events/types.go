package events

// Event type constants for kelindar/event.
const (
	TypeSessionStateChanged uint32 = iota + 1
	TypeFrameCaptured
	TypeCaptureError
	TypeDeviceDiscovery
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// SessionStateChangedEvent is published on every capture lifecycle transition.
type SessionStateChangedEvent struct {
	SessionID  string `json:"session_id,omitempty"`
	DevicePath string `json:"device_path"`
	From       string `json:"from"`
	To         string `json:"to"`
	Timestamp  string `json:"timestamp"`
}

// Type returns the event type identifier for SessionStateChangedEvent.
func (e SessionStateChangedEvent) Type() uint32 { return TypeSessionStateChanged }

// FrameCapturedEvent is published after a frame reached the sink.
type FrameCapturedEvent struct {
	SessionID   string `json:"session_id,omitempty"`
	DevicePath  string `json:"device_path"`
	Index       int    `json:"index"`
	BufferIndex uint32 `json:"buffer_index"`
	Bytes       uint32 `json:"bytes"`
	Sequence    uint32 `json:"sequence"`
	Timestamp   string `json:"timestamp"`
}

// Type returns the event type identifier for FrameCapturedEvent.
func (e FrameCapturedEvent) Type() uint32 { return TypeFrameCaptured }

// CaptureErrorEvent represents a failed capture session.
type CaptureErrorEvent struct {
	SessionID  string `json:"session_id,omitempty"`
	DevicePath string `json:"device_path"`
	Kind       string `json:"kind"`
	Phase      string `json:"phase,omitempty"`
	Error      string `json:"error"`
	Timestamp  string `json:"timestamp"`
}

// Type returns the event type identifier for CaptureErrorEvent.
func (e CaptureErrorEvent) Type() uint32 { return TypeCaptureError }

// DeviceDiscoveryEvent is published when a device node appears or disappears.
type DeviceDiscoveryEvent struct {
	DevicePath string `json:"device_path"`
	Action     string `json:"action"`
	Timestamp  string `json:"timestamp"`
}

// Type returns the event type identifier for DeviceDiscoveryEvent.
func (e DeviceDiscoveryEvent) Type() uint32 { return TypeDeviceDiscovery }
