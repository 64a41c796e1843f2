package capture

import (
	"errors"
	"fmt"
)

// Kind classifies a capture failure.
type Kind string

// Failure kinds.
const (
	KindNotADevice          Kind = "NOT_A_DEVICE"
	KindOpen                Kind = "OPEN_ERROR"
	KindUnsupportedDevice   Kind = "UNSUPPORTED_DEVICE"
	KindUnsupportedIO       Kind = "UNSUPPORTED_IO"
	KindInvalidConfig       Kind = "INVALID_CONFIG"
	KindFormatRejected      Kind = "FORMAT_REJECTED"
	KindTiming              Kind = "TIMING_ERROR"
	KindMappingUnsupported  Kind = "MAPPING_UNSUPPORTED"
	KindInsufficientBuffers Kind = "INSUFFICIENT_BUFFERS"
	KindMapFailed           Kind = "MAP_FAILED"
	KindStreamOnFailed      Kind = "STREAM_ON_FAILED"
	KindWaitFailed          Kind = "WAIT_FAILED"
	KindDeviceStalled       Kind = "DEVICE_STALLED"
	KindReadFrameFailed     Kind = "READ_FRAME_FAILED"
	KindCorruptIndex        Kind = "CORRUPT_INDEX"
	KindSinkFailed          Kind = "SINK_FAILED"
	KindRequeueFailed       Kind = "REQUEUE_FAILED"
	KindStreamOffFailed     Kind = "STREAM_OFF_FAILED"
	KindUnmapFailed         Kind = "UNMAP_FAILED"
	KindClose               Kind = "CLOSE_ERROR"
)

// Phase is the lifecycle step a failure belongs to.
type Phase string

// Lifecycle phases.
const (
	PhaseOpen      Phase = "open"
	PhaseNegotiate Phase = "negotiate"
	PhaseMap       Phase = "map"
	PhaseStream    Phase = "stream"
	PhaseCapture   Phase = "capture"
	PhaseTeardown  Phase = "teardown"
)

var phaseOf = map[Kind]Phase{
	KindNotADevice:          PhaseOpen,
	KindOpen:                PhaseOpen,
	KindUnsupportedDevice:   PhaseNegotiate,
	KindUnsupportedIO:       PhaseNegotiate,
	KindInvalidConfig:       PhaseNegotiate,
	KindFormatRejected:      PhaseNegotiate,
	KindTiming:              PhaseNegotiate,
	KindMappingUnsupported:  PhaseMap,
	KindInsufficientBuffers: PhaseMap,
	KindMapFailed:           PhaseMap,
	KindStreamOnFailed:      PhaseStream,
	KindStreamOffFailed:     PhaseStream,
	KindWaitFailed:          PhaseCapture,
	KindDeviceStalled:       PhaseCapture,
	KindReadFrameFailed:     PhaseCapture,
	KindCorruptIndex:        PhaseCapture,
	KindSinkFailed:          PhaseCapture,
	KindRequeueFailed:       PhaseCapture,
	KindUnmapFailed:         PhaseTeardown,
	KindClose:               PhaseTeardown,
}

// Sentinels for errors.Is. Any *Error matches the sentinel of its Kind.
var (
	ErrNotADevice          = &Error{Kind: KindNotADevice}
	ErrOpen                = &Error{Kind: KindOpen}
	ErrUnsupportedDevice   = &Error{Kind: KindUnsupportedDevice}
	ErrUnsupportedIO       = &Error{Kind: KindUnsupportedIO}
	ErrInvalidConfig       = &Error{Kind: KindInvalidConfig}
	ErrFormatRejected      = &Error{Kind: KindFormatRejected}
	ErrTiming              = &Error{Kind: KindTiming}
	ErrMappingUnsupported  = &Error{Kind: KindMappingUnsupported}
	ErrInsufficientBuffers = &Error{Kind: KindInsufficientBuffers}
	ErrMapFailed           = &Error{Kind: KindMapFailed}
	ErrStreamOnFailed      = &Error{Kind: KindStreamOnFailed}
	ErrWaitFailed          = &Error{Kind: KindWaitFailed}
	ErrDeviceStalled       = &Error{Kind: KindDeviceStalled}
	ErrReadFrameFailed     = &Error{Kind: KindReadFrameFailed}
	ErrCorruptIndex        = &Error{Kind: KindCorruptIndex}
	ErrSinkFailed          = &Error{Kind: KindSinkFailed}
	ErrRequeueFailed       = &Error{Kind: KindRequeueFailed}
	ErrStreamOffFailed     = &Error{Kind: KindStreamOffFailed}
	ErrUnmapFailed         = &Error{Kind: KindUnmapFailed}
	ErrClose               = &Error{Kind: KindClose}
)

// ErrNotStreaming is returned when the capture loop runs on a stopped stream.
var ErrNotStreaming = errors.New("capture: stream is not running")

// Error is a classified capture failure.
type Error struct {
	Kind    Kind           `json:"kind"`
	Phase   Phase          `json:"phase"`
	Message string         `json:"message"`
	Context map[string]any `json:"context,omitempty"`
	Cause   error          `json:"cause,omitempty"`
}

func newError(kind Kind, message string, cause error, context map[string]any) *Error {
	return &Error{
		Kind:    kind,
		Phase:   phaseOf[kind],
		Message: message,
		Context: context,
		Cause:   cause,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s: %v", e.Kind, e.Phase, msg, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Kind, e.Phase, msg)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// HasKind checks if the error matches a specific kind.
func (e *Error) HasKind(kind Kind) bool {
	return e.Kind == kind
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return "", false
}
