//go:build linux

package v4l2

import "time"

// DeviceInfo contains information about a V4L2 device.
type DeviceInfo struct {
	DevicePath string
	DeviceName string
	DeviceID   string // Stable identifier (from /dev/v4l/by-id/ or synthetic)
	Caps       uint32
}

// FormatInfo contains information about a supported pixel format.
type FormatInfo struct {
	PixelFormat uint32
	FormatName  string
	Emulated    bool
}

// Resolution represents a supported video resolution.
type Resolution struct {
	Width  uint32
	Height uint32
}

// Framerate represents a frame interval as a fraction of a second.
type Framerate struct {
	Numerator   uint32
	Denominator uint32
}

// FPS returns the framerate as frames per second.
func (f Framerate) FPS() float64 {
	if f.Numerator == 0 {
		return 0
	}
	return float64(f.Denominator) / float64(f.Numerator)
}

// Capability is the result of VIDIOC_QUERYCAP.
type Capability struct {
	Driver       string
	Card         string
	BusInfo      string
	Version      uint32
	Capabilities uint32
	DeviceCaps   uint32
}

// Effective returns the capabilities of the opened node. When the driver
// fills device_caps those describe the node; capabilities then describes the
// whole physical device.
func (c Capability) Effective() uint32 {
	if c.Capabilities&CapDeviceCaps != 0 {
		return c.DeviceCaps
	}
	return c.Capabilities
}

// Rect is a crop or bounds rectangle.
type Rect struct {
	Left   int32
	Top    int32
	Width  uint32
	Height uint32
}

// CropCap describes the cropping limits of a device.
type CropCap struct {
	Bounds      Rect
	DefRect     Rect
	PixelAspect Framerate
}

// PixFormat is the single-planar capture format.
type PixFormat struct {
	Width        uint32
	Height       uint32
	PixelFormat  uint32
	Field        uint32
	BytesPerLine uint32
	SizeImage    uint32
	Colorspace   uint32
}

// StreamParm holds the capture streaming parameters.
type StreamParm struct {
	Capability   uint32
	CaptureMode  uint32
	TimePerFrame Framerate
	ExtendedMode uint32
	ReadBuffers  uint32
}

// BufferInfo describes one kernel buffer as reported by QUERYBUF or DQBUF.
type BufferInfo struct {
	Index     uint32
	BytesUsed uint32
	Flags     uint32
	Field     uint32
	Sequence  uint32
	Length    uint32
	Offset    uint32
	Timestamp time.Duration
}

// DeviceType represents the type of V4L2 device.
type DeviceType int

// Device types.
const (
	DeviceTypeWebcam  DeviceType = 0
	DeviceTypeHDMI    DeviceType = 1
	DeviceTypeUnknown DeviceType = -1
)

// String returns a short label for listings.
func (t DeviceType) String() string {
	switch t {
	case DeviceTypeWebcam:
		return "webcam"
	case DeviceTypeHDMI:
		return "hdmi"
	default:
		return "unknown"
	}
}

// SignalState represents the state of a video signal.
type SignalState int

// Signal states.
const (
	SignalStateNoDevice     SignalState = -1
	SignalStateNoLink       SignalState = 0 // No cable connected
	SignalStateNoSignal     SignalState = 1 // Cable connected, no signal
	SignalStateUnstable     SignalState = 2 // Signal present but unstable
	SignalStateLocked       SignalState = 3 // Signal locked and stable
	SignalStateOutOfRange   SignalState = 4 // Signal out of supported range
	SignalStateNotSupported SignalState = 5 // Device doesn't support DV timings
)

// SignalStatus contains detailed signal information.
type SignalStatus struct {
	State      SignalState
	Width      uint32
	Height     uint32
	FPS        float64
	Interlaced bool
}

// DeviceStatus contains combined device type and ready status.
type DeviceStatus struct {
	DeviceType DeviceType
	Ready      bool
}

// Capability flags.
const (
	CapVideoCapture = 0x00000001
	CapReadWrite    = 0x01000000
	CapStreaming    = 0x04000000
	CapDeviceCaps   = 0x80000000
)

// CapTimePerFrame is set in StreamParm.Capability when the frame interval
// can be changed.
const CapTimePerFrame = 0x1000

// Format flags.
const (
	fmtFlagEmulated = 0x0002
)

// Pixel formats.
const (
	PixFmtJPEG    = 0x4745504A // 'JPEG'
	PixFmtMJPEG   = 0x47504A4D // 'MJPG'
	PixFmtYUYV    = 0x56595559 // 'YUYV'
	PixFmtSRGGB10 = 0x30314752 // 'RG10'
	PixFmtSGBRG10 = 0x30314247 // 'GB10'
	PixFmtH264    = 0x34363248 // 'H264'
	PixFmtHEVC    = 0x43564548 // 'HEVC'
	PixFmtNV12    = 0x3231564E // 'NV12'
)

// Field orders.
const (
	FieldAny  = 0
	FieldNone = 1
)

// Frame size types.
const (
	frmsizeTypeDiscrete   = 1
	frmsizeTypeContinuous = 2
	frmsizeTypeStepwise   = 3
)

// Frame interval types.
const (
	frmivalTypeDiscrete   = 1
	frmivalTypeContinuous = 2
	frmivalTypeStepwise   = 3
)

// Buffer types and memory models.
const (
	BufTypeVideoCapture = 1
	MemoryMmap          = 1
)
