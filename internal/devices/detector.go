// Package devices discovers V4L2 capture devices and describes what they
// can capture.
package devices

// DeviceType classifies a capture device.
type DeviceType int

// Device types.
const (
	DeviceTypeUnknown DeviceType = iota
	DeviceTypeWebcam
	DeviceTypeHDMI
)

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

// MarshalText renders the type by name in JSON output.
func (t DeviceType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// DeviceInfo represents information about a V4L2 device
type DeviceInfo struct {
	DevicePath string     `json:"device_path"`
	DeviceName string     `json:"device_name"`
	DeviceID   string     `json:"device_id"`
	Caps       uint32     `json:"caps"`
	Type       DeviceType `json:"type"`
	Ready      bool       `json:"ready"`
	// Signal is set for HDMI receivers, e.g. "locked 1920x1080@60.00".
	Signal string `json:"signal,omitempty"`
}

// FormatInfo represents information about a video format
type FormatInfo struct {
	PixelFormat uint32
	FormatName  string
	Emulated    bool
}

// Resolution represents a video resolution
type Resolution struct {
	Width  uint32
	Height uint32
}

// Framerate represents a video framerate
type Framerate struct {
	Numerator   uint32
	Denominator uint32
}

// FPS returns frames per second for the interval.
func (f Framerate) FPS() float64 {
	if f.Numerator == 0 {
		return 0
	}
	return float64(f.Denominator) / float64(f.Numerator)
}

// ModeInfo is one resolution with the frame rates it supports.
type ModeInfo struct {
	Resolution
	Framerates []Framerate
}

// FormatDetail is a format with every mode the device offers for it.
type FormatDetail struct {
	FormatInfo
	Modes []ModeInfo
}

// DeviceDetector provides device detection
type DeviceDetector interface {
	// FindDevices returns all currently available V4L2 capture devices
	FindDevices() ([]DeviceInfo, error)

	// GetDeviceFormats returns supported formats for a device
	GetDeviceFormats(devicePath string) ([]FormatInfo, error)

	// GetDevicePathByID returns the device path for a given device ID
	GetDevicePathByID(deviceID string) (string, error)

	// GetDeviceResolutions returns supported resolutions for a format
	GetDeviceResolutions(devicePath string, pixelFormat uint32) ([]Resolution, error)

	// GetDeviceFramerates returns supported framerates for a resolution
	GetDeviceFramerates(devicePath string, pixelFormat uint32, width, height uint32) ([]Framerate, error)
}

// NewDetector creates a device detector
func NewDetector() DeviceDetector {
	return newDetector()
}

// DescribeFormats walks formats, resolutions and frame rates of a device.
// Resolutions or frame rates a driver fails to enumerate are left empty.
func DescribeFormats(d DeviceDetector, devicePath string) ([]FormatDetail, error) {
	formats, err := d.GetDeviceFormats(devicePath)
	if err != nil {
		return nil, err
	}

	details := make([]FormatDetail, 0, len(formats))
	for _, f := range formats {
		detail := FormatDetail{FormatInfo: f}
		resolutions, err := d.GetDeviceResolutions(devicePath, f.PixelFormat)
		if err == nil {
			for _, r := range resolutions {
				rates, _ := d.GetDeviceFramerates(devicePath, f.PixelFormat, r.Width, r.Height)
				detail.Modes = append(detail.Modes, ModeInfo{Resolution: r, Framerates: rates})
			}
		}
		details = append(details, detail)
	}
	return details, nil
}
