package capture

import (
	"fmt"

	"github.com/smazurov/framegrab/pkg/linuxav/v4l2"
)

// PixelFormat is a V4L2 fourcc the capture core accepts.
type PixelFormat uint32

// Supported pixel formats.
const (
	PixelFormatMJPEG   PixelFormat = v4l2.PixFmtJPEG
	PixelFormatYUYV    PixelFormat = v4l2.PixFmtYUYV
	PixelFormatSRGGB10 PixelFormat = v4l2.PixFmtSRGGB10
	PixelFormatSGBRG10 PixelFormat = v4l2.PixFmtSGBRG10
)

// Supported reports whether p is one of the known capture formats.
func (p PixelFormat) Supported() bool {
	switch p {
	case PixelFormatMJPEG, PixelFormatYUYV, PixelFormatSRGGB10, PixelFormatSGBRG10:
		return true
	}
	return false
}

func (p PixelFormat) String() string {
	switch p {
	case PixelFormatMJPEG:
		return "MJPEG"
	case PixelFormatYUYV:
		return "YUYV 4:2:2"
	case PixelFormatSRGGB10:
		return "SRGGB10"
	case PixelFormatSGBRG10:
		return "SGBRG10"
	}
	return v4l2.FormatFourCC(uint32(p))
}

// Config describes what to capture.
type Config struct {
	Width       uint32
	Height      uint32
	PixelFormat PixelFormat
	Frames      int
}

func (c Config) validateGeometry() error {
	ctx := map[string]any{"width": c.Width, "height": c.Height, "pixel_format": uint32(c.PixelFormat)}
	switch {
	case c.Width == 0 || c.Height == 0:
		return newError(KindInvalidConfig, fmt.Sprintf("resolution %dx%d must be positive", c.Width, c.Height), nil, ctx)
	case c.PixelFormat == 0:
		return newError(KindInvalidConfig, "pixel format is not set", nil, ctx)
	case !c.PixelFormat.Supported():
		return newError(KindInvalidConfig, fmt.Sprintf("unsupported pixel format %s", c.PixelFormat), nil, ctx)
	}
	return nil
}

// Validate checks geometry, pixel format and frame count.
func (c Config) Validate() error {
	if err := c.validateGeometry(); err != nil {
		return err
	}
	if c.Frames < 1 {
		return newError(KindInvalidConfig, fmt.Sprintf("frame count %d must be at least 1", c.Frames), nil,
			map[string]any{"frames": c.Frames})
	}
	return nil
}
