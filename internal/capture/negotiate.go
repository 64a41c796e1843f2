package capture

import (
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sys/unix"

	"github.com/smazurov/framegrab/pkg/linuxav/v4l2"
)

// Negotiated is the device configuration settled during negotiation.
type Negotiated struct {
	Capability   v4l2.Capability
	Format       v4l2.PixFormat
	Config       Config
	TimePerFrame v4l2.Framerate
}

// Negotiator brings an open device into the requested capture format.
type Negotiator struct {
	drv      Driver
	strategy Strategy
	logger   *slog.Logger
}

// NewNegotiator creates a negotiator that validates I/O support against strategy.
func NewNegotiator(drv Driver, strategy Strategy, logger *slog.Logger) *Negotiator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Negotiator{drv: drv, strategy: strategy, logger: logger}
}

// QueryCapability checks the device captures video and supports the I/O
// method of the active strategy.
func (n *Negotiator) QueryCapability(dev *Device) (v4l2.Capability, error) {
	if !dev.IsOpen() {
		return v4l2.Capability{}, newError(KindUnsupportedDevice, "capability query failed", errDeviceClosed, nil)
	}
	ctx := map[string]any{"device": dev.Path()}

	capability, err := n.drv.QueryCapability(dev.FD())
	if err != nil {
		if errors.Is(err, unix.EINVAL) {
			return v4l2.Capability{}, newError(KindUnsupportedDevice, dev.Path()+" is not a V4L2 device", err, ctx)
		}
		return v4l2.Capability{}, newError(KindUnsupportedDevice, "capability query failed", err, ctx)
	}

	caps := capability.Effective()
	ctx["driver"] = capability.Driver
	ctx["capabilities"] = fmt.Sprintf("0x%08x", caps)

	if caps&v4l2.CapVideoCapture == 0 {
		return capability, newError(KindUnsupportedDevice, dev.Path()+" is not a video capture device", nil, ctx)
	}
	if !n.strategy.Supports(caps) {
		return capability, newError(KindUnsupportedIO,
			fmt.Sprintf("%s does not support %s I/O", dev.Path(), n.strategy.Name()), nil, ctx)
	}

	n.logger.Info("Device capabilities",
		"device", dev.Path(),
		"driver", capability.Driver,
		"card", capability.Card,
		"bus", capability.BusInfo)
	return capability, nil
}

// ApplyCropDefaults resets cropping to the default rectangle. Devices without
// cropping support are common, so every failure is ignored.
func (n *Negotiator) ApplyCropDefaults(dev *Device) {
	cc, err := n.drv.CropCapability(dev.FD())
	if err != nil {
		n.logger.Debug("Crop capability unavailable", "device", dev.Path(), "error", err)
		return
	}
	if err := n.drv.SetCrop(dev.FD(), cc.DefRect); err != nil {
		n.logger.Debug("Default crop not applied", "device", dev.Path(), "error", err)
	}
}

// SetFormat requests the configured geometry as progressive frames. The
// driver may adjust the request; the returned format is what it chose.
func (n *Negotiator) SetFormat(dev *Device, cfg Config) (v4l2.PixFormat, error) {
	if err := cfg.validateGeometry(); err != nil {
		return v4l2.PixFormat{}, err
	}

	req := v4l2.PixFormat{
		Width:       cfg.Width,
		Height:      cfg.Height,
		PixelFormat: uint32(cfg.PixelFormat),
		Field:       v4l2.FieldNone,
	}
	got, err := n.drv.SetFormat(dev.FD(), req)
	if err != nil {
		return v4l2.PixFormat{}, newError(KindFormatRejected,
			fmt.Sprintf("device refused %dx%d %s", cfg.Width, cfg.Height, cfg.PixelFormat), err,
			map[string]any{
				"device":       dev.Path(),
				"width":        cfg.Width,
				"height":       cfg.Height,
				"pixel_format": cfg.PixelFormat.String(),
			})
	}

	if got.Width != req.Width || got.Height != req.Height || got.PixelFormat != req.PixelFormat {
		n.logger.Warn("Driver adjusted capture format",
			"device", dev.Path(),
			"requested", fmt.Sprintf("%dx%d %s", req.Width, req.Height, v4l2.FormatFourCC(req.PixelFormat)),
			"negotiated", fmt.Sprintf("%dx%d %s", got.Width, got.Height, v4l2.FormatFourCC(got.PixelFormat)))
	}
	return got, nil
}

// NegotiateFrameTiming reads the streaming parameters and writes them back
// when the driver allows setting the frame interval.
func (n *Negotiator) NegotiateFrameTiming(dev *Device) (v4l2.Framerate, error) {
	ctx := map[string]any{"device": dev.Path()}

	parm, err := n.drv.GetStreamParm(dev.FD())
	if err != nil {
		return v4l2.Framerate{}, newError(KindTiming, "cannot read streaming parameters", err, ctx)
	}
	if parm.Capability&v4l2.CapTimePerFrame != 0 {
		if err := n.drv.SetStreamParm(dev.FD(), parm); err != nil {
			return v4l2.Framerate{}, newError(KindTiming, "cannot apply frame interval", err, ctx)
		}
	}
	return parm.TimePerFrame, nil
}

// Negotiate runs capability query, crop defaults, format and timing in order.
func (n *Negotiator) Negotiate(dev *Device, cfg Config) (Negotiated, error) {
	capability, err := n.QueryCapability(dev)
	if err != nil {
		return Negotiated{}, err
	}

	n.ApplyCropDefaults(dev)

	format, err := n.SetFormat(dev, cfg)
	if err != nil {
		return Negotiated{}, err
	}

	interval, err := n.NegotiateFrameTiming(dev)
	if err != nil {
		return Negotiated{}, err
	}

	negotiated := cfg
	negotiated.Width = format.Width
	negotiated.Height = format.Height
	negotiated.PixelFormat = PixelFormat(format.PixelFormat)

	n.logger.Info("Format negotiated",
		"device", dev.Path(),
		"width", format.Width,
		"height", format.Height,
		"format", v4l2.FormatFourCC(format.PixelFormat),
		"size_image", format.SizeImage,
		"fps", interval.FPS())

	return Negotiated{
		Capability:   capability,
		Format:       format,
		Config:       negotiated,
		TimePerFrame: interval,
	}, nil
}
