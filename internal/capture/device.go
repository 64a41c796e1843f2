package capture

import (
	"errors"
	"log/slog"
)

const closedFD = -1

// Device is an open capture node. The descriptor is valid only between
// OpenDevice and Close.
type Device struct {
	drv    Driver
	path   string
	fd     int
	logger *slog.Logger
}

// OpenDevice opens path in non-blocking read/write mode. The node must be a
// character device; no capability check happens here.
func OpenDevice(drv Driver, path string, logger *slog.Logger) (*Device, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ctx := map[string]any{"device": path}

	isChar, err := drv.IsCharDevice(path)
	if err != nil {
		return nil, newError(KindOpen, "cannot identify device", err, ctx)
	}
	if !isChar {
		return nil, newError(KindNotADevice, path+" is not a character device", nil, ctx)
	}

	fd, err := drv.Open(path)
	if err != nil {
		return nil, newError(KindOpen, "cannot open device", err, ctx)
	}

	logger.Debug("Device opened", "device", path, "fd", fd)
	return &Device{drv: drv, path: path, fd: fd, logger: logger}, nil
}

// Close releases the descriptor. The handle is marked closed even when the
// close call fails; closing a closed handle is a no-op.
func (d *Device) Close() error {
	if d == nil || d.fd == closedFD {
		return nil
	}
	fd := d.fd
	d.fd = closedFD

	if err := d.drv.Close(fd); err != nil {
		return newError(KindClose, "cannot close device", err, map[string]any{"device": d.path})
	}
	d.logger.Debug("Device closed", "device", d.path)
	return nil
}

// Path returns the node path the device was opened from.
func (d *Device) Path() string { return d.path }

// FD returns the descriptor, or -1 once closed.
func (d *Device) FD() int { return d.fd }

// IsOpen reports whether the descriptor is still held.
func (d *Device) IsOpen() bool { return d.fd != closedFD }

var errDeviceClosed = errors.New("device is closed")
