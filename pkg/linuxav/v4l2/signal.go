//go:build linux

package v4l2

import (
	"errors"
	"unsafe"

	"golang.org/x/sys/unix"
)

// GetDeviceStatus returns the combined device type and ready status.
func GetDeviceStatus(devicePath string) DeviceStatus {
	status := DeviceStatus{
		DeviceType: DeviceTypeUnknown,
		Ready:      false,
	}

	fd, err := open(devicePath)
	if err != nil {
		return status
	}
	defer close(fd)

	capability, err := QueryCapability(fd)
	if err != nil {
		return status
	}

	// DV timings answer (or fail with link/lock errors) only on HDMI receivers
	timings := v4l2DVTimings{}
	err = ioctl(fd, vidiocGDVTimings, unsafe.Pointer(&timings))

	if err == nil || errors.Is(err, unix.ENOLINK) || errors.Is(err, unix.ENOLCK) {
		status.DeviceType = DeviceTypeHDMI
		status.Ready = err == nil && timingsLocked(&timings.bt)
		return status
	}

	if capability.Driver == "uvcvideo" {
		status.DeviceType = DeviceTypeWebcam
	}

	// Openable and queryable is as ready as a non-HDMI node gets
	status.Ready = true
	return status
}

// GetDVTimings returns the current DV timings and signal status for HDMI devices.
func GetDVTimings(devicePath string) SignalStatus {
	status := SignalStatus{
		State: SignalStateNoDevice,
	}

	fd, err := open(devicePath)
	if err != nil {
		return status
	}
	defer close(fd)

	timings := v4l2DVTimings{}
	err = ioctl(fd, vidiocGDVTimings, unsafe.Pointer(&timings))

	if err == nil {
		if timingsLocked(&timings.bt) {
			status.State = SignalStateLocked
			status.Width = timings.bt.width
			status.Height = timings.bt.height
			status.FPS = calculateFPS(&timings.bt)
			status.Interlaced = timings.bt.interlaced != 0
		} else {
			status.State = SignalStateNoSignal
		}
		return status
	}

	switch {
	case errors.Is(err, unix.ENOLINK):
		status.State = SignalStateNoLink
	case errors.Is(err, unix.ENOLCK):
		status.State = SignalStateUnstable
	case errors.Is(err, unix.ERANGE):
		status.State = SignalStateOutOfRange
	case errors.Is(err, unix.ENOTTY):
		status.State = SignalStateNotSupported
	default:
		status.State = SignalStateNoSignal
	}

	return status
}

func timingsLocked(bt *v4l2BTTimings) bool {
	return bt.width > 0 && bt.height > 0 && bt.pixelclock() > 0
}

// calculateFPS calculates the frame rate from DV timings.
func calculateFPS(bt *v4l2BTTimings) float64 {
	pixelclock := bt.pixelclock()
	if pixelclock == 0 {
		return 0
	}

	totalWidth := uint64(bt.width + bt.hfrontporch + bt.hsync + bt.hbackporch)
	totalHeight := uint64(bt.height + bt.vfrontporch + bt.vsync + bt.vbackporch)

	if bt.interlaced != 0 {
		totalHeight /= 2
	}

	if totalWidth == 0 || totalHeight == 0 {
		return 0
	}

	return float64(pixelclock) / float64(totalWidth*totalHeight)
}
