package devices

import (
	"fmt"
	"os"
	"strings"
)

// Stable symlink directories maintained by udev.
var (
	byIDDir   = "/dev/v4l/by-id/"
	byPathDir = "/dev/v4l/by-path/"
)

// ResolveDevicePath converts a device argument to a node path. Paths are
// returned unchanged; stable IDs are looked up in the udev symlink trees and
// finally among the enumerated devices.
func ResolveDevicePath(d DeviceDetector, device string) (string, error) {
	// If it's already a path, use it directly
	if strings.HasPrefix(device, "/") || strings.HasPrefix(device, ".") {
		return device, nil
	}

	// Try by-id first (for USB devices)
	if strings.HasPrefix(device, "usb-") {
		devicePath := byIDDir + device
		if _, err := os.Stat(devicePath); err == nil {
			return devicePath, nil
		}
	}

	// Try by-path (for platform devices and USB devices without by-id)
	if strings.HasPrefix(device, "platform-") || strings.HasPrefix(device, "usb-") || strings.HasPrefix(device, "pci-") {
		devicePath := byPathDir + device
		if _, err := os.Stat(devicePath); err == nil {
			return devicePath, nil
		}
	}

	if d != nil {
		if devicePath, err := d.GetDevicePathByID(device); err == nil {
			return devicePath, nil
		}
	}

	return "", fmt.Errorf("no device found for ID: %s", device)
}
