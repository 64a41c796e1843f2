//go:build linux

// Package v4l2 provides pure Go bindings to the Video4Linux2 (V4L2) API
// for device enumeration, format negotiation and memory-mapped streaming
// capture.
//
// This package does not use cgo, enabling simple cross-compilation for
// different Linux architectures (amd64, arm64, arm).
//
// # Device Enumeration
//
// Use FindDevices to discover all V4L2 video capture devices:
//
//	devices, err := v4l2.FindDevices()
//	for _, dev := range devices {
//	    fmt.Printf("%s: %s\n", dev.DevicePath, dev.DeviceName)
//	}
//
// # Format Queries
//
// Query supported formats, resolutions, and framerates:
//
//	formats, _ := v4l2.GetFormats("/dev/video0")
//	for _, f := range formats {
//	    resolutions, _ := v4l2.GetResolutions("/dev/video0", f.PixelFormat)
//	    for _, res := range resolutions {
//	        framerates, _ := v4l2.GetFramerates("/dev/video0", f.PixelFormat, res.Width, res.Height)
//	    }
//	}
//
// # Streaming Capture
//
// The capture functions operate on a raw file descriptor returned by Open.
// Every ioctl is retried when interrupted by a signal (EINTR), up to
// MaxIoctlAttempts attempts; any other errno is returned unchanged so callers
// can match it with errors.Is:
//
//	fd, _ := v4l2.Open("/dev/video0")
//	granted, _ := v4l2.RequestBuffers(fd, 4)
//	info, _ := v4l2.QueryBuffer(fd, 0)
//	mem, _ := v4l2.Mmap(fd, info.Offset, info.Length)
//	_ = v4l2.QueueBuffer(fd, 0)
//	_ = v4l2.StreamOn(fd)
//	ready, _ := v4l2.WaitReadable(fd, 2*time.Second)
//	if ready {
//	    filled, err := v4l2.DequeueBuffer(fd)
//	    if errors.Is(err, syscall.EAGAIN) {
//	        // not ready yet
//	    }
//	    _ = mem[:filled.BytesUsed]
//	}
//
// # HDMI Signal Detection
//
// For HDMI capture devices, check signal status:
//
//	status := v4l2.GetDVTimings("/dev/video0")
//	if status.State == v4l2.SignalStateLocked {
//	    fmt.Printf("Signal: %dx%d @ %.2f fps\n", status.Width, status.Height, status.FPS)
//	}
package v4l2
