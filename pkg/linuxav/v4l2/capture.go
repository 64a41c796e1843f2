//go:build linux

package v4l2

import (
	"math"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Open opens a V4L2 node read/write in non-blocking mode.
func Open(path string) (int, error) {
	return open(path)
}

// Close closes a descriptor returned by Open.
func Close(fd int) error {
	return close(fd)
}

// IsCharDevice reports whether path is a character-special node.
// The stat error is returned unchanged (ENOENT for a missing node).
func IsCharDevice(path string) (bool, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return false, err
	}
	return st.Mode&unix.S_IFMT == unix.S_IFCHR, nil
}

// QueryCapability issues VIDIOC_QUERYCAP.
func QueryCapability(fd int) (Capability, error) {
	c := v4l2Capability{}
	if err := ioctl(fd, vidiocQuerycap, unsafe.Pointer(&c)); err != nil {
		return Capability{}, err
	}
	return Capability{
		Driver:       cstr(c.driver[:]),
		Card:         cstr(c.card[:]),
		BusInfo:      cstr(c.busInfo[:]),
		Version:      c.version,
		Capabilities: c.capabilities,
		DeviceCaps:   c.deviceCaps,
	}, nil
}

// CropCapability issues VIDIOC_CROPCAP for the capture queue.
func CropCapability(fd int) (CropCap, error) {
	cc := v4l2Cropcap{typ: BufTypeVideoCapture}
	if err := ioctl(fd, vidiocCropcap, unsafe.Pointer(&cc)); err != nil {
		return CropCap{}, err
	}
	return CropCap{
		Bounds:      fromRect(cc.bounds),
		DefRect:     fromRect(cc.defrect),
		PixelAspect: Framerate{Numerator: cc.pixelaspect.numerator, Denominator: cc.pixelaspect.denominator},
	}, nil
}

// SetCrop issues VIDIOC_S_CROP for the capture queue.
func SetCrop(fd int, r Rect) error {
	crop := v4l2Crop{
		typ: BufTypeVideoCapture,
		c:   v4l2Rect{left: r.Left, top: r.Top, width: r.Width, height: r.Height},
	}
	return ioctl(fd, vidiocSCrop, unsafe.Pointer(&crop))
}

// SetFormat issues VIDIOC_S_FMT and returns the format the driver settled on,
// which may differ from the request.
func SetFormat(fd int, pf PixFormat) (PixFormat, error) {
	f := v4l2Format{
		typ: BufTypeVideoCapture,
		pix: v4l2PixFormat{
			width:        pf.Width,
			height:       pf.Height,
			pixelformat:  pf.PixelFormat,
			field:        pf.Field,
			bytesperline: pf.BytesPerLine,
			sizeimage:    pf.SizeImage,
			colorspace:   pf.Colorspace,
		},
	}
	if err := ioctl(fd, vidiocSFmt, unsafe.Pointer(&f)); err != nil {
		return PixFormat{}, err
	}
	return fromPixFormat(f.pix), nil
}

// GetFormat issues VIDIOC_G_FMT for the capture queue.
func GetFormat(fd int) (PixFormat, error) {
	f := v4l2Format{typ: BufTypeVideoCapture}
	if err := ioctl(fd, vidiocGFmt, unsafe.Pointer(&f)); err != nil {
		return PixFormat{}, err
	}
	return fromPixFormat(f.pix), nil
}

// GetStreamParm issues VIDIOC_G_PARM for the capture queue.
func GetStreamParm(fd int) (StreamParm, error) {
	p := v4l2Streamparm{typ: BufTypeVideoCapture}
	if err := ioctl(fd, vidiocGParm, unsafe.Pointer(&p)); err != nil {
		return StreamParm{}, err
	}
	return StreamParm{
		Capability:  p.capture.capability,
		CaptureMode: p.capture.capturemode,
		TimePerFrame: Framerate{
			Numerator:   p.capture.timeperframe.numerator,
			Denominator: p.capture.timeperframe.denominator,
		},
		ExtendedMode: p.capture.extendedmode,
		ReadBuffers:  p.capture.readbuffers,
	}, nil
}

// SetStreamParm issues VIDIOC_S_PARM for the capture queue.
func SetStreamParm(fd int, sp StreamParm) error {
	p := v4l2Streamparm{
		typ: BufTypeVideoCapture,
		capture: v4l2Captureparm{
			capability:  sp.Capability,
			capturemode: sp.CaptureMode,
			timeperframe: v4l2Fract{
				numerator:   sp.TimePerFrame.Numerator,
				denominator: sp.TimePerFrame.Denominator,
			},
			extendedmode: sp.ExtendedMode,
			readbuffers:  sp.ReadBuffers,
		},
	}
	return ioctl(fd, vidiocSParm, unsafe.Pointer(&p))
}

// RequestBuffers asks the driver for count memory-mapped capture buffers and
// returns how many it actually allocated. A count of zero frees them.
func RequestBuffers(fd int, count uint32) (uint32, error) {
	rb := v4l2Requestbuffers{
		count:  count,
		typ:    BufTypeVideoCapture,
		memory: MemoryMmap,
	}
	if err := ioctl(fd, vidiocReqbufs, unsafe.Pointer(&rb)); err != nil {
		return 0, err
	}
	return rb.count, nil
}

// QueryBuffer returns length and mmap offset of buffer index.
func QueryBuffer(fd int, index uint32) (BufferInfo, error) {
	b := v4l2Buffer{
		index:  index,
		typ:    BufTypeVideoCapture,
		memory: MemoryMmap,
	}
	if err := ioctl(fd, vidiocQuerybuf, unsafe.Pointer(&b)); err != nil {
		return BufferInfo{}, err
	}
	return fromBuffer(&b), nil
}

// QueueBuffer hands buffer index to the driver (VIDIOC_QBUF).
func QueueBuffer(fd int, index uint32) error {
	b := v4l2Buffer{
		index:  index,
		typ:    BufTypeVideoCapture,
		memory: MemoryMmap,
	}
	return ioctl(fd, vidiocQbuf, unsafe.Pointer(&b))
}

// DequeueBuffer takes the next filled buffer from the driver (VIDIOC_DQBUF).
// On a non-blocking descriptor EAGAIN means no buffer is ready yet.
func DequeueBuffer(fd int) (BufferInfo, error) {
	b := v4l2Buffer{
		typ:    BufTypeVideoCapture,
		memory: MemoryMmap,
	}
	if err := ioctl(fd, vidiocDqbuf, unsafe.Pointer(&b)); err != nil {
		return BufferInfo{}, err
	}
	return fromBuffer(&b), nil
}

// StreamOn starts streaming on the capture queue.
func StreamOn(fd int) error {
	typ := uint32(BufTypeVideoCapture)
	return ioctl(fd, vidiocStreamon, unsafe.Pointer(&typ))
}

// StreamOff stops streaming; the driver returns every queued buffer.
func StreamOff(fd int) error {
	typ := uint32(BufTypeVideoCapture)
	return ioctl(fd, vidiocStreamoff, unsafe.Pointer(&typ))
}

// Mmap maps a buffer reported by QueryBuffer into process memory.
func Mmap(fd int, offset, length uint32) ([]byte, error) {
	return unix.Mmap(fd, int64(offset), int(length), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
}

// Munmap releases a mapping returned by Mmap.
func Munmap(b []byte) error {
	return unix.Munmap(b)
}

// WaitReadable blocks until fd is readable or timeout elapses. It reports
// false with a nil error on timeout. EINTR is returned to the caller. Error
// and hangup conditions count as readable so the next dequeue reports them.
func WaitReadable(fd int, timeout time.Duration) (bool, error) {
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, pollTimeout(timeout))
	if err != nil {
		return false, err
	}
	return n > 0 && fds[0].Revents != 0, nil
}

// pollTimeout converts timeout to poll milliseconds, rounding up so a
// sub-millisecond wait still blocks.
func pollTimeout(timeout time.Duration) int {
	if timeout <= 0 {
		return 0
	}
	ms := (timeout + time.Millisecond - 1) / time.Millisecond
	if ms > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(ms)
}

func fromRect(r v4l2Rect) Rect {
	return Rect{Left: r.left, Top: r.top, Width: r.width, Height: r.height}
}

func fromPixFormat(p v4l2PixFormat) PixFormat {
	return PixFormat{
		Width:        p.width,
		Height:       p.height,
		PixelFormat:  p.pixelformat,
		Field:        p.field,
		BytesPerLine: p.bytesperline,
		SizeImage:    p.sizeimage,
		Colorspace:   p.colorspace,
	}
}

func fromBuffer(b *v4l2Buffer) BufferInfo {
	return BufferInfo{
		Index:     b.index,
		BytesUsed: b.bytesused,
		Flags:     b.flags,
		Field:     b.field,
		Sequence:  b.sequence,
		Length:    b.length,
		Offset:    b.offset,
		Timestamp: b.timestamp(),
	}
}
