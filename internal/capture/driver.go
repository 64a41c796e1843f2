package capture

import (
	"time"

	"github.com/smazurov/framegrab/pkg/linuxav/v4l2"
)

// Driver is the kernel surface the capture core needs. The Linux
// implementation forwards to pkg/linuxav/v4l2; tests substitute a fake.
type Driver interface {
	IsCharDevice(path string) (bool, error)
	Open(path string) (int, error)
	Close(fd int) error

	QueryCapability(fd int) (v4l2.Capability, error)
	CropCapability(fd int) (v4l2.CropCap, error)
	SetCrop(fd int, r v4l2.Rect) error
	SetFormat(fd int, pf v4l2.PixFormat) (v4l2.PixFormat, error)
	GetStreamParm(fd int) (v4l2.StreamParm, error)
	SetStreamParm(fd int, sp v4l2.StreamParm) error

	RequestBuffers(fd int, count uint32) (uint32, error)
	QueryBuffer(fd int, index uint32) (v4l2.BufferInfo, error)
	Mmap(fd int, offset, length uint32) ([]byte, error)
	Munmap(b []byte) error

	QueueBuffer(fd int, index uint32) error
	DequeueBuffer(fd int) (v4l2.BufferInfo, error)
	StreamOn(fd int) error
	StreamOff(fd int) error

	// WaitReadable reports false with a nil error when timeout elapses.
	WaitReadable(fd int, timeout time.Duration) (bool, error)
}
