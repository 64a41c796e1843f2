//go:build linux

package capture

import (
	"time"

	"github.com/smazurov/framegrab/pkg/linuxav/v4l2"
)

type v4l2Driver struct{}

// NewV4L2Driver returns the Driver backed by real V4L2 ioctls.
func NewV4L2Driver() Driver {
	return v4l2Driver{}
}

func (v4l2Driver) IsCharDevice(path string) (bool, error) { return v4l2.IsCharDevice(path) }
func (v4l2Driver) Open(path string) (int, error)          { return v4l2.Open(path) }
func (v4l2Driver) Close(fd int) error                     { return v4l2.Close(fd) }

func (v4l2Driver) QueryCapability(fd int) (v4l2.Capability, error) { return v4l2.QueryCapability(fd) }
func (v4l2Driver) CropCapability(fd int) (v4l2.CropCap, error)     { return v4l2.CropCapability(fd) }
func (v4l2Driver) SetCrop(fd int, r v4l2.Rect) error               { return v4l2.SetCrop(fd, r) }

func (v4l2Driver) SetFormat(fd int, pf v4l2.PixFormat) (v4l2.PixFormat, error) {
	return v4l2.SetFormat(fd, pf)
}

func (v4l2Driver) GetStreamParm(fd int) (v4l2.StreamParm, error)  { return v4l2.GetStreamParm(fd) }
func (v4l2Driver) SetStreamParm(fd int, sp v4l2.StreamParm) error { return v4l2.SetStreamParm(fd, sp) }

func (v4l2Driver) RequestBuffers(fd int, count uint32) (uint32, error) {
	return v4l2.RequestBuffers(fd, count)
}

func (v4l2Driver) QueryBuffer(fd int, index uint32) (v4l2.BufferInfo, error) {
	return v4l2.QueryBuffer(fd, index)
}

func (v4l2Driver) Mmap(fd int, offset, length uint32) ([]byte, error) {
	return v4l2.Mmap(fd, offset, length)
}

func (v4l2Driver) Munmap(b []byte) error                         { return v4l2.Munmap(b) }
func (v4l2Driver) QueueBuffer(fd int, index uint32) error        { return v4l2.QueueBuffer(fd, index) }
func (v4l2Driver) DequeueBuffer(fd int) (v4l2.BufferInfo, error) { return v4l2.DequeueBuffer(fd) }
func (v4l2Driver) StreamOn(fd int) error                         { return v4l2.StreamOn(fd) }
func (v4l2Driver) StreamOff(fd int) error                        { return v4l2.StreamOff(fd) }

func (v4l2Driver) WaitReadable(fd int, timeout time.Duration) (bool, error) {
	return v4l2.WaitReadable(fd, timeout)
}
