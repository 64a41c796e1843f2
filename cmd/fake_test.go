package cmd

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/smazurov/framegrab/internal/capture"
	"github.com/smazurov/framegrab/internal/devices"
	"github.com/smazurov/framegrab/pkg/linuxav/v4l2"
)

const (
	virtualBufferLen = 4096
	virtualFrameLen  = 1024
)

// virtualCamera is a well-behaved capture device: every queued buffer comes
// back filled, in FIFO order.
type virtualCamera struct {
	mu        sync.Mutex
	formatErr error
	queue     []uint32
	bufs      map[uint32][]byte
	sequence  uint32
	opens     int
	// onFrame runs after every dequeue with the frame's sequence number.
	onFrame func(sequence uint32)
}

func newVirtualCamera() *virtualCamera {
	return &virtualCamera{bufs: make(map[uint32][]byte)}
}

func (v *virtualCamera) IsCharDevice(string) (bool, error) { return true, nil }

func (v *virtualCamera) Open(string) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.opens++
	return 3, nil
}

func (v *virtualCamera) Close(int) error { return nil }

func (v *virtualCamera) QueryCapability(int) (v4l2.Capability, error) {
	return v4l2.Capability{
		Driver:       "vivid",
		Card:         "Virtual Camera",
		Capabilities: v4l2.CapVideoCapture | v4l2.CapStreaming,
	}, nil
}

func (v *virtualCamera) CropCapability(int) (v4l2.CropCap, error) { return v4l2.CropCap{}, unix.EINVAL }
func (v *virtualCamera) SetCrop(int, v4l2.Rect) error             { return nil }

func (v *virtualCamera) SetFormat(_ int, pf v4l2.PixFormat) (v4l2.PixFormat, error) {
	if v.formatErr != nil {
		return v4l2.PixFormat{}, v.formatErr
	}
	pf.BytesPerLine = pf.Width * 2
	pf.SizeImage = pf.BytesPerLine * pf.Height
	return pf, nil
}

func (v *virtualCamera) GetStreamParm(int) (v4l2.StreamParm, error) { return v4l2.StreamParm{}, nil }
func (v *virtualCamera) SetStreamParm(int, v4l2.StreamParm) error   { return nil }

func (v *virtualCamera) RequestBuffers(_ int, count uint32) (uint32, error) {
	return count, nil
}

func (v *virtualCamera) QueryBuffer(_ int, index uint32) (v4l2.BufferInfo, error) {
	return v4l2.BufferInfo{Index: index, Length: virtualBufferLen, Offset: index * virtualBufferLen}, nil
}

func (v *virtualCamera) Mmap(_ int, offset, length uint32) ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	b := make([]byte, length)
	v.bufs[offset/virtualBufferLen] = b
	return b, nil
}

func (v *virtualCamera) Munmap([]byte) error { return nil }

func (v *virtualCamera) QueueBuffer(_ int, index uint32) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.queue = append(v.queue, index)
	return nil
}

func (v *virtualCamera) DequeueBuffer(int) (v4l2.BufferInfo, error) {
	v.mu.Lock()
	if len(v.queue) == 0 {
		v.mu.Unlock()
		return v4l2.BufferInfo{}, unix.EAGAIN
	}
	index := v.queue[0]
	v.queue = v.queue[1:]
	v.sequence++
	copy(v.bufs[index], bytes.Repeat([]byte{0x80}, virtualFrameLen))
	info := v4l2.BufferInfo{
		Index:     index,
		BytesUsed: virtualFrameLen,
		Length:    virtualBufferLen,
		Sequence:  v.sequence,
	}
	onFrame := v.onFrame
	v.mu.Unlock()

	if onFrame != nil {
		onFrame(info.Sequence)
	}
	return info, nil
}

func (v *virtualCamera) StreamOn(int) error  { return nil }
func (v *virtualCamera) StreamOff(int) error { return nil }

func (v *virtualCamera) WaitReadable(int, time.Duration) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.queue) > 0, nil
}

// stubDetector serves canned enumeration results.
type stubDetector struct {
	devices []devices.DeviceInfo
	formats []devices.FormatInfo
	ids     map[string]string
	err     error
}

func (s *stubDetector) FindDevices() ([]devices.DeviceInfo, error) { return s.devices, s.err }

func (s *stubDetector) GetDeviceFormats(string) ([]devices.FormatInfo, error) {
	return s.formats, s.err
}

func (s *stubDetector) GetDevicePathByID(id string) (string, error) {
	if p, ok := s.ids[id]; ok {
		return p, nil
	}
	return "", errors.New("not found")
}

func (s *stubDetector) GetDeviceResolutions(string, uint32) ([]devices.Resolution, error) {
	return []devices.Resolution{{Width: 640, Height: 480}}, nil
}

func (s *stubDetector) GetDeviceFramerates(string, uint32, uint32, uint32) ([]devices.Framerate, error) {
	return []devices.Framerate{{Numerator: 1, Denominator: 30}}, nil
}

// useFakes swaps the package hooks for the duration of the test.
func useFakes(t *testing.T, drv capture.Driver, det devices.DeviceDetector) {
	t.Helper()
	prevDriver, prevDetector := newDriver, newDetector
	t.Cleanup(func() { newDriver, newDetector = prevDriver, prevDetector })

	newDriver = func() capture.Driver {
		if drv == nil {
			t.Fatal("device driver must not be created")
		}
		return drv
	}
	newDetector = func() devices.DeviceDetector {
		if det == nil {
			return &stubDetector{}
		}
		return det
	}
}

// run executes the root command with args and returns its outputs.
func run(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	return runContext(t, context.Background(), args...)
}

func runContext(t *testing.T, ctx context.Context, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := NewRootCmd()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&errOut)
	err = root.ExecuteContext(ctx)
	return out.String(), errOut.String(), err
}
