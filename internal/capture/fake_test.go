package capture

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/smazurov/framegrab/pkg/linuxav/v4l2"
)

const (
	fakeFD        = 7
	fakeBufferLen = 4096
	fakeFrameLen  = 1000
)

type waitResult struct {
	ready bool
	err   error
}

type dequeueResult struct {
	err       error
	index     uint32
	override  bool
	bytesUsed uint32
}

// fakeDriver simulates a capture device. Queued buffers come back in FIFO
// order unless a scripted dequeue result says otherwise.
type fakeDriver struct {
	mu sync.Mutex

	notChar  bool
	statErr  error
	openErr  error
	closeErr error

	capability v4l2.Capability
	capErr     error
	cropErr    error
	setCropErr error

	formatErr error
	adjust    func(v4l2.PixFormat) v4l2.PixFormat
	parm      v4l2.StreamParm
	gparmErr  error
	sparmErr  error

	grant     uint32
	grantSet  bool
	reqErr    error
	queryErr  map[uint32]error
	mmapErr   map[uint32]error
	munmapErr map[uint32]error
	qbufErr   func(index uint32, call int) error

	streamOnErr  error
	streamOffErr error

	waits       []waitResult
	defaultWait waitResult
	timeouts    []time.Duration
	dequeues    []dequeueResult

	queue    []uint32
	mapped   map[*byte]uint32
	data     map[uint32][]byte
	calls    []string
	qbufs    int
	unmapped []uint32
	reqbufs  []uint32
	crops    int
	sparms   int
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		capability: v4l2.Capability{
			Driver:       "fake",
			Card:         "Fake Camera",
			BusInfo:      "platform:fake",
			Capabilities: v4l2.CapVideoCapture | v4l2.CapStreaming,
		},
		parm:        v4l2.StreamParm{Capability: v4l2.CapTimePerFrame, TimePerFrame: v4l2.Framerate{Numerator: 1, Denominator: 30}},
		defaultWait: waitResult{ready: true},
		mapped:      make(map[*byte]uint32),
		data:        make(map[uint32][]byte),
	}
}

func (f *fakeDriver) record(format string, args ...any) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeDriver) count(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

func (f *fakeDriver) IsCharDevice(string) (bool, error) {
	if f.statErr != nil {
		return false, f.statErr
	}
	return !f.notChar, nil
}

func (f *fakeDriver) Open(path string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("open %s", path)
	if f.openErr != nil {
		return -1, f.openErr
	}
	return fakeFD, nil
}

func (f *fakeDriver) Close(int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("close")
	return f.closeErr
}

func (f *fakeDriver) QueryCapability(int) (v4l2.Capability, error) {
	return f.capability, f.capErr
}

func (f *fakeDriver) CropCapability(int) (v4l2.CropCap, error) {
	if f.cropErr != nil {
		return v4l2.CropCap{}, f.cropErr
	}
	return v4l2.CropCap{DefRect: v4l2.Rect{Width: 640, Height: 480}}, nil
}

func (f *fakeDriver) SetCrop(int, v4l2.Rect) error {
	f.crops++
	return f.setCropErr
}

func (f *fakeDriver) SetFormat(_ int, pf v4l2.PixFormat) (v4l2.PixFormat, error) {
	if f.formatErr != nil {
		return v4l2.PixFormat{}, f.formatErr
	}
	if f.adjust != nil {
		pf = f.adjust(pf)
	}
	pf.SizeImage = pf.Width * pf.Height * 2
	return pf, nil
}

func (f *fakeDriver) GetStreamParm(int) (v4l2.StreamParm, error) {
	return f.parm, f.gparmErr
}

func (f *fakeDriver) SetStreamParm(int, v4l2.StreamParm) error {
	f.sparms++
	return f.sparmErr
}

func (f *fakeDriver) RequestBuffers(_ int, count uint32) (uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("reqbufs %d", count)
	f.reqbufs = append(f.reqbufs, count)
	if count == 0 {
		return 0, nil
	}
	if f.reqErr != nil {
		return 0, f.reqErr
	}
	if f.grantSet {
		return f.grant, nil
	}
	return count, nil
}

func (f *fakeDriver) QueryBuffer(_ int, index uint32) (v4l2.BufferInfo, error) {
	if err := f.queryErr[index]; err != nil {
		return v4l2.BufferInfo{}, err
	}
	return v4l2.BufferInfo{Index: index, Length: fakeBufferLen, Offset: index * fakeBufferLen}, nil
}

func (f *fakeDriver) Mmap(_ int, offset, length uint32) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	index := offset / fakeBufferLen
	f.record("mmap %d", index)
	if err := f.mmapErr[index]; err != nil {
		return nil, err
	}
	b := make([]byte, length)
	f.mapped[&b[0]] = index
	f.data[index] = b
	return b, nil
}

func (f *fakeDriver) Munmap(b []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	index, ok := f.mapped[&b[0]]
	if !ok {
		return unix.EINVAL
	}
	f.record("munmap %d", index)
	f.unmapped = append(f.unmapped, index)
	delete(f.mapped, &b[0])
	return f.munmapErr[index]
}

func (f *fakeDriver) QueueBuffer(_ int, index uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.qbufs++
	if f.qbufErr != nil {
		if err := f.qbufErr(index, f.qbufs); err != nil {
			return err
		}
	}
	f.queue = append(f.queue, index)
	return nil
}

func (f *fakeDriver) DequeueBuffer(int) (v4l2.BufferInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var script dequeueResult
	if len(f.dequeues) > 0 {
		script, f.dequeues = f.dequeues[0], f.dequeues[1:]
		if script.err != nil {
			return v4l2.BufferInfo{}, script.err
		}
	}
	if script.override {
		return v4l2.BufferInfo{Index: script.index, BytesUsed: fakeFrameLen}, nil
	}
	if len(f.queue) == 0 {
		return v4l2.BufferInfo{}, unix.EAGAIN
	}

	index := f.queue[0]
	f.queue = f.queue[1:]
	used := uint32(fakeFrameLen)
	if script.bytesUsed != 0 {
		used = script.bytesUsed
	}
	if buf := f.data[index]; buf != nil {
		for i := 0; i < min(int(used), len(buf)); i++ {
			buf[i] = byte(index + 1)
		}
	}
	return v4l2.BufferInfo{
		Index:     index,
		BytesUsed: used,
		Length:    fakeBufferLen,
		Sequence:  uint32(f.qbufs),
		Timestamp: time.Duration(f.qbufs) * time.Millisecond,
	}, nil
}

func (f *fakeDriver) StreamOn(int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("streamon")
	return f.streamOnErr
}

func (f *fakeDriver) StreamOff(int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("streamoff")
	f.queue = nil
	return f.streamOffErr
}

func (f *fakeDriver) WaitReadable(_ int, timeout time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.timeouts = append(f.timeouts, timeout)
	if len(f.waits) > 0 {
		w := f.waits[0]
		f.waits = f.waits[1:]
		return w.ready, w.err
	}
	return f.defaultWait.ready, f.defaultWait.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingSink struct {
	frames []Frame
	copies [][]byte
	err    error
	failAt int
}

func (s *recordingSink) WriteFrame(f Frame) error {
	if s.failAt != 0 && f.Index == s.failAt {
		return s.err
	}
	s.frames = append(s.frames, f)
	s.copies = append(s.copies, append([]byte(nil), f.Data...))
	return nil
}

type countingRecorder struct {
	frames     int
	bytes      int
	interrupts int
	retries    int
	failures   []string
	last       [3]int
}

func (r *countingRecorder) FrameCaptured(bytes int, _ time.Duration) {
	r.frames++
	r.bytes += bytes
}
func (r *countingRecorder) WaitInterrupted()          { r.interrupts++ }
func (r *countingRecorder) DequeueRetried()           { r.retries++ }
func (r *countingRecorder) CaptureFailed(kind string) { r.failures = append(r.failures, kind) }
func (r *countingRecorder) BuffersChanged(free, queued, filled int) {
	r.last = [3]int{free, queued, filled}
}

func assertKind(t testing.TB, err error, kind Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	got, ok := KindOf(err)
	if !ok || got != kind {
		t.Fatalf("expected %s error, got %v", kind, err)
	}
}

var errBoom = errors.New("boom")
