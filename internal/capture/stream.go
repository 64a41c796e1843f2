package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sys/unix"

	"github.com/smazurov/framegrab/internal/events"
)

// DefaultWaitTimeout bounds the readiness wait for one frame.
const DefaultWaitTimeout = 2 * time.Second

// maxWaitRetries is how many interrupted waits are retried per frame.
const maxWaitRetries = 5

// Frame is one captured image. Data aliases the mapped buffer and is only
// valid during the FrameSink call.
type Frame struct {
	Index       int
	BufferIndex uint32
	Data        []byte
	BytesUsed   uint32
	Sequence    uint32
	Timestamp   time.Duration
	// PixelFormat is the negotiated encoding, zero when unknown.
	PixelFormat PixelFormat
}

// FrameSink consumes captured frames in index order.
type FrameSink interface {
	WriteFrame(f Frame) error
}

// SinkFunc adapts a function to FrameSink.
type SinkFunc func(f Frame) error

// WriteFrame implements FrameSink.
func (fn SinkFunc) WriteFrame(f Frame) error { return fn(f) }

// StreamerOptions tunes a Streamer. Zero values select the defaults.
type StreamerOptions struct {
	SessionID   string
	PixelFormat PixelFormat
	WaitTimeout time.Duration
	TolerateEIO bool
	Logger      *slog.Logger
	Recorder    Recorder
	Bus         *events.Bus
}

// Streamer runs the queue/dequeue loop over a mapped pool.
type Streamer struct {
	drv      Driver
	dev      *Device
	pool     *BufferPool
	opts     StreamerOptions
	state    StreamState
	stopOwed bool
}

// NewStreamer creates a stopped streamer for pool on dev.
func NewStreamer(drv Driver, dev *Device, pool *BufferPool, opts StreamerOptions) *Streamer {
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = DefaultWaitTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	return &Streamer{drv: drv, dev: dev, pool: pool, opts: opts, state: StreamStopped}
}

// State returns whether the stream is running.
func (s *Streamer) State() StreamState { return s.state }

// Start queues every buffer and turns the stream on. When Start fails after
// a buffer was queued, Stop must still be called.
func (s *Streamer) Start() error {
	if s.state == StreamStreaming {
		return nil
	}
	fd := s.dev.FD()
	ctx := map[string]any{"device": s.dev.Path()}

	for i := uint32(0); i < uint32(s.pool.Len()); i++ {
		if err := s.drv.QueueBuffer(fd, i); err != nil {
			ctx["index"] = i
			return newError(KindStreamOnFailed, fmt.Sprintf("cannot queue buffer %d", i), err, ctx)
		}
		s.stopOwed = true
		s.pool.Acquire(i)
	}

	if err := s.drv.StreamOn(fd); err != nil {
		return newError(KindStreamOnFailed, "stream on failed", err, ctx)
	}
	s.stopOwed = true
	s.state = StreamStreaming
	s.opts.Logger.Info("Streaming started", "device", s.dev.Path(), "buffers", s.pool.Len())
	return nil
}

// CaptureLoop delivers frames 1..frames to sink. Cancellation of ctx is
// checked between frames and between waits, never while a frame is handled.
func (s *Streamer) CaptureLoop(ctx context.Context, frames int, sink FrameSink) error {
	if s.state != StreamStreaming {
		return ErrNotStreaming
	}

	for index := 1; index <= frames; {
		if err := ctx.Err(); err != nil {
			return err
		}

		started := time.Now()
		if err := s.waitReady(index); err != nil {
			return err
		}

		info, err := s.drv.DequeueBuffer(s.dev.FD())
		if err != nil {
			if s.retryDequeue(index, err) {
				continue
			}
			return newError(KindReadFrameFailed, "dequeue failed", err,
				map[string]any{"device": s.dev.Path(), "frame": index})
		}

		if err := s.deliver(index, info.Index, info.BytesUsed, info.Sequence, info.Timestamp, sink); err != nil {
			return err
		}

		s.opts.Recorder.FrameCaptured(int(info.BytesUsed), time.Since(started))
		if s.opts.Bus != nil {
			s.opts.Bus.Publish(events.FrameCapturedEvent{
				SessionID:   s.opts.SessionID,
				DevicePath:  s.dev.Path(),
				Index:       index,
				BufferIndex: info.Index,
				Bytes:       info.BytesUsed,
				Sequence:    info.Sequence,
				Timestamp:   time.Now().Format(time.RFC3339),
			})
		}
		index++
	}
	return nil
}

// waitReady blocks until the device is readable. Interrupted waits are
// retried maxWaitRetries times.
func (s *Streamer) waitReady(index int) error {
	ctx := map[string]any{"device": s.dev.Path(), "frame": index}
	interrupts := 0
	for {
		ready, err := s.drv.WaitReadable(s.dev.FD(), s.opts.WaitTimeout)
		switch {
		case errors.Is(err, unix.EINTR):
			interrupts++
			s.opts.Recorder.WaitInterrupted()
			if interrupts > maxWaitRetries {
				ctx["interrupts"] = interrupts
				return newError(KindWaitFailed, "wait interrupted too often", err, ctx)
			}
			continue
		case err != nil:
			return newError(KindWaitFailed, "wait failed", err, ctx)
		case !ready:
			ctx["timeout"] = s.opts.WaitTimeout.String()
			return newError(KindDeviceStalled,
				fmt.Sprintf("no frame from %s within %s", s.dev.Path(), s.opts.WaitTimeout), nil, ctx)
		}
		return nil
	}
}

// retryDequeue reports whether a dequeue error means "try again".
func (s *Streamer) retryDequeue(index int, err error) bool {
	switch {
	case errors.Is(err, unix.EAGAIN):
	case errors.Is(err, unix.EIO) && s.opts.TolerateEIO:
		s.opts.Logger.Warn("Ignoring transient I/O error on dequeue", "device", s.dev.Path(), "frame", index)
	default:
		return false
	}
	s.opts.Recorder.DequeueRetried()
	return true
}

func (s *Streamer) deliver(index int, bufIndex, bytesUsed, sequence uint32, ts time.Duration, sink FrameSink) error {
	ctx := map[string]any{"device": s.dev.Path(), "frame": index, "buffer": bufIndex}

	buf := s.pool.Buffer(bufIndex)
	if buf == nil {
		ctx["buffers"] = s.pool.Len()
		return newError(KindCorruptIndex,
			fmt.Sprintf("driver returned buffer %d of %d", bufIndex, s.pool.Len()), nil, ctx)
	}
	if buf.State() != BufferQueued {
		ctx["state"] = buf.State().String()
		return newError(KindCorruptIndex,
			fmt.Sprintf("driver returned buffer %d which was not queued", bufIndex), nil, ctx)
	}
	s.pool.MarkFilled(bufIndex)

	if bytesUsed > buf.Length {
		ctx["bytes_used"] = bytesUsed
		ctx["length"] = buf.Length
		return newError(KindReadFrameFailed,
			fmt.Sprintf("buffer %d reports %d bytes in a %d byte buffer", bufIndex, bytesUsed, buf.Length), nil, ctx)
	}

	frame := Frame{
		Index:       index,
		BufferIndex: bufIndex,
		Data:        buf.Bytes()[:bytesUsed],
		BytesUsed:   bytesUsed,
		Sequence:    sequence,
		Timestamp:   ts,
		PixelFormat: s.opts.PixelFormat,
	}
	if err := sink.WriteFrame(frame); err != nil {
		return newError(KindSinkFailed, fmt.Sprintf("sink rejected frame %d", index), err, ctx)
	}
	s.opts.Logger.Debug("Frame captured", "frame", index, "buffer", bufIndex, "bytes", bytesUsed, "sequence", sequence)

	s.pool.Release(bufIndex)
	if err := s.drv.QueueBuffer(s.dev.FD(), bufIndex); err != nil {
		return newError(KindRequeueFailed, fmt.Sprintf("cannot requeue buffer %d", bufIndex), err, ctx)
	}
	s.pool.Acquire(bufIndex)
	return nil
}

// Stop turns the stream off once and returns every buffer to Free. It is a
// no-op when nothing was started.
func (s *Streamer) Stop() error {
	if !s.stopOwed {
		return nil
	}
	s.stopOwed = false
	s.state = StreamStopped

	err := s.drv.StreamOff(s.dev.FD())
	s.pool.ResetQueued()
	if err != nil {
		return newError(KindStreamOffFailed, "stream off failed", err, map[string]any{"device": s.dev.Path()})
	}
	s.opts.Logger.Info("Streaming stopped", "device", s.dev.Path())
	return nil
}
