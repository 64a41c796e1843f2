package capture

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smazurov/framegrab/internal/events"
)

// SessionOptions configures a Session. Driver defaults to nothing and must be
// set; Strategy defaults to MmapStrategy over Driver.
type SessionOptions struct {
	DevicePath  string
	Config      Config
	Driver      Driver
	Strategy    Strategy
	BufferCount uint32
	WaitTimeout time.Duration
	TolerateEIO bool
	Logger      *slog.Logger
	Bus         *events.Bus
	Metrics     Recorder
}

// Session captures a fixed number of frames from one device.
type Session struct {
	id   string
	opts SessionOptions

	mu            sync.Mutex
	state         State
	negotiated    Negotiated
	hasNegotiated bool
}

// NewSession creates a closed session.
func NewSession(opts SessionOptions) *Session {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	id := uuid.NewString()
	opts.Logger = opts.Logger.With("session", id)
	if opts.Metrics == nil {
		opts.Metrics = nopRecorder{}
	}
	if opts.Strategy == nil {
		opts.Strategy = NewMmapStrategy(opts.Driver, opts.Logger)
	}
	if opts.BufferCount == 0 {
		opts.BufferCount = DefaultBufferCount
	}
	return &Session{id: id, opts: opts, state: StateClosed}
}

// ID identifies this session in logs and events.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// NegotiatedFormat returns the configuration the driver accepted. The second
// result is false until negotiation succeeded.
func (s *Session) NegotiatedFormat() (Negotiated, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.negotiated, s.hasNegotiated
}

// Run executes the whole lifecycle and delivers Config.Frames frames to sink.
// Whatever was acquired is released before Run returns, in the order stop
// streaming, unmap, close. Teardown failures are joined after the error that
// ended the capture.
func (s *Session) Run(ctx context.Context, sink FrameSink) error {
	err := s.run(ctx, sink)
	if err != nil {
		s.reportFailure(err)
	}
	return err
}

func (s *Session) run(ctx context.Context, sink FrameSink) (err error) {
	cfg := s.opts.Config
	if err := cfg.Validate(); err != nil {
		return err
	}
	if sink == nil {
		return newError(KindInvalidConfig, "no frame sink", nil, nil)
	}

	dev, err := OpenDevice(s.opts.Driver, s.opts.DevicePath, s.opts.Logger)
	if err != nil {
		return err
	}
	s.setState(StateOpened)
	defer func() {
		err = joinTeardown(err, dev.Close())
		s.setState(StateClosed)
	}()

	negotiated, err := NewNegotiator(s.opts.Driver, s.opts.Strategy, s.opts.Logger).Negotiate(dev, cfg)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.negotiated, s.hasNegotiated = negotiated, true
	s.mu.Unlock()
	s.setState(StateConfigured)

	pool, err := s.opts.Strategy.Allocate(dev, s.opts.BufferCount)
	if err != nil {
		return err
	}
	defer func() {
		err = joinTeardown(err, pool.Teardown())
	}()
	pool.Observe(s.opts.Metrics.BuffersChanged)
	s.setState(StateMapped)

	streamer := NewStreamer(s.opts.Driver, dev, pool, StreamerOptions{
		SessionID:   s.id,
		PixelFormat: negotiated.Config.PixelFormat,
		WaitTimeout: s.opts.WaitTimeout,
		TolerateEIO: s.opts.TolerateEIO,
		Logger:      s.opts.Logger,
		Recorder:    s.opts.Metrics,
		Bus:         s.opts.Bus,
	})
	defer func() {
		err = joinTeardown(err, streamer.Stop())
		s.setState(StateStopped)
	}()

	if err := streamer.Start(); err != nil {
		return err
	}
	s.setState(StateStreaming)

	if err := streamer.CaptureLoop(ctx, negotiated.Config.Frames, sink); err != nil {
		return err
	}
	s.opts.Logger.Info("Capture complete", "device", dev.Path(), "frames", negotiated.Config.Frames)
	return nil
}

func (s *Session) setState(to State) {
	s.mu.Lock()
	from := s.state
	s.state = to
	s.mu.Unlock()

	if from == to {
		return
	}
	s.opts.Logger.Info("Session state changed", "device", s.opts.DevicePath, "from", from, "to", to)
	if s.opts.Bus != nil {
		s.opts.Bus.Publish(events.SessionStateChangedEvent{
			SessionID:  s.id,
			DevicePath: s.opts.DevicePath,
			From:       string(from),
			To:         string(to),
			Timestamp:  time.Now().Format(time.RFC3339),
		})
	}
}

func (s *Session) reportFailure(err error) {
	kind, phase := "CANCELED", ""
	var ce *Error
	switch {
	case errors.As(err, &ce):
		kind, phase = string(ce.Kind), string(ce.Phase)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
	default:
		kind = "UNKNOWN"
	}

	s.opts.Metrics.CaptureFailed(kind)
	s.opts.Logger.Error("Capture failed", "device", s.opts.DevicePath, "kind", kind, "phase", phase, "error", err)
	if s.opts.Bus != nil {
		s.opts.Bus.Publish(events.CaptureErrorEvent{
			SessionID:  s.id,
			DevicePath: s.opts.DevicePath,
			Kind:       kind,
			Phase:      phase,
			Error:      err.Error(),
			Timestamp:  time.Now().Format(time.RFC3339),
		})
	}
}

// joinTeardown appends a teardown failure after the primary error.
func joinTeardown(primary, teardown error) error {
	switch {
	case teardown == nil:
		return primary
	case primary == nil:
		return teardown
	}
	return errors.Join(primary, teardown)
}
