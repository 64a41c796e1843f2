package capture

import (
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sys/unix"

	"github.com/smazurov/framegrab/pkg/linuxav/v4l2"
)

// DefaultBufferCount is how many buffers are requested from the driver.
const DefaultBufferCount = 4

// MinBuffers is the smallest ring that can keep a frame in flight while
// another is processed.
const MinBuffers = 2

// Strategy is an I/O method for moving frames out of the driver.
type Strategy interface {
	Name() string
	// Supports reports whether a device with the effective capability
	// flags caps can use this method.
	Supports(caps uint32) bool
	// Allocate reserves and prepares requested buffers on dev.
	Allocate(dev *Device, requested uint32) (*BufferPool, error)
}

// MmapStrategy maps kernel buffers into process memory (V4L2_MEMORY_MMAP).
type MmapStrategy struct {
	Driver Driver
	Logger *slog.Logger
}

// NewMmapStrategy creates the memory-mapped strategy.
func NewMmapStrategy(drv Driver, logger *slog.Logger) *MmapStrategy {
	if logger == nil {
		logger = slog.Default()
	}
	return &MmapStrategy{Driver: drv, Logger: logger}
}

// Name implements Strategy.
func (s *MmapStrategy) Name() string { return "mmap" }

// Supports implements Strategy. Memory mapping needs streaming I/O.
func (s *MmapStrategy) Supports(caps uint32) bool {
	return caps&v4l2.CapStreaming != 0
}

// Allocate implements Strategy. On any failure after buffers were mapped the
// mapped ones are released again, so either a whole pool or nothing is
// returned.
func (s *MmapStrategy) Allocate(dev *Device, requested uint32) (*BufferPool, error) {
	fd := dev.FD()
	ctx := map[string]any{"device": dev.Path(), "requested": requested}

	granted, err := s.Driver.RequestBuffers(fd, requested)
	if err != nil {
		if errors.Is(err, unix.EINVAL) {
			return nil, newError(KindMappingUnsupported, dev.Path()+" does not support memory mapping", err, ctx)
		}
		return nil, newError(KindMappingUnsupported, "buffer request failed", err, ctx)
	}
	ctx["granted"] = granted

	if granted < MinBuffers {
		if granted > 0 {
			s.release(fd)
		}
		return nil, newError(KindInsufficientBuffers,
			fmt.Sprintf("insufficient buffer memory on %s: granted %d, need %d", dev.Path(), granted, MinBuffers),
			nil, ctx)
	}
	if granted != requested {
		s.Logger.Debug("Driver granted a different buffer count", "requested", requested, "granted", granted)
	}

	buffers := make([]*Buffer, 0, granted)
	for i := uint32(0); i < granted; i++ {
		info, err := s.Driver.QueryBuffer(fd, i)
		if err != nil {
			s.unwind(fd, buffers)
			ctx["index"] = i
			return nil, newError(KindMapFailed, fmt.Sprintf("cannot query buffer %d", i), err, ctx)
		}

		data, err := s.Driver.Mmap(fd, info.Offset, info.Length)
		if err != nil {
			s.unwind(fd, buffers)
			ctx["index"] = i
			return nil, newError(KindMapFailed, fmt.Sprintf("cannot map buffer %d", i), err, ctx)
		}

		buffers = append(buffers, &Buffer{Index: i, Length: info.Length, data: data, state: BufferFree})
	}

	s.Logger.Info("Buffers mapped", "device", dev.Path(), "count", granted)
	return newBufferPool(s.Driver, fd, buffers, s.Logger), nil
}

func (s *MmapStrategy) unwind(fd int, mapped []*Buffer) {
	for _, b := range mapped {
		if err := s.Driver.Munmap(b.data); err != nil {
			s.Logger.Warn("Unmap during unwind failed", "index", b.Index, "error", err)
		}
		b.data = nil
	}
	s.release(fd)
}

func (s *MmapStrategy) release(fd int) {
	if _, err := s.Driver.RequestBuffers(fd, 0); err != nil {
		s.Logger.Debug("Buffer reservation not released", "error", err)
	}
}
