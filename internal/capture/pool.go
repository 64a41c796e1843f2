package capture

import (
	"errors"
	"fmt"
	"log/slog"
)

// Buffer is one memory-mapped kernel buffer.
type Buffer struct {
	Index  uint32
	Length uint32
	data   []byte
	state  BufferState
}

// Bytes returns the whole mapping. It is invalid after the pool is torn down.
func (b *Buffer) Bytes() []byte { return b.data }

// State returns the current ownership state.
func (b *Buffer) State() BufferState { return b.state }

// BufferPool owns the mapped buffers of one allocation. Every buffer is
// mapped once when the pool is built and unmapped once by Teardown.
type BufferPool struct {
	drv     Driver
	fd      int
	buffers []*Buffer
	torn    bool
	observe func(free, queued, filled int)
	logger  *slog.Logger
}

func newBufferPool(drv Driver, fd int, buffers []*Buffer, logger *slog.Logger) *BufferPool {
	return &BufferPool{drv: drv, fd: fd, buffers: buffers, logger: logger}
}

// Observe registers fn to be called with the state counts after every change.
func (p *BufferPool) Observe(fn func(free, queued, filled int)) {
	p.observe = fn
	p.notify()
}

// Len returns the number of buffers the kernel granted.
func (p *BufferPool) Len() int { return len(p.buffers) }

// Buffer returns buffer i, or nil when i is out of range.
func (p *BufferPool) Buffer(i uint32) *Buffer {
	if int(i) >= len(p.buffers) {
		return nil
	}
	return p.buffers[i]
}

// Acquire marks buffer i as handed to the driver.
func (p *BufferPool) Acquire(i uint32) {
	p.transition(i, BufferFree, BufferQueued)
}

// MarkFilled marks buffer i as dequeued with a frame.
func (p *BufferPool) MarkFilled(i uint32) {
	p.transition(i, BufferQueued, BufferFilled)
}

// Release returns a filled buffer i to the application.
func (p *BufferPool) Release(i uint32) {
	p.transition(i, BufferFilled, BufferFree)
}

// ResetQueued returns every buffer to Free. STREAMOFF hands all queued
// buffers back, so this follows a stream stop.
func (p *BufferPool) ResetQueued() {
	for _, b := range p.buffers {
		b.state = BufferFree
	}
	p.notify()
}

// Counts returns how many buffers are in each state.
func (p *BufferPool) Counts() (free, queued, filled int) {
	for _, b := range p.buffers {
		switch b.state {
		case BufferFree:
			free++
		case BufferQueued:
			queued++
		case BufferFilled:
			filled++
		}
	}
	return free, queued, filled
}

func (p *BufferPool) transition(i uint32, from, to BufferState) {
	if p.torn {
		panic("capture: buffer pool used after teardown")
	}
	b := p.Buffer(i)
	if b == nil {
		panic(fmt.Sprintf("capture: buffer index %d out of range (%d buffers)", i, len(p.buffers)))
	}
	if b.state != from {
		panic(fmt.Sprintf("capture: buffer %d is %s, want %s", i, b.state, from))
	}
	b.state = to
	p.notify()
}

func (p *BufferPool) notify() {
	if p.observe != nil {
		p.observe(p.Counts())
	}
}

// Teardown unmaps every buffer and releases the kernel reservation. Unmap
// failures do not stop the walk; they are reported together as one
// UnmapFailed error. Calling Teardown again is a no-op.
func (p *BufferPool) Teardown() error {
	if p == nil || p.torn {
		return nil
	}
	p.torn = true

	failed := make([]uint32, 0)
	var errs []error
	for _, b := range p.buffers {
		if b.data == nil {
			continue
		}
		if err := p.drv.Munmap(b.data); err != nil {
			failed = append(failed, b.Index)
			errs = append(errs, fmt.Errorf("buffer %d: %w", b.Index, err))
		}
		b.data = nil
		b.state = BufferFree
	}

	if _, err := p.drv.RequestBuffers(p.fd, 0); err != nil {
		p.logger.Debug("Buffer reservation not released", "error", err)
	}

	if p.observe != nil {
		p.observe(0, 0, 0)
	}

	if len(errs) > 0 {
		return newError(KindUnmapFailed,
			fmt.Sprintf("%d of %d buffers failed to unmap", len(errs), len(p.buffers)),
			errors.Join(errs...),
			map[string]any{"buffers": failed})
	}
	p.logger.Debug("Buffers unmapped", "count", len(p.buffers))
	return nil
}
