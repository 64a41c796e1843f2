// Package capture drives a V4L2 capture device through a single memory-mapped
// streaming session.
//
// The lifecycle is split across small components, each owning one step:
//
//   - Device opens and closes the descriptor (character-special nodes only).
//   - Negotiator checks capabilities, applies default cropping, sets the pixel
//     format and re-applies frame timing.
//   - A Strategy allocates the BufferPool; MmapStrategy is the only one and
//     maps every kernel buffer into process memory.
//   - Streamer queues the ring, waits for readiness with a bounded timeout,
//     hands filled buffers to a FrameSink and requeues them.
//   - Session composes the above and always unwinds what it acquired, in the
//     order stop streaming, unmap, close.
//
// Every failure is a *Error carrying a Kind and the Phase it happened in:
//
//	err := capture.NewSession(opts).Run(ctx, sink)
//	switch {
//	case errors.Is(err, capture.ErrDeviceStalled):
//	    // no frame within the wait timeout; the device is considered dead
//	case errors.Is(err, capture.ErrFormatRejected):
//	    // show the formats the device does support
//	}
//
// Kernel access goes through the Driver interface so the whole state machine
// can be exercised without hardware.
package capture
