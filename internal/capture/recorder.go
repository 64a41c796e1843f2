package capture

import "time"

// Recorder receives capture measurements. internal/metrics provides the
// Prometheus implementation.
type Recorder interface {
	FrameCaptured(bytes int, wait time.Duration)
	WaitInterrupted()
	DequeueRetried()
	CaptureFailed(kind string)
	BuffersChanged(free, queued, filled int)
}

type nopRecorder struct{}

func (nopRecorder) FrameCaptured(int, time.Duration) {}
func (nopRecorder) WaitInterrupted()                 {}
func (nopRecorder) DequeueRetried()                  {}
func (nopRecorder) CaptureFailed(string)             {}
func (nopRecorder) BuffersChanged(int, int, int)     {}
