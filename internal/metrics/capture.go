// Package metrics provides Prometheus metrics for capture sessions.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "framegrab"
	subsystem = "capture"
)

// Capture records capture-loop measurements on its own registry.
// It satisfies capture.Recorder.
type Capture struct {
	registry *prometheus.Registry

	frames         prometheus.Counter
	bytes          prometheus.Counter
	waitInterrupts prometheus.Counter
	dequeueRetries prometheus.Counter
	errors         *prometheus.CounterVec
	buffers        *prometheus.GaugeVec
	frameWait      prometheus.Histogram

	// Local copy for the end-of-run summary.
	mu      sync.RWMutex
	summary Summary
}

// Summary holds totals of one run.
type Summary struct {
	Frames         int
	Bytes          int
	WaitInterrupts int
	DequeueRetries int
	Failures       map[string]int
	MaxWait        time.Duration
}

// NewCapture creates the capture metrics on a fresh registry.
func NewCapture() *Capture {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Capture{
		registry: reg,
		frames: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "frames_total",
			Help:      "Frames delivered to the sink",
		}),
		bytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "bytes_total",
			Help:      "Payload bytes delivered to the sink",
		}),
		waitInterrupts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "wait_interrupts_total",
			Help:      "Readiness waits interrupted by a signal",
		}),
		dequeueRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "dequeue_retries_total",
			Help:      "Dequeue attempts that found no buffer ready",
		}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "errors_total",
			Help:      "Capture sessions that ended in an error, by kind",
		}, []string{"kind"}),
		buffers: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "buffers",
			Help:      "Mapped buffers by ownership state",
		}, []string{"state"}),
		frameWait: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "frame_wait_seconds",
			Help:      "Time from the start of a wait until a frame was dequeued",
			Buckets:   []float64{.001, .005, .01, .02, .04, .07, .1, .25, .5, 1, 2},
		}),
		summary: Summary{Failures: make(map[string]int)},
	}
}

// Registry returns the registry the metrics are registered on.
func (c *Capture) Registry() *prometheus.Registry {
	return c.registry
}

// FrameCaptured counts one delivered frame.
func (c *Capture) FrameCaptured(bytes int, wait time.Duration) {
	c.frames.Inc()
	c.bytes.Add(float64(bytes))
	c.frameWait.Observe(wait.Seconds())

	c.mu.Lock()
	c.summary.Frames++
	c.summary.Bytes += bytes
	c.summary.MaxWait = max(c.summary.MaxWait, wait)
	c.mu.Unlock()
}

// WaitInterrupted counts one EINTR during a readiness wait.
func (c *Capture) WaitInterrupted() {
	c.waitInterrupts.Inc()
	c.mu.Lock()
	c.summary.WaitInterrupts++
	c.mu.Unlock()
}

// DequeueRetried counts one dequeue that has to be retried.
func (c *Capture) DequeueRetried() {
	c.dequeueRetries.Inc()
	c.mu.Lock()
	c.summary.DequeueRetries++
	c.mu.Unlock()
}

// CaptureFailed counts a failed session by error kind.
func (c *Capture) CaptureFailed(kind string) {
	c.errors.WithLabelValues(kind).Inc()
	c.mu.Lock()
	c.summary.Failures[kind]++
	c.mu.Unlock()
}

// BuffersChanged sets the buffer state gauge.
func (c *Capture) BuffersChanged(free, queued, filled int) {
	c.buffers.WithLabelValues("free").Set(float64(free))
	c.buffers.WithLabelValues("queued").Set(float64(queued))
	c.buffers.WithLabelValues("filled").Set(float64(filled))
}

// Summary returns a copy of the run totals.
func (c *Capture) Summary() Summary {
	c.mu.RLock()
	defer c.mu.RUnlock()
	dup := c.summary
	dup.Failures = make(map[string]int, len(c.summary.Failures))
	for k, v := range c.summary.Failures {
		dup.Failures[k] = v
	}
	return dup
}

// WriteTextfile writes every metric in the Prometheus text format to path,
// for the node_exporter textfile collector.
func (c *Capture) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.registry)
}
