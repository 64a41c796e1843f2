package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/smazurov/framegrab/internal/capture"
	"github.com/smazurov/framegrab/internal/config"
	"github.com/smazurov/framegrab/internal/devices"
	"github.com/smazurov/framegrab/internal/events"
	"github.com/smazurov/framegrab/internal/logging"
	"github.com/smazurov/framegrab/internal/metrics"
	"github.com/smazurov/framegrab/internal/sink"
)

// request is a fully validated capture invocation.
type request struct {
	config capture.Config
	output string
}

// validate turns loaded options into a request without touching any device.
func (o *Options) validate() (request, error) {
	if o.Format == 0 {
		return request{}, usagef("please provide a pixel format with -f")
	}
	pf, err := PixelFormatFromCode(o.Format)
	if err != nil {
		return request{}, err
	}
	if o.Resolution == "" {
		return request{}, usagef("please provide a resolution with -s WIDTHxHEIGHT")
	}
	width, height, err := ParseResolution(o.Resolution)
	if err != nil {
		return request{}, err
	}
	if o.Output == "" {
		return request{}, usagef("please provide an output file prefix with -o")
	}
	if o.Count <= 0 {
		return request{}, usagef("count must be positive, got %d", o.Count)
	}
	if o.Buffers < capture.MinBuffers {
		return request{}, usagef("at least %d buffers are required, got %d", capture.MinBuffers, o.Buffers)
	}
	if o.WaitDevice < 0 {
		return request{}, usagef("wait-device must not be negative")
	}

	return request{
		config: capture.Config{Width: width, Height: height, PixelFormat: pf, Frames: o.Count},
		output: o.Output,
	}, nil
}

func setupLogging(opts *Options) error {
	cfg := config.LoadLoggingConfig(opts.Config)
	cfg.Level = opts.LogLevel
	cfg.Format = opts.LogFormat
	if err := cfg.Validate(); err != nil {
		return usagef("%v", err)
	}
	logging.Initialize(cfg)
	return nil
}

func runCapture(cmd *cobra.Command, opts *Options) error {
	if err := config.LoadConfig(opts, cmd); err != nil {
		return usagef("%v", err)
	}
	req, err := opts.validate()
	if err != nil {
		return err
	}
	if err := setupLogging(opts); err != nil {
		return err
	}
	logger := logging.GetLogger("cli")

	if opts.Device == defaultDevice && !cmd.Flags().Changed("device") {
		logger.Info("Default video device assigned for capturing", "device", defaultDevice)
	}

	detector := newDetector()
	devicePath, err := devices.ResolveDevicePath(detector, opts.Device)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	bus := events.New()

	if opts.WaitDevice > 0 {
		if err := devices.WaitForDevice(ctx, devicePath, opts.WaitDevice, bus, logging.GetLogger("devices")); err != nil {
			return fmt.Errorf("device %s: %w", devicePath, err)
		}
	}

	recorder := metrics.NewCapture()
	session := capture.NewSession(capture.SessionOptions{
		DevicePath:  devicePath,
		Config:      req.config,
		Driver:      newDriver(),
		BufferCount: opts.Buffers,
		TolerateEIO: opts.TolerateEIO,
		Logger:      logging.GetLogger("capture"),
		Bus:         bus,
		Metrics:     recorder,
	})
	out := &reportingSink{
		FileSink: &sink.FileSink{Prefix: req.output, Format: req.config.PixelFormat},
		w:        cmd.OutOrStdout(),
	}

	logger.Info("Starting capture",
		"device", devicePath,
		"format", req.config.PixelFormat,
		"resolution", opts.Resolution,
		"frames", req.config.Frames,
		"output", req.output)

	runErr := session.Run(ctx, out)

	summary := recorder.Summary()
	logger.Info("Capture summary",
		"frames", summary.Frames,
		"bytes", summary.Bytes,
		"wait_interrupts", summary.WaitInterrupts,
		"dequeue_retries", summary.DequeueRetries,
		"max_wait", summary.MaxWait)

	if runErr != nil {
		explainFailure(cmd.ErrOrStderr(), logger, detector, devicePath, runErr)
	}

	if opts.MetricsFile != "" {
		if err := recorder.WriteTextfile(opts.MetricsFile); err != nil {
			runErr = errors.Join(runErr, fmt.Errorf("write metrics: %w", err))
		} else {
			logger.Debug("Metrics written", "path", opts.MetricsFile)
		}
	}
	return runErr
}

// reportingSink prints the path of every frame once it is on disk.
type reportingSink struct {
	*sink.FileSink
	w io.Writer
}

func (r *reportingSink) WriteFrame(f capture.Frame) error {
	if err := r.FileSink.WriteFrame(f); err != nil {
		return err
	}
	fmt.Fprintln(r.w, r.FramePath(f))
	return nil
}

// explainFailure adds operator hints for failures that have an obvious next
// step.
func explainFailure(w io.Writer, logger *slog.Logger, detector devices.DeviceDetector, devicePath string, err error) {
	switch {
	case errors.Is(err, capture.ErrFormatRejected):
		fmt.Fprintf(w, "The driver rejected the requested format. Supported formats on %s:\n", devicePath)
		if perr := printFormats(w, detector, devicePath); perr != nil {
			logger.Warn("Cannot list supported formats", "device", devicePath, "error", perr)
		}
	case errors.Is(err, capture.ErrDeviceStalled):
		logger.Error("Device stopped delivering frames; giving up", "device", devicePath)
	case errors.Is(err, capture.ErrMappingUnsupported), errors.Is(err, capture.ErrUnsupportedIO):
		fmt.Fprintf(w, "%s does not support memory-mapped streaming capture.\n", devicePath)
	}
}
