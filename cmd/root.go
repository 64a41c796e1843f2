// Package cmd holds the framegrab command line.
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/framegrab/internal/capture"
	"github.com/smazurov/framegrab/internal/devices"
)

const (
	defaultDevice = "/dev/video0"
	defaultConfig = "framegrab.toml"
)

// Options for the capture command - flat structure with toml mapping.
type Options struct {
	Config string

	Device      string        `toml:"capture.device" env:"DEVICE"`
	Output      string        `toml:"capture.output" env:"OUTPUT"`
	Format      int           `toml:"capture.format" env:"FORMAT"`
	Count       int           `toml:"capture.count" env:"COUNT"`
	Resolution  string        `toml:"capture.resolution" env:"RESOLUTION"`
	Buffers     uint32        `toml:"capture.buffers" env:"BUFFERS"`
	WaitDevice  time.Duration `toml:"capture.wait_device" env:"WAIT_DEVICE"`
	TolerateEIO bool          `toml:"capture.tolerate_eio" env:"TOLERATE_EIO"`

	MetricsFile string `toml:"metrics.file" env:"METRICS_FILE"`

	LogLevel  string `toml:"logging.level" env:"LOGGING_LEVEL"`
	LogFormat string `toml:"logging.format" env:"LOGGING_FORMAT"`
}

// Replaced in tests.
var (
	newDriver   = capture.NewV4L2Driver
	newDetector = devices.NewDetector
)

// NewRootCmd builds the framegrab command tree. The root command captures.
func NewRootCmd() *cobra.Command {
	opts := &Options{}

	cmd := &cobra.Command{
		Use:   "framegrab",
		Short: "Capture frames from a V4L2 device into files",
		Long: `Captures a fixed number of frames from a V4L2 video device using memory-mapped
streaming I/O and writes each frame to <output>_<n>.<ext>, where ext is jpg for
MJPEG, yuv for YUYV and data for raw Bayer formats.`,
		Example: `  framegrab -d /dev/video0 -f 2 -s 640x480 -c 3 -o cap
  framegrab -d usb-046d_HD_Pro_Webcam_C920-video-index0 -f 1 -s 1920x1080 -o shots/frame`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCapture(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.Config, "config", defaultConfig, "Path to configuration file")
	f.StringVarP(&opts.Device, "device", "d", defaultDevice, "Video device path or stable device ID")
	f.StringVarP(&opts.Output, "output", "o", "", "Output file prefix (required)")
	f.IntVarP(&opts.Format, "format", "f", 0, "Pixel format: 1=MJPEG, 2=YUYV 4:2:2, 3=SRGGB10, 4=SGBRG10 (required)")
	f.IntVarP(&opts.Count, "count", "c", 1, "Number of frames to grab")
	f.StringVarP(&opts.Resolution, "resolution", "s", "", "Capture size WIDTHxHEIGHT, e.g. 640x480 (required)")
	f.Uint32Var(&opts.Buffers, "buffers", capture.DefaultBufferCount, "Number of capture buffers to request")
	f.DurationVar(&opts.WaitDevice, "wait-device", 0, "Wait this long for the device node to appear (0 disables)")
	f.BoolVar(&opts.TolerateEIO, "tolerate-eio", false, "Retry dequeues that fail with EIO instead of aborting")
	f.StringVar(&opts.MetricsFile, "metrics-file", "", "Write Prometheus metrics to this file on exit")
	f.StringVar(&opts.LogLevel, "log-level", "info", "Logging level (debug, info, warn, error)")
	f.StringVar(&opts.LogFormat, "log-format", "text", "Logging format (text, json)")

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &UsageError{msg: err.Error()}
	})

	cmd.AddCommand(CreateDevicesCmd(), CreateFormatsCmd(), CreateVersionCmd())
	return cmd
}

// Execute runs the command line with args and returns the exit status.
func Execute(ctx context.Context, args []string) int {
	root := NewRootCmd()
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
		if ExitCode(err) == ExitUsage {
			fmt.Fprintf(root.ErrOrStderr(), "Run '%s --help' for usage.\n", root.CommandPath())
		}
	}
	return ExitCode(err)
}
