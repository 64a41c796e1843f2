package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/framegrab/internal/devices"
	"github.com/smazurov/framegrab/internal/events"
	"github.com/smazurov/framegrab/internal/logging"
)

// Replaced in tests.
var watchDevices = devices.Watch

// CreateDevicesCmd creates the devices command.
func CreateDevicesCmd() *cobra.Command {
	var asJSON, watch bool

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List V4L2 capture devices",
		Long: `Lists V4L2 capture devices. With --watch, keeps running and reports device
nodes as they are added or removed until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := newDetector().FindDevices()
			if err != nil {
				return fmt.Errorf("enumerate devices: %w", err)
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(list); err != nil {
					return err
				}
			} else if err := printDevices(cmd.OutOrStdout(), list); err != nil {
				return err
			}
			if !watch {
				return nil
			}
			return followDevices(cmd, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print devices as JSON")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Report devices as they appear and disappear")
	return cmd
}

// CreateFormatsCmd creates the formats command.
func CreateFormatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "formats [device]",
		Short: "List formats, resolutions and frame rates of a device",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			device := defaultDevice
			if len(args) == 1 {
				device = args[0]
			}
			detector := newDetector()
			path, err := devices.ResolveDevicePath(detector, device)
			if err != nil {
				return err
			}
			return printFormats(cmd.OutOrStdout(), detector, path)
		},
	}
	return cmd
}

// watchDrainGrace bounds how long late discovery events are still printed
// after the watcher stopped.
const watchDrainGrace = 500 * time.Millisecond

func followDevices(cmd *cobra.Command, asJSON bool) error {
	bus := events.New()
	found := make(chan events.DeviceDiscoveryEvent, 64)
	unsub := events.SubscribeToChannel(bus, found)
	defer unsub()

	out := cmd.OutOrStdout()
	report := func(e events.DeviceDiscoveryEvent) {
		if asJSON {
			_ = json.NewEncoder(out).Encode(e)
			return
		}
		fmt.Fprintf(out, "%s\t%s\t%s\n", e.Timestamp, e.Action, e.DevicePath)
	}

	done := make(chan error, 1)
	go func() { done <- watchDevices(cmd.Context(), bus, logging.GetLogger("devices")) }()

	for {
		select {
		case e := <-found:
			report(e)
		case err := <-done:
			drain := time.NewTimer(watchDrainGrace)
			defer drain.Stop()
			for {
				select {
				case e := <-found:
					report(e)
				case <-drain.C:
					return err
				}
			}
		}
	}
}

func printDevices(w io.Writer, list []devices.DeviceInfo) error {
	if len(list) == 0 {
		_, err := fmt.Fprintln(w, "No capture devices found.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tNAME\tTYPE\tREADY\tID")
	for _, d := range list {
		typ := d.Type.String()
		if d.Signal != "" {
			typ += " (" + d.Signal + ")"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n", d.DevicePath, d.DeviceName, typ, d.Ready, d.DeviceID)
	}
	return tw.Flush()
}

func printFormats(w io.Writer, detector devices.DeviceDetector, path string) error {
	details, err := devices.DescribeFormats(detector, path)
	if err != nil {
		return fmt.Errorf("list formats of %s: %w", path, err)
	}
	if len(details) == 0 {
		_, err := fmt.Fprintf(w, "%s reports no formats.\n", path)
		return err
	}

	for _, d := range details {
		name := d.FormatName
		if d.Emulated {
			name += " (emulated)"
		}
		fmt.Fprintf(w, "%s\n", name)
		for _, m := range d.Modes {
			rates := make([]string, 0, len(m.Framerates))
			for _, r := range m.Framerates {
				rates = append(rates, fmt.Sprintf("%.3g", r.FPS()))
			}
			line := fmt.Sprintf("  %dx%d", m.Resolution.Width, m.Resolution.Height)
			if len(rates) > 0 {
				line += " @ " + strings.Join(rates, ", ") + " fps"
			}
			fmt.Fprintln(w, line)
		}
	}
	return nil
}
