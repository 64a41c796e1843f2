//go:build linux

package devices

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/smazurov/framegrab/internal/events"
	"github.com/smazurov/framegrab/pkg/linuxav/hotplug"
)

// Watch publishes a DeviceDiscoveryEvent for every video4linux node the
// kernel adds or removes until ctx is done. It returns nil on cancellation.
func Watch(ctx context.Context, bus *events.Bus, logger *slog.Logger) error {
	if bus == nil {
		return errors.New("devices: watch needs an event bus")
	}
	if logger == nil {
		logger = slog.Default()
	}

	monitor, err := hotplug.NewMonitor()
	if err != nil {
		return fmt.Errorf("open uevent monitor: %w", err)
	}
	defer monitor.Close()
	monitor.FilterSubsystem(hotplug.SubsystemVideo4Linux)

	uevents := make(chan hotplug.Event, 16)
	done := make(chan error, 1)
	go func() { done <- monitor.Run(ctx, uevents) }()

	logger.Info("Watching for capture devices")
	for ev := range uevents {
		discovery, ok := discoveryFromUEvent(ev, time.Now())
		if !ok {
			continue
		}
		logger.Debug("Device event", "device", discovery.DevicePath, "action", discovery.Action)
		bus.Publish(discovery)
	}

	if err := <-done; err != nil && ctx.Err() == nil {
		return fmt.Errorf("uevent monitor: %w", err)
	}
	return nil
}

// discoveryFromUEvent maps a kernel uevent to a discovery event. Only node
// additions and removals are reported.
func discoveryFromUEvent(ev hotplug.Event, at time.Time) (events.DeviceDiscoveryEvent, bool) {
	node := ev.Node()
	if node == "" || ev.Subsystem != hotplug.SubsystemVideo4Linux {
		return events.DeviceDiscoveryEvent{}, false
	}

	var action string
	switch ev.Action {
	case hotplug.ActionAdd:
		action = "added"
	case hotplug.ActionRemove:
		action = "removed"
	default:
		return events.DeviceDiscoveryEvent{}, false
	}
	return events.DeviceDiscoveryEvent{
		DevicePath: node,
		Action:     action,
		Timestamp:  at.Format(time.RFC3339),
	}, true
}
