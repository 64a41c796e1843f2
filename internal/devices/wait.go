package devices

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/smazurov/framegrab/internal/events"
)

// ErrWaitTimeout is returned when a device node does not appear in time.
var ErrWaitTimeout = errors.New("devices: timed out waiting for device node")

// WaitForDevice blocks until path exists, timeout elapses or ctx is done.
// The nearest existing ancestor directory is watched, so nodes under
// directories udev has not created yet (such as /dev/v4l/by-id) are found
// too. When bus is not nil an "added" DeviceDiscoveryEvent is published if
// the node appears while waiting.
func WaitForDevice(ctx context.Context, path string, timeout time.Duration, bus *events.Bus, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if exists(path) {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	watched, err := watchNearest(watcher, filepath.Dir(path))
	if err != nil {
		return err
	}
	// The node may have appeared between the first check and the watch.
	if exists(path) {
		publishAdded(bus, path)
		return nil
	}

	logger.Info("Waiting for device", "device", path, "watching", watched, "timeout", timeout)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-timer.C:
			return fmt.Errorf("%w: %s after %s", ErrWaitTimeout, path, timeout)

		case event, ok := <-watcher.Events:
			if !ok {
				return errors.New("devices: watcher closed")
			}
			if event.Op&fsnotify.Create == 0 {
				continue
			}
			logger.Debug("Device directory changed", "name", event.Name)

			if exists(path) {
				logger.Info("Device appeared", "device", path)
				publishAdded(bus, path)
				return nil
			}
			// A missing intermediate directory was created; descend into it.
			if event.Name != watched && isAncestor(event.Name, path) {
				if next, err := watchNearest(watcher, filepath.Dir(path)); err == nil && next != watched {
					_ = watcher.Remove(watched)
					watched = next
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return errors.New("devices: watcher closed")
			}
			logger.Warn("Device watcher error", "error", err)
		}
	}
}

// watchNearest adds a watch on dir or its closest existing ancestor.
func watchNearest(w *fsnotify.Watcher, dir string) (string, error) {
	for {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			if err := w.Add(dir); err != nil {
				return "", fmt.Errorf("watch %s: %w", dir, err)
			}
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("devices: no existing directory above %s", dir)
		}
		dir = parent
	}
}

func isAncestor(dir, path string) bool {
	return strings.HasPrefix(filepath.Clean(path), filepath.Clean(dir)+string(filepath.Separator))
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func publishAdded(bus *events.Bus, path string) {
	if bus == nil {
		return
	}
	bus.Publish(events.DeviceDiscoveryEvent{
		DevicePath: path,
		Action:     "added",
		Timestamp:  time.Now().Format(time.RFC3339),
	})
}
