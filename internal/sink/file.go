// Package sink writes captured frames to disk.
package sink

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/smazurov/framegrab/internal/capture"
	"github.com/smazurov/framegrab/internal/logging"
)

// ErrNoPrefix is returned when a FileSink has no output prefix.
var ErrNoPrefix = errors.New("sink: output prefix is empty")

// Extension returns the file extension used for frames in format pf.
func Extension(pf capture.PixelFormat) string {
	switch pf {
	case capture.PixelFormatMJPEG:
		return "jpg"
	case capture.PixelFormatYUYV:
		return "yuv"
	default:
		return "data"
	}
}

// FileSink writes each frame to <Prefix>_<index>.<ext>. The extension
// follows the frame's negotiated format, Format when the frame has none.
type FileSink struct {
	Prefix string
	Format capture.PixelFormat
}

// Path returns the file a frame with the given index is written to when it
// carries no format of its own.
func (s *FileSink) Path(index int) string {
	return fmt.Sprintf("%s_%d.%s", s.Prefix, index, Extension(s.Format))
}

// FramePath returns the file f is written to.
func (s *FileSink) FramePath(f capture.Frame) string {
	if f.PixelFormat == 0 {
		return s.Path(f.Index)
	}
	return fmt.Sprintf("%s_%d.%s", s.Prefix, f.Index, Extension(f.PixelFormat))
}

// WriteFrame implements capture.FrameSink. Exactly BytesUsed bytes are written.
func (s *FileSink) WriteFrame(f capture.Frame) error {
	if s.Prefix == "" {
		return ErrNoPrefix
	}

	if int(f.BytesUsed) > len(f.Data) {
		return fmt.Errorf("frame %d: %d bytes used but only %d available", f.Index, f.BytesUsed, len(f.Data))
	}

	path := s.FramePath(f)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	if _, err := file.Write(f.Data[:f.BytesUsed]); err != nil {
		_ = file.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}

	logging.GetLogger("sink").Debug("Frame written", "path", path, "bytes", f.BytesUsed)
	return nil
}
