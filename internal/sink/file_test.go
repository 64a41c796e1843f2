package sink

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/smazurov/framegrab/internal/capture"
)

func TestExtension(t *testing.T) {
	tests := []struct {
		format capture.PixelFormat
		want   string
	}{
		{capture.PixelFormatMJPEG, "jpg"},
		{capture.PixelFormatYUYV, "yuv"},
		{capture.PixelFormatSRGGB10, "data"},
		{capture.PixelFormatSGBRG10, "data"},
		{capture.PixelFormat(0), "data"},
	}
	for _, tt := range tests {
		if got := Extension(tt.format); got != tt.want {
			t.Errorf("Extension(%v) = %q, want %q", tt.format, got, tt.want)
		}
	}
}

func TestFileSinkWritesNumberedFiles(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "cap")
	s := &FileSink{Prefix: prefix, Format: capture.PixelFormatYUYV}

	for i := 1; i <= 3; i++ {
		data := bytes.Repeat([]byte{byte(i)}, 64)
		if err := s.WriteFrame(capture.Frame{Index: i, Data: data, BytesUsed: uint32(len(data))}); err != nil {
			t.Fatalf("WriteFrame(%d): %v", i, err)
		}
	}

	for i, name := range []string{"cap_1.yuv", "cap_2.yuv", "cap_3.yuv"} {
		got, err := os.ReadFile(filepath.Join(filepath.Dir(prefix), name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if len(got) == 0 || got[0] != byte(i+1) {
			t.Errorf("%s has unexpected contents %v", name, got[:min(len(got), 4)])
		}
	}
}

func TestFileSinkWritesOnlyBytesUsed(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "frame")
	s := &FileSink{Prefix: prefix, Format: capture.PixelFormatMJPEG}

	data := []byte("0123456789")
	if err := s.WriteFrame(capture.Frame{Index: 7, Data: data, BytesUsed: 4}); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	got, err := os.ReadFile(prefix + "_7.jpg")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "0123" {
		t.Errorf("file contents = %q, want %q", got, "0123")
	}
}

func TestFileSinkFollowsFrameFormat(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "cap")
	s := &FileSink{Prefix: prefix, Format: capture.PixelFormatMJPEG}

	frame := capture.Frame{Index: 1, Data: []byte("yuyv"), BytesUsed: 4, PixelFormat: capture.PixelFormatYUYV}
	if got, want := s.FramePath(frame), prefix+"_1.yuv"; got != want {
		t.Errorf("FramePath() = %q, want %q", got, want)
	}
	if err := s.WriteFrame(frame); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if _, err := os.Stat(prefix + "_1.yuv"); err != nil {
		t.Errorf("expected yuv file: %v", err)
	}
	if _, err := os.Stat(prefix + "_1.jpg"); err == nil {
		t.Error("a YUYV frame must not be written as jpg")
	}

	frame.PixelFormat = 0
	if got, want := s.FramePath(frame), prefix+"_1.jpg"; got != want {
		t.Errorf("FramePath() without format = %q, want %q", got, want)
	}
}

func TestFileSinkCreatesParentDirectories(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "a", "b", "raw")
	s := &FileSink{Prefix: prefix, Format: capture.PixelFormatSRGGB10}

	if err := s.WriteFrame(capture.Frame{Index: 1, Data: []byte{1, 2}, BytesUsed: 2}); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if _, err := os.Stat(prefix + "_1.data"); err != nil {
		t.Errorf("expected output file: %v", err)
	}
}

func TestFileSinkFailures(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		sink  *FileSink
		frame capture.Frame
		is    error
	}{
		{
			name:  "empty prefix",
			sink:  &FileSink{Format: capture.PixelFormatYUYV},
			frame: capture.Frame{Index: 1, Data: []byte{1}, BytesUsed: 1},
			is:    ErrNoPrefix,
		},
		{
			name:  "parent is a regular file",
			sink:  &FileSink{Prefix: filepath.Join(blocker, "cap"), Format: capture.PixelFormatYUYV},
			frame: capture.Frame{Index: 1, Data: []byte{1}, BytesUsed: 1},
		},
		{
			name:  "bytes used beyond data",
			sink:  &FileSink{Prefix: filepath.Join(dir, "cap"), Format: capture.PixelFormatYUYV},
			frame: capture.Frame{Index: 1, Data: []byte{1}, BytesUsed: 9},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.sink.WriteFrame(tt.frame)
			if err == nil {
				t.Fatal("WriteFrame succeeded, want error")
			}
			if tt.is != nil && !errors.Is(err, tt.is) {
				t.Errorf("WriteFrame error = %v, want %v", err, tt.is)
			}
		})
	}
}

func TestFileSinkSatisfiesFrameSink(t *testing.T) {
	var _ capture.FrameSink = (*FileSink)(nil)
}
