package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/smazurov/framegrab/internal/capture"
)

// UsageError is a command-line mistake found before any device is touched.
type UsageError struct {
	msg string
}

func (e *UsageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &UsageError{msg: fmt.Sprintf(format, args...)}
}

// Exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

// ExitCode maps an error returned by the CLI to a process exit status.
func ExitCode(err error) int {
	var ue *UsageError
	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &ue):
		return ExitUsage
	default:
		return ExitFailure
	}
}

var formatCodes = map[int]capture.PixelFormat{
	1: capture.PixelFormatMJPEG,
	2: capture.PixelFormatYUYV,
	3: capture.PixelFormatSRGGB10,
	4: capture.PixelFormatSGBRG10,
}

// PixelFormatFromCode maps the numeric -f code to a pixel format.
func PixelFormatFromCode(code int) (capture.PixelFormat, error) {
	pf, ok := formatCodes[code]
	if !ok {
		return 0, usagef("%d is an invalid pixel format (1=MJPEG, 2=YUYV 4:2:2, 3=SRGGB10, 4=SGBRG10)", code)
	}
	return pf, nil
}

// ParseResolution parses "<width>x<height>". Both sides must be positive
// decimal integers; any other separator or trailing text is rejected.
func ParseResolution(s string) (width, height uint32, err error) {
	ws, hs, ok := strings.Cut(s, "x")
	if !ok {
		return 0, 0, usagef("resolution %q: use WIDTHxHEIGHT, e.g. 640x480", s)
	}
	if width, err = parseDimension(ws); err != nil {
		return 0, 0, usagef("resolution %q: width: %v", s, err)
	}
	if height, err = parseDimension(hs); err != nil {
		return 0, 0, usagef("resolution %q: height: %v", s, err)
	}
	return width, height, nil
}

func parseDimension(s string) (uint32, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		var ne *strconv.NumError
		if errors.As(err, &ne) {
			err = ne.Err
		}
		return 0, fmt.Errorf("%q: %w", s, err)
	}
	if n == 0 {
		return 0, errors.New("must be greater than zero")
	}
	return uint32(n), nil
}
