//go:build linux && arm && !arm64

package v4l2

import (
	"time"
	"unsafe"
)

// Compile-time struct size assertions for 32-bit ARM.
// struct timeval and the pointer members of the unions are 4 bytes here,
// which shrinks v4l2_format and v4l2_buffer and changes their ioctl numbers.
var (
	_ [204]byte = [unsafe.Sizeof(v4l2Format{})]byte{}
	_ [68]byte  = [unsafe.Sizeof(v4l2Buffer{})]byte{}
)

// IOCTL constants for 32-bit ARM.
const (
	vidiocGFmt     = 0xc0cc5604
	vidiocSFmt     = 0xc0cc5605
	vidiocQuerybuf = 0xc0445609
	vidiocQbuf     = 0xc044560f
	vidiocDqbuf    = 0xc0445611
)

// v4l2Format - size 204 bytes
type v4l2Format struct {
	typ uint32
	pix v4l2PixFormat
	_   [152]byte
}

// v4l2Buffer - size 68 bytes
type v4l2Buffer struct {
	index         uint32
	typ           uint32
	bytesused     uint32
	flags         uint32
	field         uint32
	timestampSec  int32
	timestampUsec int32
	timecode      v4l2Timecode
	sequence      uint32
	memory        uint32
	offset        uint32
	length        uint32
	reserved2     uint32
	requestFd     int32
}

func (b *v4l2Buffer) timestamp() time.Duration {
	return time.Duration(b.timestampSec)*time.Second + time.Duration(b.timestampUsec)*time.Microsecond
}
