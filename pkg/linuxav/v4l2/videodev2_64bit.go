//go:build linux && (amd64 || arm64)

package v4l2

import (
	"time"
	"unsafe"
)

// Compile-time struct size assertions.
// These will cause build failures if struct sizes don't match kernel expectations.
var (
	_ [208]byte = [unsafe.Sizeof(v4l2Format{})]byte{}
	_ [88]byte  = [unsafe.Sizeof(v4l2Buffer{})]byte{}
)

// IOCTL constants for 64-bit architectures.
const (
	vidiocGFmt     = 0xc0d05604
	vidiocSFmt     = 0xc0d05605
	vidiocQuerybuf = 0xc0585609
	vidiocQbuf     = 0xc058560f
	vidiocDqbuf    = 0xc0585611
)

// v4l2Format has size 208 bytes. The fmt union holds pointers (v4l2_window)
// and is therefore 8-byte aligned.
type v4l2Format struct {
	typ uint32        // offset 0
	_   [4]byte       // padding
	pix v4l2PixFormat // offset 8
	_   [152]byte     // rest of the 200-byte union
}

// v4l2Buffer has size 88 bytes.
type v4l2Buffer struct {
	index         uint32       // offset 0
	typ           uint32       // offset 4
	bytesused     uint32       // offset 8
	flags         uint32       // offset 12
	field         uint32       // offset 16
	_             [4]byte      // padding
	timestampSec  int64        // offset 24
	timestampUsec int64        // offset 32
	timecode      v4l2Timecode // offset 40
	sequence      uint32       // offset 56
	memory        uint32       // offset 60
	offset        uint32       // offset 64 (union m)
	_             [4]byte      // rest of union m (userptr / planes)
	length        uint32       // offset 72
	reserved2     uint32       // offset 76
	requestFd     int32        // offset 80
	_             [4]byte      // padding
}

func (b *v4l2Buffer) timestamp() time.Duration {
	return time.Duration(b.timestampSec)*time.Second + time.Duration(b.timestampUsec)*time.Microsecond
}
