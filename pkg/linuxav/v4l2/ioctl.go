//go:build linux

package v4l2

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// MaxIoctlAttempts bounds how many times an ioctl interrupted by a signal is
// issued before EINTR is handed back to the caller.
const MaxIoctlAttempts = 5

func ioctl(fd int, req uint, arg unsafe.Pointer) error {
	var errno unix.Errno
	for attempt := 0; attempt < MaxIoctlAttempts; attempt++ {
		_, _, errno = unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(req), uintptr(arg))
		if errno != unix.EINTR {
			break
		}
	}
	if errno != 0 {
		return errno
	}
	return nil
}

func open(path string) (int, error) {
	return unix.Open(path, unix.O_RDWR|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
}

func close(fd int) error {
	return unix.Close(fd)
}
