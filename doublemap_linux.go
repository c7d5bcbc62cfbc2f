//go:build linux

package dmring

import "golang.org/x/sys/unix"

// newBackingFile creates an unnamed shared memory object of size n via
// memfd_create, the Linux/Android idiom for an anonymous shared backing
// object that needs no filesystem path and cleans itself up once every
// mapping referencing it is released.
func newBackingFile(n uintptr) (int, error) {
	fd, err := unix.MemfdCreate("dmring", unix.MFD_CLOEXEC)
	if err != nil {
		return -1, err
	}
	if err := unix.Ftruncate(fd, int64(n)); err != nil {
		unix.Close(fd)
		return -1, err
	}
	return fd, nil
}
