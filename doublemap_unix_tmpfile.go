//go:build unix && !linux

package dmring

import (
	"os"

	"golang.org/x/sys/unix"
)

// newBackingFile creates the shared backing object on non-Linux POSIX
// targets (macOS, the BSDs). memfd_create is Linux-only, so these platforms
// use the standard fallback: a unique temporary file that is unlinked
// immediately after creation. The fd keeps the object alive until every
// mapping referencing it is released, same as memfd.
func newBackingFile(n uintptr) (int, error) {
	f, err := os.CreateTemp("", "dmring-*")
	if err != nil {
		return -1, err
	}
	name := f.Name()
	defer os.Remove(name)

	if err := f.Truncate(int64(n)); err != nil {
		f.Close()
		return -1, err
	}

	fd := int(f.Fd())
	// Duplicate the fd so we can unlink+close the *os.File without
	// invalidating the descriptor we're about to mmap with.
	dup, err := unix.Dup(fd)
	f.Close()
	if err != nil {
		return -1, err
	}
	return dup, nil
}
