//go:build unix

package dmring

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// platformGranularity returns the OS allocation granularity: the page size
// on every POSIX target.
func platformGranularity() uintptr {
	return uintptr(unix.Getpagesize())
}

// platformNewMapping reserves a contiguous 2N region of virtual address
// space and maps a single N-byte shared backing object twice into it,
// back-to-back, so the two halves alias the same physical pages.
//
// The backing object's fd is provided by newBackingFile, which is platform
// specific (memfd_create on Linux/Android; elsewhere an unlinked temporary
// file, with no shm_open path tried).
func platformNewMapping(n uintptr) (base uintptr, closeFn func() error, err error) {
	fd, err := newBackingFile(n)
	if err != nil {
		return 0, nil, fmt.Errorf("create backing object: %w", err)
	}
	// The backing fd is only needed to establish the two mappings; once
	// both mmap calls succeed the mapping outlives the fd.
	defer unix.Close(fd)

	total := 2 * n

	// Reserve a hole of the right size so we know a 2N-byte run of virtual
	// address space is free, then release the reservation immediately
	// before re-mapping the backing object twice at that address with
	// MAP_FIXED. This is racy against other threads mapping memory between
	// the unmap and the fixed re-map, same as every double-mapped ring
	// buffer implementation pays for lack of an atomic "reserve and keep"
	// primitive on POSIX.
	reserved, _, errno := unix.Syscall6(unix.SYS_MMAP, 0, total, unix.PROT_NONE,
		unix.MAP_ANON|unix.MAP_PRIVATE, ^uintptr(0), 0)
	if errno != 0 {
		return 0, nil, fmt.Errorf("reserve virtual range: %w", errno)
	}

	if munErr := munmapAt(reserved, total); munErr != nil {
		return 0, nil, fmt.Errorf("release reservation: %w", munErr)
	}

	firstAddr, _, errno := unix.Syscall6(unix.SYS_MMAP, reserved, n,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_FIXED, uintptr(fd), 0)
	if errno != 0 {
		return 0, nil, fmt.Errorf("map first half: %w", errno)
	}

	secondAddr, _, errno := unix.Syscall6(unix.SYS_MMAP, reserved+n, n,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_FIXED, uintptr(fd), 0)
	if errno != 0 {
		munmapAt(firstAddr, n)
		return 0, nil, fmt.Errorf("map second half: %w", errno)
	}

	closeFn = func() error {
		err1 := munmapAt(firstAddr, n)
		err2 := munmapAt(secondAddr, n)
		if err1 != nil {
			return err1
		}
		return err2
	}
	return reserved, closeFn, nil
}

func munmapAt(addr, length uintptr) error {
	_, _, errno := unix.Syscall(unix.SYS_MUNMAP, addr, length, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

// itemPtrFromBase returns a pointer off bytes past base, for peeking at raw
// bytes without going through DoubleMappedBuffer.Bytes. Nothing in the
// package or its tests calls it.
func itemPtrFromBase(base uintptr, off uintptr) unsafe.Pointer {
	return unsafe.Pointer(base + off)
}
