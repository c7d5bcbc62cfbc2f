//go:build windows

package dmring

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

const maxFixedMapAttempts = 32

var (
	modkernel32          = windows.NewLazySystemDLL("kernel32.dll")
	procGetSystemInfo    = modkernel32.NewProc("GetSystemInfo")
	procMapViewOfFileEx  = modkernel32.NewProc("MapViewOfFileEx")
)

// systemInfo mirrors the fields of the Win32 SYSTEM_INFO struct that matter
// here; the union at the front and the trailing fields are opaque padding.
type systemInfo struct {
	_                           [4]byte // wProcessorArchitecture/wReserved union
	dwPageSize                  uint32
	lpMinimumApplicationAddress uintptr
	lpMaximumApplicationAddress uintptr
	dwActiveProcessorMask       uintptr
	dwNumberOfProcessors        uint32
	dwProcessorType             uint32
	dwAllocationGranularity     uint32
	wProcessorLevel             uint16
	wProcessorRevision          uint16
}

// platformGranularity calls GetSystemInfo to obtain the Windows allocation
// granularity, which is typically larger than the page size and is the unit
// fixed-address mappings must align to.
func platformGranularity() uintptr {
	var si systemInfo
	procGetSystemInfo.Call(uintptr(unsafe.Pointer(&si)))
	if si.dwAllocationGranularity == 0 {
		return 64 * 1024 // documented default on all shipping Windows versions
	}
	return uintptr(si.dwAllocationGranularity)
}

// mapViewOfFileEx wraps the Win32 API that x/sys/windows does not expose: a
// MapViewOfFile variant accepting a caller-chosen base address, needed to
// place the two halves back-to-back.
func mapViewOfFileEx(handle windows.Handle, access uint32, offsetHigh, offsetLow uint32, length uintptr, baseAddr uintptr) (uintptr, error) {
	addr, _, errno := procMapViewOfFileEx.Call(
		uintptr(handle), uintptr(access), uintptr(offsetHigh), uintptr(offsetLow), length, baseAddr)
	if addr == 0 {
		return 0, errno
	}
	return addr, nil
}

// platformNewMapping creates a page-file-backed file mapping of size n and
// maps it twice, back-to-back, into a probed 2N hole in the address space.
// Fixed-address mapping on Windows is racy against other threads reserving
// memory, so the probe-then-map sequence retries up to
// maxFixedMapAttempts times before failing.
func platformNewMapping(n uintptr) (base uintptr, closeFn func() error, err error) {
	total := 2 * n

	handle, err := windows.CreateFileMapping(windows.InvalidHandle, nil,
		windows.PAGE_READWRITE, uint32(uint64(n)>>32), uint32(n), nil)
	if err != nil {
		return 0, nil, fmt.Errorf("CreateFileMapping: %w", err)
	}

	var firstAddr, secondAddr uintptr
	for attempt := 0; attempt < maxFixedMapAttempts; attempt++ {
		hole, allocErr := windows.VirtualAlloc(0, total, windows.MEM_RESERVE, windows.PAGE_NOACCESS)
		if allocErr != nil {
			windows.CloseHandle(handle)
			return 0, nil, fmt.Errorf("VirtualAlloc probe: %w", allocErr)
		}
		if freeErr := windows.VirtualFree(hole, 0, windows.MEM_RELEASE); freeErr != nil {
			windows.CloseHandle(handle)
			return 0, nil, fmt.Errorf("VirtualFree probe: %w", freeErr)
		}

		firstAddr, err = mapViewOfFileEx(handle, windows.FILE_MAP_WRITE|windows.FILE_MAP_READ, 0, 0, n, hole)
		if err != nil {
			continue // another thread raced us for the hole; retry
		}
		secondAddr, err = mapViewOfFileEx(handle, windows.FILE_MAP_WRITE|windows.FILE_MAP_READ, 0, 0, n, hole+n)
		if err != nil {
			windows.UnmapViewOfFile(firstAddr)
			continue
		}
		break
	}
	if firstAddr == 0 || secondAddr == 0 {
		windows.CloseHandle(handle)
		return 0, nil, fmt.Errorf("could not find a stable 2N address hole after %d attempts: %w", maxFixedMapAttempts, err)
	}

	closeFn = func() error {
		err1 := windows.UnmapViewOfFile(firstAddr)
		err2 := windows.UnmapViewOfFile(secondAddr)
		err3 := windows.CloseHandle(handle)
		for _, e := range []error{err1, err2, err3} {
			if e != nil {
				return e
			}
		}
		return nil
	}
	return firstAddr, closeFn, nil
}
