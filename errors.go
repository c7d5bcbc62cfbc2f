package dmring

import "errors"

// Common dmring errors used for error handling and comparison using errors.Is().
var (
	// ErrAllocationFailed indicates the platform double-mapping could not be
	// established. No partial OS resources are retained when this is returned.
	ErrAllocationFailed = errors.New("dmring: double mapping allocation failed")

	// ErrClosed indicates a reader reached end-of-stream: the producer has
	// been dropped and no further items remain for that reader.
	ErrClosed = errors.New("dmring: ring closed")

	// ErrWouldBlock indicates the nonblocking flavor has no data or space
	// available right now. The caller is responsible for retry timing.
	// SliceStatus.Err returns this for WouldBlock, for callers that prefer
	// comparing with errors.Is over switching on SliceStatus directly.
	ErrWouldBlock = errors.New("dmring: would block")

	// errInvalidCommit indicates a commit_produce/commit_consume call
	// exceeded the space last returned by slice(). This is a programmer
	// error, not a runtime state.
	errInvalidCommit = errors.New("dmring: commit exceeds last returned slice")

	// errUnknownReader indicates an operation referenced a reader id that is
	// not currently registered (already dropped, or never valid).
	errUnknownReader = errors.New("dmring: unknown reader id")
)
