package sim

import "errors"

// Error taxonomy of the simulator.
//
// ErrConfiguration is fatal at startup: the simulator refuses to build.
// ErrCapacityExceeded is recovered locally: the write is dropped and a
// warning surfaced; simulation continues.
// ErrDispatchFailure aborts the frame: it wraps a panic recovered from a
// kernel dispatch and is propagated to the frame driver, which may skip the
// frame or abort. There is no in-frame retry.
var (
	ErrConfiguration    = errors.New("sim: invalid configuration")
	ErrCapacityExceeded = errors.New("sim: particle capacity exceeded")
	ErrDispatchFailure  = errors.New("sim: kernel dispatch failed")
)
