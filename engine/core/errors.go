package core

import "errors"

var (
	// ErrInvalidArgument reports a bad configuration value.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrObjectDisposed reports an operation on a torn down object.
	ErrObjectDisposed = errors.New("object disposed")
	// ErrNativeInitialization reports that a native device or engine failed to start.
	ErrNativeInitialization = errors.New("native initialization failed")
)
