package contracts

import "errors"

var (
	// ErrDevice is wrapped by every error caused by an invalid device index
	// or a port that could not be opened.
	ErrDevice = errors.New("midi device error")

	// ErrIO is wrapped by every error raised while writing a recording.
	ErrIO = errors.New("recording write error")

	// ErrTimestampRegression reports an event older than its predecessor.
	ErrTimestampRegression = errors.New("event timestamp went backwards")
)
