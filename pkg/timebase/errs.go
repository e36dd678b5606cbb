package timebase

import "errors"

var (
	// ErrEmpty indicates an empty timestamp string.
	ErrEmpty = errors.New("timebase: empty timestamp")

	// ErrFormat indicates a timestamp in none of the accepted layouts.
	ErrFormat = errors.New("timebase: unrecognized timestamp")
)
