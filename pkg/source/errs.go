package source

import "errors"

var (
	// ErrUnknownKind indicates a source kind Open does not support.
	ErrUnknownKind = errors.New("source: unknown kind")

	// ErrNoDevice indicates a serial source without a device path.
	ErrNoDevice = errors.New("source: no device")

	// ErrBadPayload indicates a message that does not decode to a sample.
	ErrBadPayload = errors.New("source: bad payload")

	// ErrChecksum indicates an NMEA sentence or UBX frame whose checksum
	// does not match its content.
	ErrChecksum = errors.New("source: checksum mismatch")

	// ErrFrame indicates a UBX frame with an implausible length.
	ErrFrame = errors.New("source: malformed frame")

	// ErrClosed is returned by Next after Close.
	ErrClosed = errors.New("source: closed")
)
