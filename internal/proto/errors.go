package proto

import "github.com/pkg/errors"

var (
	// ErrVersionMismatch indicates the leading byte of a datagram did not match
	// the version expected by the decoder. Datagrams of the other message kind
	// fail this way too.
	ErrVersionMismatch = errors.New("version mismatch")
	// ErrShortMessage indicates a datagram shorter than the fixed layout.
	ErrShortMessage = errors.New("message too short")
	// ErrUnterminatedField indicates a string field with no zero byte within
	// its bound.
	ErrUnterminatedField = errors.New("unterminated field")

	// ErrInvalidAddress is returned when an address is not a dotted-quad IPv4
	// literal, or when it cannot be represented on the wire.
	ErrInvalidAddress = errors.New("invalid address")
	// ErrTooManyAddresses is returned when more than MaxAddresses are given.
	ErrTooManyAddresses = errors.New("too many addresses")
	// ErrFieldTooLong is returned when a string does not fit its field along
	// with its terminator.
	ErrFieldTooLong = errors.New("field too long")
	// ErrInvalidField is returned when a string contains a zero byte.
	ErrInvalidField = errors.New("field contains a zero byte")
	// ErrInvalidStatus is returned when encoding a status other than UP or DOWN.
	ErrInvalidStatus = errors.New("invalid status")
)
