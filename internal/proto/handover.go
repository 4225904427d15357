package proto

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Handover is a decoded handover heartbeat.
type Handover struct {
	// Timestamp is the sender's startup time in milliseconds since the epoch.
	Timestamp int64
}

// EncodeHandover returns the wire form of a handover heartbeat carrying the
// given startup timestamp.
func EncodeHandover(timestamp int64) []byte {
	buf := make([]byte, HandoverSize)
	buf[versionBegin] = HandoverVersion
	binary.BigEndian.PutUint64(buf[timestampBegin:], uint64(timestamp))
	return buf
}

// DecodeHandover parses a handover heartbeat. Bytes past the fixed layout are
// ignored.
func DecodeHandover(buf []byte) (Handover, error) {
	if err := checkVersion(buf, HandoverVersion, "handover"); err != nil {
		return Handover{}, err
	}
	if len(buf) < HandoverSize {
		return Handover{}, errors.Wrapf(ErrShortMessage, "handover message is %d bytes, expected %d", len(buf), HandoverSize)
	}
	return Handover{Timestamp: readTimestamp(buf)}, nil
}

func checkVersion(buf []byte, expected byte, kind string) error {
	if len(buf) == 0 {
		return errors.Wrapf(ErrShortMessage, "empty %s message", kind)
	}
	if buf[versionBegin] != expected {
		return errors.Wrapf(ErrVersionMismatch, "%s message: expected %d but received %d", kind, expected, buf[versionBegin])
	}
	return nil
}

func readTimestamp(buf []byte) int64 {
	return int64(binary.BigEndian.Uint64(buf[timestampBegin : timestampBegin+timestampLength]))
}
