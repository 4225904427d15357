package proto

import (
	"bytes"
	"encoding/binary"
	"net/netip"

	"github.com/pkg/errors"
)

// ServiceStatus is the state announced by a status heartbeat.
type ServiceStatus string

const (
	// StatusUp is announced while a service is serving.
	StatusUp ServiceStatus = "UP"
	// StatusDown is announced while a service is draining.
	StatusDown ServiceStatus = "DOWN"
)

// Valid reports whether s can be encoded.
func (s ServiceStatus) Valid() bool {
	return s == StatusUp || s == StatusDown
}

// Status is a decoded status heartbeat.
type Status struct {
	Timestamp   int64
	ServiceName string
	// Addresses are dotted-quad IPv4 addresses, in the order they were sent.
	Addresses []string
	Status    ServiceStatus
}

// EncodeStatus returns the wire form of a status heartbeat. Values that do
// not fit the fixed layout are rejected rather than truncated.
func EncodeStatus(s Status) ([]byte, error) {
	if !s.Status.Valid() {
		return nil, errors.Wrapf(ErrInvalidStatus, "%q", s.Status)
	}
	if len(s.Addresses) > MaxAddresses {
		return nil, errors.Wrapf(ErrTooManyAddresses, "got %d, at most %d fit", len(s.Addresses), MaxAddresses)
	}

	buf := make([]byte, StatusSize)
	buf[versionBegin] = StatusVersion
	binary.BigEndian.PutUint64(buf[timestampBegin:], uint64(s.Timestamp))

	if err := putString(buf[serviceNameBegin:serviceNameBegin+serviceNameLength], s.ServiceName, "service name"); err != nil {
		return nil, err
	}
	for i, addr := range s.Addresses {
		octets, err := parseAddress(addr)
		if err != nil {
			return nil, err
		}
		copy(buf[addressesBegin+4*i:], octets[:])
	}
	if err := putString(buf[statusBegin:statusBegin+statusLength], string(s.Status), "status"); err != nil {
		return nil, err
	}
	return buf, nil
}

// DecodeStatus parses a status heartbeat. Bytes past the fixed layout are
// ignored. The status field is returned as sent; callers decide what to do
// with values other than UP and DOWN.
func DecodeStatus(buf []byte) (Status, error) {
	if err := checkVersion(buf, StatusVersion, "status"); err != nil {
		return Status{}, err
	}
	if len(buf) < StatusSize {
		return Status{}, errors.Wrapf(ErrShortMessage, "status message is %d bytes, expected %d", len(buf), StatusSize)
	}

	name, err := getString(buf[serviceNameBegin:serviceNameBegin+serviceNameLength], "service name")
	if err != nil {
		return Status{}, err
	}
	status, err := getString(buf[statusBegin:statusBegin+statusLength], "status")
	if err != nil {
		return Status{}, err
	}

	addresses := []string{}
	for i := addressesBegin; i < addressesBegin+addressesLength; i += 4 {
		if buf[i] == 0 {
			break
		}
		addresses = append(addresses, netip.AddrFrom4([4]byte(buf[i:i+4])).String())
	}

	return Status{
		Timestamp:   readTimestamp(buf),
		ServiceName: name,
		Addresses:   addresses,
		Status:      ServiceStatus(status),
	}, nil
}

// putString copies s into field, which is already zeroed.
func putString(field []byte, s, name string) error {
	if len(s) >= len(field) {
		return errors.Wrapf(ErrFieldTooLong, "%s is %d bytes, at most %d fit", name, len(s), len(field)-1)
	}
	if i := bytes.IndexByte([]byte(s), 0); i >= 0 {
		return errors.Wrapf(ErrInvalidField, "%s has a zero byte at %d", name, i)
	}
	copy(field, s)
	return nil
}

func getString(field []byte, name string) (string, error) {
	end := bytes.IndexByte(field, 0)
	if end < 0 {
		return "", errors.Wrapf(ErrUnterminatedField, "no terminator in %d byte %s", len(field), name)
	}
	return string(field[:end]), nil
}

func parseAddress(s string) ([4]byte, error) {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return [4]byte{}, errors.Wrapf(ErrInvalidAddress, "%q: %v", s, err)
	}
	if !addr.Is4() {
		return [4]byte{}, errors.Wrapf(ErrInvalidAddress, "%q is not an IPv4 address", s)
	}
	octets := addr.As4()
	if octets[0] == 0 {
		// a leading zero marks the end of the list on the wire
		return [4]byte{}, errors.Wrapf(ErrInvalidAddress, "%q cannot be sent, first octet is 0", s)
	}
	return octets, nil
}
