package proto

const (
	// HandoverVersion tags a handover heartbeat.
	HandoverVersion = 1
	// StatusVersion tags a status heartbeat. Version 1 of the status message
	// omitted the status field and is not understood.
	StatusVersion = 2

	// HandoverSize is the length of an encoded handover heartbeat.
	HandoverSize = timestampBegin + timestampLength

	// StatusSize is the length of an encoded status heartbeat.
	StatusSize = statusBegin + statusLength

	// MaxAddresses is the number of IPv4 addresses a status heartbeat can carry.
	MaxAddresses = addressesLength / 4
	// MaxServiceNameLength is the longest service name, in bytes, that still
	// leaves room for its terminator.
	MaxServiceNameLength = serviceNameLength - 1
)

const (
	versionBegin      = 0
	versionLength     = 1
	timestampBegin    = versionBegin + versionLength
	timestampLength   = 8
	serviceNameBegin  = timestampBegin + timestampLength
	serviceNameLength = 63
	addressesBegin    = serviceNameBegin + serviceNameLength
	addressesLength   = 40
	statusBegin       = addressesBegin + addressesLength
	statusLength      = 8
)
