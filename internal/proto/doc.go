// Package proto encapsulates the datagrams exchanged between handover peers,
// as well as the functions for reading and writing them off the wire.
//
// There are two message kinds, each with a fixed layout and a leading version
// byte that doubles as a type tag: handover heartbeats (version 1) and status
// heartbeats (version 2).
//
// A handover heartbeat carries nothing but the sender's startup time:
//
//	offset 0  version    1 byte   always 1
//	offset 1  timestamp  8 bytes  int64, big-endian, milliseconds since epoch
//
// A peer that receives a heartbeat with a timestamp strictly greater than its
// own knows a newer instance of the service is running and steps down.
//
// A status heartbeat announces whether a service is serving and on which
// addresses:
//
//	offset   0  version      1 byte    always 2
//	offset   1  timestamp    8 bytes   int64, big-endian, milliseconds
//	offset   9  service name 63 bytes  UTF-8, zero padded, zero terminated
//	offset  72  addresses    40 bytes  up to 10 IPv4 addresses, 4 bytes each
//	offset 112  status       8 bytes   UTF-8, zero padded, zero terminated
//
// The address list ends at the first 4-byte group whose leading byte is zero.
// String fields always hold a terminator within their bound, which is why the
// encoder refuses values that would fill the field completely.
package proto
