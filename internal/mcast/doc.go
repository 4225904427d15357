// Package mcast is a thin IPv4 multicast transport: a Receiver joined to a
// group on a port, and a Sender that writes datagrams to that group.
//
// Both may be scoped to a single network interface. This matters when a
// container shares the host network namespace: an unscoped group would be
// shared by every device on the LAN, while scoping it to a local bridge keeps
// traffic between the instances on one device.
package mcast
