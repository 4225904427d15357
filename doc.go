// Package handover coordinates the handover between the old and the new
// instance of a service during a rolling update, without a central
// coordinator.
//
// It implements two simple protocols over UDP multicast. With the first, each
// instance broadcasts its startup time; an instance that hears a later one
// realizes a younger instance is running and shuts itself down in an orderly
// fashion (see Coordinator). With the second, a service announces that it is
// UP, or DOWN while draining, along with the addresses it serves on, so peers
// can discover which addresses are live (see StatusPublisher).
//
// The supervisor kills the old instance after its handover timeout whether
// or not it finished draining, so the timeout must leave room for an orderly
// shutdown. Completion is signalled by writing a marker file the supervisor
// watches for, not by exiting.
//
// By default (NetworkModeBridge) the service listens on all interfaces. In a
// bridge-mode container network the old and new instances are the only ones
// using the group, because the bridge is local to the device. When the
// container uses host networking and several devices share a LAN, the group
// would be shared by every instance of the fleet; NetworkModeHost scopes it
// to a single local interface instead.
//
// Running three or more instances at once is not supported.
package handover
