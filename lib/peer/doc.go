// Package peer holds the per-peer state of the daemon: the configured
// identity, the claimed remote address, the established flag and the pair
// of cryptographic sessions (current and previous) that overlap during a
// rekey. It also implements the data-plane send and receive paths.
package peer
