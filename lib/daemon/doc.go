// Package daemon wires the cryptographic core to the outside world: the
// datagram socket, the TUN device, the timer queue and the clock. It is the
// single event-loop thread; every operation runs to completion, so the
// core's invariants hold pointwise between operations.
package daemon
