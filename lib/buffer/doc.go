// Package buffer provides the packet buffers that flow between the socket, the
// cryptographic core and the TUN layer.
//
// Ownership of a Buffer is move-only: every buffer handed to a function is
// either freed by that function or handed onward, on every branch including
// error branches. Double frees and use-after-free are programmer errors and
// panic. The package keeps a live-buffer counter so tests can assert that no
// code path leaks or double-frees.
package buffer
