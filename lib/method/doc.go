// Package method defines the capability set every authenticated-encryption
// construction plugs into the record layer with, the record-layer state that
// is embedded in each construction's session (nonce discipline, reorder
// window, validity), and the registry that maps construction names to the
// best available implementation.
package method
