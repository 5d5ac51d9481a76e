// Package ec25519 is the curve and hash façade used by the handshake protocol.
//
// Group arithmetic runs on the twisted Edwards form of Curve25519 via
// filippo.io/edwards25519. Secret scalars are kept in their raw 32-byte
// little-endian form as read from key files and the CSPRNG; they are reduced
// modulo the group order on entry into the scalar ring.
//
// Point decoding never fails. An invalid encoding yields a poisoned point that
// propagates through ScalarMult and Add and reports itself as the identity, so
// protocol code only has to run the identity check it already needs for the
// small-subgroup guard.
package ec25519
