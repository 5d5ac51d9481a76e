// Package protocol implements the ec25519-fhmqvc session protocol: the
// three-message mutual authentication handshake combining long-term and
// ephemeral Curve25519 keys with hashed-scalar FHMQV key derivation, the
// transient handshake-key pool, and session establishment.
//
// Message flow, A initiating:
//
//	A -> B  type 1: A, B, X
//	B -> A  type 2: B, A, Y, X, T
//	A -> B  type 3: A, B, X, Y, T'
//
// where X and Y are the ephemeral handshake keys and the tags prove
// knowledge of the derived secret. The responder signals establishment with
// a zero-length encrypted keepalive instead of a fourth message.
package protocol
