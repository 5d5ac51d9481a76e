// Package handshake implements the TLV framing of handshake packets.
//
// A handshake datagram is a packet-type byte, a request id, two reserved
// bytes and a sequence of records, each a one-byte type, a little-endian
// two-byte length and the value. Duplicate record types within one message
// are rejected on parse.
package handshake
