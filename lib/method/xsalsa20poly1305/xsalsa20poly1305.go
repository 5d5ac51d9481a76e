// Package xsalsa20poly1305 implements the NaCl secretbox construction:
// XSalsa20 for confidentiality, Poly1305 over the ciphertext with a
// per-packet one-time key derived from the keystream.
package xsalsa20poly1305

import (
	"golang.org/x/crypto/nacl/secretbox"

	"github.com/blocktrron/fastd/lib/buffer"
	"github.com/blocktrron/fastd/lib/crypto/ec25519"
	"github.com/blocktrron/fastd/lib/handshake"
	"github.com/blocktrron/fastd/lib/method"
)

func init() {
	method.Register("xsalsa20-poly1305", method.Implementation{
		Name:    "nacl",
		Factory: func() method.Method { return Method{} },
	})
}

const headerBytes = method.DataHeaderBytes + method.NonceBytes

type Method struct{}

func (Method) MinEncryptHeadSpace() int {
	return headerBytes
}

func (Method) SessionInit(env *method.Env, secret [ec25519.HashBytes]byte, initiator bool) method.Session {
	s := &session{common: method.InitCommon(env, initiator)}
	s.key = secret
	return s
}

type session struct {
	common method.Common
	key    [32]byte
	freed  bool
}

func (s *session) IsValid() bool { return !s.freed && s.common.Valid() }
func (s *session) IsInitiator() bool { return s.common.Initiator() }
func (s *session) WantRefresh() bool { return s.common.WantRefresh() }

func (s *session) Free() {
	s.freed = true
	for i := range s.key {
		s.key[i] = 0
	}
}

// boxNonce widens the 6-byte packet nonce into the 24-byte XSalsa20 nonce.
func boxNonce(nonce [method.NonceBytes]byte) *[24]byte {
	var n [24]byte
	copy(n[:method.NonceBytes], nonce[:])
	return &n
}

func (s *session) Encrypt(in *buffer.Buffer) (*buffer.Buffer, error) {
	if !s.IsValid() {
		return nil, method.ErrSessionInvalid
	}
	nonce, ok := s.common.UseSendNonce()
	if !ok {
		return nil, method.ErrSessionInvalid
	}

	out := buffer.New(headerBytes+in.Len()+secretbox.Overhead, 0)
	b := out.Bytes()
	b[0] = handshake.PacketData
	b[1] = 0
	b[2] = 0
	copy(b[3:headerBytes], nonce[:])
	secretbox.Seal(b[headerBytes:headerBytes], in.Bytes(), boxNonce(nonce), &s.key)

	in.Free()
	return out, nil
}

func (s *session) Decrypt(in *buffer.Buffer) (*buffer.Buffer, error) {
	if !s.IsValid() {
		return nil, method.ErrSessionInvalid
	}
	b := in.Bytes()
	if len(b) < headerBytes+secretbox.Overhead {
		return nil, method.ErrTooShort
	}

	var nonce [method.NonceBytes]byte
	copy(nonce[:], b[3:headerBytes])

	age, ok := s.common.NonceValid(nonce)
	if !ok {
		return nil, method.ErrVerifyFailed
	}

	pt, ok := secretbox.Open(nil, b[headerBytes:], boxNonce(nonce), &s.key)
	if !ok {
		return nil, method.ErrVerifyFailed
	}

	if !s.common.ReorderCheck(nonce, age) {
		// Authentic but already seen: swallow it like a keepalive so the
		// caller doesn't fall back to the other session.
		in.Free()
		return buffer.New(0, 0), nil
	}

	out := buffer.FromBytes(pt, 0)
	in.Free()
	return out, nil
}
