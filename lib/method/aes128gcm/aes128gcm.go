// Package aes128gcm implements the AES-128-GCM construction. Two
// implementations are registered: the standard library cipher when an x86
// CPU has AES-NI and PCLMULQDQ, and the bitsliced constant-time bsaes
// fallback everywhere else.
package aes128gcm

import (
	"crypto/aes"
	"crypto/cipher"

	"gitlab.com/yawning/bsaes.git"
	"golang.org/x/sys/cpu"

	"github.com/blocktrron/fastd/lib/buffer"
	"github.com/blocktrron/fastd/lib/crypto/ec25519"
	"github.com/blocktrron/fastd/lib/handshake"
	"github.com/blocktrron/fastd/lib/method"
)

func init() {
	method.Register("aes128-gcm",
		method.Implementation{
			Name: "aesni",
			Available: func() bool {
				return cpu.X86.HasAES && cpu.X86.HasPCLMULQDQ
			},
			Factory: func() method.Method { return Method{newCipher: aes.NewCipher} },
		},
		method.Implementation{
			Name:    "bsaes",
			Factory: func() method.Method { return Method{newCipher: bsaes.NewCipher} },
		},
	)
}

const (
	keyBytes    = 16
	gcmNonce    = 12
	headerBytes = method.DataHeaderBytes + method.NonceBytes
)

type Method struct {
	newCipher func(key []byte) (cipher.Block, error)
}

func (Method) MinEncryptHeadSpace() int {
	return headerBytes
}

func (m Method) SessionInit(env *method.Env, secret [ec25519.HashBytes]byte, initiator bool) method.Session {
	block, err := m.newCipher(secret[:keyBytes])
	if err != nil {
		// The key size is fixed; failure indicates a bug in the cipher.
		panic("aes128gcm: " + err.Error())
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		panic("aes128gcm: " + err.Error())
	}
	return &session{
		common: method.InitCommon(env, initiator),
		aead:   aead,
	}
}

type session struct {
	common method.Common
	aead   cipher.AEAD
	freed  bool
}

func (s *session) IsValid() bool { return !s.freed && s.common.Valid() }
func (s *session) IsInitiator() bool { return s.common.Initiator() }
func (s *session) WantRefresh() bool { return s.common.WantRefresh() }

func (s *session) Free() {
	s.freed = true
	s.aead = nil
}

func gcmNonceFor(nonce [method.NonceBytes]byte) []byte {
	n := make([]byte, gcmNonce)
	copy(n, nonce[:])
	return n
}

func (s *session) Encrypt(in *buffer.Buffer) (*buffer.Buffer, error) {
	if !s.IsValid() {
		return nil, method.ErrSessionInvalid
	}
	nonce, ok := s.common.UseSendNonce()
	if !ok {
		return nil, method.ErrSessionInvalid
	}

	out := buffer.New(headerBytes+in.Len()+s.aead.Overhead(), 0)
	b := out.Bytes()
	b[0] = handshake.PacketData
	b[1] = 0
	b[2] = 0
	copy(b[3:headerBytes], nonce[:])
	s.aead.Seal(b[headerBytes:headerBytes], gcmNonceFor(nonce), in.Bytes(), nil)

	in.Free()
	return out, nil
}

func (s *session) Decrypt(in *buffer.Buffer) (*buffer.Buffer, error) {
	if !s.IsValid() {
		return nil, method.ErrSessionInvalid
	}
	b := in.Bytes()
	if len(b) < headerBytes+s.aead.Overhead() {
		return nil, method.ErrTooShort
	}

	var nonce [method.NonceBytes]byte
	copy(nonce[:], b[3:headerBytes])

	age, ok := s.common.NonceValid(nonce)
	if !ok {
		return nil, method.ErrVerifyFailed
	}

	pt, err := s.aead.Open(nil, gcmNonceFor(nonce), b[headerBytes:], nil)
	if err != nil {
		return nil, method.ErrVerifyFailed
	}

	if !s.common.ReorderCheck(nonce, age) {
		in.Free()
		return buffer.New(0, 0), nil
	}

	out := buffer.FromBytes(pt, 0)
	in.Free()
	return out, nil
}
