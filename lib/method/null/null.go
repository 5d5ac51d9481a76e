// Package null is the do-nothing method: packets pass through unencrypted
// and unauthenticated. Useful for measuring overhead, never for production.
package null

import (
	"github.com/blocktrron/fastd/lib/buffer"
	"github.com/blocktrron/fastd/lib/crypto/ec25519"
	"github.com/blocktrron/fastd/lib/handshake"
	"github.com/blocktrron/fastd/lib/method"
)

func init() {
	method.Register("null", method.Implementation{
		Name:    "builtin",
		Factory: func() method.Method { return Method{} },
	})
}

type Method struct{}

func (Method) MinEncryptHeadSpace() int {
	return method.DataHeaderBytes
}

func (Method) SessionInit(env *method.Env, secret [ec25519.HashBytes]byte, initiator bool) method.Session {
	return &session{initiator: initiator}
}

type session struct {
	initiator bool
	freed     bool
}

func (s *session) IsValid() bool { return !s.freed }
func (s *session) IsInitiator() bool { return s.initiator }
func (s *session) WantRefresh() bool { return false }
func (s *session) Free() { s.freed = true }

func (s *session) Encrypt(in *buffer.Buffer) (*buffer.Buffer, error) {
	if s.freed {
		return nil, method.ErrSessionInvalid
	}
	in.PushHead(method.DataHeaderBytes)
	b := in.Bytes()
	b[0] = handshake.PacketData
	b[1] = 0
	b[2] = 0
	return in, nil
}

func (s *session) Decrypt(in *buffer.Buffer) (*buffer.Buffer, error) {
	if s.freed {
		return nil, method.ErrSessionInvalid
	}
	if in.Len() < method.DataHeaderBytes {
		return nil, method.ErrTooShort
	}
	in.PullHead(method.DataHeaderBytes)
	return in, nil
}
