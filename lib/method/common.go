package method

import (
	"encoding/binary"
	"time"

	"github.com/blocktrron/fastd/lib/util/logger"
)

// NonceBytes is the size of the little-endian packet nonce.
const NonceBytes = 6

// DataHeaderBytes is the packet-type byte plus the two reserved bytes that
// precede the method-specific part of a data packet.
const DataHeaderBytes = 3

// Common is the record-layer state embedded in every method's session:
// nonce counters, the reorder window and the validity/refresh deadlines.
type Common struct {
	env       *Env
	initiator bool
	exhausted bool

	sendNonce    [NonceBytes]byte
	receiveNonce [NonceBytes]byte

	receiveReorderSeen uint64
	receiveLast        time.Time

	validTill    time.Time
	refreshAfter time.Time
}

// InitCommon sets up the record-layer state for a fresh session. The low bit
// of the send nonce is fixed for the session's lifetime: 3/1 for the
// initiator, 2/0 for the responder, so the two directions never collide.
func InitCommon(env *Env, initiator bool) Common {
	now := env.Clock.Now()

	c := Common{
		env:          env,
		initiator:    initiator,
		validTill:    now.Add(env.KeyValid),
		refreshAfter: now.Add(env.KeyRefresh - randDuration(env, env.KeyRefreshSplay)),
	}

	if initiator {
		c.sendNonce[0] = 3
	} else {
		c.sendNonce[0] = 2
		c.receiveNonce[0] = 1
	}

	return c
}

// randDuration picks a uniform duration in [0, max].
func randDuration(env *Env, max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	var b [8]byte
	if _, err := env.Rand.Read(b[:]); err != nil {
		return 0
	}
	return time.Duration(binary.LittleEndian.Uint64(b[:]) % uint64(max+1))
}

// Initiator reports the session's send direction.
func (c *Common) Initiator() bool {
	return c.initiator
}

// Valid reports whether the session may still encrypt and decrypt: the
// validity deadline has not passed and the nonce space is not exhausted.
func (c *Common) Valid() bool {
	if c.exhausted {
		return false
	}
	return c.env.Clock.Now().Before(c.validTill)
}

// WantRefresh reports whether the local side should begin a rekey. Only the
// initiator drives rekeys so both ends don't dial simultaneously.
func (c *Common) WantRefresh() bool {
	if !c.initiator {
		return false
	}
	return !c.env.Clock.Now().Before(c.refreshAfter)
}

// UseSendNonce hands out the next send nonce and advances the counter by 2.
// Once the counter would wrap the 48-bit space the session is marked
// exhausted and no nonce is returned.
func (c *Common) UseSendNonce() ([NonceBytes]byte, bool) {
	if c.exhausted {
		return [NonceBytes]byte{}, false
	}
	nonce := c.sendNonce

	carry := uint16(2)
	for i := 0; i < NonceBytes && carry > 0; i++ {
		v := uint16(c.sendNonce[i]) + carry
		c.sendNonce[i] = uint8(v)
		carry = v >> 8
	}
	if carry > 0 {
		c.exhausted = true
	}

	return nonce, true
}

// NonceValid checks an incoming nonce against the receive window. The age is
// the signed distance from the last accepted nonce in units of 2: negative
// means newer than the latest, positive means older.
func (c *Common) NonceValid(nonce [NonceBytes]byte) (age int64, ok bool) {
	if nonce[0]&1 != c.receiveNonce[0]&1 {
		return 0, false
	}

	for i := NonceBytes - 1; i >= 0; i-- {
		age *= 256
		age += int64(c.receiveNonce[i]) - int64(nonce[i])
	}
	age /= 2

	if age >= 0 {
		if c.env.Clock.Now().Sub(c.receiveLast) > c.env.ReorderTime {
			return age, false
		}
		if age > int64(c.env.ReorderCount) {
			return age, false
		}
	}

	return age, true
}

// ReorderCheck records an incoming nonce that passed NonceValid and reports
// whether the packet is to be accepted. A newer-than-latest nonce shifts the
// window and records the previous latest at bit |age|-1; an already-seen
// nonce is a duplicate.
func (c *Common) ReorderCheck(nonce [NonceBytes]byte, age int64) bool {
	switch {
	case age < 0:
		// Bit k marks the nonce 2(k+1) positions behind the latest, so a
		// newer latest shifts every mark up by the distance and the
		// previous latest lands at bit |age|-1. Marks past the window
		// fall off.
		shift := uint64(-age)
		if shift >= 64 {
			c.receiveReorderSeen = 0
		} else {
			c.receiveReorderSeen <<= shift
		}
		if shift-1 < 64 {
			c.receiveReorderSeen |= 1 << (shift - 1)
		}
		c.receiveNonce = nonce
		c.receiveLast = c.env.Clock.Now()
		return true

	case age == 0 || c.receiveReorderSeen&(1<<uint64(age-1)) != 0:
		log.WithFields(logger.Fields{
			"at":  "(Common) ReorderCheck",
			"age": age,
		}).Debug("dropping duplicate packet")
		return false

	default:
		log.WithFields(logger.Fields{
			"at":  "(Common) ReorderCheck",
			"age": age,
		}).Debug("accepting reordered packet")
		c.receiveReorderSeen |= 1 << uint64(age-1)
		return true
	}
}
