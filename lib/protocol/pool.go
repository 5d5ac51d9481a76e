package protocol

import (
	"time"

	"github.com/blocktrron/fastd/lib/crypto/ec25519"
)

// Handshake keys are rotated after 15 seconds but stay usable for 30, so
// responses referencing the just-rotated key still resolve.
const (
	handshakeKeyPreferred = 15 * time.Second
	handshakeKeyValid     = 30 * time.Second
)

// handshakeKey is one ephemeral key pair of the two-slot pool.
type handshakeKey struct {
	preferredTill time.Time
	validTill     time.Time

	secret ec25519.Secret
	public ec25519.Public
}

func (k *handshakeKey) isValid(now time.Time) bool {
	return now.Before(k.validTill)
}

func (k *handshakeKey) isPreferred(now time.Time) bool {
	return now.Before(k.preferredTill)
}

func (k *handshakeKey) zero() {
	k.secret.Zero()
	*k = handshakeKey{}
}

// pool holds the current and the immediately previous handshake key.
type pool struct {
	current  handshakeKey
	previous handshakeKey
}

// maintain rotates the pool lazily: once the current key is no longer
// preferred, it moves to the previous slot (whose occupant is zeroed) and a
// fresh sanitized key takes its place.
func (c *Context) maintain() error {
	now := c.env.Clock.Now()
	if c.pool.current.isPreferred(now) {
		return nil
	}

	log.WithField("at", "maintain").Debug("generating new handshake key")

	c.pool.previous.zero()
	c.pool.previous = c.pool.current

	var secret ec25519.Secret
	if _, err := c.env.Rand.Read(secret[:]); err != nil {
		return err
	}
	secret = ec25519.SecretSanitize(secret)

	c.pool.current = handshakeKey{
		preferredTill: now.Add(handshakeKeyPreferred),
		validTill:     now.Add(handshakeKeyValid),
		secret:        secret,
		public:        ec25519.ScalarBaseMult(secret).Encode(),
	}
	return nil
}

// findHandshakeKey locates the pool entry whose public half matches,
// searching current then previous, skipping expired entries.
func (c *Context) findHandshakeKey(pub ec25519.Public) *handshakeKey {
	now := c.env.Clock.Now()
	if c.pool.current.isValid(now) && c.pool.current.public.Equal(pub) {
		return &c.pool.current
	}
	if c.pool.previous.isValid(now) && c.pool.previous.public.Equal(pub) {
		return &c.pool.previous
	}
	return nil
}

// zeroPool wipes both slots. Called on shutdown.
func (c *Context) zeroPool() {
	c.pool.current.zero()
	c.pool.previous.zero()
}
