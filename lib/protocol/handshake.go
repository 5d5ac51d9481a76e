package protocol

import (
	"net/netip"

	"github.com/blocktrron/fastd/lib/crypto/ec25519"
	"github.com/blocktrron/fastd/lib/handshake"
	"github.com/blocktrron/fastd/lib/peer"
	"github.com/blocktrron/fastd/lib/util/logger"
)

// InitiateHandshake sends a type-1 message to a peer and marks the flow
// initiated. Called for the first contact as well as for rekeys.
func (c *Context) InitiateHandshake(p *peer.Peer) {
	if err := c.maintain(); err != nil {
		log.WithError(err).Error("handshake key generation failed")
		return
	}

	addr := p.Addr
	if !addr.IsValid() {
		addr = p.ConfiguredAddr
	}
	if !addr.IsValid() {
		if p.Dynamic {
			c.ops.Resolve(p)
		}
		return
	}

	log.WithFields(logger.Fields{
		"at":   "InitiateHandshake",
		"peer": p.Name,
		"addr": addr,
	}).Debug("sending handshake")

	var reqID [1]byte
	if _, err := c.env.Rand.Read(reqID[:]); err != nil {
		return
	}

	A := c.identity.Public()
	b := handshake.NewInit(reqID[0])
	b.Add(handshake.RecordSenderKey, A[:])
	if !p.Key.IsZero() {
		b.Add(handshake.RecordRecipientKey, p.Key[:])
	} else {
		log.WithField("addr", addr).Debug("sending handshake to peer with unknown key")
	}
	b.Add(handshake.RecordSenderHandshakeKey, c.pool.current.public[:])

	c.ops.SendTo(addr, b.Build())

	f := c.flowFor(p)
	f.state = flowInitiated
	f.localKey = c.pool.current.public
}

// HandleHandshake processes a parsed handshake message. Every reject path
// is a silent drop: malformed or unauthentic handshakes never earn a reply.
// The message's record slices alias the datagram buffer, which the caller
// frees after HandleHandshake returns.
func (c *Context) HandleHandshake(addr netip.AddrPort, h *handshake.Handshake) {
	if err := c.maintain(); err != nil {
		log.WithError(err).Error("handshake key generation failed")
		return
	}

	if name, ok := h.Record(handshake.RecordProtocolName); ok && string(name) != handshake.ProtocolName {
		log.WithFields(logger.Fields{
			"at":   "HandleHandshake",
			"addr": addr,
		}).Debug("received handshake for wrong protocol")
		return
	}

	if !h.HasField(handshake.RecordSenderKey, ec25519.KeyBytes) {
		log.WithField("addr", addr).Debug("received handshake without sender key")
		return
	}
	var senderKey ec25519.Public
	rec, _ := h.Record(handshake.RecordSenderKey)
	copy(senderKey[:], rec)

	p := c.matchSenderKey(addr, c.peers.ByAddress(addr), senderKey)
	if p == nil {
		log.WithField("addr", addr).Debug("ignoring handshake (unknown key or unresolved host)")
		return
	}

	if h.Type > 1 {
		if !h.HasField(handshake.RecordRecipientKey, ec25519.KeyBytes) {
			log.WithField("addr", addr).Debug("received handshake reply without recipient key")
			return
		}
		rec, _ = h.Record(handshake.RecordRecipientKey)
		var recipientKey ec25519.Public
		copy(recipientKey[:], rec)
		if !recipientKey.Equal(c.identity.Public()) {
			log.WithField("addr", addr).Debug("received handshake with wrong recipient key")
			return
		}

		if !h.HasField(handshake.RecordRecipientHandshakeKey, ec25519.KeyBytes) {
			log.WithField("addr", addr).Debug("received handshake reply without recipient handshake key")
			return
		}
		if !h.HasField(handshake.RecordT, ec25519.HashBytes) {
			log.WithField("addr", addr).Debug("received handshake reply without HMAC")
			return
		}
	}

	if !h.HasField(handshake.RecordSenderHandshakeKey, ec25519.KeyBytes) {
		log.WithField("addr", addr).Debug("received handshake without sender handshake key")
		return
	}
	var peerHandshakeKey ec25519.Public
	rec, _ = h.Record(handshake.RecordSenderHandshakeKey)
	copy(peerHandshakeKey[:], rec)

	switch h.Type {
	case 1:
		c.respond(addr, p, peerHandshakeKey, h)

	case 2, 3:
		var recipientHandshakeKey ec25519.Public
		rec, _ = h.Record(handshake.RecordRecipientHandshakeKey)
		copy(recipientHandshakeKey[:], rec)

		hk := c.findHandshakeKey(recipientHandshakeKey)
		if hk == nil {
			log.WithField("addr", addr).Debug("received handshake with unexpected recipient handshake key")
			return
		}

		f := c.flowFor(p)
		if h.Type == 2 {
			if f.state != flowInitiated || !f.localKey.Equal(hk.public) {
				log.WithField("addr", addr).Debug("received handshake response without matching pending handshake")
				return
			}
			c.finish(addr, p, hk, peerHandshakeKey, h)
		} else {
			if f.state != flowResponded || !f.localKey.Equal(hk.public) {
				log.WithField("addr", addr).Debug("received handshake finish without matching responded handshake")
				return
			}
			c.handleFinish(addr, p, hk, peerHandshakeKey, h)
		}

	default:
		log.WithFields(logger.Fields{
			"at":   "HandleHandshake",
			"addr": addr,
			"type": h.Type,
		}).Debug("received handshake with unknown type")
	}
}

// respond answers a type-1 message: run the responder side of the FHMQV
// computation and send back both handshake keys and the tag.
func (c *Context) respond(addr netip.AddrPort, p *peer.Peer, X ec25519.Public, h *handshake.Handshake) {
	log.WithFields(logger.Fields{
		"at":   "respond",
		"peer": p.Name,
		"addr": addr,
	}).Debug("responding handshake")

	Y := c.pool.current
	A := p.Key
	B := c.identity.Public()

	_, K, err := fhmqv(false, c.identity.secret, Y.secret, X, Y.public, A, B)
	if err != nil {
		return
	}

	T := ec25519.HMACSHA256(K, B[:], Y.public[:])

	reply := handshake.NewReply(h)
	reply.Add(handshake.RecordSenderKey, B[:])
	reply.Add(handshake.RecordRecipientKey, A[:])
	reply.Add(handshake.RecordSenderHandshakeKey, Y.public[:])
	reply.Add(handshake.RecordRecipientHandshakeKey, X[:])
	reply.Add(handshake.RecordT, T[:])

	c.ops.SendTo(addr, reply.Build())

	f := c.flowFor(p)
	f.state = flowResponded
	f.localKey = Y.public
}

// finish handles a type-2 message on the initiator: verify the responder's
// tag, send the reciprocal tag and establish the session.
func (c *Context) finish(addr netip.AddrPort, p *peer.Peer, hk *handshakeKey, Y ec25519.Public, h *handshake.Handshake) {
	log.WithFields(logger.Fields{
		"at":   "finish",
		"peer": p.Name,
		"addr": addr,
	}).Debug("finishing handshake")

	X := hk.public
	A := c.identity.Public()
	B := p.Key

	sigma, K, err := fhmqv(true, c.identity.secret, hk.secret, X, Y, A, B)
	if err != nil {
		return
	}

	rec, _ := h.Record(handshake.RecordT)
	var T [ec25519.HashBytes]byte
	copy(T[:], rec)

	if !ec25519.HMACSHA256Verify(T, K, B[:], Y[:]) {
		log.WithFields(logger.Fields{
			"peer": p.Name,
			"addr": addr,
		}).Warn("received invalid protocol handshake response")
		return
	}

	T2 := ec25519.HMACSHA256(K, A[:], X[:])

	reply := handshake.NewReply(h)
	reply.Add(handshake.RecordSenderKey, A[:])
	reply.Add(handshake.RecordRecipientKey, B[:])
	reply.Add(handshake.RecordSenderHandshakeKey, X[:])
	reply.Add(handshake.RecordRecipientHandshakeKey, Y[:])
	reply.Add(handshake.RecordT, T2[:])

	c.ops.SendTo(addr, reply.Build())

	c.establish(p, addr, true, X, Y, A, B, sigma)
}

// handleFinish handles a type-3 message on the responder: verify the
// initiator's tag and establish. No further message is sent; the zero-length
// keepalive from establish signals success.
func (c *Context) handleFinish(addr netip.AddrPort, p *peer.Peer, hk *handshakeKey, X ec25519.Public, h *handshake.Handshake) {
	log.WithFields(logger.Fields{
		"at":   "handleFinish",
		"peer": p.Name,
		"addr": addr,
	}).Debug("handling handshake finish")

	Y := hk.public
	A := p.Key
	B := c.identity.Public()

	sigma, K, err := fhmqv(false, c.identity.secret, hk.secret, X, Y, A, B)
	if err != nil {
		return
	}

	rec, _ := h.Record(handshake.RecordT)
	var T [ec25519.HashBytes]byte
	copy(T[:], rec)

	if !ec25519.HMACSHA256Verify(T, K, A[:], X[:]) {
		log.WithFields(logger.Fields{
			"peer": p.Name,
			"addr": addr,
		}).Warn("received invalid protocol handshake finish")
		return
	}

	c.establish(p, addr, false, X, Y, A, B, sigma)
}
