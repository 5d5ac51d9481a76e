package protocol

import (
	"net/netip"

	"github.com/blocktrron/fastd/lib/crypto/ec25519"
	"github.com/blocktrron/fastd/lib/peer"
	"github.com/blocktrron/fastd/lib/util/logger"
)

// establish turns a completed handshake into a live session. The public
// values arrive in canonical order: initiator handshake key first.
func (c *Context) establish(p *peer.Peer, addr netip.AddrPort, initiator bool,
	X, Y, A, B, sigma ec25519.Public) {

	if p == nil {
		panic("protocol: establish called with no matching peer")
	}

	log.WithFields(logger.Fields{
		"at":   "establish",
		"peer": p.Name,
		"addr": addr,
	}).Debug("peer authorized")

	if !c.peers.Claim(p, addr) {
		log.WithFields(logger.Fields{
			"peer": p.Name,
			"addr": addr,
		}).Warn("can't set address which is used by a fixed peer")
		c.ResetPeer(p)
		return
	}

	secret := ec25519.SHA256(X[:], Y[:], A[:], B[:], sigma[:])

	p.Rollover()
	p.SetSession(c.method.SessionInit(c.env, secret, initiator))

	f := c.flowFor(p)
	f.state = flowEstablished

	p.Seen()
	p.SetEstablished()

	log.WithFields(logger.Fields{
		"peer":      p.Name,
		"initiator": initiator,
	}).Debug("new session established")

	// The responder proves liveness right away; the initiator got its
	// proof from the type-2 tag.
	if !initiator {
		p.SendKeepalive()
	}
}
