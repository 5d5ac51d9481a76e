package protocol

import (
	"net/netip"

	"github.com/blocktrron/fastd/lib/config"
	"github.com/blocktrron/fastd/lib/crypto/ec25519"
	"github.com/blocktrron/fastd/lib/keys"
	"github.com/blocktrron/fastd/lib/peer"
	"github.com/blocktrron/fastd/lib/util/logger"
)

// ConfigurePeers turns the peer configuration into peer objects. Peers with
// a missing or malformed key are disabled with a warning; a peer configured
// with our own key is ignored.
func ConfigurePeers(conf *config.Config, identity *Identity, set *peer.Set) {
	for _, pc := range conf.Peers {
		p := &peer.Peer{
			Name:     pc.Name,
			Floating: pc.Float,
			Enabled:  true,
		}

		if pc.Key == "" {
			log.WithField("peer", pc.Name).Warn("no key configured for peer, disabling")
			p.Enabled = false
			set.Add(p)
			continue
		}

		key, err := keys.ParseKey(pc.Key)
		if err != nil {
			log.WithError(err).WithField("peer", pc.Name).Warn("invalid key configured for peer, disabling")
			p.Enabled = false
			set.Add(p)
			continue
		}
		p.Key = ec25519.Public(key)

		if p.Key.Equal(identity.Public()) {
			log.WithField("peer", pc.Name).Debug("found own key as peer, ignoring peer")
			p.Enabled = false
			set.Add(p)
			continue
		}

		if pc.Address != "" {
			if addr, err := netip.ParseAddrPort(pc.Address); err == nil {
				p.ConfiguredAddr = addr
			} else {
				// Not a literal address: resolve at handshake time.
				p.Dynamic = true
				p.Hostname = pc.Address
			}
		}
		if pc.Dynamic {
			p.Dynamic = true
			p.Hostname = pc.Address
		}

		set.Add(p)
	}
}

// matchSenderKey maps the sender key of an incoming handshake to a
// configured peer per the claim rules: the peer already owning the source
// address wins if its key matches; otherwise floating and dynamic peers are
// scanned. A dynamic match triggers resolution and defers the handshake.
// Our own key and unknown keys are rejected.
func (c *Context) matchSenderKey(addr netip.AddrPort, direct *peer.Peer, key ec25519.Public) *peer.Peer {
	if key.Equal(c.identity.Public()) {
		log.WithFields(logger.Fields{
			"at":   "matchSenderKey",
			"addr": addr,
		}).Debug("ignoring handshake with own key as sender key")
		return nil
	}

	if direct != nil && direct.Enabled && direct.Key.Equal(key) {
		return direct
	}

	if direct == nil || direct.Floating || direct.Dynamic {
		for _, p := range c.peers.Peers() {
			if !p.Enabled || (!p.Floating && !p.Dynamic) {
				continue
			}
			if !p.Key.Equal(key) {
				continue
			}
			if p.Floating {
				return p
			}
			// Dynamic: only usable once the address resolves.
			c.ops.Resolve(p)
			return nil
		}
	}

	return nil
}
