package peer

import (
	"net/netip"

	"github.com/blocktrron/fastd/lib/util/logger"
)

// Set is the daemon's peer table with the address-claim registry. Each
// remote address is owned by at most one peer at a time.
type Set struct {
	peers  []*Peer
	byAddr map[netip.AddrPort]*Peer
}

func NewSet() *Set {
	return &Set{byAddr: map[netip.AddrPort]*Peer{}}
}

func (s *Set) Add(p *Peer) {
	s.peers = append(s.peers, p)
}

// Peers returns all configured peers, enabled or not.
func (s *Set) Peers() []*Peer {
	return s.peers
}

// ByAddress returns the peer owning the given remote address.
func (s *Set) ByAddress(addr netip.AddrPort) *Peer {
	return s.byAddr[addr]
}

// Claim binds addr to p. It fails if the address is owned by a different
// fixed peer; a floating or dynamic owner is reset and loses the address.
func (s *Set) Claim(p *Peer, addr netip.AddrPort) bool {
	if owner := s.byAddr[addr]; owner != nil && owner != p {
		if !owner.Floating && !owner.Dynamic {
			return false
		}
		log.WithFields(logger.Fields{
			"at":    "(Set) Claim",
			"owner": owner.Name,
			"peer":  p.Name,
		}).Debug("stealing address from non-fixed peer")
		s.Unclaim(owner)
		owner.Reset()
	}

	s.Unclaim(p)
	s.byAddr[addr] = p
	p.Addr = addr
	return true
}

// Unclaim releases p's claimed address.
func (s *Set) Unclaim(p *Peer) {
	if p.Addr.IsValid() {
		if s.byAddr[p.Addr] == p {
			delete(s.byAddr, p.Addr)
		}
		p.Addr = netip.AddrPort{}
	}
}
