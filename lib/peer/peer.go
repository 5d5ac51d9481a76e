package peer

import (
	"net/netip"
	"time"

	"github.com/blocktrron/fastd/lib/buffer"
	"github.com/blocktrron/fastd/lib/crypto/ec25519"
	"github.com/blocktrron/fastd/lib/method"
	"github.com/blocktrron/fastd/lib/util/logger"
)

var log = logger.GetFastdLogger()

// Ops is what the peer glue needs from the event loop: the transport, the
// TUN delivery path, the timer queue and the clock.
type Ops interface {
	SendTo(addr netip.AddrPort, buf *buffer.Buffer)
	DeliverTUN(p *Peer, buf *buffer.Buffer)

	ScheduleHandshake(p *Peer, delay time.Duration)
	ScheduleKeepalive(p *Peer, delay time.Duration)
	DeleteHandshakes(p *Peer)
	DeletePeerTasks(p *Peer)

	Now() time.Time
}

// Session is one slot of the session pair: the method state plus the
// rollover bookkeeping flags.
type Session struct {
	// HandshakesCleaned is set once a packet decrypted via this session
	// proved the peer has the key, making pending handshake retries moot.
	HandshakesCleaned bool

	// Refreshing is set once a rekey for this session has been scheduled.
	Refreshing bool

	Method method.Session
}

// IsValid reports whether the slot holds a usable session.
func (s *Session) IsValid() bool {
	return s.Method != nil && s.Method.IsValid()
}

// Free releases the method state and clears the slot.
func (s *Session) Free() {
	if s.Method != nil {
		s.Method.Free()
	}
	*s = Session{}
}

// Peer is one configured peer.
type Peer struct {
	Name string
	Key  ec25519.Public

	// Floating peers match any source address; dynamic peers have a
	// hostname resolved at handshake time; otherwise the peer is fixed to
	// ConfiguredAddr.
	Floating       bool
	Dynamic        bool
	Hostname       string
	ConfiguredAddr netip.AddrPort

	Enabled bool

	// Addr is the claimed remote address, set on authentication.
	Addr netip.AddrPort

	Session    Session
	OldSession Session

	established bool
	lastSeen    time.Time

	ops               Ops
	keepaliveInterval time.Duration
	headSpace         int
}

// Attach wires the peer to the event loop. Must be called before any
// traffic flows.
func (p *Peer) Attach(ops Ops, keepaliveInterval time.Duration, headSpace int) {
	p.ops = ops
	p.keepaliveInterval = keepaliveInterval
	p.headSpace = headSpace
}

// IsEstablished reports whether a session has been established since the
// last reset.
func (p *Peer) IsEstablished() bool {
	return p.established
}

// SetEstablished marks the peer established and arms the keepalive timer.
func (p *Peer) SetEstablished() {
	p.established = true
	p.ops.ScheduleKeepalive(p, p.keepaliveInterval)
}

// Seen records peer activity.
func (p *Peer) Seen() {
	p.lastSeen = p.ops.Now()
}

// LastSeen returns the time of the last authenticated activity.
func (p *Peer) LastSeen() time.Time {
	return p.lastSeen
}

// Reset tears down all session state and pending timers for the peer.
// Secrets inside the method states are zeroed.
func (p *Peer) Reset() {
	log.WithFields(logger.Fields{
		"at":   "(Peer) Reset",
		"peer": p.Name,
	}).Debug("resetting peer")

	p.Session.Free()
	p.OldSession.Free()
	p.established = false
	p.ops.DeletePeerTasks(p)
}

// Rollover makes room for a fresh current session: a still-valid current
// session moves to the previous slot if that slot is free, otherwise the
// current session is freed in place.
func (p *Peer) Rollover() {
	if p.Session.IsValid() && !p.OldSession.IsValid() {
		p.OldSession.Free()
		p.OldSession = p.Session
		p.Session = Session{}
	} else {
		p.Session.Free()
	}
}

// SetSession installs a freshly initialized method state as the current
// session.
func (p *Peer) SetSession(m method.Session) {
	p.Session = Session{Method: m}
}

// NewPayloadBuffer allocates a buffer for an outbound payload with the head
// space the method needs to prepend its header in place.
func (p *Peer) NewPayloadBuffer(payload []byte) *buffer.Buffer {
	return buffer.FromBytes(payload, p.headSpace)
}

// SendKeepalive sends a zero-length encrypted packet.
func (p *Peer) SendKeepalive() {
	p.Send(buffer.New(0, p.headSpace))
}

// checkRefresh flags the current session for refresh and schedules the
// rekey handshake. Only the initiator side ever wants a refresh.
func (p *Peer) checkRefresh() {
	s := &p.Session
	if !s.Refreshing && s.Method != nil && s.Method.WantRefresh() {
		log.WithFields(logger.Fields{
			"at":   "(Peer) checkRefresh",
			"peer": p.Name,
		}).Debug("refreshing session")
		s.Refreshing = true
		p.ops.ScheduleHandshake(p, 0)
	}
}

// Send encrypts and transmits one payload buffer. Ownership of buf moves to
// Send: every branch frees or forwards it.
func (p *Peer) Send(buf *buffer.Buffer) {
	if !p.Session.IsValid() {
		buf.Free()
		return
	}

	p.checkRefresh()

	// The initiator keeps speaking on the previous session until the
	// responder has proven it holds the new key.
	sess := &p.Session
	if p.Session.Method.IsInitiator() && !p.Session.HandshakesCleaned && p.OldSession.IsValid() {
		log.WithFields(logger.Fields{
			"at":   "(Peer) Send",
			"peer": p.Name,
		}).Debug("sending packet for previous session")
		sess = &p.OldSession
	}

	out, err := sess.Method.Encrypt(buf)
	if err != nil {
		log.WithError(err).WithField("peer", p.Name).Debug("encrypt failed")
		buf.Free()
		return
	}

	p.ops.SendTo(p.Addr, out)
	p.ops.ScheduleKeepalive(p, p.keepaliveInterval)
}

// Receive handles one inbound data datagram. Ownership of buf moves to
// Receive.
func (p *Peer) Receive(buf *buffer.Buffer) {
	if !p.established {
		log.WithFields(logger.Fields{
			"at":   "(Peer) Receive",
			"peer": p.Name,
		}).Debug("received unexpected packet, scheduling handshake")
		p.ops.ScheduleHandshake(p, 0)
		buf.Free()
		return
	}

	if !p.Session.IsValid() {
		buf.Free()
		return
	}

	var out *buffer.Buffer
	ok := false

	if p.OldSession.IsValid() {
		if o, err := p.OldSession.Method.Decrypt(buf); err == nil {
			out = o
			ok = true
		}
	}

	if !ok {
		o, err := p.Session.Method.Decrypt(buf)
		if err == nil {
			out = o
			ok = true

			if !p.Session.HandshakesCleaned {
				log.WithFields(logger.Fields{
					"at":   "(Peer) Receive",
					"peer": p.Name,
				}).Debug("cleaning left handshakes")
				p.ops.DeleteHandshakes(p)
				p.Session.HandshakesCleaned = true

				if p.Session.Method.IsInitiator() {
					p.SendKeepalive()
				}
			}

			if p.OldSession.Method != nil {
				log.WithFields(logger.Fields{
					"at":   "(Peer) Receive",
					"peer": p.Name,
				}).Debug("invalidating previous session")
				p.OldSession.Free()
			}

			p.checkRefresh()
		}
	}

	if !ok {
		log.WithFields(logger.Fields{
			"at":   "(Peer) Receive",
			"peer": p.Name,
		}).Debug("verification failed for received packet")
		buf.Free()
		return
	}

	p.Seen()

	if out.Len() > 0 {
		p.ops.DeliverTUN(p, out)
	} else {
		// Keepalive.
		out.Free()
	}
}
