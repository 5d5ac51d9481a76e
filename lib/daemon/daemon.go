package daemon

import (
	"io"
	"net/netip"
	"time"

	"golang.org/x/time/rate"

	"github.com/blocktrron/fastd/lib/buffer"
	"github.com/blocktrron/fastd/lib/config"
	"github.com/blocktrron/fastd/lib/handshake"
	"github.com/blocktrron/fastd/lib/method"
	"github.com/blocktrron/fastd/lib/peer"
	"github.com/blocktrron/fastd/lib/protocol"
	"github.com/blocktrron/fastd/lib/task"
	"github.com/blocktrron/fastd/lib/util/logger"
)

var log = logger.GetFastdLogger()

// Transport sends datagrams to remote addresses. The UDP socket implements
// it; tests substitute in-memory pipes.
type Transport interface {
	WriteTo(b []byte, addr netip.AddrPort) error
}

// TUN receives decrypted payload packets. The device layer is an external
// collaborator; the core only ever writes whole packets to it.
type TUN interface {
	Write(b []byte) error
}

// SystemClock is the production clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Daemon owns the event loop state: configuration, protocol context, peer
// table, timers and the handshake rate limiter.
type Daemon struct {
	conf  *config.Config
	env   *method.Env
	proto *protocol.Context
	peers *peer.Set
	tasks *task.Queue[*peer.Peer]

	transport Transport
	tun       TUN

	limiter   *rate.Limiter
	headSpace int
}

// New assembles a daemon from a validated configuration. The clock and the
// CSPRNG are injected so tests can run deterministically.
func New(conf *config.Config, transport Transport, tun TUN, clock method.Clock, rnd io.Reader) (*Daemon, error) {
	identity, err := protocol.NewIdentity(conf.Secret)
	if err != nil {
		return nil, err
	}

	if conf.MethodImpl != "" {
		if err := method.SetImplementation(conf.Method, conf.MethodImpl); err != nil {
			return nil, err
		}
	}
	info, m, err := method.Lookup(conf.Method)
	if err != nil {
		return nil, err
	}

	env := &method.Env{
		Clock:           clock,
		Rand:            rnd,
		KeyValid:        conf.KeyValid,
		KeyRefresh:      conf.KeyRefresh,
		KeyRefreshSplay: conf.KeyRefreshSplay,
		ReorderTime:     conf.ReorderTime,
		ReorderCount:    conf.ReorderCount,
	}

	d := &Daemon{
		conf:      conf,
		env:       env,
		peers:     peer.NewSet(),
		tasks:     task.NewQueue[*peer.Peer](),
		transport: transport,
		tun:       tun,
		limiter:   rate.NewLimiter(rate.Limit(conf.HandshakeRate), conf.HandshakeBurst),
		headSpace: m.MinEncryptHeadSpace(),
	}
	d.proto = protocol.New(env, conf, identity, info, m, d.peers, d)

	protocol.ConfigurePeers(conf, identity, d.peers)
	now := clock.Now()
	for _, p := range d.peers.Peers() {
		if !p.Enabled {
			continue
		}
		p.Attach(d, conf.KeepaliveInterval, d.headSpace)
		if p.ConfiguredAddr.IsValid() {
			// Fixed peers own their configured address from the start so
			// inbound data resolves to them.
			d.peers.Claim(p, p.ConfiguredAddr)
			d.tasks.ScheduleHandshake(p, now)
		}
	}

	return d, nil
}

// Peers exposes the peer table.
func (d *Daemon) Peers() *peer.Set {
	return d.peers
}

// Protocol exposes the protocol context.
func (d *Daemon) Protocol() *protocol.Context {
	return d.proto
}

// Now returns the event loop clock.
func (d *Daemon) Now() time.Time {
	return d.env.Clock.Now()
}

// SendTo transmits and releases an encrypted datagram.
func (d *Daemon) SendTo(addr netip.AddrPort, buf *buffer.Buffer) {
	if err := d.transport.WriteTo(buf.Bytes(), addr); err != nil {
		log.WithError(err).WithField("addr", addr).Debug("send failed")
	}
	buf.Free()
}

// DeliverTUN hands a decrypted payload up to the device layer.
func (d *Daemon) DeliverTUN(p *peer.Peer, buf *buffer.Buffer) {
	if err := d.tun.Write(buf.Bytes()); err != nil {
		log.WithError(err).WithField("peer", p.Name).Debug("tun write failed")
	}
	buf.Free()
}

func (d *Daemon) ScheduleHandshake(p *peer.Peer, delay time.Duration) {
	d.tasks.ScheduleHandshake(p, d.Now().Add(delay))
}

func (d *Daemon) ScheduleKeepalive(p *peer.Peer, delay time.Duration) {
	d.tasks.ScheduleKeepalive(p, d.Now().Add(delay))
}

func (d *Daemon) DeleteHandshakes(p *peer.Peer) {
	d.tasks.Delete(p, task.Handshake)
}

func (d *Daemon) DeletePeerTasks(p *peer.Peer) {
	d.tasks.DeleteOwner(p)
}

// Resolve is the hook for dynamic peer address resolution. Resolution
// itself happens outside the core; the handshake is retried once a result
// arrives via SetResolvedAddress.
func (d *Daemon) Resolve(p *peer.Peer) {
	log.WithFields(logger.Fields{
		"at":       "Resolve",
		"peer":     p.Name,
		"hostname": p.Hostname,
	}).Debug("resolve requested for dynamic peer")
}

// SetResolvedAddress records the outcome of a resolution and retries the
// deferred handshake.
func (d *Daemon) SetResolvedAddress(p *peer.Peer, addr netip.AddrPort) {
	p.ConfiguredAddr = addr
	d.tasks.ScheduleHandshake(p, d.Now())
}

// SendPayload encrypts and sends one payload packet to a peer. This is the
// TUN-to-socket direction.
func (d *Daemon) SendPayload(p *peer.Peer, payload []byte) {
	p.Send(p.NewPayloadBuffer(payload))
}

// HandlePacket is the outermost inbound dispatch. Ownership of buf moves
// here: every branch, the unknown-type one included, frees or forwards it.
func (d *Daemon) HandlePacket(addr netip.AddrPort, buf *buffer.Buffer) {
	if buf.Len() == 0 {
		buf.Free()
		return
	}

	switch buf.Bytes()[0] {
	case handshake.PacketHandshake:
		if !d.limiter.AllowN(d.Now(), 1) {
			log.WithField("addr", addr).Debug("dropping handshake: rate limited")
			buf.Free()
			return
		}
		h, err := handshake.Parse(buf.Bytes()[1:])
		if err != nil {
			log.WithError(err).WithField("addr", addr).Debug("dropping malformed handshake")
			buf.Free()
			return
		}
		d.proto.HandleHandshake(addr, h)
		buf.Free()

	case handshake.PacketData:
		p := d.peers.ByAddress(addr)
		if p == nil {
			log.WithField("addr", addr).Debug("dropping data packet from unknown address")
			buf.Free()
			return
		}
		p.Receive(buf)

	default:
		log.WithFields(logger.Fields{
			"at":   "HandlePacket",
			"addr": addr,
			"type": buf.Bytes()[0],
		}).Debug("dropping packet with unknown type")
		buf.Free()
	}
}

// RunTimers fires every task due at the current clock reading.
func (d *Daemon) RunTimers() {
	for {
		t, ok := d.tasks.Pop(d.Now())
		if !ok {
			return
		}
		switch t.Kind {
		case task.Handshake:
			d.proto.InitiateHandshake(t.Owner)
		case task.Keepalive:
			t.Owner.SendKeepalive()
		}
	}
}

// NextTimer reports when RunTimers next has work.
func (d *Daemon) NextTimer() (time.Time, bool) {
	return d.tasks.Next()
}

// Close zeroes all secret-bearing state.
func (d *Daemon) Close() {
	for _, p := range d.peers.Peers() {
		if p.Enabled {
			d.proto.ResetPeer(p)
		}
	}
	d.proto.Close()
}
