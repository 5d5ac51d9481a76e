package protocol

import (
	"encoding/hex"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blocktrron/fastd/lib/buffer"
	"github.com/blocktrron/fastd/lib/config"
	"github.com/blocktrron/fastd/lib/crypto/ec25519"
	"github.com/blocktrron/fastd/lib/handshake"
	"github.com/blocktrron/fastd/lib/method"
	"github.com/blocktrron/fastd/lib/peer"

	_ "github.com/blocktrron/fastd/lib/method/xsalsa20poly1305"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type seqRand struct {
	state uint64
}

func (r *seqRand) Read(p []byte) (int, error) {
	for i := range p {
		r.state = r.state*6364136223846793005 + 1442695040888963407
		p[i] = byte(r.state >> 56)
	}
	return len(p), nil
}

type sentPacket struct {
	addr netip.AddrPort
	data []byte
}

type fakeOps struct {
	clk *fakeClock

	sent       []sentPacket
	tun        [][]byte
	handshakes int
	resolved   int
}

func (o *fakeOps) SendTo(addr netip.AddrPort, buf *buffer.Buffer) {
	o.sent = append(o.sent, sentPacket{addr: addr, data: append([]byte(nil), buf.Bytes()...)})
	buf.Free()
}

func (o *fakeOps) DeliverTUN(p *peer.Peer, buf *buffer.Buffer) {
	o.tun = append(o.tun, append([]byte(nil), buf.Bytes()...))
	buf.Free()
}

func (o *fakeOps) ScheduleHandshake(p *peer.Peer, delay time.Duration) { o.handshakes++ }
func (o *fakeOps) ScheduleKeepalive(p *peer.Peer, delay time.Duration) {}
func (o *fakeOps) DeleteHandshakes(p *peer.Peer) {}
func (o *fakeOps) DeletePeerTasks(p *peer.Peer) {}
func (o *fakeOps) Now() time.Time { return o.clk.t }
func (o *fakeOps) Resolve(p *peer.Peer) { o.resolved++ }

// side is one end of a handshake test: a protocol context plus the peer
// object representing the other end.
type side struct {
	ctx      *Context
	ops      *fakeOps
	identity *Identity
	addr     netip.AddrPort
	remote   *peer.Peer
}

func testConfig() *config.Config {
	return &config.Config{
		Secret:            "set per side",
		Method:            "xsalsa20-poly1305",
		KeyValid:          time.Hour,
		KeyRefresh:        55 * time.Minute,
		ReorderTime:       10 * time.Second,
		ReorderCount:      64,
		KeepaliveInterval: 10 * time.Second,
	}
}

func newSide(t *testing.T, clk *fakeClock, seed uint64, addr netip.AddrPort) *side {
	t.Helper()

	rnd := &seqRand{state: seed}
	var raw [32]byte
	_, err := rnd.Read(raw[:])
	require.NoError(t, err)

	identity, err := NewIdentity(hex.EncodeToString(raw[:]))
	require.NoError(t, err)

	conf := testConfig()
	env := &method.Env{
		Clock:        clk,
		Rand:         rnd,
		KeyValid:     conf.KeyValid,
		KeyRefresh:   conf.KeyRefresh,
		ReorderTime:  conf.ReorderTime,
		ReorderCount: conf.ReorderCount,
	}

	info, m, err := method.Lookup(conf.Method)
	require.NoError(t, err)

	ops := &fakeOps{clk: clk}
	set := peer.NewSet()
	ctx := New(env, conf, identity, info, m, set, ops)

	return &side{ctx: ctx, ops: ops, identity: identity, addr: addr}
}

// link introduces the two sides to each other: each gets a peer object for
// the other, the initiator side with a fixed address, the responder side
// floating.
func link(t *testing.T, initiator, responder *side) {
	t.Helper()

	initiator.remote = &peer.Peer{
		Name:           "responder",
		Key:            responder.identity.Public(),
		ConfiguredAddr: responder.addr,
		Enabled:        true,
	}
	initiator.remote.Attach(initiator.ops, initiator.ctx.conf.KeepaliveInterval, initiator.ctx.method.MinEncryptHeadSpace())
	initiator.ctx.peers.Add(initiator.remote)
	// A fixed peer owns its configured address from the start, as the
	// daemon arranges at startup.
	require.True(t, initiator.ctx.peers.Claim(initiator.remote, responder.addr))

	responder.remote = &peer.Peer{
		Name:     "initiator",
		Key:      initiator.identity.Public(),
		Floating: true,
		Enabled:  true,
	}
	responder.remote.Attach(responder.ops, responder.ctx.conf.KeepaliveInterval, responder.ctx.method.MinEncryptHeadSpace())
	responder.ctx.peers.Add(responder.remote)
}

// deliver moves all queued packets from one side to the other. Handshake
// packets go through the protocol, data packets through the peer receive
// path.
func deliver(t *testing.T, from, to *side) bool {
	t.Helper()

	msgs := from.ops.sent
	from.ops.sent = nil

	for _, m := range msgs {
		buf := buffer.FromBytes(m.data, 0)
		switch m.data[0] {
		case handshake.PacketHandshake:
			h, err := handshake.Parse(buf.Bytes()[1:])
			require.NoError(t, err)
			to.ctx.HandleHandshake(from.addr, h)
			buf.Free()
		case handshake.PacketData:
			to.remote.Receive(buf)
		default:
			t.Fatalf("unexpected packet type %d", m.data[0])
		}
	}
	return len(msgs) > 0
}

func pump(t *testing.T, a, b *side) {
	t.Helper()
	for deliver(t, a, b) || deliver(t, b, a) {
	}
}

func newLinkedSides(t *testing.T) (*side, *side, *fakeClock) {
	t.Helper()
	clk := &fakeClock{t: time.Unix(1700000000, 0)}
	a := newSide(t, clk, 0x1111, netip.MustParseAddrPort("192.0.2.1:10000"))
	b := newSide(t, clk, 0x2222, netip.MustParseAddrPort("192.0.2.2:10000"))
	link(t, a, b)
	return a, b, clk
}

func TestCleanHandshake(t *testing.T) {
	before := buffer.Live()
	a, b, _ := newLinkedSides(t)

	a.ctx.InitiateHandshake(a.remote)
	pump(t, a, b)

	require.True(t, a.remote.IsEstablished())
	require.True(t, b.remote.IsEstablished())

	assert.True(t, a.remote.Session.IsValid())
	assert.True(t, b.remote.Session.IsValid())
	assert.False(t, a.remote.OldSession.IsValid())
	assert.False(t, b.remote.OldSession.IsValid())

	// The responder claimed the initiator's address on authentication.
	assert.Equal(t, a.addr, b.remote.Addr)

	a.remote.Send(a.remote.NewPayloadBuffer([]byte("hello")))
	pump(t, a, b)

	require.Len(t, b.ops.tun, 1)
	assert.Equal(t, []byte("hello"), b.ops.tun[0])

	b.remote.Send(b.remote.NewPayloadBuffer([]byte("hello back")))
	pump(t, a, b)

	require.Len(t, a.ops.tun, 1)
	assert.Equal(t, []byte("hello back"), a.ops.tun[0])

	assert.Equal(t, before, buffer.Live())
}

func TestHandshakeKeyRollover(t *testing.T) {
	a, b, clk := newLinkedSides(t)

	// The type-1 message sits in flight while the initiator's handshake
	// key rotates out of the preferred slot.
	a.ctx.InitiateHandshake(a.remote)
	clk.Advance(16 * time.Second)

	pump(t, a, b)

	assert.True(t, a.remote.IsEstablished())
	assert.True(t, b.remote.IsEstablished())
}

func TestHandshakeKeyExpired(t *testing.T) {
	a, b, clk := newLinkedSides(t)

	// After 31 seconds even the previous pool slot is invalid; the
	// response must be ignored.
	a.ctx.InitiateHandshake(a.remote)
	deliver(t, a, b)
	clk.Advance(31 * time.Second)
	pump(t, b, a)

	assert.False(t, a.remote.IsEstablished())
}

func TestTamperedResponseRejected(t *testing.T) {
	a, b, _ := newLinkedSides(t)

	a.ctx.InitiateHandshake(a.remote)
	deliver(t, a, b)

	// Flip a bit in the tag record of the type-2 message.
	require.Len(t, b.ops.sent, 1)
	b.ops.sent[0].data[len(b.ops.sent[0].data)-1] ^= 1

	deliver(t, b, a)

	assert.False(t, a.remote.IsEstablished())
	assert.Empty(t, a.ops.sent)
}

func TestUnknownSenderKeyIgnored(t *testing.T) {
	_, b, clk := newLinkedSides(t)

	stranger := newSide(t, clk, 0x3333, netip.MustParseAddrPort("192.0.2.3:10000"))
	stranger.remote = &peer.Peer{
		Name:           "responder",
		Key:            b.identity.Public(),
		ConfiguredAddr: b.addr,
		Enabled:        true,
	}
	stranger.remote.Attach(stranger.ops, time.Second, 32)
	stranger.ctx.peers.Add(stranger.remote)

	stranger.ctx.InitiateHandshake(stranger.remote)
	deliver(t, stranger, b)

	assert.Empty(t, b.ops.sent)
	assert.False(t, b.remote.IsEstablished())
}

func TestOwnKeyRejected(t *testing.T) {
	_, b, _ := newLinkedSides(t)

	// A handshake claiming our own key as sender must be ignored.
	own := b.identity.Public()

	builder := handshake.NewInit(1)
	builder.Add(handshake.RecordSenderKey, own[:])
	builder.Add(handshake.RecordSenderHandshakeKey, own[:])
	buf := builder.Build()

	h, err := handshake.Parse(buf.Bytes()[1:])
	require.NoError(t, err)
	b.ctx.HandleHandshake(netip.MustParseAddrPort("192.0.2.9:9"), h)
	buf.Free()

	assert.Empty(t, b.ops.sent)
}

func TestWrongRecipientKeyRejected(t *testing.T) {
	a, b, _ := newLinkedSides(t)

	a.ctx.InitiateHandshake(a.remote)
	deliver(t, a, b)

	// Rewrite the type-2 recipient key to a different value: the initiator
	// must drop the message before any verification.
	require.Len(t, b.ops.sent, 1)
	data := b.ops.sent[0].data

	h, err := handshake.Parse(append([]byte(nil), data[1:]...))
	require.NoError(t, err)
	rec, ok := h.Record(handshake.RecordRecipientKey)
	require.True(t, ok)
	rec[0] ^= 1

	b.ops.sent = nil
	a.ctx.HandleHandshake(b.addr, h)
	assert.False(t, a.remote.IsEstablished())
	assert.Empty(t, a.ops.sent)
}

func TestRekeyOverlap(t *testing.T) {
	before := buffer.Live()
	a, b, clk := newLinkedSides(t)

	a.ctx.InitiateHandshake(a.remote)
	pump(t, a, b)
	require.True(t, a.remote.IsEstablished())

	// Rekey: a second handshake while the first session is live. Both
	// handshake-key pools rotate first, so the new session gets a fresh
	// secret.
	clk.Advance(16 * time.Second)
	a.ctx.InitiateHandshake(a.remote)
	deliver(t, a, b) // type 1
	deliver(t, b, a) // type 2: initiator establishes, current rolls over

	assert.True(t, a.remote.Session.IsValid())
	assert.True(t, a.remote.OldSession.IsValid())

	// Until the responder proves it holds the new key, the initiator keeps
	// sending on the previous session.
	a.remote.Send(a.remote.NewPayloadBuffer([]byte("old session")))
	pump(t, a, b)

	assert.Contains(t, b.ops.tun, []byte("old session"))

	// The responder's keepalive on the new session cleaned up the overlap.
	assert.False(t, a.remote.OldSession.IsValid())
	assert.False(t, b.remote.OldSession.IsValid())

	a.ops.tun = nil
	b.ops.tun = nil

	a.remote.Send(a.remote.NewPayloadBuffer([]byte("new session")))
	pump(t, a, b)
	require.Len(t, b.ops.tun, 1)
	assert.Equal(t, []byte("new session"), b.ops.tun[0])

	assert.Equal(t, before, buffer.Live())
}

func TestEstablishWithoutPeerPanics(t *testing.T) {
	a, _, _ := newLinkedSides(t)

	var pub ec25519.Public
	assert.Panics(t, func() {
		a.ctx.establish(nil, a.addr, true, pub, pub, pub, pub, pub)
	})
}
