package protocol

import (
	"github.com/blocktrron/fastd/lib/config"
	"github.com/blocktrron/fastd/lib/crypto/ec25519"
	"github.com/blocktrron/fastd/lib/method"
	"github.com/blocktrron/fastd/lib/peer"
	"github.com/blocktrron/fastd/lib/util/logger"
)

var log = logger.GetFastdLogger()

// Ops extends the peer glue callbacks with what the handshake path needs
// from the event loop.
type Ops interface {
	peer.Ops

	// Resolve kicks off address resolution for a dynamic peer. The
	// handshake that triggered it is deferred until resolution completes.
	Resolve(p *peer.Peer)
}

// flowState tracks one handshake flow per peer, keyed on the local
// handshake key it was started with. Progress is gated on these states
// instead of free-form booleans.
type flowState int

const (
	flowNone flowState = iota
	flowInitiated
	flowResponded
	flowEstablished
)

type flow struct {
	state    flowState
	localKey ec25519.Public
}

// Context is the process-wide protocol state, threaded explicitly to every
// operation: configuration, identity, the handshake-key pool, the selected
// method and the peer table.
type Context struct {
	env      *method.Env
	conf     *config.Config
	identity *Identity

	methodInfo *method.Info
	method     method.Method

	peers *peer.Set
	ops   Ops

	pool  pool
	flows map[*peer.Peer]*flow
}

// New assembles a protocol context.
func New(env *method.Env, conf *config.Config, identity *Identity,
	info *method.Info, m method.Method, peers *peer.Set, ops Ops) *Context {
	return &Context{
		env:        env,
		conf:       conf,
		identity:   identity,
		methodInfo: info,
		method:     m,
		peers:      peers,
		ops:        ops,
		flows:      map[*peer.Peer]*flow{},
	}
}

// Method returns the selected method.
func (c *Context) Method() method.Method {
	return c.method
}

func (c *Context) flowFor(p *peer.Peer) *flow {
	f := c.flows[p]
	if f == nil {
		f = &flow{}
		c.flows[p] = f
	}
	return f
}

// ResetPeer tears down a peer completely: sessions, timers, address claim
// and any handshake flow in progress.
func (c *Context) ResetPeer(p *peer.Peer) {
	c.peers.Unclaim(p)
	p.Reset()
	delete(c.flows, p)
}

// Close zeroes all secret-bearing process state.
func (c *Context) Close() {
	c.zeroPool()
	c.identity.Zero()
}
