package config

import "time"

// Defaults for the record-layer tuning options. Sessions stay decryptable
// for an hour; the initiator begins a rekey five to ten minutes before
// expiry, splayed so many tunnels don't rekey in lockstep.
const (
	DefaultKeyValid        = time.Hour
	DefaultKeyRefresh      = 55 * time.Minute
	DefaultKeyRefreshSplay = 5 * time.Minute

	DefaultReorderTime  = 10 * time.Second
	DefaultReorderCount = 64

	DefaultKeepaliveInterval = 10 * time.Second

	DefaultMethod = "xsalsa20-poly1305"
	DefaultBind   = "0.0.0.0:10000"
	DefaultMTU    = 1500

	// DefaultHandshakeRate bounds inbound handshakes per second; bursts up
	// to DefaultHandshakeBurst are allowed.
	DefaultHandshakeRate  = 10
	DefaultHandshakeBurst = 20

	// maxReorderCount is the size of the reorder bitmap.
	maxReorderCount = 64
)
