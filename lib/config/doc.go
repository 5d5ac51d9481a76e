// Package config loads and validates the daemon configuration: the bind
// address, the long-term secret, the selected method, the record-layer
// tuning options and the peer list.
package config
