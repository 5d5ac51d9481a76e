package config

import (
	"time"

	"github.com/samber/oops"
	"github.com/spf13/viper"

	"github.com/blocktrron/fastd/lib/util/logger"
)

var (
	CfgFile string
	log     = logger.GetFastdLogger()
)

// PeerConfig is one configured peer. A peer with Float set is floating (it
// may connect from anywhere); a peer whose Address is a hostname, or with
// Dynamic set, is dynamic (resolved at handshake time).
type PeerConfig struct {
	Name    string `mapstructure:"name"`
	Key     string `mapstructure:"key"`
	Address string `mapstructure:"address"`
	Float   bool   `mapstructure:"float"`
	Dynamic bool   `mapstructure:"dynamic"`
}

// Config is a typed snapshot of the daemon configuration.
type Config struct {
	Bind   string
	MTU    int
	Secret string

	Method     string
	MethodImpl string

	KeyValid        time.Duration
	KeyRefresh      time.Duration
	KeyRefreshSplay time.Duration
	ReorderTime     time.Duration
	ReorderCount    uint

	KeepaliveInterval time.Duration

	HandshakeRate  float64
	HandshakeBurst int

	Peers []PeerConfig
}

// InitConfig wires up viper: config file location, defaults and the config
// file itself.
func InitConfig() {
	if CfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(CfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("fastd")
		viper.SetConfigType("yaml")
	}

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			if CfgFile != "" {
				log.Fatalf("Config file %s is not found: %s", CfgFile, err)
			}
			log.Debug("no config file found, using defaults")
		} else {
			log.Fatalf("Error reading config file: %s", err)
		}
	} else {
		log.Debugf("Using config file: %s", viper.ConfigFileUsed())
	}
}

func setDefaults() {
	viper.SetDefault("bind", DefaultBind)
	viper.SetDefault("mtu", DefaultMTU)
	viper.SetDefault("method", DefaultMethod)
	viper.SetDefault("method_impl", "")

	viper.SetDefault("key_valid", DefaultKeyValid)
	viper.SetDefault("key_refresh", DefaultKeyRefresh)
	viper.SetDefault("key_refresh_splay", DefaultKeyRefreshSplay)
	viper.SetDefault("reorder_time", DefaultReorderTime)
	viper.SetDefault("reorder_count", DefaultReorderCount)
	viper.SetDefault("keepalive_interval", DefaultKeepaliveInterval)

	viper.SetDefault("handshake_rate", DefaultHandshakeRate)
	viper.SetDefault("handshake_burst", DefaultHandshakeBurst)

	viper.SetDefault("peers", []PeerConfig{})
}

// NewConfigFromViper creates a Config snapshot from current viper settings.
func NewConfigFromViper() (*Config, error) {
	var peers []PeerConfig
	if err := viper.UnmarshalKey("peers", &peers); err != nil {
		return nil, oops.Errorf("parsing peers: %w", err)
	}

	cfg := &Config{
		Bind:              viper.GetString("bind"),
		MTU:               viper.GetInt("mtu"),
		Secret:            viper.GetString("secret"),
		Method:            viper.GetString("method"),
		MethodImpl:        viper.GetString("method_impl"),
		KeyValid:          viper.GetDuration("key_valid"),
		KeyRefresh:        viper.GetDuration("key_refresh"),
		KeyRefreshSplay:   viper.GetDuration("key_refresh_splay"),
		ReorderTime:       viper.GetDuration("reorder_time"),
		ReorderCount:      viper.GetUint("reorder_count"),
		KeepaliveInterval: viper.GetDuration("keepalive_interval"),
		HandshakeRate:     viper.GetFloat64("handshake_rate"),
		HandshakeBurst:    viper.GetInt("handshake_burst"),
		Peers:             peers,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks invariants the core depends on. Peer key validation runs
// later, once the local identity is known.
func (c *Config) Validate() error {
	if c.Secret == "" {
		return oops.Errorf("no secret key configured")
	}
	if c.ReorderCount > maxReorderCount {
		return oops.Errorf("reorder_count %d exceeds window size %d", c.ReorderCount, maxReorderCount)
	}
	if c.KeyRefresh > c.KeyValid {
		return oops.Errorf("key_refresh exceeds key_valid")
	}
	if c.KeyRefreshSplay > c.KeyRefresh {
		return oops.Errorf("key_refresh_splay exceeds key_refresh")
	}
	return nil
}
