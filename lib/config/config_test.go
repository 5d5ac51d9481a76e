package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "d8b4e22b1d85eb06b6e13b1e02e5c2cf2bd3e1c7e05c3dd21921b04f3dbc1104"

func validConfig() *Config {
	return &Config{
		Secret:            testSecret,
		Method:            DefaultMethod,
		KeyValid:          DefaultKeyValid,
		KeyRefresh:        DefaultKeyRefresh,
		KeyRefreshSplay:   DefaultKeyRefreshSplay,
		ReorderTime:       DefaultReorderTime,
		ReorderCount:      DefaultReorderCount,
		KeepaliveInterval: DefaultKeepaliveInterval,
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidateRequiresSecret(t *testing.T) {
	cfg := validConfig()
	cfg.Secret = ""
	assert.Error(t, cfg.Validate())
}

func TestValidateBoundsReorderCount(t *testing.T) {
	cfg := validConfig()
	cfg.ReorderCount = 65
	assert.Error(t, cfg.Validate())

	cfg.ReorderCount = 64
	assert.NoError(t, cfg.Validate())
}

func TestValidateRefreshBeforeExpiry(t *testing.T) {
	cfg := validConfig()
	cfg.KeyRefresh = cfg.KeyValid + time.Second
	assert.Error(t, cfg.Validate())
}

func TestDefaultsFromViper(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	setDefaults()
	viper.Set("secret", testSecret)

	cfg, err := NewConfigFromViper()
	require.NoError(t, err)

	assert.Equal(t, DefaultBind, cfg.Bind)
	assert.Equal(t, DefaultMethod, cfg.Method)
	assert.Equal(t, DefaultKeyValid, cfg.KeyValid)
	assert.Equal(t, uint(DefaultReorderCount), cfg.ReorderCount)
	assert.Empty(t, cfg.Peers)
}

func TestPeersFromViper(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	viper.SetConfigType("yaml")
	require.NoError(t, viper.ReadConfig(strings.NewReader(`
secret: `+testSecret+`
peers:
  - name: gateway
    key: `+testSecret+`
    address: 192.0.2.1:10000
  - name: roamer
    key: `+testSecret+`
    float: true
`)))
	setDefaults()

	cfg, err := NewConfigFromViper()
	require.NoError(t, err)
	require.Len(t, cfg.Peers, 2)

	assert.Equal(t, "gateway", cfg.Peers[0].Name)
	assert.Equal(t, "192.0.2.1:10000", cfg.Peers[0].Address)
	assert.True(t, cfg.Peers[1].Float)
}
