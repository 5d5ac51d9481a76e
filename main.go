package main

import (
	"crypto/rand"
	"encoding/hex"
	"os"

	"github.com/spf13/cobra"

	"github.com/blocktrron/fastd/lib/config"
	"github.com/blocktrron/fastd/lib/daemon"
	"github.com/blocktrron/fastd/lib/keys"
	"github.com/blocktrron/fastd/lib/util/logger"
	"github.com/blocktrron/fastd/lib/util/signals"

	// Register the shipped methods.
	_ "github.com/blocktrron/fastd/lib/method/aes128gcm"
	_ "github.com/blocktrron/fastd/lib/method/null"
	_ "github.com/blocktrron/fastd/lib/method/xsalsa20poly1305"
)

var log = logger.GetFastdLogger()

var secretFile string

var rootCmd = &cobra.Command{
	Use:   "fastd",
	Short: "fast and secure tunnelling daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		config.InitConfig()
		cfg, err := config.NewConfigFromViper()
		if err != nil {
			return err
		}

		if secretFile != "" {
			secret, err := keys.ReadSecretFile(secretFile)
			if err != nil {
				return err
			}
			cfg.Secret = hex.EncodeToString(secret[:])
		}

		transport, err := daemon.ListenUDP(cfg.Bind)
		if err != nil {
			return err
		}
		defer transport.Close()

		d, err := daemon.New(cfg, transport, discardTUN{}, daemon.SystemClock{}, rand.Reader)
		if err != nil {
			return err
		}
		defer d.Close()

		stop := make(chan struct{})
		signals.RegisterInterruptHandler(func() {
			close(stop)
			transport.Close()
		})
		go signals.Handle()
		defer signals.StopHandle()

		log.WithField("bind", cfg.Bind).Debug("starting up fastd daemon")
		return d.Run(transport, stop)
	},
}

var generateKeyCmd = &cobra.Command{
	Use:   "generate-key",
	Short: "generate a new identity key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		secret, public, err := keys.Generate()
		if err != nil {
			return err
		}
		keys.Print(os.Stdout, secret, public)
		return nil
	},
}

// discardTUN stands in for the device layer when none is attached.
type discardTUN struct{}

func (discardTUN) Write(b []byte) error { return nil }

func main() {
	rootCmd.PersistentFlags().StringVarP(&config.CfgFile, "config", "c", "", "config file")
	rootCmd.Flags().StringVar(&secretFile, "secret-file", "", "read the secret key from a key file")
	rootCmd.AddCommand(generateKeyCmd)

	if err := rootCmd.Execute(); err != nil {
		log.WithError(err).Error("fastd failed")
		os.Exit(1)
	}
}
