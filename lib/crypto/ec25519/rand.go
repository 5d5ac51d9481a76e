package ec25519

import (
	"crypto/rand"
	"io"
	"os"

	"github.com/samber/oops"

	"github.com/blocktrron/fastd/lib/util/logger"
)

var log = logger.GetFastdLogger()

// blockingRandomSource is read for long-term key generation only.
const blockingRandomSource = "/dev/random"

// RandomBytes fills n bytes from the system CSPRNG. The blocking variant
// reads the platform's blocking source and is only used when generating a
// long-term identity key.
func RandomBytes(n int, blocking bool) ([]byte, error) {
	out := make([]byte, n)

	if !blocking {
		if _, err := io.ReadFull(rand.Reader, out); err != nil {
			return nil, oops.Errorf("reading random bytes: %w", err)
		}
		return out, nil
	}

	log.WithFields(logger.Fields{
		"at":     "RandomBytes",
		"source": blockingRandomSource,
		"n":      n,
	}).Debug("reading blocking random source")

	f, err := os.Open(blockingRandomSource)
	if err != nil {
		return nil, oops.Errorf("opening %s: %w", blockingRandomSource, err)
	}
	defer f.Close()

	if _, err := io.ReadFull(f, out); err != nil {
		return nil, oops.Errorf("reading %s: %w", blockingRandomSource, err)
	}
	return out, nil
}
