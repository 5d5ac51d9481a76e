package protocol

import (
	"github.com/samber/oops"

	"github.com/blocktrron/fastd/lib/crypto/ec25519"
	"github.com/blocktrron/fastd/lib/keys"
)

// Identity is the long-term key pair of the local daemon.
type Identity struct {
	secret ec25519.Secret
	public ec25519.Public
}

// NewIdentity parses and sanitizes the configured secret and derives the
// public key.
func NewIdentity(secretHex string) (*Identity, error) {
	if secretHex == "" {
		return nil, oops.Errorf("no secret key configured")
	}
	raw, err := keys.ParseKey(secretHex)
	if err != nil {
		return nil, oops.Errorf("invalid secret key: %w", err)
	}

	secret := ec25519.SecretSanitize(ec25519.Secret(raw))
	return &Identity{
		secret: secret,
		public: ec25519.ScalarBaseMult(secret).Encode(),
	}, nil
}

// Public returns the public half.
func (i *Identity) Public() ec25519.Public {
	return i.public
}

// Zero wipes the secret scalar. Called on shutdown.
func (i *Identity) Zero() {
	i.secret.Zero()
}
