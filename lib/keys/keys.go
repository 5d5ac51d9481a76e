// Package keys handles the long-term identity key: hex parsing, the key
// file format and generation of fresh key pairs.
//
// The key file holds a single statement
//
//	secret <64 hex digits>
//
// `fastd generate-key` prints the same digits on a `Secret: <hex>` line;
// that line is not itself accepted as a key file statement. Nothing else is
// persisted.
package keys

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/samber/oops"

	"github.com/blocktrron/fastd/lib/crypto/ec25519"
	"github.com/blocktrron/fastd/lib/util/logger"
)

var log = logger.GetFastdLogger()

var (
	ErrInvalidKey = oops.Errorf("invalid key")
	ErrNoSecret   = oops.Errorf("key file contains no secret")
)

// ParseKey decodes a 64-digit hex key, case-insensitively.
func ParseKey(hexkey string) ([ec25519.KeyBytes]byte, error) {
	var key [ec25519.KeyBytes]byte
	if len(hexkey) != 2*ec25519.KeyBytes {
		return key, oops.Wrapf(ErrInvalidKey, "key has %d characters, want %d", len(hexkey), 2*ec25519.KeyBytes)
	}
	raw, err := hex.DecodeString(hexkey)
	if err != nil {
		return key, oops.Wrapf(ErrInvalidKey, "decoding key: %w", err)
	}
	copy(key[:], raw)
	return key, nil
}

// ReadSecretFile parses a key file and returns the secret scalar.
func ReadSecretFile(path string) (ec25519.Secret, error) {
	f, err := os.Open(path)
	if err != nil {
		return ec25519.Secret{}, oops.Errorf("opening key file: %w", err)
	}
	defer f.Close()
	return readSecret(f)
}

func readSecret(r io.Reader) (ec25519.Secret, error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 2 || fields[0] != "secret" {
			continue
		}
		key, err := ParseKey(fields[1])
		if err != nil {
			return ec25519.Secret{}, err
		}
		return ec25519.Secret(key), nil
	}
	if err := scanner.Err(); err != nil {
		return ec25519.Secret{}, oops.Errorf("reading key file: %w", err)
	}
	return ec25519.Secret{}, ErrNoSecret
}

// Generate produces a fresh sanitized identity key pair from the blocking
// CSPRNG.
func Generate() (ec25519.Secret, ec25519.Public, error) {
	log.WithField("at", "Generate").Debug("reading 32 bytes from blocking random source")

	raw, err := ec25519.RandomBytes(ec25519.KeyBytes, true)
	if err != nil {
		return ec25519.Secret{}, ec25519.Public{}, err
	}

	var secret ec25519.Secret
	copy(secret[:], raw)
	secret = ec25519.SecretSanitize(secret)

	public := ec25519.ScalarBaseMult(secret).Encode()
	return secret, public, nil
}

// Print writes a generated key pair to w the way the generate-key command
// displays it.
func Print(w io.Writer, secret ec25519.Secret, public ec25519.Public) {
	fmt.Fprintf(w, "Secret: %s\n", hex.EncodeToString(secret[:]))
	fmt.Fprintf(w, "Public: %s\n", hex.EncodeToString(public[:]))
}
