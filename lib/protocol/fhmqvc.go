package protocol

import (
	"github.com/samber/oops"

	"github.com/blocktrron/fastd/lib/crypto/ec25519"
)

var ErrDegeneratePoint = oops.Errorf("degenerate handshake point")

// hashScalars derives the FHMQV scalars d and e from the canonical hash
// input X‖Y‖A‖B (initiator ephemeral first). Each is the truncated hash
// half with the top bit of the sixteenth byte forced, making it a fixed-size
// nonzero scalar.
func hashScalars(X, Y, A, B ec25519.Public) (d, e ec25519.Secret) {
	h := ec25519.SHA256(X[:], Y[:], A[:], B[:])

	copy(d[:16], h[:16])
	d[15] |= 0x80

	copy(e[:16], h[16:])
	e[15] |= 0x80

	return d, e
}

// fhmqv computes the combined Diffie-Hellman output σ and the derived
// secret K = SHA256(X‖Y‖A‖B‖σ) from one side's view.
//
// The initiator computes s = d·a + x and σ = s·(e·B + Y); the responder
// computes s = e·b + y and σ = s·(d·A + X). Both arrive at
// σ = (d·a+x)(e·b+y)·G.
//
// A σ equal to the group identity — small-subgroup input or an undecodable
// peer key — yields ErrDegeneratePoint and must be dropped silently.
func fhmqv(initiator bool, localSecret, localHandshakeSecret ec25519.Secret,
	X, Y, A, B ec25519.Public) (sigma ec25519.Public, K [ec25519.HashBytes]byte, err error) {

	d, e := hashScalars(X, Y, A, B)

	var s ec25519.Secret
	var work ec25519.Point

	if initiator {
		s = ec25519.SecretAdd(ec25519.SecretMult(d, localSecret), localHandshakeSecret)
		work = ec25519.Add(ec25519.ScalarMult(e, ec25519.Decode(B)), ec25519.Decode(Y))
	} else {
		s = ec25519.SecretAdd(ec25519.SecretMult(e, localSecret), localHandshakeSecret)
		work = ec25519.Add(ec25519.ScalarMult(d, ec25519.Decode(A)), ec25519.Decode(X))
	}

	work = ec25519.ScalarMult(s, work)
	s.Zero()

	if work.IsIdentity() {
		return ec25519.Public{}, [ec25519.HashBytes]byte{}, ErrDegeneratePoint
	}

	sigma = work.Encode()
	K = ec25519.SHA256(X[:], Y[:], A[:], B[:], sigma[:])
	return sigma, K, nil
}
