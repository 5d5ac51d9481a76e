package ec25519

import (
	"crypto/subtle"

	"filippo.io/edwards25519"
)

// KeyBytes is the size of encoded public keys and raw secret scalars.
const KeyBytes = 32

// Secret is a raw little-endian scalar.
type Secret [KeyBytes]byte

// Public is an encoded curve point.
type Public [KeyBytes]byte

// Point is a curve point in extended coordinates. A Point obtained from an
// invalid encoding is poisoned: all operations involving it stay poisoned and
// IsIdentity reports true.
type Point struct {
	p     edwards25519.Point
	valid bool
}

// scalar reduces a raw 256-bit value into the scalar ring.
func scalar(s Secret) *edwards25519.Scalar {
	var wide [64]byte
	copy(wide[:KeyBytes], s[:])
	sc, _ := new(edwards25519.Scalar).SetUniformBytes(wide[:])
	return sc
}

// SecretSanitize clamps a raw scalar per RFC 7748. It is idempotent.
func SecretSanitize(s Secret) Secret {
	s[0] &= 248
	s[31] &= 127
	s[31] |= 64
	return s
}

// SecretMult multiplies two raw scalars in the scalar ring.
func SecretMult(a, b Secret) Secret {
	var out Secret
	copy(out[:], new(edwards25519.Scalar).Multiply(scalar(a), scalar(b)).Bytes())
	return out
}

// SecretAdd adds two raw scalars in the scalar ring.
func SecretAdd(a, b Secret) Secret {
	var out Secret
	copy(out[:], new(edwards25519.Scalar).Add(scalar(a), scalar(b)).Bytes())
	return out
}

// Zero overwrites the scalar.
func (s *Secret) Zero() {
	for i := range s {
		s[i] = 0
	}
}

// ScalarBaseMult computes s·G.
func ScalarBaseMult(s Secret) Point {
	var out Point
	out.p.ScalarBaseMult(scalar(s))
	out.valid = true
	return out
}

// ScalarMult computes s·p.
func ScalarMult(s Secret, p Point) Point {
	if !p.valid {
		return p
	}
	var out Point
	out.p.ScalarMult(scalar(s), &p.p)
	out.valid = true
	return out
}

// Add computes p + q.
func Add(p, q Point) Point {
	if !p.valid {
		return p
	}
	if !q.valid {
		return q
	}
	var out Point
	out.p.Add(&p.p, &q.p)
	out.valid = true
	return out
}

// IsIdentity reports whether p is the group identity. Poisoned points count
// as the identity so that one check covers both the small-subgroup guard and
// undecodable peer keys.
func (p Point) IsIdentity() bool {
	if !p.valid {
		return true
	}
	return p.p.Equal(edwards25519.NewIdentityPoint()) == 1
}

// Encode serializes a point. Poisoned points encode as the identity.
func (p Point) Encode() Public {
	var out Public
	if !p.valid {
		copy(out[:], edwards25519.NewIdentityPoint().Bytes())
		return out
	}
	copy(out[:], p.p.Bytes())
	return out
}

// Decode parses an encoded point. It never fails; invalid encodings yield a
// poisoned point. Non-canonical encodings of valid points (an unreduced
// coordinate, or a set sign bit on x = 0) count as invalid.
func Decode(pub Public) Point {
	var out Point
	if _, err := out.p.SetBytes(pub[:]); err != nil {
		return Point{}
	}
	if subtle.ConstantTimeCompare(out.p.Bytes(), pub[:]) != 1 {
		return Point{}
	}
	out.valid = true
	return out
}

// Equal compares two encoded keys in constant time.
func (p Public) Equal(q Public) bool {
	return subtle.ConstantTimeCompare(p[:], q[:]) == 1
}

// IsZero reports whether the encoding is all zeroes, the placeholder for an
// unset key.
func (p Public) IsZero() bool {
	var zero Public
	return subtle.ConstantTimeCompare(p[:], zero[:]) == 1
}
