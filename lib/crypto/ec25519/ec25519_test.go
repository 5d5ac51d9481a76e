package ec25519

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSecret(seed byte) Secret {
	var s Secret
	for i := range s {
		s[i] = seed + byte(i)*7
	}
	return SecretSanitize(s)
}

func TestSecretSanitizeIdempotent(t *testing.T) {
	var s Secret
	for i := range s {
		s[i] = 0xff
	}

	once := SecretSanitize(s)
	twice := SecretSanitize(once)
	assert.Equal(t, once, twice)

	assert.EqualValues(t, 0, once[0]&7)
	assert.EqualValues(t, 64, once[31]&192)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	p := ScalarBaseMult(testSecret(42))
	q := Decode(p.Encode())

	require.False(t, q.IsIdentity())
	assert.Equal(t, p.Encode(), q.Encode())
}

func TestDecodeInvalidIsIdentity(t *testing.T) {
	var bad Public
	for i := range bad {
		bad[i] = 0xff
	}

	p := Decode(bad)
	assert.True(t, p.IsIdentity())

	// Operations on a poisoned point stay poisoned.
	assert.True(t, ScalarMult(testSecret(1), p).IsIdentity())
	assert.True(t, Add(p, ScalarBaseMult(testSecret(2))).IsIdentity())
}

func TestScalarRingMatchesGroup(t *testing.T) {
	a := testSecret(10)
	b := testSecret(77)

	// (a+b)·G == a·G + b·G
	sum := ScalarBaseMult(SecretAdd(a, b))
	added := Add(ScalarBaseMult(a), ScalarBaseMult(b))
	assert.Equal(t, sum.Encode(), added.Encode())

	// (a·b)·G == a·(b·G)
	mul := ScalarBaseMult(SecretMult(a, b))
	chained := ScalarMult(a, ScalarBaseMult(b))
	assert.Equal(t, mul.Encode(), chained.Encode())
}

func TestScalarMultIdentityCheck(t *testing.T) {
	p := ScalarBaseMult(testSecret(3))
	assert.False(t, p.IsIdentity())

	// Multiplying by zero lands on the identity.
	var zero Secret
	assert.True(t, ScalarMult(zero, p).IsIdentity())
}

func TestHMACVerify(t *testing.T) {
	key := SHA256([]byte("key material"))
	tag := HMACSHA256(key, []byte("hello"), []byte(" world"))

	assert.True(t, HMACSHA256Verify(tag, key, []byte("hello"), []byte(" world")))
	assert.True(t, HMACSHA256Verify(tag, key, []byte("hello world")))

	tag[0] ^= 1
	assert.False(t, HMACSHA256Verify(tag, key, []byte("hello world")))
}

func TestRandomBytes(t *testing.T) {
	b, err := RandomBytes(32, false)
	require.NoError(t, err)
	require.Len(t, b, 32)

	c, err := RandomBytes(32, false)
	require.NoError(t, err)
	assert.NotEqual(t, b, c)
}
