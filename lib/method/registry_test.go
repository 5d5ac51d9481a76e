package method

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blocktrron/fastd/lib/crypto/ec25519"
)

type stubMethod struct {
	impl string
}

func (stubMethod) MinEncryptHeadSpace() int { return 0 }
func (stubMethod) SessionInit(env *Env, secret [ec25519.HashBytes]byte, initiator bool) Session {
	return nil
}

func stubImpl(name string, available func() bool) Implementation {
	return Implementation{
		Name:      name,
		Available: available,
		Factory:   func() Method { return stubMethod{impl: name} },
	}
}

func TestLookupPrefersFirstAvailable(t *testing.T) {
	Register("test-probe",
		stubImpl("simd", func() bool { return false }),
		stubImpl("portable", nil),
	)

	info, m, err := Lookup("test-probe")
	require.NoError(t, err)
	assert.Equal(t, "test-probe", info.Name)
	assert.Equal(t, "portable", m.(stubMethod).impl)
}

func TestLookupHonorsProbe(t *testing.T) {
	Register("test-probe-ok",
		stubImpl("simd", func() bool { return true }),
		stubImpl("portable", nil),
	)

	_, m, err := Lookup("test-probe-ok")
	require.NoError(t, err)
	assert.Equal(t, "simd", m.(stubMethod).impl)
}

func TestLookupSharesInfo(t *testing.T) {
	Register("test-info", stubImpl("a", nil), stubImpl("b", nil))

	infoA, _, err := Lookup("test-info")
	require.NoError(t, err)

	require.NoError(t, SetImplementation("test-info", "b"))
	infoB, m, err := Lookup("test-info")
	require.NoError(t, err)

	assert.Same(t, infoA, infoB)
	assert.Equal(t, "b", m.(stubMethod).impl)
}

func TestLookupUnknown(t *testing.T) {
	_, _, err := Lookup("no-such-method")
	assert.ErrorIs(t, err, ErrUnknownMethod)
}

func TestOverrideUnknownImpl(t *testing.T) {
	Register("test-override", stubImpl("only", nil))

	err := SetImplementation("test-override", "missing")
	assert.ErrorIs(t, err, ErrUnknownImpl)
}

func TestOverrideUnavailableImpl(t *testing.T) {
	Register("test-unavail",
		stubImpl("gone", func() bool { return false }),
		stubImpl("here", nil),
	)

	require.NoError(t, SetImplementation("test-unavail", "gone"))
	_, _, err := Lookup("test-unavail")
	assert.ErrorIs(t, err, ErrImplUnavailable)
}
