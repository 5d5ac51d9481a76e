package method

import (
	"io"
	"time"

	"github.com/samber/oops"

	"github.com/blocktrron/fastd/lib/buffer"
	"github.com/blocktrron/fastd/lib/crypto/ec25519"
	"github.com/blocktrron/fastd/lib/util/logger"
)

var log = logger.GetFastdLogger()

var (
	ErrSessionInvalid = oops.Errorf("session is not valid")
	ErrVerifyFailed   = oops.Errorf("packet verification failed")
	ErrTooShort       = oops.Errorf("packet too short")
)

// Clock yields the event loop's monotonic time snapshot.
type Clock interface {
	Now() time.Time
}

// Env carries the process-wide state a method needs: the clock, the CSPRNG
// and the record-layer tuning options. It is threaded explicitly instead of
// living in a singleton.
type Env struct {
	Clock Clock
	Rand  io.Reader

	KeyValid        time.Duration
	KeyRefresh      time.Duration
	KeyRefreshSplay time.Duration
	ReorderTime     time.Duration
	ReorderCount    uint
}

// Method is one authenticated-encryption construction.
type Method interface {
	// MinEncryptHeadSpace is the head space payload buffers must reserve so
	// Encrypt can prepend its header without copying.
	MinEncryptHeadSpace() int

	// SessionInit derives a fresh session state from a shared secret.
	SessionInit(env *Env, secret [ec25519.HashBytes]byte, initiator bool) Session
}

// Session is an established cryptographic context. Buffer ownership follows
// the move rule: Encrypt and Decrypt consume their input on success and
// leave it with the caller on failure.
type Session interface {
	IsValid() bool
	IsInitiator() bool
	WantRefresh() bool

	Encrypt(in *buffer.Buffer) (*buffer.Buffer, error)
	Decrypt(in *buffer.Buffer) (*buffer.Buffer, error)

	// Free zeroes key material. The session must not be used afterwards.
	Free()
}
