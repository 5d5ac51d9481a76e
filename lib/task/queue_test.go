package task

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPopOrder(t *testing.T) {
	q := NewQueue[string]()
	base := time.Unix(1000, 0)

	q.ScheduleHandshake("b", base.Add(2*time.Second))
	q.ScheduleHandshake("a", base.Add(time.Second))
	q.ScheduleKeepalive("c", base.Add(3*time.Second))

	tk, ok := q.Pop(base.Add(5 * time.Second))
	require.True(t, ok)
	assert.Equal(t, "a", tk.Owner)

	tk, ok = q.Pop(base.Add(5 * time.Second))
	require.True(t, ok)
	assert.Equal(t, "b", tk.Owner)

	tk, ok = q.Pop(base.Add(5 * time.Second))
	require.True(t, ok)
	assert.Equal(t, "c", tk.Owner)
	assert.Equal(t, Keepalive, tk.Kind)

	_, ok = q.Pop(base.Add(5 * time.Second))
	assert.False(t, ok)
}

func TestPopRespectsNow(t *testing.T) {
	q := NewQueue[string]()
	base := time.Unix(1000, 0)

	q.ScheduleHandshake("a", base.Add(time.Minute))
	_, ok := q.Pop(base)
	assert.False(t, ok)

	_, ok = q.Pop(base.Add(time.Minute))
	assert.True(t, ok)
}

func TestHandshakeCoalesces(t *testing.T) {
	q := NewQueue[string]()
	base := time.Unix(1000, 0)

	q.ScheduleHandshake("a", base.Add(10*time.Second))
	q.ScheduleHandshake("a", base.Add(2*time.Second))
	q.ScheduleHandshake("a", base.Add(30*time.Second))
	require.Equal(t, 1, q.Len())

	next, ok := q.Next()
	require.True(t, ok)
	assert.Equal(t, base.Add(2*time.Second), next)
}

func TestKeepaliveRearms(t *testing.T) {
	q := NewQueue[string]()
	base := time.Unix(1000, 0)

	q.ScheduleKeepalive("a", base.Add(time.Second))
	q.ScheduleKeepalive("a", base.Add(10*time.Second))
	require.Equal(t, 1, q.Len())

	next, ok := q.Next()
	require.True(t, ok)
	assert.Equal(t, base.Add(10*time.Second), next)
}

func TestDeleteOwner(t *testing.T) {
	q := NewQueue[string]()
	base := time.Unix(1000, 0)

	q.ScheduleHandshake("a", base)
	q.ScheduleKeepalive("a", base)
	q.ScheduleHandshake("b", base)

	q.DeleteOwner("a")
	require.Equal(t, 1, q.Len())

	tk, ok := q.Pop(base)
	require.True(t, ok)
	assert.Equal(t, "b", tk.Owner)
}

func TestDeleteKind(t *testing.T) {
	q := NewQueue[string]()
	base := time.Unix(1000, 0)

	q.ScheduleHandshake("a", base)
	q.ScheduleKeepalive("a", base)

	q.Delete("a", Handshake)
	require.Equal(t, 1, q.Len())

	tk, _ := q.Pop(base)
	assert.Equal(t, Keepalive, tk.Kind)
}
