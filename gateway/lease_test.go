package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeaseIsExclusivePerTerminal(t *testing.T) {
	r := NewLeaseRegistry()

	lease, err := r.Acquire("terminal-1", "session-a")
	require.NoError(t, err)
	assert.True(t, r.Held("terminal-1"))

	_, err = r.Acquire("terminal-1", "session-b")
	assert.ErrorIs(t, err, ErrTerminalBusy)

	_, err = r.Acquire("terminal-2", "session-b")
	assert.NoError(t, err)

	lease.Release()
	assert.False(t, r.Held("terminal-1"))

	_, err = r.Acquire("terminal-1", "session-b")
	assert.NoError(t, err)
}

func TestLeaseReleaseIsIdempotent(t *testing.T) {
	r := NewLeaseRegistry()

	lease, err := r.Acquire("terminal-1", "session-a")
	require.NoError(t, err)

	next, err := r.Acquire("terminal-2", "session-b")
	require.NoError(t, err)

	lease.Release()
	lease.Release()
	lease.Release()

	// Releasing one lease repeatedly never touches another terminal.
	assert.True(t, r.Held("terminal-2"))
	next.Release()
	assert.False(t, r.Held("terminal-2"))
}

func TestStaleLeaseCannotReleaseNewHolder(t *testing.T) {
	r := NewLeaseRegistry()

	old, err := r.Acquire("terminal-1", "session-a")
	require.NoError(t, err)
	old.Release()

	_, err = r.Acquire("terminal-1", "session-b")
	require.NoError(t, err)

	// The stale handle already released once; terminal-1 stays held.
	old.Release()
	assert.True(t, r.Held("terminal-1"))
}
