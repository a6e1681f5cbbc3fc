package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryFailureWindow_PrunesOnRead(t *testing.T) {
	ctx := context.Background()
	w := NewMemoryFailureWindow()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, w.Add(ctx, "alice", base, time.Minute))
	require.NoError(t, w.Add(ctx, "alice", base.Add(30*time.Second), time.Minute))
	require.NoError(t, w.Add(ctx, "alice", base.Add(10*time.Second), time.Minute))

	got, err := w.Failures(ctx, "alice", base.Add(-time.Second))
	require.NoError(t, err)
	assert.Equal(t, []time.Time{base, base.Add(10 * time.Second), base.Add(30 * time.Second)}, got)

	// an entry exactly at the cutoff is outside the window
	got, err = w.Failures(ctx, "alice", base.Add(10*time.Second))
	require.NoError(t, err)
	assert.Equal(t, []time.Time{base.Add(30 * time.Second)}, got)

	got, err = w.Failures(ctx, "alice", base.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryFailureWindow_KeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	w := NewMemoryFailureWindow()
	now := time.Now()

	require.NoError(t, w.Add(ctx, "alice", now, time.Minute))
	require.NoError(t, w.Add(ctx, "ip:10.0.0.1", now, time.Minute))

	require.NoError(t, w.Reset(ctx, "alice"))

	got, err := w.Failures(ctx, "alice", now.Add(-time.Minute))
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = w.Failures(ctx, "ip:10.0.0.1", now.Add(-time.Minute))
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestMemoryFailureWindow_ResultIsACopy(t *testing.T) {
	ctx := context.Background()
	w := NewMemoryFailureWindow()
	now := time.Now()

	require.NoError(t, w.Add(ctx, "bob", now, time.Minute))
	got, err := w.Failures(ctx, "bob", now.Add(-time.Minute))
	require.NoError(t, err)
	got[0] = time.Time{}

	again, err := w.Failures(ctx, "bob", now.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, now, again[0])
}
