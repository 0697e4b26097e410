package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPhaseStore(t *testing.T) *PhaseStore {
	t.Helper()
	ps, err := NewPhaseStore(NewMemoryProvider().Open("sid_phase"))
	require.NoError(t, err)
	return ps
}

func TestPhaseStore_Current(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	t.Run("absent-is-idle", func(t *testing.T) {
		assert := assert.New(t)
		ps := testPhaseStore(t)
		assert.Equal(PhaseIdle, ps.Current(ctx))
	})
	t.Run("corrupt-is-idle", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		store := NewMemoryProvider().Open("sid_corrupt_phase")
		require.NoError(store.Set(ctx, phaseKey, "??"))
		ps, err := NewPhaseStore(store)
		require.NoError(err)
		assert.Equal(PhaseIdle, ps.Current(ctx))
	})
	t.Run("round-trip", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		ps := testPhaseStore(t)
		require.NoError(ps.Set(ctx, PhaseLoggingIn))
		assert.Equal(PhaseLoggingIn, ps.Current(ctx))
		require.NoError(ps.Set(ctx, PhaseIdle))
		assert.Equal(PhaseIdle, ps.Current(ctx))
	})
}

func TestPhaseStore_Set(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	t.Run("unknown-phase", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		ps := testPhaseStore(t)
		err := ps.Set(ctx, Phase("half-logged-in"))
		require.Error(err)
		assert.ErrorIs(err, ErrInvalidParameter)
	})
}

func TestPhaseStore_Begin(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	t.Run("one-flow-at-a-time", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		ps := testPhaseStore(t)
		require.NoError(ps.Begin(ctx, PhaseLoggingIn))
		err := ps.Begin(ctx, PhaseLoggingOut)
		require.Error(err)
		assert.ErrorIs(err, ErrFlowInFlight)
		assert.Equal(PhaseLoggingIn, ps.Current(ctx))
	})
	t.Run("restart-same-flow", func(t *testing.T) {
		require := require.New(t)
		ps := testPhaseStore(t)
		require.NoError(ps.Begin(ctx, PhaseLoggingIn))
		require.NoError(ps.Begin(ctx, PhaseLoggingIn))
	})
	t.Run("terminal-phase-cannot-begin", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		ps := testPhaseStore(t)
		err := ps.Begin(ctx, PhaseJustLoggedOut)
		require.Error(err)
		assert.ErrorIs(err, ErrInvalidParameter)
	})
}

func TestPhaseStore_ConsumeJustLoggedOut(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	t.Run("consumed-once", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		ps := testPhaseStore(t)
		require.NoError(ps.Set(ctx, PhaseJustLoggedOut))

		got, err := ps.ConsumeJustLoggedOut(ctx)
		require.NoError(err)
		assert.True(got)

		got, err = ps.ConsumeJustLoggedOut(ctx)
		require.NoError(err)
		assert.False(got)
	})
	t.Run("not-set", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		ps := testPhaseStore(t)
		got, err := ps.ConsumeJustLoggedOut(ctx)
		require.NoError(err)
		assert.False(got)
	})
}
