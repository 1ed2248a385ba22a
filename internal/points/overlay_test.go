package points_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/congo-pay/congo_points/internal/points"
)

func TestOverlayDiscardLeavesBaseUntouched(t *testing.T) {
	ctx := context.Background()
	base := points.NewMemoryState()
	require.NoError(t, base.SetUserPoints(ctx, user, points.Amount(5)))

	ov := points.NewOverlay(base)
	l := points.New(ov, nil)
	_, err := l.GiveAuthority(ctx, issuer, store)
	require.NoError(t, err)
	require.NoError(t, l.GiveUserPoints(ctx, store, user, points.Amount(10)))
	require.True(t, ov.Dirty())

	// The overlay sees its own writes layered over the base.
	got, err := ov.UserPoints(ctx, user)
	requireAmount(t, 15, got, err)

	got, err = base.UserPoints(ctx, user)
	requireAmount(t, 5, got, err)
	auth, err := base.Authority(ctx, store)
	require.NoError(t, err)
	require.False(t, auth)
}

func TestOverlayCommitFlushesEveryPartition(t *testing.T) {
	ctx := context.Background()
	base := points.NewMemoryState()

	ov := points.NewOverlay(base)
	l := points.New(ov, nil)
	require.NoError(t, l.Construct(ctx, issuer, points.Amount(100)))
	_, err := l.GiveAuthority(ctx, issuer, store)
	require.NoError(t, err)
	require.NoError(t, l.GiveUserPoints(ctx, store, user, points.Amount(40)))
	require.NoError(t, l.UseUserPoints(ctx, store, user, points.Amount(15)))

	require.NoError(t, ov.Commit(ctx))

	direct := points.New(base, nil)
	got, err := direct.OwnerPoints(ctx)
	requireAmount(t, 100, got, err)
	got, err = direct.StorePoints(ctx, store)
	requireAmount(t, 40, got, err)
	got, err = direct.StoreUserPoints(ctx, store, user)
	requireAmount(t, 40, got, err)
	got, err = direct.UserPoints(ctx, user)
	requireAmount(t, 25, got, err)
	auth, err := direct.IsAuthority(ctx, store)
	require.NoError(t, err)
	require.True(t, auth)
	require.NoError(t, points.CheckStoreTotals(base))
}

func TestOverlayCleanUntilWritten(t *testing.T) {
	ctx := context.Background()
	ov := points.NewOverlay(points.NewMemoryState())
	l := points.New(ov, nil)

	_, err := l.UserPoints(ctx, user)
	require.NoError(t, err)
	require.False(t, ov.Dirty())

	require.ErrorIs(t, l.UseUserPoints(ctx, store, user, points.Amount(1)), points.ErrInsufficientBalance)
	require.False(t, ov.Dirty())
}
