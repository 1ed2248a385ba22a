package ledger

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/congo-pay/congo_points/internal/infra"
	"github.com/congo-pay/congo_points/internal/points"
)

// newTestPostgres connects to TEST_DATABASE_URL, applies migrations and
// truncates every ledger table. Tests are skipped when the variable is unset.
func newTestPostgres(t *testing.T) *PostgresLedger {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	if err := infra.Migrate(url); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	if _, err := pool.Exec(ctx, `TRUNCATE ledger_meta, store_authority, store_points, store_user_points, user_points, ledger_events`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return NewPostgresLedger(pool, 10)
}

func TestPostgresLedger_Scenario(t *testing.T) {
	h := newTestPostgres(t)
	ctx := context.Background()

	if _, err := h.Deploy(ctx, deployer, points.Amount(100)); err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if _, err := h.Deploy(ctx, deployer, points.Amount(100)); !errors.Is(err, ErrAlreadyDeployed) {
		t.Fatalf("expected already deployed, got %v", err)
	}

	grant := func(ctx context.Context, l *points.Ledger) error {
		return l.GiveUserPoints(ctx, storeA, userA, points.Amount(80))
	}
	if _, err := h.Execute(ctx, Call{Caller: storeA, Operation: OpGiveUserPoints}, grant); !errors.Is(err, points.ErrNotAuthority) {
		t.Fatalf("expected not authority, got %v", err)
	}
	if _, err := h.Execute(ctx, Call{Caller: deployer, Operation: OpGiveAuthority}, func(ctx context.Context, l *points.Ledger) error {
		_, err := l.GiveAuthority(ctx, deployer, storeA)
		return err
	}); err != nil {
		t.Fatalf("give authority: %v", err)
	}
	if _, err := h.Execute(ctx, Call{Caller: storeA, Operation: OpGiveUserPoints}, grant); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if _, err := h.Execute(ctx, Call{Caller: userA, Operation: OpUseUserPoints, DryRun: true}, func(ctx context.Context, l *points.Ledger) error {
		return l.UseUserPoints(ctx, storeA, userA, points.Amount(80))
	}); err != nil {
		t.Fatalf("dry run redeem: %v", err)
	}
	if _, err := h.Execute(ctx, Call{Caller: userA, Operation: OpUseUserPoints}, func(ctx context.Context, l *points.Ledger) error {
		return l.UseUserPoints(ctx, storeA, userA, points.Amount(50))
	}); err != nil {
		t.Fatalf("redeem: %v", err)
	}

	err := h.View(ctx, func(ctx context.Context, l *points.Ledger) error {
		store, err := l.StorePoints(ctx, storeA)
		if err != nil {
			return err
		}
		held, err := l.UserPoints(ctx, userA)
		if err != nil {
			return err
		}
		if store.Uint64() != 80 || held.Uint64() != 30 {
			t.Fatalf("unexpected balances store=%s user=%s", store.Dec(), held.Dec())
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}

	entries, err := h.Events(ctx, EventFilter{Account: &userA})
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected grant and redeem events, got %d", len(entries))
	}
	if ev, ok := entries[0].Event.(points.UserPoints); !ok || ev.Kind != points.KindRedeem || ev.Value.Uint64() != 50 {
		t.Fatalf("unexpected newest event: %#v", entries[0].Event)
	}
}
