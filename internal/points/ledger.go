// Package points implements the points ledger: an issuer supply counter, a
// per-store authority registry, per-store and per-(store, user) grant totals,
// and per-user spendable balances.
//
// Every mutating operation reads what it needs, validates, computes the new
// values with overflow-checked arithmetic and only then writes. A failed
// precondition therefore leaves the state untouched and emits nothing. An
// overflow panics with *ArithmeticError before any write happens.
package points

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/congo-pay/congo_points/internal/account"
)

// Ledger applies operations to a State and reports their events.
type Ledger struct {
	st      State
	emitter Emitter
}

// New binds a ledger to st. A nil emitter discards events.
func New(st State, emitter Emitter) *Ledger {
	if emitter == nil {
		emitter = NoopEmitter{}
	}
	return &Ledger{st: st, emitter: emitter}
}

// Construct initialises the issuer supply. Hosts call it exactly once, on a
// state with no prior writes.
func (l *Ledger) Construct(ctx context.Context, caller account.ID, initial uint256.Int) error {
	if err := l.st.SetOwnerPoints(ctx, initial); err != nil {
		return fmt.Errorf("set owner points: %w", err)
	}
	l.emitter.Emit(Issuance{Owner: caller, Value: initial})
	return nil
}

// IssuancePoints adds amount to the issuer supply. Any caller may issue.
func (l *Ledger) IssuancePoints(ctx context.Context, caller account.ID, amount uint256.Int) error {
	current, err := l.st.OwnerPoints(ctx)
	if err != nil {
		return fmt.Errorf("read owner points: %w", err)
	}
	next := add(current, amount, PartitionOwner)
	if err := l.st.SetOwnerPoints(ctx, next); err != nil {
		return fmt.Errorf("set owner points: %w", err)
	}
	l.emitter.Emit(Issuance{Owner: caller, Value: amount})
	return nil
}

// GiveAuthority flips the store's grant flag and returns the new value.
// Calling it twice restores the previous flag.
func (l *Ledger) GiveAuthority(ctx context.Context, caller, store account.ID) (bool, error) {
	current, err := l.st.Authority(ctx, store)
	if err != nil {
		return false, fmt.Errorf("read authority: %w", err)
	}
	next := !current
	if err := l.st.SetAuthority(ctx, store, next); err != nil {
		return false, fmt.Errorf("set authority: %w", err)
	}
	l.emitter.Emit(Authority{Owner: caller, Store: store, Auth: next})
	return next, nil
}

// GiveUserPoints records a grant of amount from store to user. The store
// total, the (store, user) total and the user balance move together.
func (l *Ledger) GiveUserPoints(ctx context.Context, store, user account.ID, amount uint256.Int) error {
	auth, err := l.st.Authority(ctx, store)
	if err != nil {
		return fmt.Errorf("read authority: %w", err)
	}
	if !auth {
		return ErrNotAuthority
	}

	key := GrantKey{Store: store, User: user}
	total, err := l.st.StorePoints(ctx, store)
	if err != nil {
		return fmt.Errorf("read store points: %w", err)
	}
	granted, err := l.st.StoreUserPoints(ctx, key)
	if err != nil {
		return fmt.Errorf("read store user points: %w", err)
	}
	held, err := l.st.UserPoints(ctx, user)
	if err != nil {
		return fmt.Errorf("read user points: %w", err)
	}

	nextTotal := add(total, amount, PartitionStore)
	nextGranted := add(granted, amount, PartitionStoreUser)
	nextHeld := add(held, amount, PartitionUser)

	if err := l.st.SetStorePoints(ctx, store, nextTotal); err != nil {
		return fmt.Errorf("set store points: %w", err)
	}
	if err := l.st.SetStoreUserPoints(ctx, key, nextGranted); err != nil {
		return fmt.Errorf("set store user points: %w", err)
	}
	if err := l.st.SetUserPoints(ctx, user, nextHeld); err != nil {
		return fmt.Errorf("set user points: %w", err)
	}

	l.emitter.Emit(UserPoints{Store: store, User: user, Value: amount, Kind: KindGrant})
	return nil
}

// UseUserPoints debits amount from user. The store only labels the event;
// store totals are not touched.
func (l *Ledger) UseUserPoints(ctx context.Context, store, user account.ID, amount uint256.Int) error {
	held, err := l.st.UserPoints(ctx, user)
	if err != nil {
		return fmt.Errorf("read user points: %w", err)
	}
	if held.Lt(&amount) {
		return ErrInsufficientBalance
	}
	if err := l.st.SetUserPoints(ctx, user, sub(held, amount, PartitionUser)); err != nil {
		return fmt.Errorf("set user points: %w", err)
	}
	l.emitter.Emit(UserPoints{Store: store, User: user, Value: amount, Kind: KindRedeem})
	return nil
}

// OwnerPoints returns the issuer supply.
func (l *Ledger) OwnerPoints(ctx context.Context) (uint256.Int, error) {
	return l.st.OwnerPoints(ctx)
}

// StorePoints returns everything store has granted, 0 if it never granted.
func (l *Ledger) StorePoints(ctx context.Context, store account.ID) (uint256.Int, error) {
	return l.st.StorePoints(ctx, store)
}

// StoreUserPoints returns what store has granted to user.
func (l *Ledger) StoreUserPoints(ctx context.Context, store, user account.ID) (uint256.Int, error) {
	return l.st.StoreUserPoints(ctx, GrantKey{Store: store, User: user})
}

// UserPoints returns the spendable balance of user.
func (l *Ledger) UserPoints(ctx context.Context, user account.ID) (uint256.Int, error) {
	return l.st.UserPoints(ctx, user)
}

// IsAuthority reports whether store may currently grant points.
func (l *Ledger) IsAuthority(ctx context.Context, store account.ID) (bool, error) {
	return l.st.Authority(ctx, store)
}
