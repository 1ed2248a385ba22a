package points

import (
	"bytes"
	"context"
	"sort"

	"github.com/holiman/uint256"

	"github.com/congo-pay/congo_points/internal/account"
)

// Overlay buffers writes on top of a base State so a call can be applied all
// at once or discarded. Reads see buffered writes first.
type Overlay struct {
	base State

	owner      *uint256.Int
	authority  map[account.ID]bool
	storeTotal map[account.ID]uint256.Int
	grants     map[GrantKey]uint256.Int
	users      map[account.ID]uint256.Int
}

// NewOverlay wraps base. Nothing reaches base until Commit.
func NewOverlay(base State) *Overlay {
	return &Overlay{
		base:       base,
		authority:  make(map[account.ID]bool),
		storeTotal: make(map[account.ID]uint256.Int),
		grants:     make(map[GrantKey]uint256.Int),
		users:      make(map[account.ID]uint256.Int),
	}
}

func (o *Overlay) OwnerPoints(ctx context.Context) (uint256.Int, error) {
	if o.owner != nil {
		return *o.owner, nil
	}
	return o.base.OwnerPoints(ctx)
}

func (o *Overlay) SetOwnerPoints(_ context.Context, v uint256.Int) error {
	o.owner = &v
	return nil
}

func (o *Overlay) Authority(ctx context.Context, store account.ID) (bool, error) {
	if v, ok := o.authority[store]; ok {
		return v, nil
	}
	return o.base.Authority(ctx, store)
}

func (o *Overlay) SetAuthority(_ context.Context, store account.ID, auth bool) error {
	o.authority[store] = auth
	return nil
}

func (o *Overlay) StorePoints(ctx context.Context, store account.ID) (uint256.Int, error) {
	if v, ok := o.storeTotal[store]; ok {
		return v, nil
	}
	return o.base.StorePoints(ctx, store)
}

func (o *Overlay) SetStorePoints(_ context.Context, store account.ID, v uint256.Int) error {
	o.storeTotal[store] = v
	return nil
}

func (o *Overlay) StoreUserPoints(ctx context.Context, key GrantKey) (uint256.Int, error) {
	if v, ok := o.grants[key]; ok {
		return v, nil
	}
	return o.base.StoreUserPoints(ctx, key)
}

func (o *Overlay) SetStoreUserPoints(_ context.Context, key GrantKey, v uint256.Int) error {
	o.grants[key] = v
	return nil
}

func (o *Overlay) UserPoints(ctx context.Context, user account.ID) (uint256.Int, error) {
	if v, ok := o.users[user]; ok {
		return v, nil
	}
	return o.base.UserPoints(ctx, user)
}

func (o *Overlay) SetUserPoints(_ context.Context, user account.ID, v uint256.Int) error {
	o.users[user] = v
	return nil
}

// Dirty reports whether any write has been buffered.
func (o *Overlay) Dirty() bool {
	return o.owner != nil || len(o.authority) > 0 || len(o.storeTotal) > 0 ||
		len(o.grants) > 0 || len(o.users) > 0
}

// Commit flushes buffered writes into the base state in partition order, and
// by ascending account within a partition.
func (o *Overlay) Commit(ctx context.Context) error {
	if o.owner != nil {
		if err := o.base.SetOwnerPoints(ctx, *o.owner); err != nil {
			return err
		}
	}
	for _, store := range sortedIDs(o.authority) {
		if err := o.base.SetAuthority(ctx, store, o.authority[store]); err != nil {
			return err
		}
	}
	for _, store := range sortedIDs(o.storeTotal) {
		if err := o.base.SetStorePoints(ctx, store, o.storeTotal[store]); err != nil {
			return err
		}
	}
	keys := make([]GrantKey, 0, len(o.grants))
	for key := range o.grants {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if c := bytes.Compare(keys[i].Store[:], keys[j].Store[:]); c != 0 {
			return c < 0
		}
		return bytes.Compare(keys[i].User[:], keys[j].User[:]) < 0
	})
	for _, key := range keys {
		if err := o.base.SetStoreUserPoints(ctx, key, o.grants[key]); err != nil {
			return err
		}
	}
	for _, user := range sortedIDs(o.users) {
		if err := o.base.SetUserPoints(ctx, user, o.users[user]); err != nil {
			return err
		}
	}
	return nil
}

func sortedIDs[V any](m map[account.ID]V) []account.ID {
	ids := make([]account.ID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return bytes.Compare(ids[i][:], ids[j][:]) < 0
	})
	return ids
}
