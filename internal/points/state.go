package points

import (
	"context"

	"github.com/holiman/uint256"

	"github.com/congo-pay/congo_points/internal/account"
)

// Partition names used in overflow reports and persisted change sets.
const (
	PartitionOwner     = "owner_points"
	PartitionAuthority = "authority"
	PartitionStore     = "store_points"
	PartitionStoreUser = "store_user_points"
	PartitionUser      = "user_points"
)

// GrantKey addresses the per-(store, user) grant total.
type GrantKey struct {
	Store account.ID
	User  account.ID
}

// State holds the five ledger relations. Reads return the documented default
// (zero or false) for keys that were never written; errors are reserved for
// storage failures.
type State interface {
	OwnerPoints(ctx context.Context) (uint256.Int, error)
	SetOwnerPoints(ctx context.Context, v uint256.Int) error

	Authority(ctx context.Context, store account.ID) (bool, error)
	SetAuthority(ctx context.Context, store account.ID, auth bool) error

	StorePoints(ctx context.Context, store account.ID) (uint256.Int, error)
	SetStorePoints(ctx context.Context, store account.ID, v uint256.Int) error

	StoreUserPoints(ctx context.Context, key GrantKey) (uint256.Int, error)
	SetStoreUserPoints(ctx context.Context, key GrantKey, v uint256.Int) error

	UserPoints(ctx context.Context, user account.ID) (uint256.Int, error)
	SetUserPoints(ctx context.Context, user account.ID, v uint256.Int) error
}
