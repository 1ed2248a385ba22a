package points

import (
	"context"

	"github.com/holiman/uint256"

	"github.com/congo-pay/congo_points/internal/account"
)

// MemoryState is a map-backed State. Entries are created on first write and
// never removed. It is not safe for concurrent use; hosts serialize calls.
type MemoryState struct {
	owner      uint256.Int
	authority  map[account.ID]bool
	storeTotal map[account.ID]uint256.Int
	grants     map[GrantKey]uint256.Int
	users      map[account.ID]uint256.Int
}

// NewMemoryState returns an empty state: zero supply and no entries.
func NewMemoryState() *MemoryState {
	return &MemoryState{
		authority:  make(map[account.ID]bool),
		storeTotal: make(map[account.ID]uint256.Int),
		grants:     make(map[GrantKey]uint256.Int),
		users:      make(map[account.ID]uint256.Int),
	}
}

func (s *MemoryState) OwnerPoints(context.Context) (uint256.Int, error) {
	return s.owner, nil
}

func (s *MemoryState) SetOwnerPoints(_ context.Context, v uint256.Int) error {
	s.owner = v
	return nil
}

func (s *MemoryState) Authority(_ context.Context, store account.ID) (bool, error) {
	return s.authority[store], nil
}

func (s *MemoryState) SetAuthority(_ context.Context, store account.ID, auth bool) error {
	s.authority[store] = auth
	return nil
}

func (s *MemoryState) StorePoints(_ context.Context, store account.ID) (uint256.Int, error) {
	return s.storeTotal[store], nil
}

func (s *MemoryState) SetStorePoints(_ context.Context, store account.ID, v uint256.Int) error {
	s.storeTotal[store] = v
	return nil
}

func (s *MemoryState) StoreUserPoints(_ context.Context, key GrantKey) (uint256.Int, error) {
	return s.grants[key], nil
}

func (s *MemoryState) SetStoreUserPoints(_ context.Context, key GrantKey, v uint256.Int) error {
	s.grants[key] = v
	return nil
}

func (s *MemoryState) UserPoints(_ context.Context, user account.ID) (uint256.Int, error) {
	return s.users[user], nil
}

func (s *MemoryState) SetUserPoints(_ context.Context, user account.ID, v uint256.Int) error {
	s.users[user] = v
	return nil
}

// Stores lists every store with a recorded total.
func (s *MemoryState) Stores() []account.ID {
	out := make([]account.ID, 0, len(s.storeTotal))
	for store := range s.storeTotal {
		out = append(out, store)
	}
	return out
}

// Grants returns the per-user grant totals recorded for store.
func (s *MemoryState) Grants(store account.ID) map[account.ID]uint256.Int {
	out := make(map[account.ID]uint256.Int)
	for key, v := range s.grants {
		if key.Store == store {
			out[key.User] = v
		}
	}
	return out
}
