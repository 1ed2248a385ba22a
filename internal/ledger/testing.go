package ledger

import (
	"context"

	"github.com/holiman/uint256"

	"github.com/congo-pay/congo_points/internal/account"
)

// SeedUserPoints is a test helper that sets a user balance directly when using
// the in-memory ledger. It bypasses grants, so store totals are not touched.
func SeedUserPoints(h Host, user account.ID, amount uint256.Int) {
	if mem, ok := h.(*inMemoryLedger); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		_ = mem.state.SetUserPoints(context.Background(), user, amount)
	}
}
