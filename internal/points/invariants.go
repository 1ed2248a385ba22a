package points

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

// ErrInvariant reports a broken relation between ledger partitions.
var ErrInvariant = errors.New("points: invariant violated")

// CheckStoreTotals verifies that each store total equals the sum of its
// per-user grants.
func CheckStoreTotals(s *MemoryState) error {
	for _, store := range s.Stores() {
		var sum uint256.Int
		for _, v := range s.Grants(store) {
			sum = add(sum, v, PartitionStoreUser)
		}
		total := s.storeTotal[store]
		if !sum.Eq(&total) {
			return fmt.Errorf("%w: store %s total %s, grants sum %s", ErrInvariant, store, total.Dec(), sum.Dec())
		}
	}
	return nil
}
