package points

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// Amount returns v as a balance value.
func Amount(v uint64) uint256.Int {
	return *uint256.NewInt(v)
}

// ParseAmount parses a base-10 unsigned integer that fits in 256 bits.
func ParseAmount(s string) (uint256.Int, error) {
	s = strings.TrimSpace(s)
	var out uint256.Int
	if s == "" {
		return out, fmt.Errorf("points: empty amount")
	}
	if s[0] < '0' || s[0] > '9' {
		return out, fmt.Errorf("points: invalid amount %q", s)
	}
	if err := out.SetFromDecimal(s); err != nil {
		return uint256.Int{}, fmt.Errorf("points: invalid amount %q: %w", s, err)
	}
	return out, nil
}

func add(x, y uint256.Int, partition string) uint256.Int {
	var z uint256.Int
	if _, overflow := z.AddOverflow(&x, &y); overflow {
		panic(&ArithmeticError{Op: "add", Partition: partition})
	}
	return z
}

func sub(x, y uint256.Int, partition string) uint256.Int {
	var z uint256.Int
	if _, underflow := z.SubOverflow(&x, &y); underflow {
		panic(&ArithmeticError{Op: "sub", Partition: partition})
	}
	return z
}
