package points

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAuthority is returned when a grant names a store that does not
	// currently hold the authority flag.
	ErrNotAuthority = errors.New("points: store has no authority")
	// ErrInsufficientBalance is returned when a redemption exceeds the user's
	// current balance.
	ErrInsufficientBalance = errors.New("points: insufficient balance")
	// ErrOverflow is the class of fatal arithmetic failures. It is never
	// returned by the ledger directly; see ArithmeticError.
	ErrOverflow = errors.New("points: arithmetic overflow")
)

// ArithmeticError is the panic value raised when a counter would wrap. It is
// fatal for the operation in progress: hosts trap it and discard every write
// made by the call.
type ArithmeticError struct {
	Op        string
	Partition string
}

func (e *ArithmeticError) Error() string {
	return fmt.Sprintf("points: %s overflow on %s", e.Op, e.Partition)
}

func (e *ArithmeticError) Unwrap() error { return ErrOverflow }
