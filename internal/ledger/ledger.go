package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/holiman/uint256"

	"github.com/congo-pay/congo_points/internal/account"
	"github.com/congo-pay/congo_points/internal/points"
)

var (
	// ErrNotDeployed is returned for any call made before the ledger has been
	// constructed.
	ErrNotDeployed = errors.New("ledger: not deployed")

	// ErrAlreadyDeployed is returned when construction is attempted twice.
	ErrAlreadyDeployed = errors.New("ledger: already deployed")
)

const (
	// DefaultFeedSize bounds the event feed when no size is configured.
	DefaultFeedSize = 100
)

// Operation names recorded on receipts and in the event log.
const (
	OpConstruct      = "construct"
	OpIssuancePoints = "issuance_points"
	OpGiveAuthority  = "give_authority"
	OpGiveUserPoints = "give_user_points"
	OpUseUserPoints  = "use_user_points"
)

// Call describes one mutating invocation.
type Call struct {
	Caller    account.ID
	Operation string
	// DryRun executes the operation and reports its events without
	// persisting or publishing anything.
	DryRun bool
}

// Receipt captures the outcome of a successful call.
type Receipt struct {
	CallID    string
	Caller    account.ID
	Operation string
	Events    []points.Event
	DryRun    bool
	At        time.Time
}

// EventEntry is one event in the feed, with the call that produced it.
type EventEntry struct {
	Seq       int64
	CallID    string
	Caller    account.ID
	Operation string
	At        time.Time
	Event     points.Event
}

// EventFilter narrows the feed. A nil Account matches every event.
type EventFilter struct {
	Account *account.ID
	Limit   int
}

// Deployment describes the one-time construction of the ledger.
type Deployment struct {
	Deployer      account.ID
	InitialSupply uint256.Int
	At            time.Time
}

// Host sequences calls against the ledger state and persists their effects.
// Calls are serialized: each runs to completion before the next starts, and a
// call that fails leaves every partition unchanged.
type Host interface {
	Deploy(ctx context.Context, caller account.ID, initial uint256.Int) (Receipt, error)
	Execute(ctx context.Context, call Call, fn func(context.Context, *points.Ledger) error) (Receipt, error)
	View(ctx context.Context, fn func(context.Context, *points.Ledger) error) error
	Events(ctx context.Context, filter EventFilter) ([]EventEntry, error)
	Deployment(ctx context.Context) (Deployment, error)
}

// trapOverflow converts a fatal arithmetic panic raised by the ledger into an
// error for the host to abort the call with. Other panics propagate.
func trapOverflow(errp *error) {
	r := recover()
	if r == nil {
		return
	}
	if e, ok := r.(error); ok {
		var arith *points.ArithmeticError
		if errors.As(e, &arith) {
			*errp = fmt.Errorf("ledger: call trapped: %w", arith)
			return
		}
	}
	panic(r)
}

func feedLimit(requested, size int) int {
	if size <= 0 {
		size = DefaultFeedSize
	}
	if requested <= 0 || requested > size {
		return size
	}
	return requested
}

var (
	_ Host = (*inMemoryLedger)(nil)
	_ Host = (*PostgresLedger)(nil)
)
