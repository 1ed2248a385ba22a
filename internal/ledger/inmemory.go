package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"github.com/congo-pay/congo_points/internal/account"
	"github.com/congo-pay/congo_points/internal/points"
)

type inMemoryLedger struct {
	mu         sync.Mutex
	state      *points.MemoryState
	deployment *Deployment
	feed       []EventEntry
	feedSize   int
	seq        int64
}

// NewInMemory creates a process-local host useful for development and unit
// tests. State lives for the lifetime of the process.
func NewInMemory(feedSize int) Host {
	if feedSize <= 0 {
		feedSize = DefaultFeedSize
	}
	return &inMemoryLedger{
		state:    points.NewMemoryState(),
		feedSize: feedSize,
	}
}

func (l *inMemoryLedger) Deploy(ctx context.Context, caller account.ID, initial uint256.Int) (Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.deployment != nil {
		return Receipt{}, ErrAlreadyDeployed
	}

	overlay := points.NewOverlay(l.state)
	events := &points.Collector{}
	if err := points.New(overlay, events).Construct(ctx, caller, initial); err != nil {
		return Receipt{}, err
	}
	if err := overlay.Commit(ctx); err != nil {
		return Receipt{}, fmt.Errorf("commit construct: %w", err)
	}

	now := time.Now().UTC()
	l.deployment = &Deployment{Deployer: caller, InitialSupply: initial, At: now}
	res := Receipt{
		CallID:    uuid.NewString(),
		Caller:    caller,
		Operation: OpConstruct,
		Events:    events.Events(),
		At:        now,
	}
	l.record(res)
	return res, nil
}

func (l *inMemoryLedger) Execute(ctx context.Context, call Call, fn func(context.Context, *points.Ledger) error) (res Receipt, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.deployment == nil {
		return Receipt{}, ErrNotDeployed
	}

	defer trapOverflow(&err)

	overlay := points.NewOverlay(l.state)
	events := &points.Collector{}
	if err := fn(ctx, points.New(overlay, events)); err != nil {
		return Receipt{}, err
	}

	res = Receipt{
		CallID:    uuid.NewString(),
		Caller:    call.Caller,
		Operation: call.Operation,
		Events:    events.Events(),
		DryRun:    call.DryRun,
		At:        time.Now().UTC(),
	}
	if call.DryRun {
		return res, nil
	}

	if err := overlay.Commit(ctx); err != nil {
		return Receipt{}, fmt.Errorf("commit %s: %w", call.Operation, err)
	}
	l.record(res)
	return res, nil
}

func (l *inMemoryLedger) View(ctx context.Context, fn func(context.Context, *points.Ledger) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.deployment == nil {
		return ErrNotDeployed
	}
	return fn(ctx, points.New(l.state, nil))
}

func (l *inMemoryLedger) Events(_ context.Context, filter EventFilter) ([]EventEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	limit := feedLimit(filter.Limit, l.feedSize)
	out := make([]EventEntry, 0, limit)
	for i := len(l.feed) - 1; i >= 0 && len(out) < limit; i-- {
		entry := l.feed[i]
		if filter.Account != nil && !entry.Event.Involves(*filter.Account) {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

func (l *inMemoryLedger) Deployment(context.Context) (Deployment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.deployment == nil {
		return Deployment{}, ErrNotDeployed
	}
	return *l.deployment, nil
}

// record appends the receipt's events to the feed, keeping the newest
// feedSize entries. Callers hold l.mu.
func (l *inMemoryLedger) record(res Receipt) {
	for _, e := range res.Events {
		l.seq++
		l.feed = append(l.feed, EventEntry{
			Seq:       l.seq,
			CallID:    res.CallID,
			Caller:    res.Caller,
			Operation: res.Operation,
			At:        res.At,
			Event:     e,
		})
	}
	if extra := len(l.feed) - l.feedSize; extra > 0 {
		l.feed = append(l.feed[:0:0], l.feed[extra:]...)
	}
}
