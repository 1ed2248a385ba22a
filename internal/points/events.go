package points

import (
	"strconv"

	"github.com/holiman/uint256"

	"github.com/congo-pay/congo_points/internal/account"
)

const (
	// TypeIssuance is emitted on construction and on every issuance.
	TypeIssuance = "points.issuance"
	// TypeAuthority is emitted when a store's grant flag is toggled.
	TypeAuthority = "points.authority"
	// TypeUserPoints is emitted on grants and on redemptions.
	TypeUserPoints = "points.user_points"
)

// UserPointsKind tells grants and redemptions apart. Both are reported through
// the same UserPoints notification.
type UserPointsKind string

const (
	KindGrant  UserPointsKind = "grant"
	KindRedeem UserPointsKind = "redeem"
)

// Event is a notification produced by a successful ledger operation.
type Event interface {
	EventType() string
	// Topics returns the indexed fields of the event, rendered as text.
	Topics() map[string]string
	// Involves reports whether id appears as one of the event's accounts.
	Involves(id account.ID) bool
}

// Issuance records supply minted by owner.
type Issuance struct {
	Owner account.ID
	Value uint256.Int
}

func (Issuance) EventType() string { return TypeIssuance }

func (e Issuance) Topics() map[string]string {
	return map[string]string{
		"owner": e.Owner.String(),
		"value": e.Value.Dec(),
	}
}

func (e Issuance) Involves(id account.ID) bool { return e.Owner == id }

// Authority records the flag a store holds after a toggle.
type Authority struct {
	Owner account.ID
	Store account.ID
	Auth  bool
}

func (Authority) EventType() string { return TypeAuthority }

func (e Authority) Topics() map[string]string {
	return map[string]string{
		"owner": e.Owner.String(),
		"store": e.Store.String(),
		"auth":  strconv.FormatBool(e.Auth),
	}
}

func (e Authority) Involves(id account.ID) bool { return e.Owner == id || e.Store == id }

// UserPoints records points granted to, or redeemed by, a user at a store.
type UserPoints struct {
	Store account.ID
	User  account.ID
	Value uint256.Int
	Kind  UserPointsKind
}

func (UserPoints) EventType() string { return TypeUserPoints }

func (e UserPoints) Topics() map[string]string {
	return map[string]string{
		"store": e.Store.String(),
		"user":  e.User.String(),
		"value": e.Value.Dec(),
		"kind":  string(e.Kind),
	}
}

func (e UserPoints) Involves(id account.ID) bool { return e.Store == id || e.User == id }

// Emitter receives events from the ledger.
type Emitter interface {
	Emit(Event)
}

// NoopEmitter discards every event.
type NoopEmitter struct{}

func (NoopEmitter) Emit(Event) {}

// Collector buffers events in emission order so a host can publish them once
// the call has been persisted.
type Collector struct {
	events []Event
}

func (c *Collector) Emit(e Event) {
	c.events = append(c.events, e)
}

// Events returns the buffered events.
func (c *Collector) Events() []Event {
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

// Reset drops buffered events.
func (c *Collector) Reset() {
	c.events = c.events[:0]
}
