package rewards

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/holiman/uint256"

	"github.com/congo-pay/congo_points/internal/ledger"
	"github.com/congo-pay/congo_points/internal/points"
)

// Amount is a points value in request bodies. It accepts a JSON string of
// decimal digits or a non-negative JSON integer.
type Amount uint256.Int

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	}
	v, err := points.ParseAmount(raw)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	*a = Amount(v)
	return nil
}

// Int returns the amount as an unsigned 256-bit integer.
func (a Amount) Int() uint256.Int {
	return uint256.Int(a)
}

type issueRequest struct {
	Amount *Amount `json:"amount"`
}

type userAmountRequest struct {
	User   string  `json:"user"`
	Amount *Amount `json:"amount"`
}

type eventResponse struct {
	Type   string            `json:"type"`
	Topics map[string]string `json:"topics"`
}

type receiptResponse struct {
	CallID    string          `json:"call_id,omitempty"`
	Operation string          `json:"operation"`
	Caller    string          `json:"caller"`
	DryRun    bool            `json:"dry_run"`
	At        time.Time       `json:"at"`
	Events    []eventResponse `json:"events"`
}

type feedEntryResponse struct {
	Seq       int64             `json:"seq"`
	CallID    string            `json:"call_id"`
	Caller    string            `json:"caller"`
	Operation string            `json:"operation"`
	At        time.Time         `json:"at"`
	Type      string            `json:"type"`
	Topics    map[string]string `json:"topics"`
}

func newReceiptResponse(res ledger.Receipt) receiptResponse {
	out := receiptResponse{
		Operation: res.Operation,
		Caller:    res.Caller.String(),
		DryRun:    res.DryRun,
		At:        res.At,
		Events:    make([]eventResponse, 0, len(res.Events)),
	}
	// Dry runs never reach the feed, so their id identifies nothing.
	if !res.DryRun {
		out.CallID = res.CallID
	}
	for _, e := range res.Events {
		out.Events = append(out.Events, eventResponse{Type: e.EventType(), Topics: e.Topics()})
	}
	return out
}

func newFeedEntryResponse(e ledger.EventEntry) feedEntryResponse {
	return feedEntryResponse{
		Seq:       e.Seq,
		CallID:    e.CallID,
		Caller:    e.Caller.String(),
		Operation: e.Operation,
		At:        e.At,
		Type:      e.Event.EventType(),
		Topics:    e.Event.Topics(),
	}
}
