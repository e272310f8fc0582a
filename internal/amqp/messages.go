package amqp

import (
	"encoding/json"
	"time"

	"tally/internal/core"
)

// CategoryAmount is the wire form of one breakdown entry.
type CategoryAmount struct {
	CategoryID  int64  `json:"category_id"`
	Name        string `json:"name"`
	AmountCents int64  `json:"amount_cents"`
}

// SnapshotMessage announces freshly computed statistics for one window.
type SnapshotMessage struct {
	Label              string           `json:"label"`
	Period             string           `json:"period"`
	Start              time.Time        `json:"start"`
	End                time.Time        `json:"end"`
	TotalExpenseCents  int64            `json:"total_expense_cents"`
	TotalIncomeCents   int64            `json:"total_income_cents"`
	BalanceCents       int64            `json:"balance_cents"`
	UncategorizedCents int64            `json:"uncategorized_cents"`
	Breakdown          []CategoryAmount `json:"breakdown"`
	Trend              []float64        `json:"trend"`
	Fingerprint        string           `json:"fingerprint"`
	Timestamp          time.Time        `json:"timestamp"`
}

// NewSnapshotMessage builds the message for snap.
func NewSnapshotMessage(snap core.Snapshot) *SnapshotMessage {
	agg := snap.Aggregate
	msg := &SnapshotMessage{
		Label:              snap.Window.Label(),
		Period:             string(snap.Window.Kind),
		Start:              snap.Window.Start,
		End:                snap.Window.End,
		TotalExpenseCents:  agg.TotalExpense.Cents,
		TotalIncomeCents:   agg.TotalIncome.Cents,
		BalanceCents:       agg.Balance.Cents,
		UncategorizedCents: agg.Uncategorized.Cents,
		Breakdown:          make([]CategoryAmount, 0, len(agg.Breakdown)),
		Trend:              append([]float64(nil), snap.Trend...),
		Fingerprint:        snap.Fingerprint(),
		Timestamp:          time.Now(),
	}
	for _, b := range agg.Breakdown {
		msg.Breakdown = append(msg.Breakdown, CategoryAmount{CategoryID: b.CategoryID, Name: b.Name, AmountCents: b.Amount.Cents})
	}
	return msg
}

// ToJSON converts the message to JSON bytes
func (m *SnapshotMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SnapshotMessageFromJSON decodes a snapshot message.
func SnapshotMessageFromJSON(data []byte) (*SnapshotMessage, error) {
	var msg SnapshotMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// LedgerChangedMessage tells statistics consumers that ledger contents changed.
// Only the fact and a rough extent travel; consumers re-read the ledger.
type LedgerChangedMessage struct {
	Source    string    `json:"source"`
	Count     int       `json:"count"`
	From      time.Time `json:"from,omitempty"`
	To        time.Time `json:"to,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewLedgerChangedMessage describes count transactions written by source
// between from and to.
func NewLedgerChangedMessage(source string, count int, from, to time.Time) *LedgerChangedMessage {
	return &LedgerChangedMessage{
		Source:    source,
		Count:     count,
		From:      from,
		To:        to,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerChangedMessageFromJSON decodes a ledger change message.
func LedgerChangedMessageFromJSON(data []byte) (*LedgerChangedMessage, error) {
	var msg LedgerChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
