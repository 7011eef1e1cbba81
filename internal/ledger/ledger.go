// Package ledger records transfers of sensitive items to an append-only
// audit ledger. The ledger is an audit side channel: transfer status is
// authoritative even when a ledger write fails.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erazemk/handreceipt/internal/model"
)

// Event types.
const (
	EventTransfer    = "transfer"
	EventItemCreated = "item_created"
	EventCorrection  = "correction"
)

// ErrEntryNotFound is returned when a correction names an unknown transaction.
var ErrEntryNotFound = errors.New("ledger entry not found")

// Payload is the transfer data written to the ledger.
type Payload struct {
	From       string    `json:"from"`
	To         string    `json:"to"`
	TransferID string    `json:"transfer_id"`
	Date       time.Time `json:"date"`
}

// ItemPayload is written when a tracked item is registered.
type ItemPayload struct {
	Name          string `json:"name"`
	Category      string `json:"category"`
	SecurityLevel string `json:"security_level"`
}

// CorrectionPayload annotates an earlier entry. Entries are never changed;
// a correction is appended and points back at the entry it amends.
type CorrectionPayload struct {
	OriginalTxID  string `json:"original_tx_id"`
	OriginalEvent string `json:"original_event"`
	Reason        string `json:"reason"`
}

// Receipt identifies a committed ledger entry.
type Receipt struct {
	TxID string `json:"tx_id"`
}

// Client is an append-only audit ledger.
type Client interface {
	// Enabled reports whether transfers of item must be recorded.
	Enabled(item model.Item) bool
	// Record appends an event for item on behalf of actor.
	Record(ctx context.Context, item model.Item, eventType string, p Payload, actor string) (Receipt, error)
}

// ItemRecorder records item registrations.
type ItemRecorder interface {
	Enabled(item model.Item) bool
	RecordItem(ctx context.Context, item model.Item, actor string) (Receipt, error)
}

// Eligible is the default recording policy: items explicitly flagged, items
// at controlled security level or above, and all weapons and crypto gear.
func Eligible(item model.Item) bool {
	if item.LedgerTracked {
		return true
	}
	if model.SecurityAtLeast(item.SecurityLevel, model.SecurityControlled) {
		return true
	}
	return item.Category == model.CategoryWeapon || item.Category == model.CategoryCrypto
}

// WriteError reports a failed ledger write for an already committed transfer.
type WriteError struct {
	TransferID string
	Err        error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("ledger write for transfer %s failed: %v", e.TransferID, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
