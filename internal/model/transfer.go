package model

import (
	"fmt"
	"time"
)

// TransferStatus is the lifecycle state of a transfer request.
type TransferStatus string

// Transfer statuses.
const (
	StatusPending  TransferStatus = "pending"
	StatusApproved TransferStatus = "approved"
	StatusRejected TransferStatus = "rejected"
)

// DefaultRejectionReason is recorded when a recipient rejects without giving a reason.
const DefaultRejectionReason = "No reason provided"

// legalTransitions lists the allowed status changes. Terminal states have none.
var legalTransitions = map[TransferStatus]map[TransferStatus]bool{
	StatusPending: {
		StatusApproved: true,
		StatusRejected: true,
	},
	StatusApproved: {},
	StatusRejected: {},
}

// Valid reports whether s is a known status.
func (s TransferStatus) Valid() bool {
	_, ok := legalTransitions[s]
	return ok
}

// ValidateTransition checks that a transfer may move from one status to another.
func ValidateTransition(from, to TransferStatus) error {
	next, ok := legalTransitions[from]
	if !ok {
		return fmt.Errorf("unknown status %q", from)
	}
	if !next[to] {
		return fmt.Errorf("illegal transition from %s to %s", from, to)
	}
	return nil
}

// Transfer is a request to move accountability for one equipment item from
// its current holder to a recipient. From and To are display identities
// ("SSgt. John Doe"), not user IDs.
type Transfer struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	SerialNumber    string         `json:"serial_number"`
	From            string         `json:"from"`
	To              string         `json:"to"`
	Date            time.Time      `json:"date"`
	Status          TransferStatus `json:"status"`
	ApprovedDate    *time.Time     `json:"approved_date,omitempty"`
	RejectedDate    *time.Time     `json:"rejected_date,omitempty"`
	RejectionReason string         `json:"rejection_reason,omitempty"`
}

// Approve returns a copy of t in the approved state.
func (t Transfer) Approve(at time.Time) (Transfer, error) {
	if err := ValidateTransition(t.Status, StatusApproved); err != nil {
		return t, err
	}
	at = at.UTC()
	t.Status = StatusApproved
	t.ApprovedDate = &at
	return t, nil
}

// Reject returns a copy of t in the rejected state. An empty reason is
// replaced by DefaultRejectionReason.
func (t Transfer) Reject(at time.Time, reason string) (Transfer, error) {
	if err := ValidateTransition(t.Status, StatusRejected); err != nil {
		return t, err
	}
	if reason == "" {
		reason = DefaultRejectionReason
	}
	at = at.UTC()
	t.Status = StatusRejected
	t.RejectedDate = &at
	t.RejectionReason = reason
	return t, nil
}

// Validate checks the status/date invariants of a transfer record.
func (t Transfer) Validate() error {
	if !t.Status.Valid() {
		return fmt.Errorf("unknown status %q", t.Status)
	}
	if (t.ApprovedDate != nil) != (t.Status == StatusApproved) {
		return fmt.Errorf("approved date must be set only for approved transfers")
	}
	if (t.RejectedDate != nil) != (t.Status == StatusRejected) {
		return fmt.Errorf("rejected date must be set only for rejected transfers")
	}
	if t.RejectionReason != "" && t.Status != StatusRejected {
		return fmt.Errorf("rejection reason must be set only for rejected transfers")
	}
	return nil
}
