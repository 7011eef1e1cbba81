package model

import (
	"testing"
	"time"
)

func TestValidateTransition(t *testing.T) {
	tests := []struct {
		from, to TransferStatus
		wantErr  bool
	}{
		{StatusPending, StatusApproved, false},
		{StatusPending, StatusRejected, false},
		{StatusPending, StatusPending, true},
		{StatusApproved, StatusRejected, true},
		{StatusApproved, StatusPending, true},
		{StatusRejected, StatusApproved, true},
		{StatusRejected, StatusPending, true},
		{"completed", StatusApproved, true},
	}

	for _, tt := range tests {
		err := ValidateTransition(tt.from, tt.to)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateTransition(%q, %q) error = %v, wantErr %v", tt.from, tt.to, err, tt.wantErr)
		}
	}
}

func TestTransferApprove(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	orig := Transfer{ID: "1", Status: StatusPending}

	approved, err := orig.Approve(at)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if approved.Status != StatusApproved {
		t.Errorf("expected approved, got %s", approved.Status)
	}
	if approved.ApprovedDate == nil || !approved.ApprovedDate.Equal(at) {
		t.Errorf("expected approved date %v, got %v", at, approved.ApprovedDate)
	}
	if approved.RejectedDate != nil {
		t.Error("rejected date must stay unset")
	}
	if orig.Status != StatusPending || orig.ApprovedDate != nil {
		t.Error("Approve mutated the receiver")
	}
	if err := approved.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}

	if _, err := approved.Reject(at, "late"); err == nil {
		t.Error("expected error rejecting an approved transfer")
	}
}

func TestTransferReject(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	rejected, err := Transfer{ID: "1", Status: StatusPending}.Reject(at, "Item damaged")
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if rejected.RejectionReason != "Item damaged" {
		t.Errorf("expected reason 'Item damaged', got %q", rejected.RejectionReason)
	}
	if rejected.ApprovedDate != nil {
		t.Error("approved date must stay unset")
	}
	if err := rejected.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}

	defaulted, _ := Transfer{ID: "2", Status: StatusPending}.Reject(at, "")
	if defaulted.RejectionReason != DefaultRejectionReason {
		t.Errorf("expected default reason, got %q", defaulted.RejectionReason)
	}

	if _, err := rejected.Approve(at); err == nil {
		t.Error("expected error approving a rejected transfer")
	}
}

func TestTransferValidate(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name     string
		transfer Transfer
		wantErr  bool
	}{
		{"pending", Transfer{Status: StatusPending}, false},
		{"pending with approved date", Transfer{Status: StatusPending, ApprovedDate: &now}, true},
		{"approved without date", Transfer{Status: StatusApproved}, true},
		{"approved with both dates", Transfer{Status: StatusApproved, ApprovedDate: &now, RejectedDate: &now}, true},
		{"rejected", Transfer{Status: StatusRejected, RejectedDate: &now, RejectionReason: "x"}, false},
		{"reason on pending", Transfer{Status: StatusPending, RejectionReason: "x"}, true},
		{"unknown status", Transfer{Status: "lost"}, true},
	}

	for _, tt := range tests {
		err := tt.transfer.Validate()
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: Validate() error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}
