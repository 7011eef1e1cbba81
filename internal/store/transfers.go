package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/erazemk/handreceipt/internal/model"
)

// ErrNotPending is returned when a status update finds the transfer already resolved.
var ErrNotPending = errors.New("transfer is no longer pending")

const transferColumns = `id, name, serial_number, from_identity, to_identity, date, status,
	approved_date, rejected_date, rejection_reason`

// InsertTransfer records a new transfer.
func InsertTransfer(ctx context.Context, db *sql.DB, t model.Transfer) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid transfer: %w", err)
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO transfers (id, name, serial_number, from_identity, to_identity, date, status,
		                        approved_date, rejected_date, rejection_reason)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.SerialNumber, t.From, t.To, t.Date.UTC(), string(t.Status),
		t.ApprovedDate, t.RejectedDate, nullString(t.RejectionReason),
	)
	if err != nil {
		return fmt.Errorf("inserting transfer: %w", err)
	}
	return nil
}

// UpdateTransferStatus resolves a pending transfer. The update only applies
// while the stored row is still pending.
func UpdateTransferStatus(ctx context.Context, db *sql.DB, t model.Transfer) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid transfer: %w", err)
	}
	res, err := db.ExecContext(ctx,
		`UPDATE transfers SET status = ?, approved_date = ?, rejected_date = ?, rejection_reason = ?
		 WHERE id = ? AND status = 'pending'`,
		string(t.Status), t.ApprovedDate, t.RejectedDate, nullString(t.RejectionReason), t.ID,
	)
	if err != nil {
		return fmt.Errorf("updating transfer status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking updated rows: %w", err)
	}
	if n == 0 {
		return ErrNotPending
	}
	return nil
}

// GetTransfer returns a transfer by ID.
func GetTransfer(ctx context.Context, db *sql.DB, id string) (*model.Transfer, error) {
	t := &model.Transfer{}
	err := scanTransfer(db.QueryRowContext(ctx,
		`SELECT `+transferColumns+` FROM transfers WHERE id = ?`, id,
	), t)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting transfer: %w", err)
	}
	return t, nil
}

// ListTransfers returns every transfer, newest first.
func ListTransfers(ctx context.Context, db *sql.DB) ([]model.Transfer, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+transferColumns+` FROM transfers ORDER BY date DESC, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing transfers: %w", err)
	}
	defer rows.Close()

	var transfers []model.Transfer
	for rows.Next() {
		var t model.Transfer
		if err := scanTransfer(rows, &t); err != nil {
			return nil, fmt.Errorf("scanning transfer: %w", err)
		}
		transfers = append(transfers, t)
	}
	return transfers, rows.Err()
}

func scanTransfer(row interface{ Scan(...any) error }, t *model.Transfer) error {
	var status string
	var reason sql.NullString
	if err := row.Scan(&t.ID, &t.Name, &t.SerialNumber, &t.From, &t.To, &t.Date, &status,
		&t.ApprovedDate, &t.RejectedDate, &reason); err != nil {
		return err
	}
	t.Status = model.TransferStatus(status)
	t.RejectionReason = reason.String
	t.Date = t.Date.UTC()
	if t.ApprovedDate != nil {
		at := t.ApprovedDate.UTC()
		t.ApprovedDate = &at
	}
	if t.RejectedDate != nil {
		at := t.RejectedDate.UTC()
		t.RejectedDate = &at
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Transfers adapts the transfer functions to the repository used by the
// transfer service.
type Transfers struct {
	DB *sql.DB
}

// InsertTransfer implements the service repository.
func (r Transfers) InsertTransfer(ctx context.Context, t model.Transfer) error {
	return InsertTransfer(ctx, r.DB, t)
}

// UpdateTransferStatus implements the service repository.
func (r Transfers) UpdateTransferStatus(ctx context.Context, t model.Transfer) error {
	return UpdateTransferStatus(ctx, r.DB, t)
}
