package ledger

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/erazemk/handreceipt/internal/model"
)

// genesisHash is the previous hash of the first entry unless SQLite.Genesis
// is set.
const genesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// Entry is a committed ledger record.
type Entry struct {
	Seq          int64           `json:"seq"`
	TxID         string          `json:"tx_id"`
	EventType    string          `json:"event_type"`
	SerialNumber string          `json:"serial_number"`
	TransferID   string          `json:"transfer_id,omitempty"`
	Payload      json.RawMessage `json:"payload"`
	Actor        string          `json:"actor"`
	PrevHash     string          `json:"prev_hash"`
	Hash         string          `json:"hash"`
	RecordedAt   time.Time       `json:"recorded_at"`
}

// Verification is the result of walking the hash chain.
type Verification struct {
	Entries  int   `json:"entries"`
	Valid    bool  `json:"valid"`
	BrokenAt int64 `json:"broken_at,omitempty"`
}

// SQLite is a hash-chained ledger stored in the ledger_entries table. Each
// entry's hash covers the previous entry's hash, so any edit or deletion
// breaks verification from that point on.
type SQLite struct {
	DB *sql.DB

	// Policy decides eligibility. Defaults to Eligible.
	Policy func(model.Item) bool

	// Genesis anchors the chain of this installation. Defaults to genesisHash.
	Genesis string

	mu sync.Mutex
}

// NewSQLite returns a ledger backed by db.
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{DB: db, Policy: Eligible}
}

// Enabled implements Client.
func (l *SQLite) Enabled(item model.Item) bool {
	if l.Policy == nil {
		return Eligible(item)
	}
	return l.Policy(item)
}

// Record implements Client.
func (l *SQLite) Record(ctx context.Context, item model.Item, eventType string, p Payload, actor string) (Receipt, error) {
	return l.appendEntry(ctx, eventType, item.SerialNumber, p.TransferID, p, actor)
}

// RecordItem records the registration of item.
func (l *SQLite) RecordItem(ctx context.Context, item model.Item, actor string) (Receipt, error) {
	return l.appendEntry(ctx, EventItemCreated, item.SerialNumber, "", ItemPayload{
		Name:          item.Name,
		Category:      item.Category,
		SecurityLevel: item.SecurityLevel,
	}, actor)
}

// RecordCorrection appends a correction of the entry with originalTxID. The
// correction is filed under the same serial number and transfer.
func (l *SQLite) RecordCorrection(ctx context.Context, originalTxID, reason, actor string) (Receipt, error) {
	var serial, transferID, event string
	err := l.DB.QueryRowContext(ctx,
		`SELECT serial_number, transfer_id, event_type FROM ledger_entries WHERE tx_id = ?`, originalTxID,
	).Scan(&serial, &transferID, &event)
	if err == sql.ErrNoRows {
		return Receipt{}, ErrEntryNotFound
	}
	if err != nil {
		return Receipt{}, fmt.Errorf("reading corrected entry: %w", err)
	}

	return l.appendEntry(ctx, EventCorrection, serial, transferID, CorrectionPayload{
		OriginalTxID:  originalTxID,
		OriginalEvent: event,
		Reason:        reason,
	}, actor)
}

func (l *SQLite) appendEntry(ctx context.Context, eventType, serial, transferID string, payload any, actor string) (Receipt, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Receipt{}, fmt.Errorf("encoding payload: %w", err)
	}

	// Appends are serialized so two writers never chain onto the same hash.
	l.mu.Lock()
	defer l.mu.Unlock()

	tx, err := l.DB.BeginTx(ctx, nil)
	if err != nil {
		return Receipt{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	prev := l.genesis()
	err = tx.QueryRowContext(ctx,
		`SELECT hash FROM ledger_entries ORDER BY seq DESC LIMIT 1`,
	).Scan(&prev)
	if err != nil && err != sql.ErrNoRows {
		return Receipt{}, fmt.Errorf("reading chain head: %w", err)
	}

	txID := uuid.NewString()
	hash := chainHash(prev, txID, eventType, serial, transferID, string(body), actor)

	_, err = tx.ExecContext(ctx,
		`INSERT INTO ledger_entries (tx_id, event_type, serial_number, transfer_id, payload, actor, prev_hash, hash)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		txID, eventType, serial, transferID, string(body), actor, prev, hash,
	)
	if err != nil {
		return Receipt{}, fmt.Errorf("appending entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Receipt{}, fmt.Errorf("committing entry: %w", err)
	}
	return Receipt{TxID: txID}, nil
}

// History returns the entries recorded for a serial number, oldest first.
func (l *SQLite) History(ctx context.Context, serial string) ([]Entry, error) {
	rows, err := l.DB.QueryContext(ctx,
		`SELECT seq, tx_id, event_type, serial_number, transfer_id, payload, actor, prev_hash, hash, recorded_at
		 FROM ledger_entries WHERE serial_number = ? ORDER BY seq`, serial,
	)
	if err != nil {
		return nil, fmt.Errorf("getting ledger history: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// Verify recomputes every hash in order and reports the first broken entry.
func (l *SQLite) Verify(ctx context.Context) (Verification, error) {
	rows, err := l.DB.QueryContext(ctx,
		`SELECT seq, tx_id, event_type, serial_number, transfer_id, payload, actor, prev_hash, hash, recorded_at
		 FROM ledger_entries ORDER BY seq`,
	)
	if err != nil {
		return Verification{}, fmt.Errorf("reading ledger: %w", err)
	}
	defer rows.Close()

	entries, err := scanEntries(rows)
	if err != nil {
		return Verification{}, err
	}

	v := Verification{Entries: len(entries), Valid: true}
	prev := l.genesis()
	for _, e := range entries {
		want := chainHash(prev, e.TxID, e.EventType, e.SerialNumber, e.TransferID, string(e.Payload), e.Actor)
		if e.PrevHash != prev || e.Hash != want {
			v.Valid = false
			v.BrokenAt = e.Seq
			return v, nil
		}
		prev = e.Hash
	}
	return v, nil
}

func (l *SQLite) genesis() string {
	if l.Genesis == "" {
		return genesisHash
	}
	return l.Genesis
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		var body string
		if err := rows.Scan(&e.Seq, &e.TxID, &e.EventType, &e.SerialNumber, &e.TransferID,
			&body, &e.Actor, &e.PrevHash, &e.Hash, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("scanning ledger entry: %w", err)
		}
		e.Payload = json.RawMessage(body)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func chainHash(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:])
}
