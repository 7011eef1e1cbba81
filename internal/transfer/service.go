// Package transfer implements the commands that change transfers: create,
// approve, reject and QR scan lookup.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/erazemk/handreceipt/internal/ledger"
	"github.com/erazemk/handreceipt/internal/model"
	"github.com/erazemk/handreceipt/internal/qr"
	"github.com/erazemk/handreceipt/internal/state"
	"github.com/erazemk/handreceipt/internal/store"
	"github.com/erazemk/handreceipt/internal/view"
)

// NewTransferKey is the loading key set while a transfer is being created.
const NewTransferKey = "new-transfer"

// DefaultLedgerTimeout bounds a single ledger write.
const DefaultLedgerTimeout = 10 * time.Second

// Repository persists transfers.
type Repository interface {
	InsertTransfer(ctx context.Context, t model.Transfer) error
	// UpdateTransferStatus must fail with store.ErrNotPending when the
	// stored transfer is no longer pending.
	UpdateTransferStatus(ctx context.Context, t model.Transfer) error
}

// ItemLookup finds sensitive items by serial number. It returns nil, nil
// for unknown serials.
type ItemLookup interface {
	ItemBySerial(ctx context.Context, serial string) (*model.Item, error)
}

// Service runs transfer commands against a Store and its backing repository.
type Service struct {
	Store  *state.Store
	Repo   Repository
	Items  ItemLookup
	Ledger ledger.Client // nil disables ledger writes

	Now           func() time.Time
	NewID         func() string
	LedgerTimeout time.Duration

	createMu sync.Mutex
	creating int
}

// New returns a Service with the default clock and UUID generator.
func New(st *state.Store, repo Repository, items ItemLookup, l ledger.Client) *Service {
	return &Service{
		Store:         st,
		Repo:          repo,
		Items:         items,
		Ledger:        l,
		Now:           time.Now,
		NewID:         uuid.NewString,
		LedgerTimeout: DefaultLedgerTimeout,
	}
}

// CreateInput is the new-transfer form.
type CreateInput struct {
	Name         string `json:"name"`
	SerialNumber string `json:"serial_number"`
	To           string `json:"to"`
}

// Result is the outcome of a successful approve or reject. LedgerErr is set
// when the transfer was approved but could not be recorded to the ledger.
type Result struct {
	Transfer   model.Transfer
	LedgerTxID string
	LedgerErr  error
}

// ScanResult is either an existing transfer for the scanned serial or a
// draft for a new one.
type ScanResult struct {
	Existing *model.Transfer
	Draft    *state.Draft
}

// Viewer is the identity a transfer is shown to. Supervisors see every
// transfer, everyone else only the ones they send or receive.
type Viewer struct {
	Identity   string
	Supervisor bool
}

// CanSee reports whether t is visible to v.
func (v Viewer) CanSee(t model.Transfer) bool {
	return v.Supervisor || t.From == v.Identity || t.To == v.Identity
}

// Create records a new pending transfer from actor.
func (s *Service) Create(ctx context.Context, actor string, in CreateInput) (model.Transfer, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.SerialNumber = strings.TrimSpace(in.SerialNumber)
	in.To = strings.TrimSpace(in.To)

	switch {
	case actor == "":
		return model.Transfer{}, fmt.Errorf("%w: sender is required", ErrValidation)
	case in.Name == "":
		return model.Transfer{}, fmt.Errorf("%w: item name is required", ErrValidation)
	case in.SerialNumber == "":
		return model.Transfer{}, fmt.Errorf("%w: serial number is required", ErrValidation)
	case in.To == "":
		return model.Transfer{}, fmt.Errorf("%w: recipient is required", ErrValidation)
	case in.To == actor:
		return model.Transfer{}, fmt.Errorf("%w: cannot transfer to yourself", ErrValidation)
	}

	t := model.Transfer{
		ID:           s.NewID(),
		Name:         in.Name,
		SerialNumber: in.SerialNumber,
		From:         actor,
		To:           in.To,
		Date:         s.Now().UTC(),
		Status:       model.StatusPending,
	}

	// Creates do not exclude each other; the key stays set while any is in flight.
	s.beginCreate()
	defer s.endCreate()

	if err := s.Repo.InsertTransfer(ctx, t); err != nil {
		return model.Transfer{}, fmt.Errorf("saving transfer: %w", err)
	}
	s.Store.Dispatch(state.AddTransfer{Transfer: t})

	slog.Info("transfer created", "id", t.ID, "serial", t.SerialNumber, "from", t.From, "to", t.To)
	return t, nil
}

// Approve accepts a pending transfer addressed to actor. Ledger failures do
// not undo the approval; they are reported in Result.LedgerErr.
func (s *Service) Approve(ctx context.Context, actor, id string) (Result, error) {
	var res Result
	err := s.withLock(id, func() error {
		cur, err := s.pendingFor(actor, id)
		if err != nil {
			return err
		}
		next, err := cur.Approve(s.Now())
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidState, err)
		}
		if err := s.commit(ctx, cur, next); err != nil {
			return err
		}
		slog.Info("transfer approved", "id", id, "user", actor)

		res.Transfer = next
		res.LedgerTxID, res.LedgerErr = s.record(ctx, actor, next)
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

// Reject declines a pending transfer addressed to actor. An empty reason is
// replaced by model.DefaultRejectionReason.
func (s *Service) Reject(ctx context.Context, actor, id, reason string) (Result, error) {
	var res Result
	err := s.withLock(id, func() error {
		cur, err := s.pendingFor(actor, id)
		if err != nil {
			return err
		}
		next, err := cur.Reject(s.Now(), strings.TrimSpace(reason))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidState, err)
		}
		if err := s.commit(ctx, cur, next); err != nil {
			return err
		}
		slog.Info("transfer rejected", "id", id, "user", actor, "reason", next.RejectionReason)
		res.Transfer = next
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

// Scan looks up the most recent transfer for a scanned label that v may
// see. Without one the result is a draft for a new transfer. A malformed
// payload returns ErrScanFormat and changes nothing.
func (s *Service) Scan(v Viewer, payload string) (ScanResult, error) {
	p, err := qr.Decode(payload)
	if err != nil {
		return ScanResult{}, err
	}
	if t, ok := s.Store.FindBySerial(p.SerialNumber, v.CanSee); ok {
		return ScanResult{Existing: &t}, nil
	}
	return ScanResult{Draft: &state.Draft{SerialNumber: p.SerialNumber, Name: p.Name}}, nil
}

// PendingCount returns the number of pending transfers addressed to user.
func (s *Service) PendingCount(user string) int {
	return view.PendingIncomingCount(s.Store.Snapshot().Transfers, user)
}

func (s *Service) beginCreate() {
	s.createMu.Lock()
	defer s.createMu.Unlock()
	s.creating++
	if s.creating == 1 {
		s.Store.Dispatch(state.StartLoading{ID: NewTransferKey})
	}
}

func (s *Service) endCreate() {
	s.createMu.Lock()
	defer s.createMu.Unlock()
	s.creating--
	if s.creating == 0 {
		s.Store.Dispatch(state.StopLoading{ID: NewTransferKey})
	}
}

func (s *Service) withLock(id string, fn func() error) error {
	err := s.Store.WithLock(id, fn)
	if errors.Is(err, state.ErrLocked) {
		return ErrConcurrentOperation
	}
	return err
}

func (s *Service) pendingFor(actor, id string) (model.Transfer, error) {
	cur, ok := s.Store.Find(id)
	if !ok {
		return model.Transfer{}, ErrNotFound
	}
	if cur.Status != model.StatusPending {
		return model.Transfer{}, fmt.Errorf("%w: transfer is %s", ErrInvalidState, cur.Status)
	}
	if cur.To != actor {
		return model.Transfer{}, ErrNotRecipient
	}
	return cur, nil
}

// commit applies next optimistically and writes it through. If the write
// fails the store is rolled back to cur.
func (s *Service) commit(ctx context.Context, cur, next model.Transfer) error {
	s.Store.Dispatch(state.UpdateTransfer{Transfer: next})
	err := s.Repo.UpdateTransferStatus(ctx, next)
	if err == nil {
		return nil
	}
	s.Store.Dispatch(state.UpdateTransfer{Transfer: cur})
	if errors.Is(err, store.ErrNotPending) {
		return fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	return fmt.Errorf("saving transfer: %w", err)
}

// record writes an approved transfer to the ledger when its item requires it.
func (s *Service) record(ctx context.Context, actor string, t model.Transfer) (string, error) {
	if s.Ledger == nil {
		return "", nil
	}

	// The transfer is already committed; the write must outlive the caller.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.LedgerTimeout)
	defer cancel()

	item, err := s.Items.ItemBySerial(ctx, t.SerialNumber)
	if err != nil {
		slog.Warn("ledger item lookup failed", "id", t.ID, "serial", t.SerialNumber, "error", err)
		return "", &ledger.WriteError{TransferID: t.ID, Err: err}
	}
	if item == nil || !s.Ledger.Enabled(*item) {
		return "", nil
	}

	receipt, err := s.Ledger.Record(ctx, *item, ledger.EventTransfer, ledger.Payload{
		From:       t.From,
		To:         t.To,
		TransferID: t.ID,
		Date:       t.Date,
	}, actor)
	if err != nil {
		slog.Warn("ledger write failed", "id", t.ID, "serial", t.SerialNumber, "error", err)
		return "", &ledger.WriteError{TransferID: t.ID, Err: err}
	}
	slog.Info("transfer recorded to ledger", "id", t.ID, "tx", receipt.TxID)
	return receipt.TxID, nil
}
