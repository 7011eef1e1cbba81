package transfer

import (
	"errors"

	"github.com/erazemk/handreceipt/internal/qr"
)

// Errors returned by Service commands. They are wrapped with detail, so
// compare with errors.Is.
var (
	ErrValidation          = errors.New("invalid transfer")
	ErrNotFound            = errors.New("transfer not found")
	ErrInvalidState        = errors.New("transfer is not pending")
	ErrNotRecipient        = errors.New("only the recipient can resolve a transfer")
	ErrConcurrentOperation = errors.New("another operation on this transfer is in progress")
	ErrScanFormat          = qr.ErrFormat
)
