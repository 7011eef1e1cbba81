package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/erazemk/handreceipt/internal/ledger"
)

// LedgerHandler exposes the audit ledger.
type LedgerHandler struct {
	Ledger *ledger.SQLite
}

// History handles GET /api/ledger?serial=.
func (h *LedgerHandler) History(w http.ResponseWriter, r *http.Request) {
	serial := r.URL.Query().Get("serial")
	if serial == "" {
		jsonError(w, http.StatusBadRequest, "serial required")
		return
	}

	entries, err := h.Ledger.History(r.Context(), serial)
	if err != nil {
		slog.Error("failed to get ledger history", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get ledger history")
		return
	}
	if entries == nil {
		entries = []ledger.Entry{}
	}
	jsonResponse(w, http.StatusOK, entries)
}

// Verify handles GET /api/ledger/verify.
func (h *LedgerHandler) Verify(w http.ResponseWriter, r *http.Request) {
	v, err := h.Ledger.Verify(r.Context())
	if err != nil {
		slog.Error("failed to verify ledger", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to verify ledger")
		return
	}
	if !v.Valid {
		claims := GetClaims(r.Context())
		slog.Warn("ledger chain broken", "user", claims.Username, "seq", v.BrokenAt)
	}
	jsonResponse(w, http.StatusOK, v)
}

type correctionRequest struct {
	OriginalTxID string `json:"original_tx_id"`
	Reason       string `json:"reason"`
}

type correctionResponse struct {
	TxID         string `json:"tx_id"`
	OriginalTxID string `json:"original_tx_id"`
}

// Correct handles POST /api/ledger/corrections. The corrected entry stays in
// the chain; the correction is appended after it.
func (h *LedgerHandler) Correct(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	var req correctionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.OriginalTxID = strings.TrimSpace(req.OriginalTxID)
	req.Reason = strings.TrimSpace(req.Reason)
	if req.OriginalTxID == "" || req.Reason == "" {
		jsonErrorCode(w, http.StatusBadRequest, codeValidation, "original_tx_id and reason required")
		return
	}

	receipt, err := h.Ledger.RecordCorrection(r.Context(), req.OriginalTxID, req.Reason, claims.Identity)
	if errors.Is(err, ledger.ErrEntryNotFound) {
		jsonErrorCode(w, http.StatusNotFound, codeLedgerMissing, "ledger entry not found")
		return
	}
	if err != nil {
		slog.Error("failed to record correction", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to record correction")
		return
	}

	slog.Info("ledger correction recorded", "user", claims.Username, "original", req.OriginalTxID, "tx", receipt.TxID)
	jsonResponse(w, http.StatusCreated, correctionResponse{TxID: receipt.TxID, OriginalTxID: req.OriginalTxID})
}
