package api

import (
	"errors"
	"log/slog"
	"net/http"
	"sort"

	"github.com/erazemk/handreceipt/internal/auth"
	"github.com/erazemk/handreceipt/internal/model"
	"github.com/erazemk/handreceipt/internal/state"
	"github.com/erazemk/handreceipt/internal/transfer"
	"github.com/erazemk/handreceipt/internal/view"
)

// TransfersHandler handles transfer endpoints. Every command acts as the
// identity in the caller's token.
type TransfersHandler struct {
	Service  *transfer.Service
	Sessions *Sessions
}

type transferListResponse struct {
	Transfers    []model.Transfer `json:"transfers"`
	PendingCount int              `json:"pending_count"`
	Loading      []string         `json:"loading"`
	UI           state.UI         `json:"ui"`
}

type updateStatusRequest struct {
	Status model.TransferStatus `json:"status"`
	Reason string               `json:"reason"`
}

type statusResponse struct {
	Transfer      model.Transfer `json:"transfer"`
	LedgerTxID    string         `json:"ledger_tx_id,omitempty"`
	LedgerWarning string         `json:"ledger_warning,omitempty"`
}

type scanRequest struct {
	Payload string `json:"payload"`
}

type scanResponse struct {
	Existing *model.Transfer `json:"existing,omitempty"`
	Draft    *state.Draft    `json:"draft,omitempty"`
	UI       state.UI        `json:"ui"`
}

// List handles GET /api/transfers. The result is the caller's session view:
// perspective, search, status filter and sort order applied.
func (h *TransfersHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	ui := h.Sessions.Get(claims.UserID)
	snap := h.Service.Store.Snapshot()

	loading := []string{}
	for id, on := range snap.Loading {
		if on {
			loading = append(loading, id)
		}
	}
	sort.Strings(loading)

	jsonResponse(w, http.StatusOK, transferListResponse{
		Transfers:    view.Project(snap.Transfers, claims.Identity, ui),
		PendingCount: view.PendingIncomingCount(snap.Transfers, claims.Identity),
		Loading:      loading,
		UI:           ui,
	})
}

// Get handles GET /api/transfers/{id}. Users see transfers they are a party
// to; managers see all.
func (h *TransfersHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	t, ok := h.Service.Store.Find(r.PathValue("id"))
	if !ok {
		jsonError(w, http.StatusNotFound, "transfer not found")
		return
	}
	if !viewer(claims).CanSee(t) {
		jsonError(w, http.StatusNotFound, "transfer not found")
		return
	}
	jsonResponse(w, http.StatusOK, t)
}

// Create handles POST /api/transfers.
func (h *TransfersHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	var req transfer.CreateInput
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	t, err := h.Service.Create(r.Context(), claims.Identity, req)
	if err != nil {
		transferError(w, err)
		return
	}

	if h.Sessions.Get(claims.UserID).Modal.Kind == state.ModalNewTransfer {
		h.Sessions.Apply(claims.UserID, state.CloseModal{})
	}
	jsonResponse(w, http.StatusCreated, t)
}

// UpdateStatus handles PATCH /api/transfers/{id}/status.
func (h *TransfersHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	id := r.PathValue("id")

	var req updateStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var (
		res transfer.Result
		err error
	)
	switch req.Status {
	case model.StatusApproved:
		res, err = h.Service.Approve(r.Context(), claims.Identity, id)
	case model.StatusRejected:
		res, err = h.Service.Reject(r.Context(), claims.Identity, id, req.Reason)
	default:
		jsonError(w, http.StatusBadRequest, "status must be approved or rejected")
		return
	}
	if err != nil {
		transferError(w, err)
		return
	}

	resp := statusResponse{Transfer: res.Transfer, LedgerTxID: res.LedgerTxID}
	if res.LedgerErr != nil {
		resp.LedgerWarning = "transfer approved, but the ledger record could not be written"
	}
	jsonResponse(w, http.StatusOK, resp)
}

// PendingCount handles GET /api/transfers/pending-count.
func (h *TransfersHandler) PendingCount(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	jsonResponse(w, http.StatusOK, map[string]int{"count": h.Service.PendingCount(claims.Identity)})
}

// Scan handles POST /api/scan. A serial with a transfer the caller may see
// opens that transfer, any other opens a pre-filled new-transfer form in the
// caller's session.
func (h *TransfersHandler) Scan(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	var req scanRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.Service.Scan(viewer(claims), req.Payload)
	if err != nil {
		transferError(w, err)
		return
	}

	var ui state.UI
	if res.Existing != nil {
		ui = h.Sessions.Apply(claims.UserID, state.OpenDetail{ID: res.Existing.ID})
	} else {
		ui = h.Sessions.Apply(claims.UserID, state.OpenNewTransfer{Draft: res.Draft})
	}
	jsonResponse(w, http.StatusOK, scanResponse{Existing: res.Existing, Draft: res.Draft, UI: ui})
}

func viewer(c *auth.Claims) transfer.Viewer {
	return transfer.Viewer{Identity: c.Identity, Supervisor: model.RoleAtLeast(c.Role, model.RoleManager)}
}

// transferError maps service errors to HTTP responses.
func transferError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, transfer.ErrValidation):
		jsonErrorCode(w, http.StatusBadRequest, codeValidation, err.Error())
	case errors.Is(err, transfer.ErrNotFound):
		jsonErrorCode(w, http.StatusNotFound, codeNotFound, "transfer not found")
	case errors.Is(err, transfer.ErrNotRecipient):
		jsonErrorCode(w, http.StatusForbidden, codeNotRecipient, err.Error())
	case errors.Is(err, transfer.ErrInvalidState):
		jsonErrorCode(w, http.StatusConflict, codeInvalidState, err.Error())
	case errors.Is(err, transfer.ErrConcurrentOperation):
		jsonErrorCode(w, http.StatusConflict, codeConcurrent, err.Error())
	case errors.Is(err, transfer.ErrScanFormat):
		jsonErrorCode(w, http.StatusUnprocessableEntity, codeScanFormat, "malformed QR payload, please rescan")
	default:
		slog.Error("transfer command failed", "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
	}
}
