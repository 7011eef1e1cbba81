package api

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/erazemk/handreceipt/internal/imaging"
	"github.com/erazemk/handreceipt/internal/ledger"
	"github.com/erazemk/handreceipt/internal/model"
	"github.com/erazemk/handreceipt/internal/qr"
	"github.com/erazemk/handreceipt/internal/store"
)

// ItemsHandler handles the sensitive item catalogue.
type ItemsHandler struct {
	DB     *sql.DB
	Ledger ledger.ItemRecorder // nil skips recording registrations
}

type createItemResponse struct {
	*model.Item
	LedgerTxID    string `json:"ledger_tx_id,omitempty"`
	LedgerWarning string `json:"ledger_warning,omitempty"`
}

type createItemRequest struct {
	SerialNumber  string `json:"serial_number"`
	Name          string `json:"name"`
	Category      string `json:"category"`
	SecurityLevel string `json:"security_level"`
	LedgerTracked bool   `json:"ledger_tracked"`
}

// List handles GET /api/items, optionally filtered by ?category=.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	if category != "" && !model.ValidCategory(category) {
		jsonError(w, http.StatusBadRequest, "invalid category")
		return
	}

	items, err := store.ListItems(r.Context(), h.DB, category)
	if err != nil {
		slog.Error("failed to list items", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list items")
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	jsonResponse(w, http.StatusOK, items)
}

// Create handles POST /api/items.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.SerialNumber = strings.TrimSpace(req.SerialNumber)
	req.Name = strings.TrimSpace(req.Name)
	if req.SerialNumber == "" || req.Name == "" {
		jsonError(w, http.StatusBadRequest, "serial number and name required")
		return
	}
	if req.Category != "" && !model.ValidCategory(req.Category) {
		jsonError(w, http.StatusBadRequest, "invalid category")
		return
	}
	if req.SecurityLevel != "" && !model.ValidSecurityLevel(req.SecurityLevel) {
		jsonError(w, http.StatusBadRequest, "invalid security level")
		return
	}

	existing, err := store.GetItem(r.Context(), h.DB, req.SerialNumber)
	if err != nil {
		slog.Error("failed to get item", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to create item")
		return
	}
	if existing != nil {
		jsonError(w, http.StatusConflict, "serial number already registered")
		return
	}

	item, err := store.CreateItem(r.Context(), h.DB, model.Item{
		SerialNumber:  req.SerialNumber,
		Name:          req.Name,
		Category:      req.Category,
		SecurityLevel: req.SecurityLevel,
		LedgerTracked: req.LedgerTracked,
	})
	if err != nil {
		slog.Error("failed to create item", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to create item")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("item registered", "user", claims.Username, "serial", item.SerialNumber,
		"category", item.Category, "security_level", item.SecurityLevel)

	resp := createItemResponse{Item: item}
	if h.Ledger != nil && h.Ledger.Enabled(*item) {
		receipt, err := h.Ledger.RecordItem(r.Context(), *item, claims.Identity)
		if err != nil {
			slog.Warn("ledger write failed", "serial", item.SerialNumber, "error", err)
			resp.LedgerWarning = "item registered, but the ledger record could not be written"
		} else {
			resp.LedgerTxID = receipt.TxID
		}
	}
	jsonResponse(w, http.StatusCreated, resp)
}

// Get handles GET /api/items/{serial}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, ok := h.lookup(w, r)
	if !ok {
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// QR handles GET /api/items/{serial}/qr, returning the label text to print.
func (h *ItemsHandler) QR(w http.ResponseWriter, r *http.Request) {
	item, ok := h.lookup(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(qr.Encode(qr.Payload{SerialNumber: item.SerialNumber, Name: item.Name})))
}

// UploadPhoto handles PUT /api/items/{serial}/photo. The body is the raw
// JPEG or PNG.
func (h *ItemsHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	item, ok := h.lookup(w, r)
	if !ok {
		return
	}

	photo, err := imaging.Normalize(r.Body, imaging.DefaultOptions)
	switch {
	case errors.Is(err, imaging.ErrTooLarge):
		jsonError(w, http.StatusRequestEntityTooLarge, "photo too large")
		return
	case err != nil:
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := store.SetItemImage(r.Context(), h.DB, item.SerialNumber, photo.Data, photo.MIME); err != nil {
		slog.Error("failed to save photo", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to save photo")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("item photo uploaded", "user", claims.Username, "serial", item.SerialNumber,
		"width", photo.Width, "height", photo.Height)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "photo uploaded"})
}

// GetPhoto handles GET /api/items/{serial}/photo.
func (h *ItemsHandler) GetPhoto(w http.ResponseWriter, r *http.Request) {
	data, mime, err := store.GetItemImage(r.Context(), h.DB, r.PathValue("serial"))
	if err != nil {
		slog.Error("failed to get photo", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get photo")
		return
	}
	if data == nil {
		jsonError(w, http.StatusNotFound, "no photo")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(data)
}

func (h *ItemsHandler) lookup(w http.ResponseWriter, r *http.Request) (*model.Item, bool) {
	item, err := store.GetItem(r.Context(), h.DB, r.PathValue("serial"))
	if err != nil {
		slog.Error("failed to get item", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get item")
		return nil, false
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return nil, false
	}
	return item, true
}
