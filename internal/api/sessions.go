package api

import (
	"io"
	"net/http"
	"sync"

	"github.com/erazemk/handreceipt/internal/state"
)

// Sessions keeps the view state (perspective, search, filter, sort, open
// dialog) of each logged-in user. It lives in memory only.
type Sessions struct {
	mu sync.Mutex
	ui map[int64]state.UI
}

// NewSessions returns an empty session table.
func NewSessions() *Sessions {
	return &Sessions{ui: map[int64]state.UI{}}
}

// Get returns the view state of a user, creating a default one if needed.
func (s *Sessions) Get(userID int64) state.UI {
	s.mu.Lock()
	defer s.mu.Unlock()
	ui, ok := s.ui[userID]
	if !ok {
		return state.DefaultUI()
	}
	return ui
}

// Apply reduces a UI action into a user's view state and returns the result.
func (s *Sessions) Apply(userID int64, a state.Action) state.UI {
	s.mu.Lock()
	defer s.mu.Unlock()
	ui, ok := s.ui[userID]
	if !ok {
		ui = state.DefaultUI()
	}
	ui = state.ReduceUI(ui, a)
	s.ui[userID] = ui
	return ui
}

// SessionHandler exposes the caller's view state.
type SessionHandler struct {
	Sessions *Sessions
}

// Get handles GET /api/session.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	jsonResponse(w, http.StatusOK, h.Sessions.Get(claims.UserID))
}

// Dispatch handles POST /api/session/actions.
func (h *SessionHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 64<<10))
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	action, err := state.DecodeUIAction(body)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	jsonResponse(w, http.StatusOK, h.Sessions.Apply(claims.UserID, action))
}
