// Package state holds the in-memory transfer collection and the UI state that
// drives the projected views. All changes go through Reduce.
package state

import "github.com/erazemk/handreceipt/internal/model"

// Perspective is a lens over the transfer collection relative to the current user.
type Perspective string

// Perspectives.
const (
	Incoming Perspective = "incoming"
	Outgoing Perspective = "outgoing"
	History  Perspective = "history"
)

// Valid reports whether p is a known perspective.
func (p Perspective) Valid() bool {
	return p == Incoming || p == Outgoing || p == History
}

// StatusFilter is a transfer status or FilterAll.
type StatusFilter string

// FilterAll lets every status through.
const FilterAll StatusFilter = "all"

// Valid reports whether f is FilterAll or a known transfer status.
func (f StatusFilter) Valid() bool {
	return f == FilterAll || model.TransferStatus(f).Valid()
}

// SortField is a transfer field the projection can order by.
type SortField string

// Sort fields.
const (
	SortDate SortField = "date"
	SortName SortField = "name"
	SortFrom SortField = "from"
	SortTo   SortField = "to"
)

// Valid reports whether f is a sortable field.
func (f SortField) Valid() bool {
	switch f {
	case SortDate, SortName, SortFrom, SortTo:
		return true
	}
	return false
}

// SortOrder is the sort direction.
type SortOrder string

// Sort orders.
const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

// SortConfig selects the ordering of a projection.
type SortConfig struct {
	Field SortField `json:"field"`
	Order SortOrder `json:"order"`
}

// DefaultSort shows the newest transfers first.
var DefaultSort = SortConfig{Field: SortDate, Order: Desc}

// ModalKind identifies the open dialog, if any.
type ModalKind string

// Modal kinds.
const (
	ModalNone        ModalKind = ""
	ModalDetail      ModalKind = "detail"
	ModalNewTransfer ModalKind = "new-transfer"
)

// Draft seeds the new-transfer form.
type Draft struct {
	SerialNumber string `json:"serial_number"`
	Name         string `json:"name"`
}

// Modal is transient dialog and selection state.
type Modal struct {
	Kind       ModalKind `json:"kind,omitempty"`
	TransferID string    `json:"transfer_id,omitempty"`
	Draft      *Draft    `json:"draft,omitempty"`
}

// UI is the per-session view state.
type UI struct {
	ActiveView   Perspective  `json:"active_view"`
	SearchTerm   string       `json:"search_term"`
	StatusFilter StatusFilter `json:"status_filter"`
	Sort         SortConfig   `json:"sort"`
	Modal        Modal        `json:"modal"`
}

// DefaultUI returns the view state of a fresh session.
func DefaultUI() UI {
	return UI{
		ActiveView:   Incoming,
		StatusFilter: FilterAll,
		Sort:         DefaultSort,
	}
}

// State is a snapshot of the store. Snapshots are never modified after they
// are produced; Reduce returns a new one.
type State struct {
	Transfers []model.Transfer `json:"transfers"`
	Loading   map[string]bool  `json:"loading"`
	UI        UI               `json:"ui"`
}

// New returns the initial state holding transfers, newest first.
func New(transfers []model.Transfer) State {
	ts := make([]model.Transfer, len(transfers))
	copy(ts, transfers)
	return State{
		Transfers: ts,
		Loading:   map[string]bool{},
		UI:        DefaultUI(),
	}
}

// IsLoading reports whether id has a command in flight.
func (s State) IsLoading(id string) bool {
	return s.Loading[id]
}

// Find returns the transfer with the given id.
func (s State) Find(id string) (model.Transfer, bool) {
	for _, t := range s.Transfers {
		if t.ID == id {
			return t, true
		}
	}
	return model.Transfer{}, false
}

// FindBySerial returns the most recently added transfer for a serial number
// that keep accepts. A nil keep accepts every transfer.
func (s State) FindBySerial(serial string, keep func(model.Transfer) bool) (model.Transfer, bool) {
	for _, t := range s.Transfers {
		if t.SerialNumber == serial && (keep == nil || keep(t)) {
			return t, true
		}
	}
	return model.Transfer{}, false
}
