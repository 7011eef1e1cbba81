package state

import (
	"encoding/json"
	"fmt"

	"github.com/erazemk/handreceipt/internal/model"
)

// Action is one of the action types declared in this file.
type Action interface {
	isAction()
}

// SetActiveView switches perspective and clears the search and status filter.
type SetActiveView struct{ View Perspective }

// SetSearchTerm sets the free-text filter verbatim.
type SetSearchTerm struct{ Term string }

// SetFilterStatus sets the status filter.
type SetFilterStatus struct{ Status StatusFilter }

// SetSort toggles the order when Field is already active, otherwise sorts
// ascending by Field.
type SetSort struct{ Field SortField }

// ResetFilters clears search and status filter and restores DefaultSort.
type ResetFilters struct{}

// StartLoading marks a transfer id (or NewTransferKey) as in flight.
type StartLoading struct{ ID string }

// StopLoading clears the in-flight mark.
type StopLoading struct{ ID string }

// UpdateTransfer replaces an existing transfer in place.
type UpdateTransfer struct{ Transfer model.Transfer }

// AddTransfer prepends a transfer whose id is not yet present.
type AddTransfer struct{ Transfer model.Transfer }

// OpenDetail opens the detail view of a transfer.
type OpenDetail struct{ ID string }

// OpenNewTransfer opens the new-transfer form, optionally pre-filled.
type OpenNewTransfer struct{ Draft *Draft }

// CloseModal closes any open dialog.
type CloseModal struct{}

func (SetActiveView) isAction()   {}
func (SetSearchTerm) isAction()   {}
func (SetFilterStatus) isAction() {}
func (SetSort) isAction()         {}
func (ResetFilters) isAction()    {}
func (StartLoading) isAction()    {}
func (StopLoading) isAction()     {}
func (UpdateTransfer) isAction()  {}
func (AddTransfer) isAction()     {}
func (OpenDetail) isAction()      {}
func (OpenNewTransfer) isAction() {}
func (CloseModal) isAction()      {}

// envelope is the JSON form of a UI action.
type envelope struct {
	Type         string `json:"type"`
	View         string `json:"view"`
	Term         string `json:"term"`
	Status       string `json:"status"`
	Field        string `json:"field"`
	ID           string `json:"id"`
	SerialNumber string `json:"serial_number"`
	Name         string `json:"name"`
}

// DecodeUIAction parses a JSON UI action such as {"type":"setSort","field":"name"}.
// Actions that touch the transfer collection cannot be decoded.
func DecodeUIAction(data []byte) (Action, error) {
	var e envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decoding action: %w", err)
	}

	switch e.Type {
	case "setActiveView":
		if !Perspective(e.View).Valid() {
			return nil, fmt.Errorf("unknown view %q", e.View)
		}
		return SetActiveView{View: Perspective(e.View)}, nil
	case "setSearchTerm":
		return SetSearchTerm{Term: e.Term}, nil
	case "setFilterStatus":
		if !StatusFilter(e.Status).Valid() {
			return nil, fmt.Errorf("unknown status filter %q", e.Status)
		}
		return SetFilterStatus{Status: StatusFilter(e.Status)}, nil
	case "setSort":
		if !SortField(e.Field).Valid() {
			return nil, fmt.Errorf("unknown sort field %q", e.Field)
		}
		return SetSort{Field: SortField(e.Field)}, nil
	case "resetFilters":
		return ResetFilters{}, nil
	case "openDetail":
		if e.ID == "" {
			return nil, fmt.Errorf("openDetail requires id")
		}
		return OpenDetail{ID: e.ID}, nil
	case "openNewTransfer":
		if e.SerialNumber == "" && e.Name == "" {
			return OpenNewTransfer{}, nil
		}
		return OpenNewTransfer{Draft: &Draft{SerialNumber: e.SerialNumber, Name: e.Name}}, nil
	case "closeModal":
		return CloseModal{}, nil
	default:
		return nil, fmt.Errorf("unknown action type %q", e.Type)
	}
}
