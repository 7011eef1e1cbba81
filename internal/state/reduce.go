package state

import "github.com/erazemk/handreceipt/internal/model"

// Reduce returns the state that results from applying a to s. It never
// modifies s: the transfer slice and loading map are copied when they change.
// Actions whose precondition does not hold return s unchanged.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case StartLoading:
		if s.Loading[a.ID] {
			return s
		}
		loading := copyLoading(s.Loading)
		loading[a.ID] = true
		s.Loading = loading
	case StopLoading:
		if !s.Loading[a.ID] {
			return s
		}
		loading := copyLoading(s.Loading)
		delete(loading, a.ID)
		s.Loading = loading
	case UpdateTransfer:
		idx := indexOf(s.Transfers, a.Transfer.ID)
		if idx < 0 {
			return s
		}
		ts := make([]model.Transfer, len(s.Transfers))
		copy(ts, s.Transfers)
		ts[idx] = a.Transfer
		s.Transfers = ts
	case AddTransfer:
		if indexOf(s.Transfers, a.Transfer.ID) >= 0 {
			return s
		}
		ts := make([]model.Transfer, 0, len(s.Transfers)+1)
		ts = append(ts, a.Transfer)
		ts = append(ts, s.Transfers...)
		s.Transfers = ts
	default:
		s.UI = ReduceUI(s.UI, a)
	}
	return s
}

// ReduceUI applies the UI subset of actions. Other actions leave ui unchanged.
func ReduceUI(ui UI, a Action) UI {
	switch a := a.(type) {
	case SetActiveView:
		ui.ActiveView = a.View
		ui.SearchTerm = ""
		ui.StatusFilter = FilterAll
	case SetSearchTerm:
		ui.SearchTerm = a.Term
	case SetFilterStatus:
		ui.StatusFilter = a.Status
	case SetSort:
		if ui.Sort.Field == a.Field {
			if ui.Sort.Order == Asc {
				ui.Sort.Order = Desc
			} else {
				ui.Sort.Order = Asc
			}
		} else {
			ui.Sort = SortConfig{Field: a.Field, Order: Asc}
		}
	case ResetFilters:
		ui.SearchTerm = ""
		ui.StatusFilter = FilterAll
		ui.Sort = DefaultSort
	case OpenDetail:
		ui.Modal = Modal{Kind: ModalDetail, TransferID: a.ID}
	case OpenNewTransfer:
		ui.Modal = Modal{Kind: ModalNewTransfer, Draft: a.Draft}
	case CloseModal:
		ui.Modal = Modal{}
	}
	return ui
}

func indexOf(ts []model.Transfer, id string) int {
	for i := range ts {
		if ts[i].ID == id {
			return i
		}
	}
	return -1
}

func copyLoading(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}
