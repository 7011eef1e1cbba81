// Package view derives the ordered transfer lists shown for a perspective.
package view

import (
	"sort"
	"strings"

	"github.com/erazemk/handreceipt/internal/model"
	"github.com/erazemk/handreceipt/internal/state"
)

// Project filters transfers by perspective, search term and status, then
// sorts them as configured in ui. The input slice is not modified.
func Project(transfers []model.Transfer, user string, ui state.UI) []model.Transfer {
	term := strings.ToLower(ui.SearchTerm)

	out := make([]model.Transfer, 0, len(transfers))
	for _, t := range transfers {
		if !inPerspective(t, user, ui.ActiveView) {
			continue
		}
		if term != "" && !matches(t, term) {
			continue
		}
		if ui.StatusFilter != "" && ui.StatusFilter != state.FilterAll &&
			string(t.Status) != string(ui.StatusFilter) {
			continue
		}
		out = append(out, t)
	}

	less := comparator(ui.Sort.Field)
	if ui.Sort.Order == state.Desc {
		asc := less
		less = func(a, b model.Transfer) bool { return asc(b, a) }
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })

	return out
}

// PendingIncomingCount counts pending transfers awaiting user's decision.
func PendingIncomingCount(transfers []model.Transfer, user string) int {
	n := 0
	for _, t := range transfers {
		if t.To == user && t.Status == model.StatusPending {
			n++
		}
	}
	return n
}

func inPerspective(t model.Transfer, user string, p state.Perspective) bool {
	switch p {
	case state.Incoming:
		return t.To == user
	case state.Outgoing:
		return t.From == user
	case state.History:
		return t.To == user || t.From == user
	}
	return false
}

// matches expects term to be lower-cased already.
func matches(t model.Transfer, term string) bool {
	for _, field := range []string{t.Name, t.SerialNumber, t.From, t.To} {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}

func comparator(field state.SortField) func(a, b model.Transfer) bool {
	switch field {
	case state.SortName:
		return func(a, b model.Transfer) bool { return a.Name < b.Name }
	case state.SortFrom:
		return func(a, b model.Transfer) bool { return a.From < b.From }
	case state.SortTo:
		return func(a, b model.Transfer) bool { return a.To < b.To }
	default:
		return func(a, b model.Transfer) bool { return a.Date.Before(b.Date) }
	}
}
