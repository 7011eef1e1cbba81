package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/handreceipt/internal/model"
)

func pending(id, name string) model.Transfer {
	return model.Transfer{
		ID:           id,
		Name:         name,
		SerialNumber: "SN-" + id,
		From:         "SFC Martinez",
		To:           "CPT John Doe",
		Date:         time.Date(2023, 7, 15, 0, 0, 0, 0, time.UTC),
		Status:       model.StatusPending,
	}
}

func TestSetActiveViewResetsFilters(t *testing.T) {
	s := New(nil)
	s = Reduce(s, SetSearchTerm{Term: "night"})
	s = Reduce(s, SetFilterStatus{Status: StatusFilter(model.StatusPending)})
	s = Reduce(s, SetSort{Field: SortName})

	s = Reduce(s, SetActiveView{View: Outgoing})

	assert.Equal(t, Outgoing, s.UI.ActiveView)
	assert.Empty(t, s.UI.SearchTerm)
	assert.Equal(t, FilterAll, s.UI.StatusFilter)
	assert.Equal(t, SortConfig{Field: SortName, Order: Asc}, s.UI.Sort, "sort survives a view switch")
}

func TestSetSearchTermVerbatim(t *testing.T) {
	s := Reduce(New(nil), SetSearchTerm{Term: "  M4 "})
	assert.Equal(t, "  M4 ", s.UI.SearchTerm)
}

func TestSetSortToggles(t *testing.T) {
	s := New(nil)
	require.Equal(t, DefaultSort, s.UI.Sort)

	s = Reduce(s, SetSort{Field: SortName})
	assert.Equal(t, SortConfig{Field: SortName, Order: Asc}, s.UI.Sort)

	s = Reduce(s, SetSort{Field: SortName})
	assert.Equal(t, SortConfig{Field: SortName, Order: Desc}, s.UI.Sort)

	s = Reduce(s, SetSort{Field: SortName})
	assert.Equal(t, SortConfig{Field: SortName, Order: Asc}, s.UI.Sort)

	s = Reduce(s, SetSort{Field: SortDate})
	assert.Equal(t, SortConfig{Field: SortDate, Order: Asc}, s.UI.Sort)

	s = Reduce(s, SetSort{Field: SortDate})
	assert.Equal(t, SortConfig{Field: SortDate, Order: Desc}, s.UI.Sort)
}

func TestResetFilters(t *testing.T) {
	s := New(nil)
	s = Reduce(s, SetActiveView{View: History})
	s = Reduce(s, SetSearchTerm{Term: "x"})
	s = Reduce(s, SetFilterStatus{Status: StatusFilter(model.StatusRejected)})
	s = Reduce(s, SetSort{Field: SortTo})

	s = Reduce(s, ResetFilters{})

	assert.Equal(t, History, s.UI.ActiveView)
	assert.Empty(t, s.UI.SearchTerm)
	assert.Equal(t, FilterAll, s.UI.StatusFilter)
	assert.Equal(t, DefaultSort, s.UI.Sort)
}

func TestLoadingFlags(t *testing.T) {
	s0 := New(nil)
	s1 := Reduce(s0, StartLoading{ID: "1"})
	s2 := Reduce(s1, StartLoading{ID: "2"})
	s3 := Reduce(s2, StopLoading{ID: "1"})

	assert.False(t, s0.IsLoading("1"), "input state must not change")
	assert.True(t, s1.IsLoading("1"))
	assert.False(t, s1.IsLoading("2"))
	assert.True(t, s2.IsLoading("1"))
	assert.False(t, s3.IsLoading("1"))
	assert.True(t, s3.IsLoading("2"))
}

func TestAddTransferPrepends(t *testing.T) {
	s0 := New([]model.Transfer{pending("1", "PVS-14")})
	s1 := Reduce(s0, AddTransfer{Transfer: pending("2", "M4A1 Carbine")})

	require.Len(t, s1.Transfers, 2)
	assert.Equal(t, "2", s1.Transfers[0].ID)
	assert.Len(t, s0.Transfers, 1, "input state must not change")

	s2 := Reduce(s1, AddTransfer{Transfer: pending("1", "duplicate")})
	assert.Equal(t, s1.Transfers, s2.Transfers, "duplicate id is ignored")
}

func TestUpdateTransferInPlace(t *testing.T) {
	s0 := New([]model.Transfer{pending("1", "PVS-14"), pending("2", "PRC-152"), pending("3", "M240B")})

	approved, err := s0.Transfers[1].Approve(time.Now())
	require.NoError(t, err)
	s1 := Reduce(s0, UpdateTransfer{Transfer: approved})

	assert.Equal(t, model.StatusApproved, s1.Transfers[1].Status)
	assert.Equal(t, s0.Transfers[0], s1.Transfers[0])
	assert.Equal(t, s0.Transfers[2], s1.Transfers[2])
	assert.Equal(t, model.StatusPending, s0.Transfers[1].Status, "input state must not change")

	s2 := Reduce(s1, UpdateTransfer{Transfer: pending("404", "ghost")})
	assert.Equal(t, s1.Transfers, s2.Transfers, "unknown id is ignored")
}

func TestModalActions(t *testing.T) {
	s := Reduce(New(nil), OpenDetail{ID: "7"})
	assert.Equal(t, Modal{Kind: ModalDetail, TransferID: "7"}, s.UI.Modal)

	draft := &Draft{SerialNumber: "88574921", Name: "M4A1 Carbine"}
	s = Reduce(s, OpenNewTransfer{Draft: draft})
	assert.Equal(t, ModalNewTransfer, s.UI.Modal.Kind)
	assert.Equal(t, draft, s.UI.Modal.Draft)
	assert.Empty(t, s.UI.Modal.TransferID)

	s = Reduce(s, CloseModal{})
	assert.Equal(t, Modal{}, s.UI.Modal)
}

func TestReduceUIIgnoresCollectionActions(t *testing.T) {
	ui := DefaultUI()
	assert.Equal(t, ui, ReduceUI(ui, AddTransfer{Transfer: pending("1", "x")}))
	assert.Equal(t, ui, ReduceUI(ui, StartLoading{ID: "1"}))
}

func TestDecodeUIAction(t *testing.T) {
	tests := []struct {
		in      string
		want    Action
		wantErr bool
	}{
		{`{"type":"setActiveView","view":"outgoing"}`, SetActiveView{View: Outgoing}, false},
		{`{"type":"setActiveView","view":"sideways"}`, nil, true},
		{`{"type":"setSearchTerm","term":"night"}`, SetSearchTerm{Term: "night"}, false},
		{`{"type":"setFilterStatus","status":"pending"}`, SetFilterStatus{Status: "pending"}, false},
		{`{"type":"setFilterStatus","status":"all"}`, SetFilterStatus{Status: FilterAll}, false},
		{`{"type":"setFilterStatus","status":"lost"}`, nil, true},
		{`{"type":"setSort","field":"name"}`, SetSort{Field: SortName}, false},
		{`{"type":"setSort","field":"serial"}`, nil, true},
		{`{"type":"resetFilters"}`, ResetFilters{}, false},
		{`{"type":"openDetail","id":"3"}`, OpenDetail{ID: "3"}, false},
		{`{"type":"openDetail"}`, nil, true},
		{`{"type":"openNewTransfer"}`, OpenNewTransfer{}, false},
		{`{"type":"openNewTransfer","serial_number":"1","name":"x"}`, OpenNewTransfer{Draft: &Draft{SerialNumber: "1", Name: "x"}}, false},
		{`{"type":"closeModal"}`, CloseModal{}, false},
		{`{"type":"addTransfer"}`, nil, true},
		{`not json`, nil, true},
	}

	for _, tt := range tests {
		got, err := DecodeUIAction([]byte(tt.in))
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
