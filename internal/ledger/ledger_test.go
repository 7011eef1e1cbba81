package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/handreceipt/internal/db"
	"github.com/erazemk/handreceipt/internal/model"
)

func TestEligible(t *testing.T) {
	tests := []struct {
		name string
		item model.Item
		want bool
	}{
		{"flagged", model.Item{LedgerTracked: true, Category: model.CategoryOther, SecurityLevel: model.SecurityRoutine}, true},
		{"weapon", model.Item{Category: model.CategoryWeapon, SecurityLevel: model.SecurityRoutine}, true},
		{"crypto", model.Item{Category: model.CategoryCrypto}, true},
		{"controlled optics", model.Item{Category: model.CategoryOptics, SecurityLevel: model.SecurityControlled}, true},
		{"routine gloves", model.Item{Category: model.CategoryOther, SecurityLevel: model.SecurityRoutine}, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Eligible(tt.item), tt.name)
	}
}

func TestWriteErrorUnwraps(t *testing.T) {
	cause := errors.New("unreachable")
	err := error(&WriteError{TransferID: "1", Err: cause})

	assert.ErrorIs(t, err, cause)
	var we *WriteError
	require.ErrorAs(t, err, &we)
	assert.Equal(t, "1", we.TransferID)
}

func record(t *testing.T, l *SQLite, serial, transferID string) Receipt {
	t.Helper()
	r, err := l.Record(context.Background(), model.Item{SerialNumber: serial}, EventTransfer, Payload{
		From:       "SFC Martinez",
		To:         "CPT John Doe",
		TransferID: transferID,
		Date:       time.Date(2023, 7, 15, 8, 0, 0, 0, time.UTC),
	}, "CPT John Doe")
	require.NoError(t, err)
	return r
}

func TestSQLiteRecordAndHistory(t *testing.T) {
	l := NewSQLite(db.NewTestDB(t))
	ctx := context.Background()

	r1 := record(t, l, "M4-1", "t1")
	record(t, l, "M9-2", "t2")
	r3 := record(t, l, "M4-1", "t3")
	assert.NotEqual(t, r1.TxID, r3.TxID)

	history, err := l.History(ctx, "M4-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, r1.TxID, history[0].TxID)
	assert.Equal(t, "t3", history[1].TransferID)
	var p Payload
	require.NoError(t, json.Unmarshal(history[1].Payload, &p))
	assert.Equal(t, "SFC Martinez", p.From)
	assert.Equal(t, genesisHash, history[0].PrevHash)

	v, err := l.Verify(ctx)
	require.NoError(t, err)
	assert.Equal(t, Verification{Entries: 3, Valid: true}, v)
}

func TestSQLiteVerifyDetectsTampering(t *testing.T) {
	database := db.NewTestDB(t)
	l := NewSQLite(database)
	ctx := context.Background()

	record(t, l, "M4-1", "t1")
	record(t, l, "M4-1", "t2")
	record(t, l, "M4-1", "t3")

	_, err := database.ExecContext(ctx, `UPDATE ledger_entries SET actor = 'someone else' WHERE seq = 2`)
	require.NoError(t, err)

	v, err := l.Verify(ctx)
	require.NoError(t, err)
	assert.False(t, v.Valid)
	assert.Equal(t, int64(2), v.BrokenAt)
}

func TestSQLiteRecordItem(t *testing.T) {
	l := NewSQLite(db.NewTestDB(t))
	ctx := context.Background()

	r, err := l.RecordItem(ctx, model.Item{
		SerialNumber: "M4-1", Name: "M4A1 Carbine", Category: model.CategoryWeapon, SecurityLevel: model.SecurityControlled,
	}, "CPT John Doe")
	require.NoError(t, err)

	history, err := l.History(ctx, "M4-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, r.TxID, history[0].TxID)
	assert.Equal(t, EventItemCreated, history[0].EventType)
	assert.Empty(t, history[0].TransferID)
	assert.JSONEq(t, `{"name":"M4A1 Carbine","category":"weapon","security_level":"controlled"}`, string(history[0].Payload))
}

func TestSQLiteRecordCorrection(t *testing.T) {
	l := NewSQLite(db.NewTestDB(t))
	ctx := context.Background()

	orig := record(t, l, "M4-1", "t1")
	fix, err := l.RecordCorrection(ctx, orig.TxID, "wrong recipient on paper copy", "1SG Johnson")
	require.NoError(t, err)

	history, err := l.History(ctx, "M4-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, orig.TxID, history[0].TxID, "the original entry is kept")
	assert.Equal(t, fix.TxID, history[1].TxID)
	assert.Equal(t, EventCorrection, history[1].EventType)
	assert.Equal(t, "t1", history[1].TransferID)
	assert.Equal(t, "1SG Johnson", history[1].Actor)

	var c CorrectionPayload
	require.NoError(t, json.Unmarshal(history[1].Payload, &c))
	assert.Equal(t, CorrectionPayload{OriginalTxID: orig.TxID, OriginalEvent: EventTransfer, Reason: "wrong recipient on paper copy"}, c)

	v, err := l.Verify(ctx)
	require.NoError(t, err)
	assert.True(t, v.Valid)

	_, err = l.RecordCorrection(ctx, "no-such-tx", "typo", "1SG Johnson")
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

func TestSQLiteGenesis(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	l := NewSQLite(database)
	l.Genesis = "abc123"

	record(t, l, "M4-1", "t1")
	history, err := l.History(ctx, "M4-1")
	require.NoError(t, err)
	assert.Equal(t, "abc123", history[0].PrevHash)

	v, err := l.Verify(ctx)
	require.NoError(t, err)
	assert.True(t, v.Valid)

	other := NewSQLite(database)
	v, err = other.Verify(ctx)
	require.NoError(t, err)
	assert.False(t, v.Valid, "a chain only verifies against its own genesis")
	assert.Equal(t, int64(1), v.BrokenAt)
}

func TestSQLitePolicy(t *testing.T) {
	l := NewSQLite(db.NewTestDB(t))
	assert.True(t, l.Enabled(model.Item{Category: model.CategoryWeapon}))

	l.Policy = func(model.Item) bool { return false }
	assert.False(t, l.Enabled(model.Item{Category: model.CategoryWeapon}))
}

type failingClient struct {
	calls int
}

func (f *failingClient) Enabled(model.Item) bool { return true }

func (f *failingClient) Record(context.Context, model.Item, string, Payload, string) (Receipt, error) {
	f.calls++
	return Receipt{}, errors.New("ledger unreachable")
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	inner := &failingClient{}
	b := NewBreaker(inner, BreakerConfig{ConsecutiveFailures: 2, Timeout: time.Minute})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := b.Record(ctx, model.Item{}, EventTransfer, Payload{}, "x")
		assert.Error(t, err)
	}
	assert.Equal(t, "open", b.State())

	_, err := b.Record(ctx, model.Item{}, EventTransfer, Payload{}, "x")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, inner.calls, "open breaker does not call the ledger")
}

func TestBreakerPassesThrough(t *testing.T) {
	b := NewBreaker(NewSQLite(db.NewTestDB(t)), DefaultBreakerConfig)

	r, err := b.Record(context.Background(), model.Item{SerialNumber: "1"}, EventTransfer, Payload{TransferID: "t"}, "x")
	require.NoError(t, err)
	assert.NotEmpty(t, r.TxID)
	assert.Equal(t, "closed", b.State())
	assert.True(t, b.Enabled(model.Item{LedgerTracked: true}))
}
