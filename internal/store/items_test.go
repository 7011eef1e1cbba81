package store

import (
	"context"
	"testing"

	"github.com/erazemk/handreceipt/internal/db"
	"github.com/erazemk/handreceipt/internal/model"
)

func TestCreateAndGetItem(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item, err := CreateItem(ctx, database, model.Item{
		SerialNumber:  "M4-87654321",
		Name:          "M4A1 Carbine",
		Category:      model.CategoryWeapon,
		SecurityLevel: model.SecurityControlled,
		LedgerTracked: true,
	})
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	if item.Name != "M4A1 Carbine" {
		t.Errorf("expected name 'M4A1 Carbine', got %q", item.Name)
	}
	if !item.LedgerTracked {
		t.Error("expected ledger tracked item")
	}

	got, err := Items{DB: database}.ItemBySerial(ctx, "M4-87654321")
	if err != nil {
		t.Fatalf("ItemBySerial: %v", err)
	}
	if got == nil || got.Category != model.CategoryWeapon {
		t.Errorf("expected weapon item, got %+v", got)
	}

	missing, err := GetItem(ctx, database, "nope")
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for missing item")
	}
}

func TestCreateItemDefaults(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item, err := CreateItem(ctx, database, model.Item{SerialNumber: "NFG-1", Name: "Nomex Gloves"})
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	if item.Category != model.CategoryOther || item.SecurityLevel != model.SecurityRoutine {
		t.Errorf("expected defaults, got %q/%q", item.Category, item.SecurityLevel)
	}

	if _, err := CreateItem(ctx, database, model.Item{SerialNumber: "NFG-1", Name: "Dup"}); err == nil {
		t.Error("expected error for duplicate serial number")
	}
}

func TestListItemsByCategory(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	CreateItem(ctx, database, model.Item{SerialNumber: "1", Name: "M9 Pistol", Category: model.CategoryWeapon})
	CreateItem(ctx, database, model.Item{SerialNumber: "2", Name: "PRC-152", Category: model.CategoryCommunication})

	all, _ := ListItems(ctx, database, "")
	if len(all) != 2 {
		t.Errorf("expected 2 items, got %d", len(all))
	}

	weapons, _ := ListItems(ctx, database, model.CategoryWeapon)
	if len(weapons) != 1 {
		t.Errorf("expected 1 weapon, got %d", len(weapons))
	}
}

func TestItemImage(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	CreateItem(ctx, database, model.Item{SerialNumber: "PVS14-1", Name: "PVS-14"})

	if err := SetItemImage(ctx, database, "PVS14-1", []byte{1, 2, 3}, "image/jpeg"); err != nil {
		t.Fatalf("SetItemImage: %v", err)
	}
	data, mime, err := GetItemImage(ctx, database, "PVS14-1")
	if err != nil {
		t.Fatalf("GetItemImage: %v", err)
	}
	if len(data) != 3 || mime != "image/jpeg" {
		t.Errorf("unexpected image %v %q", data, mime)
	}

	if err := SetItemImage(ctx, database, "missing", []byte{1}, "image/jpeg"); err == nil {
		t.Error("expected error for missing item")
	}
}
