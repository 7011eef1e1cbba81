package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/handreceipt/internal/model"
)

const itemColumns = `serial_number, name, category, security_level, ledger_tracked, image_mime, created_at`

func scanItem(row interface{ Scan(...any) error }, item *model.Item) error {
	var imageMime sql.NullString
	if err := row.Scan(&item.SerialNumber, &item.Name, &item.Category, &item.SecurityLevel,
		&item.LedgerTracked, &imageMime, &item.CreatedAt); err != nil {
		return err
	}
	item.ImageMime = imageMime.String
	return nil
}

// CreateItem registers a sensitive item under its serial number.
func CreateItem(ctx context.Context, db *sql.DB, item model.Item) (*model.Item, error) {
	if item.Category == "" {
		item.Category = model.CategoryOther
	}
	if item.SecurityLevel == "" {
		item.SecurityLevel = model.SecurityRoutine
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO items (serial_number, name, category, security_level, ledger_tracked)
		 VALUES (?, ?, ?, ?, ?)`,
		item.SerialNumber, item.Name, item.Category, item.SecurityLevel, item.LedgerTracked,
	)
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}

	return GetItem(ctx, db, item.SerialNumber)
}

// GetItem returns an item by serial number.
func GetItem(ctx context.Context, db *sql.DB, serial string) (*model.Item, error) {
	item := &model.Item{}
	err := scanItem(db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE serial_number = ?`, serial,
	), item)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

// ListItems returns all items, optionally filtered by category.
func ListItems(ctx context.Context, db *sql.DB, category string) ([]model.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items`
	var args []any
	if category != "" {
		query += ` WHERE category = ?`
		args = append(args, category)
	}
	query += ` ORDER BY name`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		var item model.Item
		if err := scanItem(rows, &item); err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// SetItemImage sets an item's photo.
func SetItemImage(ctx context.Context, db *sql.DB, serial string, image []byte, mime string) error {
	res, err := db.ExecContext(ctx,
		`UPDATE items SET image = ?, image_mime = ? WHERE serial_number = ?`,
		image, mime, serial,
	)
	if err != nil {
		return fmt.Errorf("setting item image: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("item %s not found", serial)
	}
	return nil
}

// GetItemImage returns an item's photo and MIME type.
func GetItemImage(ctx context.Context, db *sql.DB, serial string) ([]byte, string, error) {
	var image []byte
	var mime sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT image, image_mime FROM items WHERE serial_number = ?`, serial,
	).Scan(&image, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting item image: %w", err)
	}
	return image, mime.String, nil
}

// Items adapts the item functions to the lookup used by the transfer service.
type Items struct {
	DB *sql.DB
}

// ItemBySerial returns the item with the given serial number, or nil.
func (r Items) ItemBySerial(ctx context.Context, serial string) (*model.Item, error) {
	return GetItem(ctx, r.DB, serial)
}
