package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/erazemk/ecoconnect/internal/model"
)

// AddItemImage stores an image for an item unless it already has limit
// images. It returns the new image ID, or 0 when the limit was reached.
func AddItemImage(ctx context.Context, db *sql.DB, itemID int64, data []byte, mime string, limit int) (int64, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO item_images (item_id, data, mime)
		 SELECT ?, ?, ? WHERE (SELECT COUNT(*) FROM item_images WHERE item_id = ?) < ?`,
		itemID, data, mime, itemID, limit,
	)
	if err != nil {
		return 0, fmt.Errorf("adding item image: %w", err)
	}
	if ok, err := applied(result); !ok || err != nil {
		return 0, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting image id: %w", err)
	}
	return id, nil
}

// GetItemImage returns an item image's data and MIME type.
func GetItemImage(ctx context.Context, db *sql.DB, itemID, imageID int64) ([]byte, string, error) {
	var data []byte
	var mime string
	err := db.QueryRowContext(ctx,
		`SELECT data, mime FROM item_images WHERE id = ? AND item_id = ?`, imageID, itemID,
	).Scan(&data, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting item image: %w", err)
	}
	return data, mime, nil
}

// DeleteItemImage removes an image and reports whether it existed.
func DeleteItemImage(ctx context.Context, db *sql.DB, itemID, imageID int64) (bool, error) {
	result, err := db.ExecContext(ctx,
		`DELETE FROM item_images WHERE id = ? AND item_id = ?`, imageID, itemID,
	)
	if err != nil {
		return false, fmt.Errorf("deleting item image: %w", err)
	}
	return applied(result)
}

// ListItemImageIDs returns an item's image IDs in upload order.
func ListItemImageIDs(ctx context.Context, db *sql.DB, itemID int64) ([]int64, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id FROM item_images WHERE item_id = ? ORDER BY id`, itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing item images: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning image id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// attachImages fills in image paths for a page of items with one query.
func attachImages(ctx context.Context, db *sql.DB, items []model.Item) error {
	if len(items) == 0 {
		return nil
	}

	index := make(map[int64]int, len(items))
	args := make([]any, len(items))
	for i := range items {
		index[items[i].ID] = i
		args[i] = items[i].ID
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(items)), ",")

	rows, err := db.QueryContext(ctx,
		`SELECT item_id, id FROM item_images WHERE item_id IN (`+placeholders+`) ORDER BY id`, args...,
	)
	if err != nil {
		return fmt.Errorf("listing item images: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var itemID, imageID int64
		if err := rows.Scan(&itemID, &imageID); err != nil {
			return fmt.Errorf("scanning image id: %w", err)
		}
		i := index[itemID]
		items[i].Images = append(items[i].Images, model.ImagePath(itemID, imageID))
	}
	return rows.Err()
}
