package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/erazemk/ecoconnect/internal/model"
)

const itemColumns = `i.id, i.title, i.description, i.category, i.condition, i.location, i.donor_id,
	i.recipient_id, i.status, i.views, i.created_at, i.updated_at, i.reserved_at, i.donated_at, u.name`

const itemFrom = ` FROM items i JOIN users u ON u.id = i.donor_id`

func scanItem(row rowScanner) (*model.Item, error) {
	item := &model.Item{Images: []string{}}
	err := row.Scan(&item.ID, &item.Title, &item.Description, &item.Category, &item.Condition,
		&item.Location, &item.DonorID, &item.RecipientID, &item.Status, &item.Views,
		&item.CreatedAt, &item.UpdatedAt, &item.ReservedAt, &item.DonatedAt, &item.DonorName)
	if err != nil {
		return nil, err
	}
	return item, nil
}

// CreateItem creates a new available item.
func CreateItem(ctx context.Context, db *sql.DB, donorID int64, f model.ItemFields) (*model.Item, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO items (title, description, category, condition, location, donor_id)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		f.Title, f.Description, f.Category, f.Condition, f.Location, donorID,
	)
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting item id: %w", err)
	}

	return GetItem(ctx, db, id)
}

// GetItem returns an item by ID, including its image paths.
func GetItem(ctx context.Context, db *sql.DB, id int64) (*model.Item, error) {
	item, err := scanItem(db.QueryRowContext(ctx,
		`SELECT `+itemColumns+itemFrom+` WHERE i.id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}

	ids, err := ListItemImageIDs(ctx, db, id)
	if err != nil {
		return nil, err
	}
	for _, imageID := range ids {
		item.Images = append(item.Images, model.ImagePath(id, imageID))
	}
	return item, nil
}

// ListItems returns one page of items matching f, newest first, and the total
// number of matches.
func ListItems(ctx context.Context, db *sql.DB, f model.ItemFilter) ([]model.Item, int, error) {
	var where []string
	var args []any

	if f.Status != "" {
		where = append(where, "i.status = ?")
		args = append(args, f.Status)
	}
	if f.Category != "" {
		where = append(where, "i.category = ?")
		args = append(args, f.Category)
	}
	if f.Condition != "" {
		where = append(where, "i.condition = ?")
		args = append(args, f.Condition)
	}
	if f.DonorID != 0 {
		where = append(where, "i.donor_id = ?")
		args = append(args, f.DonorID)
	}
	if f.Search != "" {
		where = append(where, `(i.title LIKE ? ESCAPE '\' OR i.description LIKE ? ESCAPE '\')`)
		pattern := "%" + escapeLike(f.Search) + "%"
		args = append(args, pattern, pattern)
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*)`+itemFrom+clause, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("counting items: %w", err)
	}

	query := `SELECT ` + itemColumns + itemFrom + clause + ` ORDER BY i.created_at DESC, i.id DESC`
	if f.Limit > 0 {
		page := max(f.Page, 1)
		query += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, (page-1)*f.Limit)
	}

	items, err := queryItems(ctx, db, query, args...)
	if err != nil {
		return nil, 0, err
	}
	if err := attachImages(ctx, db, items); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ListAllItems returns every item in creation order, without images.
func ListAllItems(ctx context.Context, db *sql.DB) ([]model.Item, error) {
	return queryItems(ctx, db, `SELECT `+itemColumns+itemFrom+` ORDER BY i.id`)
}

func queryItems(ctx context.Context, db *sql.DB, query string, args ...any) ([]model.Item, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	items := []model.Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// IncrementItemViews bumps an item's view counter.
func IncrementItemViews(ctx context.Context, db *sql.DB, id int64) error {
	_, err := db.ExecContext(ctx, `UPDATE items SET views = views + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("incrementing item views: %w", err)
	}
	return nil
}

// UpdateItemFields replaces an item's editable fields while its status is still from.
func UpdateItemFields(ctx context.Context, db *sql.DB, id int64, f model.ItemFields, from string) (bool, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE items SET title = ?, description = ?, category = ?, condition = ?, location = ?,
		        updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status = ?`,
		f.Title, f.Description, f.Category, f.Condition, f.Location, id, from,
	)
	if err != nil {
		return false, fmt.Errorf("updating item: %w", err)
	}
	return applied(result)
}

// UpdateItemState writes an item's lifecycle fields while its status is still from.
func UpdateItemState(ctx context.Context, db *sql.DB, item *model.Item, from string) (bool, error) {
	result, err := db.ExecContext(ctx, updateStateSQL, stateArgs(item, from)...)
	if err != nil {
		return false, fmt.Errorf("updating item state: %w", err)
	}
	return applied(result)
}

// CompleteDonation marks an item donated and bumps the donor's and recipient's
// counters in one transaction.
func CompleteDonation(ctx context.Context, db *sql.DB, item *model.Item, from string) (bool, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, updateStateSQL, stateArgs(item, from)...)
	if err != nil {
		return false, fmt.Errorf("updating item state: %w", err)
	}
	if ok, err := applied(result); !ok || err != nil {
		return false, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET items_donated = items_donated + 1 WHERE id = ?`, item.DonorID,
	); err != nil {
		return false, fmt.Errorf("updating donor counter: %w", err)
	}
	if item.RecipientID != nil {
		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET items_received = items_received + 1 WHERE id = ?`, *item.RecipientID,
		); err != nil {
			return false, fmt.Errorf("updating recipient counter: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing donation: %w", err)
	}
	return true, nil
}

// DeleteItem permanently deletes an item while its status is still from.
// Images, conversations and messages go with it.
func DeleteItem(ctx context.Context, db *sql.DB, id int64, from string) (bool, error) {
	result, err := db.ExecContext(ctx, `DELETE FROM items WHERE id = ? AND status = ?`, id, from)
	if err != nil {
		return false, fmt.Errorf("deleting item: %w", err)
	}
	return applied(result)
}

const updateStateSQL = `UPDATE items SET status = ?, recipient_id = ?, reserved_at = ?, donated_at = ?, updated_at = ?
	WHERE id = ? AND status = ?`

func stateArgs(item *model.Item, from string) []any {
	return []any{item.Status, nullable(item.RecipientID), nullable(item.ReservedAt),
		nullable(item.DonatedAt), item.UpdatedAt, item.ID, from}
}

func applied(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("getting affected rows: %w", err)
	}
	return n > 0, nil
}

// nullable turns a nil pointer into SQL NULL.
func nullable[T any](v *T) any {
	if v == nil {
		return nil
	}
	return *v
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
