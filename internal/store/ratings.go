package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/ecoconnect/internal/model"
)

// AddRating records a rating for an item's donor and updates the donor's
// running average in the same transaction. It returns false if the item was
// already rated.
func AddRating(ctx context.Context, db *sql.DB, r model.Rating) (bool, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO ratings (item_id, rater_id, ratee_id, score) VALUES (?, ?, ?, ?)`,
		r.ItemID, r.RaterID, r.RateeID, r.Score,
	)
	if err != nil {
		return false, fmt.Errorf("inserting rating: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return false, nil
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE users SET rating_sum = rating_sum + ?, total_ratings = total_ratings + 1 WHERE id = ?`,
		r.Score, r.RateeID,
	)
	if err != nil {
		return false, fmt.Errorf("updating user rating: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing rating: %w", err)
	}
	return true, nil
}
