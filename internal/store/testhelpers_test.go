package store

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/erazemk/ecoconnect/internal/model"
)

func mustUser(t *testing.T, database *sql.DB, name string) *model.User {
	t.Helper()
	u, err := CreateUser(context.Background(), database, name, fmt.Sprintf("%s@example.com", name), "hash")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return u
}

func mustItem(t *testing.T, database *sql.DB, donorID int64, title, category, condition string) *model.Item {
	t.Helper()
	item, err := CreateItem(context.Background(), database, donorID, model.ItemFields{
		Title:     title,
		Category:  category,
		Condition: condition,
	})
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	return item
}
