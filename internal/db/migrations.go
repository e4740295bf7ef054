package db

import (
	"database/sql"
	"fmt"
)

// migrations is a list of SQL statements applied in order after schema creation.
// Each migration must be idempotent. Append new migrations at the end.
var migrations = []string{
	// Migration 1: Indexes backing the listing filters and the newest-first sort.
	`CREATE INDEX IF NOT EXISTS idx_items_status_category ON items(status, category)`,
	`CREATE INDEX IF NOT EXISTS idx_items_donor ON items(donor_id)`,
	`CREATE INDEX IF NOT EXISTS idx_items_created ON items(created_at DESC)`,

	// Migration 2: Thread lookups by conversation and inbox ordering.
	`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, id)`,
	`CREATE INDEX IF NOT EXISTS idx_conversations_donor ON conversations(donor_id, last_message_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_conversations_participant ON conversations(participant_id, last_message_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_item_images_item ON item_images(item_id, id)`,
}

// Migrate ensures the schema exists and runs the migrations.
func Migrate(db *sql.DB) error {
	if err := EnsureSchema(db); err != nil {
		return err
	}

	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
	}

	return nil
}
