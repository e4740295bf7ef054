package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erazemk/ecoconnect/internal/model"
)

const conversationColumns = `id, item_id, donor_id, participant_id, donor_unread, participant_unread,
	last_message_at, created_at`

func scanConversation(row rowScanner) (*model.Conversation, error) {
	c := &model.Conversation{}
	err := row.Scan(&c.ID, &c.ItemID, &c.DonorID, &c.ParticipantID, &c.DonorUnread,
		&c.ParticipantUnread, &c.LastMessageAt, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// FindOrCreateConversation returns the conversation for (item, donor,
// participant), creating it if it does not exist yet.
func FindOrCreateConversation(ctx context.Context, db *sql.DB, itemID, donorID, participantID int64) (*model.Conversation, error) {
	_, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO conversations (item_id, donor_id, participant_id) VALUES (?, ?, ?)`,
		itemID, donorID, participantID,
	)
	if err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}

	c, err := GetConversation(ctx, db, itemID, donorID, participantID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("conversation for item %d vanished after insert", itemID)
	}
	return c, nil
}

// GetConversation returns the conversation for the triple, or nil.
func GetConversation(ctx context.Context, db *sql.DB, itemID, donorID, participantID int64) (*model.Conversation, error) {
	c, err := scanConversation(db.QueryRowContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations
		 WHERE item_id = ? AND donor_id = ? AND participant_id = ?`,
		itemID, donorID, participantID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting conversation: %w", err)
	}
	return c, nil
}

// InsertMessage stores msg and updates its conversation's unread counter and
// last activity in one transaction.
func InsertMessage(ctx context.Context, db *sql.DB, msg *model.Message) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx,
		`INSERT INTO messages (conversation_id, item_id, sender_id, receiver_id, content, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ConversationID, msg.ItemID, msg.SenderID, msg.ReceiverID, msg.Content, now,
	)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting message id: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE conversations SET
		    donor_unread = donor_unread + (donor_id = ?),
		    participant_unread = participant_unread + (participant_id = ?),
		    last_message_at = ?
		 WHERE id = ?`,
		msg.ReceiverID, msg.ReceiverID, now, msg.ConversationID,
	)
	if err != nil {
		return fmt.Errorf("updating conversation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing message: %w", err)
	}

	msg.ID = id
	msg.CreatedAt = now
	msg.Read = false
	msg.ReadAt = nil
	return nil
}

// ListMessages returns a conversation's messages in send order.
func ListMessages(ctx context.Context, db *sql.DB, conversationID int64) ([]model.Message, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, conversation_id, item_id, sender_id, receiver_id, content, created_at, is_read, read_at
		 FROM messages WHERE conversation_id = ? ORDER BY id`, conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	msgs := []model.Message{}
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.ItemID, &m.SenderID, &m.ReceiverID,
			&m.Content, &m.CreatedAt, &m.Read, &m.ReadAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// MarkMessagesRead flags unread messages about itemID addressed to readerID
// and resets the reader's unread counters for that item. Messages already
// read keep their read_at.
func MarkMessagesRead(ctx context.Context, db *sql.DB, itemID, readerID int64, at time.Time) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE messages SET is_read = 1, read_at = ?
		 WHERE item_id = ? AND receiver_id = ? AND is_read = 0`,
		at, itemID, readerID,
	)
	if err != nil {
		return 0, fmt.Errorf("marking messages read: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting affected rows: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE conversations SET
		    donor_unread = CASE WHEN donor_id = ? THEN 0 ELSE donor_unread END,
		    participant_unread = CASE WHEN participant_id = ? THEN 0 ELSE participant_unread END
		 WHERE item_id = ?`,
		readerID, readerID, itemID,
	)
	if err != nil {
		return 0, fmt.Errorf("resetting unread counters: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing read marks: %w", err)
	}
	return int(n), nil
}

// UnreadCount counts unread messages about itemID addressed to userID.
func UnreadCount(ctx context.Context, db *sql.DB, itemID, userID int64) (int, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE item_id = ? AND receiver_id = ? AND is_read = 0`,
		itemID, userID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting unread messages: %w", err)
	}
	return n, nil
}

// ListConversations returns userID's inbox, most recent activity first.
func ListConversations(ctx context.Context, db *sql.DB, userID int64) ([]model.ConversationSummary, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT c.id, c.item_id, c.donor_id, c.participant_id, c.donor_unread, c.participant_unread,
		        c.last_message_at, c.created_at, i.title, o.id, o.name,
		        m.id, m.sender_id, m.receiver_id, m.content, m.created_at, m.is_read, m.read_at
		 FROM conversations c
		 JOIN items i ON i.id = c.item_id
		 JOIN users o ON o.id = CASE WHEN c.donor_id = ? THEN c.participant_id ELSE c.donor_id END
		 LEFT JOIN messages m ON m.id = (SELECT MAX(id) FROM messages WHERE conversation_id = c.id)
		 WHERE c.donor_id = ? OR c.participant_id = ?
		 ORDER BY COALESCE(m.id, 0) DESC, c.id DESC`,
		userID, userID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	summaries := []model.ConversationSummary{}
	for rows.Next() {
		var s model.ConversationSummary
		var msgID, senderID, receiverID sql.NullInt64
		var content sql.NullString
		var createdAt sql.NullTime
		var read sql.NullBool
		var readAt *time.Time
		if err := rows.Scan(&s.ID, &s.ItemID, &s.DonorID, &s.ParticipantID, &s.DonorUnread,
			&s.ParticipantUnread, &s.LastMessageAt, &s.CreatedAt, &s.ItemTitle, &s.OtherUserID,
			&s.OtherName, &msgID, &senderID, &receiverID, &content, &createdAt, &read, &readAt); err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		s.UnreadCount = s.Conversation.UnreadFor(userID)
		if msgID.Valid {
			s.LastMessage = &model.Message{
				ID:             msgID.Int64,
				ConversationID: s.ID,
				ItemID:         s.ItemID,
				SenderID:       senderID.Int64,
				ReceiverID:     receiverID.Int64,
				Content:        content.String,
				CreatedAt:      createdAt.Time,
				Read:           read.Bool,
				ReadAt:         readAt,
			}
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}
