package model

import "time"

// Conversation is the thread between an item's donor and one interested user.
type Conversation struct {
	ID                int64     `json:"id"`
	ItemID            int64     `json:"item_id"`
	DonorID           int64     `json:"donor_id"`
	ParticipantID     int64     `json:"participant_id"`
	DonorUnread       int       `json:"-"`
	ParticipantUnread int       `json:"-"`
	LastMessageAt     time.Time `json:"last_message_at"`
	CreatedAt         time.Time `json:"created_at"`
}

// Has reports whether userID takes part in the conversation.
func (c *Conversation) Has(userID int64) bool {
	return c.DonorID == userID || c.ParticipantID == userID
}

// UnreadFor returns the unread counter kept for userID.
func (c *Conversation) UnreadFor(userID int64) int {
	switch userID {
	case c.DonorID:
		return c.DonorUnread
	case c.ParticipantID:
		return c.ParticipantUnread
	}
	return 0
}

// Other returns the counterpart of userID.
func (c *Conversation) Other(userID int64) int64 {
	if userID == c.DonorID {
		return c.ParticipantID
	}
	return c.DonorID
}

// Message is a single chat message inside a conversation.
type Message struct {
	ID             int64      `json:"id"`
	ConversationID int64      `json:"conversation_id"`
	ItemID         int64      `json:"item_id"`
	SenderID       int64      `json:"sender_id"`
	ReceiverID     int64      `json:"receiver_id"`
	Content        string     `json:"content"`
	CreatedAt      time.Time  `json:"created_at"`
	Read           bool       `json:"read"`
	ReadAt         *time.Time `json:"read_at"`
}

// MaxMessageLength bounds message content, in characters.
const MaxMessageLength = 1000

// ConversationSummary is an inbox entry for one user.
type ConversationSummary struct {
	Conversation
	ItemTitle   string   `json:"item_title"`
	OtherUserID int64    `json:"other_user_id"`
	OtherName   string   `json:"other_name"`
	LastMessage *Message `json:"last_message,omitempty"`
	UnreadCount int      `json:"unread_count"`
}
