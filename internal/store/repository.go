package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/erazemk/ecoconnect/internal/lifecycle"
	"github.com/erazemk/ecoconnect/internal/messaging"
	"github.com/erazemk/ecoconnect/internal/model"
)

var (
	_ lifecycle.Repository = (*Repository)(nil)
	_ messaging.Repository = (*Repository)(nil)
)

// Repository exposes the store functions as the lifecycle and messaging
// repositories.
type Repository struct {
	DB *sql.DB
}

// NewRepository wraps db.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{DB: db}
}

func (r *Repository) GetItem(ctx context.Context, id int64) (*model.Item, error) {
	return GetItem(ctx, r.DB, id)
}

func (r *Repository) GetUser(ctx context.Context, id int64) (*model.User, error) {
	return GetUser(ctx, r.DB, id)
}

func (r *Repository) CreateItem(ctx context.Context, donorID int64, f model.ItemFields) (*model.Item, error) {
	return CreateItem(ctx, r.DB, donorID, f)
}

func (r *Repository) UpdateItemFields(ctx context.Context, id int64, f model.ItemFields, from string) (bool, error) {
	return UpdateItemFields(ctx, r.DB, id, f, from)
}

func (r *Repository) UpdateItemState(ctx context.Context, item *model.Item, from string) (bool, error) {
	return UpdateItemState(ctx, r.DB, item, from)
}

func (r *Repository) CompleteDonation(ctx context.Context, item *model.Item, from string) (bool, error) {
	return CompleteDonation(ctx, r.DB, item, from)
}

func (r *Repository) DeleteItem(ctx context.Context, id int64, from string) (bool, error) {
	return DeleteItem(ctx, r.DB, id, from)
}

func (r *Repository) FindOrCreateConversation(ctx context.Context, itemID, donorID, participantID int64) (*model.Conversation, error) {
	return FindOrCreateConversation(ctx, r.DB, itemID, donorID, participantID)
}

func (r *Repository) GetConversation(ctx context.Context, itemID, donorID, participantID int64) (*model.Conversation, error) {
	return GetConversation(ctx, r.DB, itemID, donorID, participantID)
}

func (r *Repository) InsertMessage(ctx context.Context, msg *model.Message) error {
	return InsertMessage(ctx, r.DB, msg)
}

func (r *Repository) ListMessages(ctx context.Context, conversationID int64) ([]model.Message, error) {
	return ListMessages(ctx, r.DB, conversationID)
}

func (r *Repository) MarkRead(ctx context.Context, itemID, readerID int64, at time.Time) (int, error) {
	return MarkMessagesRead(ctx, r.DB, itemID, readerID, at)
}

func (r *Repository) UnreadCount(ctx context.Context, itemID, userID int64) (int, error) {
	return UnreadCount(ctx, r.DB, itemID, userID)
}

func (r *Repository) ListConversations(ctx context.Context, userID int64) ([]model.ConversationSummary, error) {
	return ListConversations(ctx, r.DB, userID)
}
