// Package messaging implements per-item conversations between a donor and
// the users interested in their item.
package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/erazemk/ecoconnect/internal/apperr"
	"github.com/erazemk/ecoconnect/internal/model"
)

// EventMessageNew is published to the receiver of a message.
const EventMessageNew = "message.new"

// Repository persists conversations and messages. Getters return (nil, nil)
// when the row does not exist.
type Repository interface {
	GetItem(ctx context.Context, id int64) (*model.Item, error)
	GetUser(ctx context.Context, id int64) (*model.User, error)

	// FindOrCreateConversation returns the conversation keyed by the triple,
	// creating it if needed.
	FindOrCreateConversation(ctx context.Context, itemID, donorID, participantID int64) (*model.Conversation, error)
	GetConversation(ctx context.Context, itemID, donorID, participantID int64) (*model.Conversation, error)

	// InsertMessage stores msg, bumps the receiver's unread counter and the
	// conversation's last activity. It fills msg.ID and msg.CreatedAt.
	InsertMessage(ctx context.Context, msg *model.Message) error
	ListMessages(ctx context.Context, conversationID int64) ([]model.Message, error)

	// MarkRead flags every unread message for itemID addressed to readerID as
	// read at the given time, resets the reader's counters and returns the
	// number of messages flipped.
	MarkRead(ctx context.Context, itemID, readerID int64, at time.Time) (int, error)
	UnreadCount(ctx context.Context, itemID, userID int64) (int, error)
	ListConversations(ctx context.Context, userID int64) ([]model.ConversationSummary, error)
}

// Notifier delivers live events to connected users.
type Notifier interface {
	Notify(userIDs []int64, kind string, payload any)
}

// Service validates and records messages.
type Service struct {
	repo   Repository
	notify Notifier
	now    func() time.Time
}

// NewService creates a Service. notifier may be nil.
func NewService(repo Repository, notifier Notifier) *Service {
	return &Service{repo: repo, notify: notifier, now: time.Now}
}

// Send records a message about itemID from senderID to receiverID.
func (s *Service) Send(ctx context.Context, itemID, senderID, receiverID int64, content string) (*model.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperr.Invalid("message content is required")
	}
	if utf8.RuneCountInString(content) > model.MaxMessageLength {
		return nil, apperr.Invalid("message must be at most %d characters", model.MaxMessageLength)
	}

	conv, err := s.Conversation(ctx, itemID, senderID, receiverID)
	if err != nil {
		return nil, err
	}

	msg := &model.Message{
		ConversationID: conv.ID,
		ItemID:         itemID,
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Content:        content,
	}
	if err := s.repo.InsertMessage(ctx, msg); err != nil {
		return nil, err
	}

	slog.Info("message sent", "item", itemID, "conversation", conv.ID, "sender", senderID, "receiver", receiverID)

	if s.notify != nil {
		s.notify.Notify([]int64{receiverID}, EventMessageNew, msg)
	}
	return msg, nil
}

// MarkRead marks every message about itemID addressed to readerID as read.
// Messages already read keep their first read time.
func (s *Service) MarkRead(ctx context.Context, itemID, readerID int64) (int, error) {
	if err := s.requireItem(ctx, itemID); err != nil {
		return 0, err
	}
	n, err := s.repo.MarkRead(ctx, itemID, readerID, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		slog.Debug("messages marked read", "item", itemID, "reader", readerID, "count", n)
	}
	return n, nil
}

// UnreadCountFor returns how many messages about itemID userID has not read.
func (s *Service) UnreadCountFor(ctx context.Context, itemID, userID int64) (int, error) {
	if err := s.requireItem(ctx, itemID); err != nil {
		return 0, err
	}
	return s.repo.UnreadCount(ctx, itemID, userID)
}

// Conversation returns the thread between the item's donor and the other
// user, creating it on first use. Exactly one of userA and userB must be the
// donor.
func (s *Service) Conversation(ctx context.Context, itemID, userA, userB int64) (*model.Conversation, error) {
	donorID, participantID, err := s.parties(ctx, itemID, userA, userB)
	if err != nil {
		return nil, err
	}
	for _, id := range []int64{userA, userB} {
		u, err := s.repo.GetUser(ctx, id)
		if err != nil {
			return nil, err
		}
		if u == nil {
			return nil, fmt.Errorf("user %d: %w", id, apperr.ErrNotFound)
		}
	}
	return s.repo.FindOrCreateConversation(ctx, itemID, donorID, participantID)
}

// Thread returns the messages exchanged between two users about an item in
// the order they were sent. A pair that never talked has an empty thread.
func (s *Service) Thread(ctx context.Context, itemID, userA, userB int64) ([]model.Message, error) {
	donorID, participantID, err := s.parties(ctx, itemID, userA, userB)
	if err != nil {
		return nil, err
	}
	conv, err := s.repo.GetConversation(ctx, itemID, donorID, participantID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return []model.Message{}, nil
	}
	return s.repo.ListMessages(ctx, conv.ID)
}

// Inbox lists userID's conversations, most recent activity first.
func (s *Service) Inbox(ctx context.Context, userID int64) ([]model.ConversationSummary, error) {
	return s.repo.ListConversations(ctx, userID)
}

// parties orders two users into (donor, participant) for itemID.
func (s *Service) parties(ctx context.Context, itemID, userA, userB int64) (int64, int64, error) {
	if userA == userB {
		return 0, 0, apperr.Invalid("sender and receiver must differ")
	}
	item, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		return 0, 0, err
	}
	if item == nil {
		return 0, 0, fmt.Errorf("item %d: %w", itemID, apperr.ErrNotFound)
	}
	switch item.DonorID {
	case userA:
		return userA, userB, nil
	case userB:
		return userB, userA, nil
	}
	return 0, 0, apperr.Invalid("one of the participants must be the item's donor")
}

func (s *Service) requireItem(ctx context.Context, itemID int64) error {
	item, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		return err
	}
	if item == nil {
		return fmt.Errorf("item %d: %w", itemID, apperr.ErrNotFound)
	}
	return nil
}
