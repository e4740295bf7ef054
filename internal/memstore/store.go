// Package memstore is an in-memory implementation of the lifecycle and
// messaging repositories. It is used in tests and by tools that do not need
// durable storage.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/erazemk/ecoconnect/internal/model"
)

type convKey struct {
	itemID, donorID, participantID int64
}

// Store keeps users, items, conversations and messages in maps guarded by a
// single RWMutex.
type Store struct {
	mu sync.RWMutex

	nextID int64

	users         map[int64]*model.User
	items         map[int64]*model.Item
	conversations map[int64]*model.Conversation
	convByKey     map[convKey]int64
	lastMessage   map[int64]int64 // conversation ID -> latest message ID
	messages      []*model.Message
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		users:         make(map[int64]*model.User),
		items:         make(map[int64]*model.Item),
		conversations: make(map[int64]*model.Conversation),
		convByKey:     make(map[convKey]int64),
		lastMessage:   make(map[int64]int64),
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// AddUser stores a copy of u under a fresh ID and returns it.
func (s *Store) AddUser(u model.User) *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	u.ID = s.id()
	u.Email = model.NormalizeEmail(u.Email)
	now := time.Now()
	u.CreatedAt, u.UpdatedAt = now, now
	s.users[u.ID] = &u
	out := u
	return &out
}

// GetUser returns a user by ID.
func (s *Store) GetUser(_ context.Context, id int64) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	out := *u
	return &out, nil
}

// CreateItem stores a new available item.
func (s *Store) CreateItem(_ context.Context, donorID int64, f model.ItemFields) (*model.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[donorID]; !ok {
		return nil, fmt.Errorf("creating item: unknown donor %d", donorID)
	}
	now := time.Now()
	item := &model.Item{
		ID:          s.id(),
		Title:       f.Title,
		Description: f.Description,
		Category:    f.Category,
		Condition:   f.Condition,
		Location:    f.Location,
		Images:      []string{},
		DonorID:     donorID,
		Status:      model.ItemStatusAvailable,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.items[item.ID] = item
	return s.itemCopy(item), nil
}

// GetItem returns an item by ID.
func (s *Store) GetItem(_ context.Context, id int64) (*model.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return nil, nil
	}
	return s.itemCopy(item), nil
}

// ListItems returns every item in creation order.
func (s *Store) ListItems(_ context.Context) ([]model.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]model.Item, 0, len(s.items))
	for _, item := range s.items {
		items = append(items, *s.itemCopy(item))
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

// UpdateItemFields replaces the editable fields if the status still matches.
func (s *Store) UpdateItemFields(_ context.Context, id int64, f model.ItemFields, from string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok || item.Status != from {
		return false, nil
	}
	item.Title = f.Title
	item.Description = f.Description
	item.Category = f.Category
	item.Condition = f.Condition
	item.Location = f.Location
	item.UpdatedAt = time.Now()
	return true, nil
}

// UpdateItemState writes the lifecycle fields of next if the status still matches.
func (s *Store) UpdateItemState(_ context.Context, next *model.Item, from string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.writeState(next, from), nil
}

// CompleteDonation finalizes an item and bumps the donor and recipient counters.
func (s *Store) CompleteDonation(_ context.Context, next *model.Item, from string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.writeState(next, from) {
		return false, nil
	}
	if donor, ok := s.users[next.DonorID]; ok {
		donor.ItemsDonated++
	}
	if next.RecipientID != nil {
		if recipient, ok := s.users[*next.RecipientID]; ok {
			recipient.ItemsReceived++
		}
	}
	return true, nil
}

func (s *Store) writeState(next *model.Item, from string) bool {
	item, ok := s.items[next.ID]
	if !ok || item.Status != from {
		return false
	}
	item.Status = next.Status
	item.RecipientID = copyInt64(next.RecipientID)
	item.ReservedAt = copyTime(next.ReservedAt)
	item.DonatedAt = copyTime(next.DonatedAt)
	item.UpdatedAt = next.UpdatedAt
	return true
}

// DeleteItem removes an item and its conversations if the status still matches.
func (s *Store) DeleteItem(_ context.Context, id int64, from string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok || item.Status != from {
		return false, nil
	}
	delete(s.items, id)

	for key, convID := range s.convByKey {
		if key.itemID == id {
			delete(s.convByKey, key)
			delete(s.conversations, convID)
			delete(s.lastMessage, convID)
		}
	}
	kept := s.messages[:0]
	for _, m := range s.messages {
		if m.ItemID != id {
			kept = append(kept, m)
		}
	}
	s.messages = kept
	return true, nil
}

// FindOrCreateConversation returns the conversation for the triple, creating it once.
func (s *Store) FindOrCreateConversation(_ context.Context, itemID, donorID, participantID int64) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := convKey{itemID, donorID, participantID}
	if id, ok := s.convByKey[key]; ok {
		c := *s.conversations[id]
		return &c, nil
	}

	now := time.Now()
	c := &model.Conversation{
		ID:            s.id(),
		ItemID:        itemID,
		DonorID:       donorID,
		ParticipantID: participantID,
		LastMessageAt: now,
		CreatedAt:     now,
	}
	s.conversations[c.ID] = c
	s.convByKey[key] = c.ID
	out := *c
	return &out, nil
}

// GetConversation returns the conversation for the triple, if any.
func (s *Store) GetConversation(_ context.Context, itemID, donorID, participantID int64) (*model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.convByKey[convKey{itemID, donorID, participantID}]
	if !ok {
		return nil, nil
	}
	c := *s.conversations[id]
	return &c, nil
}

// InsertMessage appends a message to its conversation.
func (s *Store) InsertMessage(_ context.Context, msg *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[msg.ConversationID]
	if !ok {
		return fmt.Errorf("inserting message: unknown conversation %d", msg.ConversationID)
	}

	msg.ID = s.id()
	msg.CreatedAt = time.Now()
	msg.Read = false
	msg.ReadAt = nil

	stored := *msg
	s.messages = append(s.messages, &stored)
	s.lastMessage[conv.ID] = msg.ID
	conv.LastMessageAt = msg.CreatedAt
	if msg.ReceiverID == conv.DonorID {
		conv.DonorUnread++
	} else {
		conv.ParticipantUnread++
	}
	return nil
}

// ListMessages returns a conversation's messages in send order.
func (s *Store) ListMessages(_ context.Context, conversationID int64) ([]model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := []model.Message{}
	for _, m := range s.messages {
		if m.ConversationID == conversationID {
			msgs = append(msgs, copyMessage(m))
		}
	}
	return msgs, nil
}

// MarkRead flags unread messages about itemID addressed to readerID.
func (s *Store) MarkRead(_ context.Context, itemID, readerID int64, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, m := range s.messages {
		if m.ItemID == itemID && m.ReceiverID == readerID && !m.Read {
			t := at
			m.Read = true
			m.ReadAt = &t
			n++
		}
	}
	for _, c := range s.conversations {
		if c.ItemID != itemID {
			continue
		}
		switch readerID {
		case c.DonorID:
			c.DonorUnread = 0
		case c.ParticipantID:
			c.ParticipantUnread = 0
		}
	}
	return n, nil
}

// UnreadCount counts unread messages about itemID addressed to userID.
func (s *Store) UnreadCount(_ context.Context, itemID, userID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, m := range s.messages {
		if m.ItemID == itemID && m.ReceiverID == userID && !m.Read {
			n++
		}
	}
	return n, nil
}

// ListConversations returns userID's inbox, most recent activity first.
func (s *Store) ListConversations(_ context.Context, userID int64) ([]model.ConversationSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := []model.ConversationSummary{}
	for _, c := range s.conversations {
		if !c.Has(userID) {
			continue
		}
		sum := model.ConversationSummary{
			Conversation: *c,
			OtherUserID:  c.Other(userID),
			UnreadCount:  c.UnreadFor(userID),
		}
		if item, ok := s.items[c.ItemID]; ok {
			sum.ItemTitle = item.Title
		}
		if other, ok := s.users[sum.OtherUserID]; ok {
			sum.OtherName = other.Name
		}
		if last, ok := s.lastMessage[c.ID]; ok {
			for _, m := range s.messages {
				if m.ID == last {
					msg := copyMessage(m)
					sum.LastMessage = &msg
					break
				}
			}
		}
		summaries = append(summaries, sum)
	}

	sort.Slice(summaries, func(i, j int) bool {
		a, b := s.lastMessage[summaries[i].ID], s.lastMessage[summaries[j].ID]
		if a != b {
			return a > b
		}
		return summaries[i].ID > summaries[j].ID
	})
	return summaries, nil
}

func (s *Store) itemCopy(item *model.Item) *model.Item {
	out := *item
	out.Images = append([]string{}, item.Images...)
	out.RecipientID = copyInt64(item.RecipientID)
	out.ReservedAt = copyTime(item.ReservedAt)
	out.DonatedAt = copyTime(item.DonatedAt)
	if donor, ok := s.users[item.DonorID]; ok {
		out.DonorName = donor.Name
	}
	return &out
}

func copyMessage(m *model.Message) model.Message {
	out := *m
	out.ReadAt = copyTime(m.ReadAt)
	return out
}

func copyInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copyTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
