// Package lifecycle owns the status transitions of donated items and the
// rules that make them legal.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/erazemk/ecoconnect/internal/apperr"
	"github.com/erazemk/ecoconnect/internal/model"
)

// EventItemStatus is published to the donor and recipients after a transition.
const EventItemStatus = "item.status"

// Repository persists items for the Manager. Getters return (nil, nil) when
// the row does not exist. Mutations are applied only while the stored status
// still equals from and report whether a row was changed.
type Repository interface {
	GetItem(ctx context.Context, id int64) (*model.Item, error)
	GetUser(ctx context.Context, id int64) (*model.User, error)
	CreateItem(ctx context.Context, donorID int64, fields model.ItemFields) (*model.Item, error)
	UpdateItemFields(ctx context.Context, id int64, fields model.ItemFields, from string) (bool, error)
	UpdateItemState(ctx context.Context, item *model.Item, from string) (bool, error)
	CompleteDonation(ctx context.Context, item *model.Item, from string) (bool, error)
	DeleteItem(ctx context.Context, id int64, from string) (bool, error)
}

// Notifier delivers live events to connected users.
type Notifier interface {
	Notify(userIDs []int64, kind string, payload any)
}

// StatusEvent is the payload of EventItemStatus.
type StatusEvent struct {
	ItemID      int64  `json:"item_id"`
	Status      string `json:"status"`
	Previous    string `json:"previous"`
	RecipientID *int64 `json:"recipient_id"`
}

// Manager applies lifecycle transitions on behalf of an acting user.
type Manager struct {
	repo   Repository
	notify Notifier
	now    func() time.Time
}

// NewManager creates a Manager. notifier may be nil.
func NewManager(repo Repository, notifier Notifier) *Manager {
	return &Manager{repo: repo, notify: notifier, now: time.Now}
}

// Create lists a new available item for donorID.
func (m *Manager) Create(ctx context.Context, donorID int64, fields model.ItemFields) (*model.Item, error) {
	fields.Normalize()
	if err := fields.Validate(); err != nil {
		return nil, apperr.Invalid("%v", err)
	}

	donor, err := m.repo.GetUser(ctx, donorID)
	if err != nil {
		return nil, err
	}
	if donor == nil {
		return nil, fmt.Errorf("donor %d: %w", donorID, apperr.ErrNotFound)
	}

	item, err := m.repo.CreateItem(ctx, donorID, fields)
	if err != nil {
		return nil, err
	}
	slog.Info("item created", "item", item.ID, "donor", donorID, "category", item.Category)
	return item, nil
}

// Update replaces the editable fields of an item that is not yet donated.
func (m *Manager) Update(ctx context.Context, itemID, actorID int64, fields model.ItemFields) (*model.Item, error) {
	item, err := m.owned(ctx, itemID, actorID)
	if err != nil {
		return nil, err
	}

	fields.Normalize()
	if err := fields.Validate(); err != nil {
		return nil, apperr.Invalid("%v", err)
	}

	ok, err := m.repo.UpdateItemFields(ctx, item.ID, fields, item.Status)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, changedConcurrently(item.ID)
	}
	return m.reload(ctx, item.ID)
}

// Reserve sets an available item aside for recipientID.
func (m *Manager) Reserve(ctx context.Context, itemID, actorID, recipientID int64) (*model.Item, error) {
	item, err := m.owned(ctx, itemID, actorID)
	if err != nil {
		return nil, err
	}
	if item.Status != model.ItemStatusAvailable {
		return nil, apperr.Violation("cannot reserve a %s item", item.Status)
	}
	if recipientID == item.DonorID {
		return nil, apperr.Violation("donor cannot reserve their own item")
	}

	recipient, err := m.repo.GetUser(ctx, recipientID)
	if err != nil {
		return nil, err
	}
	if recipient == nil {
		return nil, fmt.Errorf("recipient %d: %w", recipientID, apperr.ErrNotFound)
	}

	now := m.now()
	next := *item
	next.Status = model.ItemStatusReserved
	next.RecipientID = &recipientID
	next.ReservedAt = &now
	next.DonatedAt = nil
	next.UpdatedAt = now

	return m.apply(ctx, item, &next, m.repo.UpdateItemState)
}

// Donate finalizes an item. The donor's counter always increases and the
// recipient's does when one is set.
func (m *Manager) Donate(ctx context.Context, itemID, actorID int64) (*model.Item, error) {
	item, err := m.owned(ctx, itemID, actorID)
	if err != nil {
		return nil, err
	}

	now := m.now()
	next := *item
	next.Status = model.ItemStatusDonated
	next.DonatedAt = &now
	next.UpdatedAt = now

	return m.apply(ctx, item, &next, m.repo.CompleteDonation)
}

// MarkAvailable returns an item to the listing and clears any reservation.
func (m *Manager) MarkAvailable(ctx context.Context, itemID, actorID int64) (*model.Item, error) {
	item, err := m.owned(ctx, itemID, actorID)
	if err != nil {
		return nil, err
	}

	next := *item
	next.Status = model.ItemStatusAvailable
	next.RecipientID = nil
	next.ReservedAt = nil
	next.DonatedAt = nil
	next.UpdatedAt = m.now()

	return m.apply(ctx, item, &next, m.repo.UpdateItemState)
}

// Cancel withdraws an item from donation.
func (m *Manager) Cancel(ctx context.Context, itemID, actorID int64) (*model.Item, error) {
	item, err := m.owned(ctx, itemID, actorID)
	if err != nil {
		return nil, err
	}

	next := *item
	next.Status = model.ItemStatusCancelled
	next.RecipientID = nil
	next.ReservedAt = nil
	next.UpdatedAt = m.now()

	return m.apply(ctx, item, &next, m.repo.UpdateItemState)
}

// Delete permanently removes an item. Donated items are kept so that
// statistics and counters stay consistent.
func (m *Manager) Delete(ctx context.Context, itemID, actorID int64) error {
	item, err := m.owned(ctx, itemID, actorID)
	if err != nil {
		return err
	}

	ok, err := m.repo.DeleteItem(ctx, item.ID, item.Status)
	if err != nil {
		return err
	}
	if !ok {
		return changedConcurrently(item.ID)
	}
	slog.Info("item deleted", "item", item.ID, "donor", actorID)
	return nil
}

// owned loads an item for mutation by actorID.
func (m *Manager) owned(ctx context.Context, itemID, actorID int64) (*model.Item, error) {
	item, err := m.repo.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("item %d: %w", itemID, apperr.ErrNotFound)
	}
	if item.DonorID != actorID {
		return nil, fmt.Errorf("item %d: %w", itemID, apperr.ErrForbidden)
	}
	if item.Status == model.ItemStatusDonated {
		return nil, fmt.Errorf("item %d: %w", itemID, apperr.ErrItemFinalized)
	}
	return item, nil
}

type writeFunc func(ctx context.Context, item *model.Item, from string) (bool, error)

func (m *Manager) apply(ctx context.Context, prev, next *model.Item, write writeFunc) (*model.Item, error) {
	ok, err := write(ctx, next, prev.Status)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, changedConcurrently(prev.ID)
	}

	slog.Info("item status changed", "item", next.ID, "from", prev.Status, "to", next.Status)

	if m.notify != nil {
		m.notify.Notify(audience(prev, next), EventItemStatus, StatusEvent{
			ItemID:      next.ID,
			Status:      next.Status,
			Previous:    prev.Status,
			RecipientID: next.RecipientID,
		})
	}

	return m.reload(ctx, next.ID)
}

func (m *Manager) reload(ctx context.Context, id int64) (*model.Item, error) {
	item, err := m.repo.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("item %d: %w", id, apperr.ErrNotFound)
	}
	return item, nil
}

// audience is the donor plus the old and new recipients, without duplicates.
func audience(prev, next *model.Item) []int64 {
	ids := []int64{next.DonorID}
	for _, r := range []*int64{prev.RecipientID, next.RecipientID} {
		if r == nil {
			continue
		}
		dup := false
		for _, id := range ids {
			if id == *r {
				dup = true
			}
		}
		if !dup {
			ids = append(ids, *r)
		}
	}
	return ids
}

func changedConcurrently(id int64) error {
	return apperr.Violation("item %d was modified concurrently", id)
}
