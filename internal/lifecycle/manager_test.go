package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/ecoconnect/internal/apperr"
	"github.com/erazemk/ecoconnect/internal/memstore"
	"github.com/erazemk/ecoconnect/internal/model"
)

type event struct {
	users []int64
	kind  string
	data  StatusEvent
}

type recorder struct {
	mu     sync.Mutex
	events []event
}

func (r *recorder) Notify(userIDs []int64, kind string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event{users: userIDs, kind: kind, data: payload.(StatusEvent)})
}

type fixture struct {
	store     *memstore.Store
	manager   *Manager
	events    *recorder
	donor     *model.User
	recipient *model.User
	other     *model.User
}

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memstore.New()
	rec := &recorder{}
	m := NewManager(st, rec)
	m.now = func() time.Time { return fixedNow }
	return &fixture{
		store:     st,
		manager:   m,
		events:    rec,
		donor:     st.AddUser(model.User{Name: "Ana", Email: "ana@example.com"}),
		recipient: st.AddUser(model.User{Name: "Bruno", Email: "bruno@example.com"}),
		other:     st.AddUser(model.User{Name: "Carla", Email: "carla@example.com"}),
	}
}

func (f *fixture) newItem(t *testing.T) *model.Item {
	t.Helper()
	item, err := f.manager.Create(context.Background(), f.donor.ID, model.ItemFields{
		Title:     "Notebook Dell",
		Category:  model.CategoryElectronics,
		Condition: model.ConditionNew,
	})
	require.NoError(t, err)
	return item
}

// checkRecipientMatchesStatus asserts recipient is set exactly while reserved or donated.
func checkRecipientMatchesStatus(t *testing.T, item *model.Item) {
	t.Helper()
	if item.Status == model.ItemStatusReserved {
		assert.NotNil(t, item.RecipientID, "reserved item must have a recipient")
	}
	if item.Status == model.ItemStatusAvailable || item.Status == model.ItemStatusCancelled {
		assert.Nil(t, item.RecipientID, "%s item must not have a recipient", item.Status)
	}
}

func TestCreateValidates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.manager.Create(ctx, f.donor.ID, model.ItemFields{Title: "TV", Category: "armas", Condition: model.ConditionNew})
	assert.ErrorIs(t, err, apperr.ErrInvalid)

	_, err = f.manager.Create(ctx, 999, model.ItemFields{Title: "Mesa", Category: model.CategoryFurniture, Condition: model.ConditionGood})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	item, err := f.manager.Create(ctx, f.donor.ID, model.ItemFields{Title: "  Mesa  ", Category: model.CategoryFurniture, Condition: model.ConditionGood})
	require.NoError(t, err)
	assert.Equal(t, "Mesa", item.Title)
	assert.Equal(t, model.ItemStatusAvailable, item.Status)
	assert.Nil(t, item.RecipientID)
}

func TestReserveDonateCancelScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.newItem(t)

	reserved, err := f.manager.Reserve(ctx, item.ID, f.donor.ID, f.recipient.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ItemStatusReserved, reserved.Status)
	require.NotNil(t, reserved.RecipientID)
	assert.Equal(t, f.recipient.ID, *reserved.RecipientID)
	require.NotNil(t, reserved.ReservedAt)
	assert.True(t, fixedNow.Equal(*reserved.ReservedAt))

	donatedItem, err := f.manager.Donate(ctx, item.ID, f.donor.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ItemStatusDonated, donatedItem.Status)
	require.NotNil(t, donatedItem.DonatedAt)
	require.NotNil(t, donatedItem.RecipientID)

	donor, _ := f.store.GetUser(ctx, f.donor.ID)
	recipient, _ := f.store.GetUser(ctx, f.recipient.ID)
	assert.Equal(t, 1, donor.ItemsDonated)
	assert.Equal(t, 1, recipient.ItemsReceived)

	_, err = f.manager.Cancel(ctx, item.ID, f.donor.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrRuleViolation)
	assert.ErrorIs(t, err, apperr.ErrItemFinalized)

	after, _ := f.store.GetItem(ctx, item.ID)
	assert.Equal(t, model.ItemStatusDonated, after.Status)
}

func TestDonatedIsTerminal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.newItem(t)

	_, err := f.manager.Donate(ctx, item.ID, f.donor.ID)
	require.NoError(t, err)
	before, _ := f.store.GetItem(ctx, item.ID)

	attempts := map[string]func() error{
		"reserve": func() error {
			_, err := f.manager.Reserve(ctx, item.ID, f.donor.ID, f.recipient.ID)
			return err
		},
		"donate": func() error {
			_, err := f.manager.Donate(ctx, item.ID, f.donor.ID)
			return err
		},
		"available": func() error {
			_, err := f.manager.MarkAvailable(ctx, item.ID, f.donor.ID)
			return err
		},
		"cancel": func() error {
			_, err := f.manager.Cancel(ctx, item.ID, f.donor.ID)
			return err
		},
		"update": func() error {
			_, err := f.manager.Update(ctx, item.ID, f.donor.ID, model.ItemFields{Title: "Outro", Category: model.CategoryOther, Condition: model.ConditionGood})
			return err
		},
		"delete": func() error {
			return f.manager.Delete(ctx, item.ID, f.donor.ID)
		},
	}
	for name, attempt := range attempts {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, attempt(), apperr.ErrItemFinalized)
			after, _ := f.store.GetItem(ctx, item.ID)
			assert.Equal(t, before, after)
		})
	}

	donor, _ := f.store.GetUser(ctx, f.donor.ID)
	assert.Equal(t, 1, donor.ItemsDonated, "repeated donate must not bump counters")
}

func TestOwnershipIsCheckedBeforeState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.newItem(t)

	_, err := f.manager.Reserve(ctx, item.ID, f.other.ID, f.recipient.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	assert.NotErrorIs(t, err, apperr.ErrRuleViolation)

	_, err = f.manager.Cancel(ctx, item.ID, f.other.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	assert.ErrorIs(t, f.manager.Delete(ctx, item.ID, f.other.ID), apperr.ErrForbidden)

	_, err = f.manager.Donate(ctx, 12345, f.donor.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	unchanged, _ := f.store.GetItem(ctx, item.ID)
	assert.Equal(t, model.ItemStatusAvailable, unchanged.Status)
}

func TestReserveRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.newItem(t)

	_, err := f.manager.Reserve(ctx, item.ID, f.donor.ID, f.donor.ID)
	assert.ErrorIs(t, err, apperr.ErrRuleViolation)

	_, err = f.manager.Reserve(ctx, item.ID, f.donor.ID, 999)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.manager.Reserve(ctx, item.ID, f.donor.ID, f.recipient.ID)
	require.NoError(t, err)

	_, err = f.manager.Reserve(ctx, item.ID, f.donor.ID, f.other.ID)
	assert.ErrorIs(t, err, apperr.ErrRuleViolation, "reserved items cannot be reserved again")

	_, err = f.manager.Cancel(ctx, item.ID, f.donor.ID)
	require.NoError(t, err)
	_, err = f.manager.Reserve(ctx, item.ID, f.donor.ID, f.other.ID)
	assert.ErrorIs(t, err, apperr.ErrRuleViolation, "cancelled items cannot be reserved")
}

func TestRecipientTracksStatusAcrossTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.newItem(t)
	checkRecipientMatchesStatus(t, item)

	steps := []func() (*model.Item, error){
		func() (*model.Item, error) { return f.manager.Reserve(ctx, item.ID, f.donor.ID, f.recipient.ID) },
		func() (*model.Item, error) { return f.manager.MarkAvailable(ctx, item.ID, f.donor.ID) },
		func() (*model.Item, error) { return f.manager.Reserve(ctx, item.ID, f.donor.ID, f.other.ID) },
		func() (*model.Item, error) { return f.manager.Cancel(ctx, item.ID, f.donor.ID) },
		func() (*model.Item, error) { return f.manager.MarkAvailable(ctx, item.ID, f.donor.ID) },
		func() (*model.Item, error) { return f.manager.Reserve(ctx, item.ID, f.donor.ID, f.recipient.ID) },
		func() (*model.Item, error) { return f.manager.Donate(ctx, item.ID, f.donor.ID) },
	}
	for i, step := range steps {
		got, err := step()
		require.NoError(t, err, "step %d", i)
		checkRecipientMatchesStatus(t, got)
	}

	final, _ := f.store.GetItem(ctx, item.ID)
	assert.Equal(t, model.ItemStatusDonated, final.Status)
	require.NotNil(t, final.RecipientID)
	assert.Equal(t, f.recipient.ID, *final.RecipientID)
}

func TestMarkAvailableClearsTimestamps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.newItem(t)

	_, err := f.manager.Reserve(ctx, item.ID, f.donor.ID, f.recipient.ID)
	require.NoError(t, err)
	got, err := f.manager.MarkAvailable(ctx, item.ID, f.donor.ID)
	require.NoError(t, err)
	assert.Nil(t, got.RecipientID)
	assert.Nil(t, got.ReservedAt)
	assert.Nil(t, got.DonatedAt)
}

func TestDonateWithoutReservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.newItem(t)

	got, err := f.manager.Donate(ctx, item.ID, f.donor.ID)
	require.NoError(t, err)
	assert.Nil(t, got.RecipientID)

	donor, _ := f.store.GetUser(ctx, f.donor.ID)
	recipient, _ := f.store.GetUser(ctx, f.recipient.ID)
	assert.Equal(t, 1, donor.ItemsDonated)
	assert.Equal(t, 0, recipient.ItemsReceived)
}

func TestUpdateAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.newItem(t)

	_, err := f.manager.Update(ctx, item.ID, f.donor.ID, model.ItemFields{Title: "x", Category: model.CategoryOther, Condition: model.ConditionGood})
	assert.ErrorIs(t, err, apperr.ErrInvalid)

	updated, err := f.manager.Update(ctx, item.ID, f.donor.ID, model.ItemFields{
		Title:     "Smart TV",
		Category:  model.CategoryElectronics,
		Condition: model.ConditionLikeNew,
		Location:  "Recife",
	})
	require.NoError(t, err)
	assert.Equal(t, "Smart TV", updated.Title)
	assert.Equal(t, "Recife", updated.Location)

	require.NoError(t, f.manager.Delete(ctx, item.ID, f.donor.ID))
	gone, err := f.store.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestStatusEventsReachParties(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.newItem(t)

	_, err := f.manager.Reserve(ctx, item.ID, f.donor.ID, f.recipient.ID)
	require.NoError(t, err)
	_, err = f.manager.Cancel(ctx, item.ID, f.donor.ID)
	require.NoError(t, err)

	require.Len(t, f.events.events, 2)
	reserve := f.events.events[0]
	assert.Equal(t, EventItemStatus, reserve.kind)
	assert.ElementsMatch(t, []int64{f.donor.ID, f.recipient.ID}, reserve.users)
	assert.Equal(t, model.ItemStatusReserved, reserve.data.Status)
	assert.Equal(t, model.ItemStatusAvailable, reserve.data.Previous)

	// The former recipient learns about the cancellation.
	cancel := f.events.events[1]
	assert.ElementsMatch(t, []int64{f.donor.ID, f.recipient.ID}, cancel.users)
	assert.Nil(t, cancel.data.RecipientID)
}

// staleRepo reports every compare-and-set as lost.
type staleRepo struct {
	*memstore.Store
}

func (staleRepo) UpdateItemState(context.Context, *model.Item, string) (bool, error) {
	return false, nil
}

func TestLostRaceIsRuleViolation(t *testing.T) {
	st := memstore.New()
	donor := st.AddUser(model.User{Name: "Ana", Email: "ana@example.com"})
	m := NewManager(staleRepo{st}, nil)
	item, err := m.Create(context.Background(), donor.ID, model.ItemFields{Title: "Mesa", Category: model.CategoryFurniture, Condition: model.ConditionGood})
	require.NoError(t, err)

	_, err = m.Cancel(context.Background(), item.ID, donor.ID)
	assert.ErrorIs(t, err, apperr.ErrRuleViolation)
}

type failingRepo struct {
	*memstore.Store
}

var errDisk = errors.New("disk on fire")

func (failingRepo) CompleteDonation(context.Context, *model.Item, string) (bool, error) {
	return false, errDisk
}

func TestStorageErrorsPropagate(t *testing.T) {
	st := memstore.New()
	donor := st.AddUser(model.User{Name: "Ana", Email: "ana@example.com"})
	m := NewManager(failingRepo{st}, nil)
	item, err := m.Create(context.Background(), donor.ID, model.ItemFields{Title: "Mesa", Category: model.CategoryFurniture, Condition: model.ConditionGood})
	require.NoError(t, err)

	_, err = m.Donate(context.Background(), item.ID, donor.ID)
	assert.ErrorIs(t, err, errDisk)
}
