package store

import (
	"context"
	"testing"

	"github.com/erazemk/ecoconnect/internal/db"
	"github.com/erazemk/ecoconnect/internal/model"
)

func TestCreateAndGetUser(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, err := CreateUser(ctx, database, "Ana", "ana@example.com", "hash123")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if user.Name != "Ana" {
		t.Errorf("expected name 'Ana', got %q", user.Name)
	}
	if user.HasAvatar {
		t.Error("new user must not have an avatar")
	}

	got, err := GetUserByEmail(ctx, database, "ana@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if got == nil || got.ID != user.ID {
		t.Fatalf("expected user %d, got %+v", user.ID, got)
	}
	if got.PasswordHash != "hash123" {
		t.Errorf("expected password hash 'hash123', got %q", got.PasswordHash)
	}

	missing, err := GetUserByEmail(ctx, database, "bob@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for missing user")
	}
}

func TestDuplicateEmailRejected(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	CreateUser(ctx, database, "Ana", "ana@example.com", "hash")
	if _, err := CreateUser(ctx, database, "Ana 2", "ana@example.com", "hash"); err == nil {
		t.Error("expected unique constraint error")
	}
}

func TestUpdateProfile(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user := mustUser(t, database, "ana")
	lat, lng := -8.05, -34.9
	err := UpdateProfile(ctx, database, user.ID, model.Profile{
		Name:      "Ana Souza",
		Email:     "ana.souza@example.com",
		City:      "Recife",
		State:     "PE",
		Latitude:  &lat,
		Longitude: &lng,
		Bio:       "Gosto de plantas",
	})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}

	got, _ := GetUser(ctx, database, user.ID)
	if got.Name != "Ana Souza" || got.City != "Recife" || got.Email != "ana.souza@example.com" {
		t.Errorf("profile not updated: %+v", got)
	}
	if got.Latitude == nil || *got.Latitude != lat {
		t.Errorf("expected latitude %v, got %v", lat, got.Latitude)
	}

	if err := UpdateProfile(ctx, database, user.ID, model.Profile{Name: "Ana", Email: "ana@example.com"}); err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	got, _ = GetUser(ctx, database, user.ID)
	if got.Latitude != nil {
		t.Errorf("expected cleared latitude, got %v", *got.Latitude)
	}
}

func TestUpdateUserPassword(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user := mustUser(t, database, "ana")
	UpdateUserPassword(ctx, database, user.ID, "newhash")

	got, _ := GetUser(ctx, database, user.ID)
	if got.PasswordHash != "newhash" {
		t.Errorf("expected password hash 'newhash', got %q", got.PasswordHash)
	}
}

func TestUserAvatar(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user := mustUser(t, database, "ana")
	data, _, err := GetUserAvatar(ctx, database, user.ID)
	if err != nil {
		t.Fatalf("GetUserAvatar: %v", err)
	}
	if data != nil {
		t.Error("expected no avatar")
	}

	if err := SetUserAvatar(ctx, database, user.ID, []byte("jpeg"), "image/jpeg"); err != nil {
		t.Fatalf("SetUserAvatar: %v", err)
	}
	data, mime, _ := GetUserAvatar(ctx, database, user.ID)
	if string(data) != "jpeg" || mime != "image/jpeg" {
		t.Errorf("unexpected avatar %q %q", data, mime)
	}

	got, _ := GetUser(ctx, database, user.ID)
	if !got.HasAvatar {
		t.Error("expected HasAvatar after upload")
	}
}

func TestCountUsers(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	mustUser(t, database, "a")
	mustUser(t, database, "b")

	n, err := CountUsers(ctx, database)
	if err != nil {
		t.Fatalf("CountUsers: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 users, got %d", n)
	}
}

func TestAddRating(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	donor := mustUser(t, database, "donor")
	rater := mustUser(t, database, "rater")
	item1 := mustItem(t, database, donor.ID, "Mesa", model.CategoryFurniture, model.ConditionGood)
	item2 := mustItem(t, database, donor.ID, "Sofa", model.CategoryFurniture, model.ConditionGood)

	ok, err := AddRating(ctx, database, model.Rating{ItemID: item1.ID, RaterID: rater.ID, RateeID: donor.ID, Score: 5})
	if err != nil || !ok {
		t.Fatalf("AddRating: ok=%v err=%v", ok, err)
	}
	ok, err = AddRating(ctx, database, model.Rating{ItemID: item1.ID, RaterID: rater.ID, RateeID: donor.ID, Score: 1})
	if err != nil {
		t.Fatalf("AddRating: %v", err)
	}
	if ok {
		t.Error("second rating for the same item must be ignored")
	}
	AddRating(ctx, database, model.Rating{ItemID: item2.ID, RaterID: rater.ID, RateeID: donor.ID, Score: 4})

	got, _ := GetUser(ctx, database, donor.ID)
	if got.TotalRatings != 2 {
		t.Errorf("expected 2 ratings, got %d", got.TotalRatings)
	}
	if got.Rating != 4.5 {
		t.Errorf("expected average 4.5, got %v", got.Rating)
	}
}
