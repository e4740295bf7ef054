package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/ecoconnect/internal/model"
)

const userColumns = `id, name, email, password_hash, phone, address, city, state, zip_code,
	latitude, longitude, bio, avatar IS NOT NULL, items_donated, items_received,
	rating_sum, total_ratings, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	u := &model.User{}
	var ratingSum int
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Phone, &u.Address, &u.City,
		&u.State, &u.ZipCode, &u.Latitude, &u.Longitude, &u.Bio, &u.HasAvatar,
		&u.ItemsDonated, &u.ItemsReceived, &ratingSum, &u.TotalRatings, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if u.TotalRatings > 0 {
		u.Rating = float64(ratingSum) / float64(u.TotalRatings)
	}
	return u, nil
}

// CreateUser creates a new user. The email must already be normalized.
func CreateUser(ctx context.Context, db *sql.DB, name, email, passwordHash string) (*model.User, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO users (name, email, password_hash) VALUES (?, ?, ?)`,
		name, email, passwordHash,
	)
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting user id: %w", err)
	}

	return GetUser(ctx, db, id)
}

// GetUser returns a user by ID.
func GetUser(ctx context.Context, db *sql.DB, id int64) (*model.User, error) {
	u, err := scanUser(db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return u, nil
}

// GetUserByEmail returns a user by normalized email.
func GetUserByEmail(ctx context.Context, db *sql.DB, email string) (*model.User, error) {
	u, err := scanUser(db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by email: %w", err)
	}
	return u, nil
}

// CountUsers returns the number of registered users.
func CountUsers(ctx context.Context, db *sql.DB) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return n, nil
}

// UpdateProfile replaces a user's editable profile fields.
func UpdateProfile(ctx context.Context, db *sql.DB, id int64, p model.Profile) error {
	_, err := db.ExecContext(ctx,
		`UPDATE users SET name = ?, email = ?, phone = ?, address = ?, city = ?, state = ?,
		        zip_code = ?, latitude = ?, longitude = ?, bio = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		p.Name, p.Email, p.Phone, p.Address, p.City, p.State, p.ZipCode, nullable(p.Latitude), nullable(p.Longitude), p.Bio, id,
	)
	if err != nil {
		return fmt.Errorf("updating profile: %w", err)
	}
	return nil
}

// UpdateUserPassword updates a user's password hash.
func UpdateUserPassword(ctx context.Context, db *sql.DB, id int64, passwordHash string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		passwordHash, id,
	)
	if err != nil {
		return fmt.Errorf("updating user password: %w", err)
	}
	return nil
}

// SetUserAvatar sets a user's avatar image.
func SetUserAvatar(ctx context.Context, db *sql.DB, id int64, image []byte, mime string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE users SET avatar = ?, avatar_mime = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		image, mime, id,
	)
	if err != nil {
		return fmt.Errorf("setting user avatar: %w", err)
	}
	return nil
}

// GetUserAvatar returns a user's avatar and its MIME type. Data is nil when
// the user has none.
func GetUserAvatar(ctx context.Context, db *sql.DB, id int64) ([]byte, string, error) {
	var image []byte
	var mime sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT avatar, avatar_mime FROM users WHERE id = ?`, id,
	).Scan(&image, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting user avatar: %w", err)
	}
	return image, mime.String, nil
}
