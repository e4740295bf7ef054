package model

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"
)

// User is a registered member who can donate and receive items.
type User struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"-"`
	Phone         string    `json:"phone,omitempty"`
	Address       string    `json:"address,omitempty"`
	City          string    `json:"city,omitempty"`
	State         string    `json:"state,omitempty"`
	ZipCode       string    `json:"zip_code,omitempty"`
	Latitude      *float64  `json:"latitude,omitempty"`
	Longitude     *float64  `json:"longitude,omitempty"`
	Bio           string    `json:"bio,omitempty"`
	HasAvatar     bool      `json:"has_avatar"`
	ItemsDonated  int       `json:"items_donated"`
	ItemsReceived int       `json:"items_received"`
	Rating        float64   `json:"rating"`
	TotalRatings  int       `json:"total_ratings"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// PublicProfile is the subset of a user visible to other members.
type PublicProfile struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	City          string    `json:"city,omitempty"`
	State         string    `json:"state,omitempty"`
	Bio           string    `json:"bio,omitempty"`
	HasAvatar     bool      `json:"has_avatar"`
	ItemsDonated  int       `json:"items_donated"`
	ItemsReceived int       `json:"items_received"`
	Rating        float64   `json:"rating"`
	TotalRatings  int       `json:"total_ratings"`
	CreatedAt     time.Time `json:"created_at"`
}

// Public strips contact details and credentials.
func (u *User) Public() PublicProfile {
	return PublicProfile{
		ID:            u.ID,
		Name:          u.Name,
		City:          u.City,
		State:         u.State,
		Bio:           u.Bio,
		HasAvatar:     u.HasAvatar,
		ItemsDonated:  u.ItemsDonated,
		ItemsReceived: u.ItemsReceived,
		Rating:        u.Rating,
		TotalRatings:  u.TotalRatings,
		CreatedAt:     u.CreatedAt,
	}
}

// Profile holds the user-editable profile fields.
type Profile struct {
	Name      string   `json:"name"`
	Email     string   `json:"email"`
	Phone     string   `json:"phone"`
	Address   string   `json:"address"`
	City      string   `json:"city"`
	State     string   `json:"state"`
	ZipCode   string   `json:"zip_code"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Bio       string   `json:"bio"`
}

// Profile field limits.
const (
	NameMinLen    = 2
	NameMaxLen    = 100
	BioMaxLen     = 500
	AddressMaxLen = 200
)

// Normalize trims text fields and lower-cases the email.
func (p *Profile) Normalize() {
	p.Name = strings.TrimSpace(p.Name)
	p.Email = NormalizeEmail(p.Email)
	p.Phone = strings.TrimSpace(p.Phone)
	p.Address = strings.TrimSpace(p.Address)
	p.City = strings.TrimSpace(p.City)
	p.State = strings.TrimSpace(p.State)
	p.ZipCode = strings.TrimSpace(p.ZipCode)
	p.Bio = strings.TrimSpace(p.Bio)
}

// Validate checks required fields and lengths.
func (p Profile) Validate() error {
	n := utf8.RuneCountInString(p.Name)
	if n < NameMinLen || n > NameMaxLen {
		return fmt.Errorf("name must be between %d and %d characters", NameMinLen, NameMaxLen)
	}
	if err := ValidateEmail(p.Email); err != nil {
		return err
	}
	if utf8.RuneCountInString(p.Address) > AddressMaxLen {
		return fmt.Errorf("address must be at most %d characters", AddressMaxLen)
	}
	if utf8.RuneCountInString(p.Bio) > BioMaxLen {
		return fmt.Errorf("bio must be at most %d characters", BioMaxLen)
	}
	if (p.Latitude == nil) != (p.Longitude == nil) {
		return fmt.Errorf("latitude and longitude must be set together")
	}
	if p.Latitude != nil && (*p.Latitude < -90 || *p.Latitude > 90 || *p.Longitude < -180 || *p.Longitude > 180) {
		return fmt.Errorf("coordinates out of range")
	}
	return nil
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks that email is a bare address.
func ValidateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("invalid email address")
	}
	return nil
}

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

// ValidatePassword enforces the password policy.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	if len(password) > 72 {
		return fmt.Errorf("password must be at most 72 bytes")
	}
	return nil
}

// Rating is a score left by a recipient for the donor of an item.
type Rating struct {
	ItemID    int64     `json:"item_id"`
	RaterID   int64     `json:"rater_id"`
	RateeID   int64     `json:"ratee_id"`
	Score     int       `json:"score"`
	CreatedAt time.Time `json:"created_at"`
}

// Score bounds for ratings.
const (
	MinScore = 1
	MaxScore = 5
)
