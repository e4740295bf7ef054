package model

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Item is a single object listed for donation by its donor.
type Item struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	Condition   string     `json:"condition"`
	Images      []string   `json:"images"`
	Location    string     `json:"location,omitempty"`
	DonorID     int64      `json:"donor_id"`
	RecipientID *int64     `json:"recipient_id"`
	Status      string     `json:"status"`
	Views       int        `json:"views"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ReservedAt  *time.Time `json:"reserved_at"`
	DonatedAt   *time.Time `json:"donated_at"`

	// Joined fields (not always populated).
	DonorName string `json:"donor_name,omitempty"`
}

// Item statuses.
const (
	ItemStatusAvailable = "available"
	ItemStatusReserved  = "reserved"
	ItemStatusDonated   = "donated"
	ItemStatusCancelled = "cancelled"
)

// Item categories.
const (
	CategoryElectronics = "eletronicos"
	CategoryFurniture   = "moveis"
	CategoryClothing    = "roupas"
	CategoryBooks       = "livros"
	CategoryToys        = "brinquedos"
	CategorySports      = "esportes"
	CategoryHome        = "casa"
	CategoryGardening   = "jardinagem"
	CategoryVehicles    = "automoveis"
	CategoryOther       = "outros"
)

// Item conditions, best to worst.
const (
	ConditionNew         = "novo"
	ConditionLikeNew     = "como-novo"
	ConditionGood        = "bom"
	ConditionFair        = "regular"
	ConditionNeedsRepair = "precisa-reparo"
)

// Categories lists every accepted category in display order.
var Categories = []string{
	CategoryElectronics,
	CategoryFurniture,
	CategoryClothing,
	CategoryBooks,
	CategoryToys,
	CategorySports,
	CategoryHome,
	CategoryGardening,
	CategoryVehicles,
	CategoryOther,
}

// Conditions lists every accepted condition from best to worst.
var Conditions = []string{
	ConditionNew,
	ConditionLikeNew,
	ConditionGood,
	ConditionFair,
	ConditionNeedsRepair,
}

// Field limits for item listings.
const (
	TitleMinLen       = 3
	TitleMaxLen       = 100
	DescriptionMaxLen = 1000
	LocationMaxLen    = 100
	MaxItemImages     = 5
)

// ValidCategory reports whether c is one of the accepted categories.
func ValidCategory(c string) bool {
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}

// ValidCondition reports whether c is one of the accepted conditions.
func ValidCondition(c string) bool {
	for _, v := range Conditions {
		if v == c {
			return true
		}
	}
	return false
}

// ValidItemStatus reports whether s is a known lifecycle status.
func ValidItemStatus(s string) bool {
	switch s {
	case ItemStatusAvailable, ItemStatusReserved, ItemStatusDonated, ItemStatusCancelled:
		return true
	}
	return false
}

// ItemFields holds the user-editable attributes of an item.
type ItemFields struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Condition   string `json:"condition"`
	Location    string `json:"location"`
}

// Normalize trims surrounding whitespace from all text fields.
func (f *ItemFields) Normalize() {
	f.Title = strings.TrimSpace(f.Title)
	f.Description = strings.TrimSpace(f.Description)
	f.Category = strings.TrimSpace(f.Category)
	f.Condition = strings.TrimSpace(f.Condition)
	f.Location = strings.TrimSpace(f.Location)
}

// Validate checks lengths and enumerations.
func (f ItemFields) Validate() error {
	n := utf8.RuneCountInString(f.Title)
	if n < TitleMinLen || n > TitleMaxLen {
		return fmt.Errorf("title must be between %d and %d characters", TitleMinLen, TitleMaxLen)
	}
	if utf8.RuneCountInString(f.Description) > DescriptionMaxLen {
		return fmt.Errorf("description must be at most %d characters", DescriptionMaxLen)
	}
	if !ValidCategory(f.Category) {
		return fmt.Errorf("invalid category %q", f.Category)
	}
	if !ValidCondition(f.Condition) {
		return fmt.Errorf("invalid condition %q", f.Condition)
	}
	if utf8.RuneCountInString(f.Location) > LocationMaxLen {
		return fmt.Errorf("location must be at most %d characters", LocationMaxLen)
	}
	return nil
}

// ItemImage is a stored photo attached to an item.
type ItemImage struct {
	ID        int64     `json:"id"`
	ItemID    int64     `json:"item_id"`
	MIME      string    `json:"mime"`
	CreatedAt time.Time `json:"created_at"`
}

// ImagePath returns the API path that serves an item image.
func ImagePath(itemID, imageID int64) string {
	return fmt.Sprintf("/api/items/%d/images/%d", itemID, imageID)
}

// ItemFilter selects items for listing.
type ItemFilter struct {
	Category  string
	Condition string
	Search    string
	Status    string
	DonorID   int64
	Page      int
	Limit     int
}

// Pagination describes one page of a listing.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// NewPagination computes the page count for total results.
func NewPagination(page, limit, total int) Pagination {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Pagination{Page: page, Limit: limit, Total: total, Pages: pages}
}
