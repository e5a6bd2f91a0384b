package models

import (
	"time"

	"github.com/lib/pq"
)

// Listing is a rental advertisement owned by a landlord. IsPromoted is true
// iff PromotedUntil is set and in the future; the public listing query runs
// an expiry sweep before reading so stale promotions never surface.
type Listing struct {
	ID          int            `json:"id" db:"id"`
	LandlordID  int            `json:"landlordId" db:"landlord_id"`
	Title       string         `json:"title" db:"title"`
	Description string         `json:"description,omitempty" db:"description"`
	Price       float64        `json:"price" db:"price"`
	Location    string         `json:"location" db:"location"`
	Address     string         `json:"address,omitempty" db:"address"`
	Images      pq.StringArray `json:"images" db:"images"`
	Tags        pq.StringArray `json:"tags" db:"tags"`

	ReviewStatus string     `json:"reviewStatus" db:"review_status"`
	ReviewNote   string     `json:"reviewNote,omitempty" db:"review_note"`
	ReviewedAt   *time.Time `json:"reviewedAt,omitempty" db:"reviewed_at"`
	ReviewedBy   *int       `json:"reviewedBy,omitempty" db:"reviewed_by"`

	IsActive      bool       `json:"isActive" db:"is_active"`
	IsPromoted    bool       `json:"isPromoted" db:"is_promoted"`
	PromotedUntil *time.Time `json:"promotedUntil,omitempty" db:"promoted_until"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
