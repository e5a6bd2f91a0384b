package models

import (
	"time"
)

// Review statuses shared by leads and listings. A resource may only be
// monetized (unlocked, promoted) once it is approved.
const (
	ReviewPending  = "pending"
	ReviewApproved = "approved"
	ReviewRejected = "rejected"
)

// Lead is a tenant contact request. The contact fields (wechat, phone,
// email) are the paid asset: they are redacted for every landlord that has
// not unlocked the lead.
type Lead struct {
	ID          int        `json:"id" db:"id"`
	ListingID   *int       `json:"listingId,omitempty" db:"listing_id"`
	Requirement string     `json:"requirement" db:"requirement"`
	Budget      string     `json:"budget,omitempty" db:"budget"`
	MoveInDate  *time.Time `json:"moveInDate,omitempty" db:"move_in_date"`
	WechatID    string     `json:"wechatId" db:"wechat_id"`
	Phone       string     `json:"phone,omitempty" db:"phone"`
	Email       string     `json:"email,omitempty" db:"email"`

	ReviewStatus string     `json:"reviewStatus" db:"review_status"`
	ReviewNote   string     `json:"reviewNote,omitempty" db:"review_note"`
	ReviewedAt   *time.Time `json:"reviewedAt,omitempty" db:"reviewed_at"`
	ReviewedBy   *int       `json:"reviewedBy,omitempty" db:"reviewed_by"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// IsUnlocked is computed per viewing landlord, not stored.
	IsUnlocked bool `json:"isUnlocked" db:"-"`
}

// RedactedMarker replaces contact fields for landlords that have not paid
// to unlock a lead.
const RedactedMarker = "***付费查看***"

// Redact blanks the contact fields for a non-unlocking viewer.
func (l *Lead) Redact() {
	l.WechatID = RedactedMarker
	if l.Phone != "" {
		l.Phone = RedactedMarker
	}
	if l.Email != "" {
		l.Email = RedactedMarker
	}
}
