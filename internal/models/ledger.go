package models

import (
	"time"
)

// Ledger entry kinds. Every balance mutation is traced by exactly one entry.
const (
	KindDeposit        = "deposit"
	KindUnlockLead     = "unlock_lead"
	KindPromoteListing = "promote_listing"
	KindMembership     = "membership"
)

// Ledger entry statuses. Transitions are forward-only:
// pending -> completed or pending -> failed.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// LedgerEntry is one audit record of a balance-affecting event. Amount is
// signed: positive for credits, negative for debits, in cents. The balance
// credit for a deposit is applied exactly when the entry transitions into
// completed, never on creation.
type LedgerEntry struct {
	ID          string    `json:"id" db:"id"`
	LandlordID  int       `json:"landlordId" db:"landlord_id"`
	AmountCents int64     `json:"amountCents" db:"amount_cents"`
	Currency    string    `json:"currency" db:"currency"`
	Kind        string    `json:"kind" db:"kind"`
	Status      string    `json:"status" db:"status"`
	TargetID    *int      `json:"targetId,omitempty" db:"target_id"`
	ExternalID  string    `json:"externalId,omitempty" db:"external_id"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}
