package models

import (
	"time"
)

// Landlord roles
const (
	RoleLandlord = "landlord"
	RoleAdmin    = "admin"
)

// Landlord is a marketplace account holding a prepaid EUR balance. The
// balance is stored in cents and is modified only through ledger-backed
// operations in the wallet service.
type Landlord struct {
	ID                  int        `json:"id" db:"id"`
	Role                string     `json:"role" db:"role"`
	Email               string     `json:"email" db:"email"`
	Name                string     `json:"name" db:"name"`
	WechatID            string     `json:"wechatId" db:"wechat_id"`
	BalanceCents        int64      `json:"balanceCents" db:"balance_cents"`
	Membership          string     `json:"membership" db:"membership"`
	MembershipExpiresAt *time.Time `json:"membershipExpiresAt,omitempty" db:"membership_expires_at"`
	CreatedAt           time.Time  `json:"createdAt" db:"created_at"`
}

// Balance returns the balance in euros for API responses.
func (l *Landlord) Balance() float64 {
	return float64(l.BalanceCents) / 100
}
