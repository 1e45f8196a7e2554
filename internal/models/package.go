package models

import "time"

// PackageKind enumerates the sellable session bundles.
type PackageKind string

const (
	KindStarter5    PackageKind = "starter_5"
	KindStandard10  PackageKind = "standard_10"
	KindIntensive20 PackageKind = "intensive_20"
)

// PackageKindSessions maps each kind to its fixed total-session count.
var PackageKindSessions = map[PackageKind]int{
	KindStarter5:    5,
	KindStandard10:  10,
	KindIntensive20: 20,
}

// Package is a prepaid bundle of recurring-session credits.
// SessionsCompleted is always derived from booking rows at read time; there
// is no stored counter that could drift.
type Package struct {
	ID                int64       `json:"id"`
	ContactID         int64       `json:"contact_id"`
	Kind              PackageKind `json:"kind"`
	TotalSessions     int         `json:"total_sessions"`
	Price             *float64    `json:"price,omitempty"`
	AmountReceived    float64     `json:"amount_received"`
	StartDate         *time.Time  `json:"start_date,omitempty"`
	Active            bool        `json:"active"`
	SessionsCompleted int         `json:"sessions_completed"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// InitialPaymentNote is the synthetic note stamped on the single payment
// event produced when a package is created with a non-zero amount received.
const InitialPaymentNote = "initial payment at package creation"

// PaymentEvent is one row of a package's append-only payment log. The sum of
// event amounts is advisory bookkeeping; Package.AmountReceived stays
// authoritative.
type PaymentEvent struct {
	ID        int64     `json:"id"`
	PackageID int64     `json:"package_id"`
	Amount    float64   `json:"amount"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
