package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// UnknownVendor is the sentinel identity for blank or unreadable vendor
// names. It never gets a template and never participates in fuzzy matching.
const UnknownVendor = "Unknown Vendor"

// Vendor is a canonical vendor identity with running aggregates. TotalSpent
// and InvoiceCount only ever grow; the [FirstSeen, LastSeen] interval only
// ever widens.
type Vendor struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	NormalizedName string          `json:"normalized_name"`
	Category       string          `json:"category,omitempty"`
	TotalSpent     decimal.Decimal `json:"total_spent"`
	InvoiceCount   int64           `json:"invoice_count"`
	FirstSeen      time.Time       `json:"first_seen"`
	LastSeen       time.Time       `json:"last_seen"`
}
