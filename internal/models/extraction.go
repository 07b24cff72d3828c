package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Parser names recorded on invoices and cache entries
const (
	ParserTemplate = "template"
	ParserAI       = "nearai"
)

// Confidence scores per extraction strategy
const (
	ConfidenceTemplateMatch = 0.95
	ConfidenceAIExtraction  = 0.95
)

// ParserVersion tags cache entries; bumping it invalidates all prior entries
// without touching them.
const ParserVersion = "1.0.0"

// DefaultCategory is used when a strategy does not classify the invoice
const DefaultCategory = "Other"

// InvoiceCategories is the closed set of categories a strategy may assign
var InvoiceCategories = []string{
	"Software/SaaS",
	"Office Supplies",
	"Marketing/Advertising",
	"Professional Services",
	"Travel & Entertainment",
	"Utilities",
	"Equipment/Hardware",
	"Insurance",
	"Rent/Facilities",
	"Payroll Services",
	"Shipping/Fulfillment",
	"Other",
}

// DateFormats lists the layouts tried when parsing extracted date strings,
// most common first.
var DateFormats = []string{
	"01/02/2006",
	"01-02-2006",
	"02/01/2006",
	"02-01-2006",
	"2006-01-02",
	"01/02/06",
	"02/01/06",
}

// ExtractedData is the canonical payload produced by every extraction
// strategy and serialized verbatim into the parse cache. All amounts are
// fixed-point decimals; they round-trip through JSON as quoted strings.
type ExtractedData struct {
	Vendor        string              `json:"vendor"`
	InvoiceNumber string              `json:"invoice_number,omitempty"`
	Date          string              `json:"date,omitempty"`
	TotalAmount   decimal.Decimal     `json:"total_amount"`
	Category      string              `json:"category,omitempty"`
	Purchaser     string              `json:"purchaser,omitempty"`
	IsRecurring   bool                `json:"is_recurring"`
	LineItems     []ExtractedLineItem `json:"line_items,omitempty"`
}

// ExtractedLineItem is a single line within an extraction payload
type ExtractedLineItem struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Total       decimal.Decimal `json:"total"`
}

// Valid reports whether the payload passes the minimum-field check: a
// non-empty vendor and a strictly positive total. This is a sanity check,
// not semantic verification.
func (d *ExtractedData) Valid() bool {
	return d != nil && d.Vendor != "" && d.TotalAmount.IsPositive()
}

// ParseDate converts the extracted date string into a time, trying the known
// layouts in order. The zero time and false are returned when nothing fits.
func (d *ExtractedData) ParseDate() (time.Time, bool) {
	if d.Date == "" {
		return time.Time{}, false
	}
	for _, layout := range DateFormats {
		if t, err := time.Parse(layout, d.Date); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseCacheEntry is an insert-once record keyed by content hash plus parser
// version. For a fixed key the entry is identical on every read.
type ParseCacheEntry struct {
	CacheKey   string
	Data       ExtractedData
	Confidence float64
	ParserUsed string
	Timestamp  time.Time
}

// CacheKey builds the composite parse-cache key
func CacheKey(contentHash, parserVersion string) string {
	return contentHash + "_" + parserVersion
}
