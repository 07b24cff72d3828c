package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Invoice is a persisted extraction result. Line items belong exclusively to
// their invoice and are removed with it.
type Invoice struct {
	ID               string          `json:"id"`
	VendorName       string          `json:"vendor_name"`
	VendorNormalized string          `json:"vendor_normalized"`
	InvoiceNumber    string          `json:"invoice_number,omitempty"`
	Date             time.Time       `json:"date"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	Category         string          `json:"category"`
	Purchaser        string          `json:"purchaser,omitempty"`
	IsRecurring      bool            `json:"is_recurring"`
	PDFPath          string          `json:"pdf_path"`
	PDFHash          string          `json:"pdf_hash"`
	ParsedAt         time.Time       `json:"parsed_at"`
	ConfidenceScore  float64         `json:"confidence_score"`
	ParserUsed       string          `json:"parser_used"`
	ParserVersion    string          `json:"parser_version"`
	LineItems        []LineItem      `json:"line_items,omitempty"`
}

// LineItem is a single billed line within an invoice. Its total is whatever
// the strategy extracted; nothing forces line totals to sum to the invoice
// total, since strategies may omit lines entirely.
type LineItem struct {
	ID          string          `json:"id"`
	InvoiceID   string          `json:"invoice_id"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Total       decimal.Decimal `json:"total"`
}
