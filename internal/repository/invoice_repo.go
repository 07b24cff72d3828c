package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kevinshaw/invoice-intel/internal/models"
	"github.com/kevinshaw/invoice-intel/pkg/database"
)

// InvoiceRepository persists extracted invoices and their line items
type InvoiceRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewInvoiceRepository creates a new invoice repository
func NewInvoiceRepository(db *database.DB, logger *zap.Logger) *InvoiceRepository {
	return &InvoiceRepository{
		db:     db,
		logger: logger,
	}
}

const invoiceColumns = `id, vendor_name, vendor_normalized, invoice_number, date, total_amount,
		category, purchaser, is_recurring, pdf_path, pdf_hash, parsed_at,
		confidence_score, parser_used, parser_version`

// Create inserts an invoice and all of its line items. Missing IDs are
// assigned. Run inside a caller transaction when the write must be atomic
// with other writes.
func (r *InvoiceRepository) Create(ctx context.Context, inv *models.Invoice) error {
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}

	query := `
		INSERT INTO invoices (` + invoiceColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var invoiceNumber, purchaser interface{}
	if inv.InvoiceNumber != "" {
		invoiceNumber = inv.InvoiceNumber
	}
	if inv.Purchaser != "" {
		purchaser = inv.Purchaser
	}

	_, err := r.db.Executor(ctx).ExecContext(ctx, query,
		inv.ID,
		inv.VendorName,
		inv.VendorNormalized,
		invoiceNumber,
		inv.Date,
		inv.TotalAmount.String(),
		inv.Category,
		purchaser,
		inv.IsRecurring,
		inv.PDFPath,
		inv.PDFHash,
		inv.ParsedAt,
		inv.ConfidenceScore,
		inv.ParserUsed,
		inv.ParserVersion,
	)
	if err != nil {
		r.logger.Error("Failed to create invoice",
			zap.String("vendor", inv.VendorNormalized),
			zap.Error(err))
		return fmt.Errorf("failed to create invoice: %w", err)
	}

	for i := range inv.LineItems {
		item := &inv.LineItems[i]
		item.InvoiceID = inv.ID
		if item.ID == "" {
			item.ID = uuid.NewString()
		}

		_, err := r.db.Executor(ctx).ExecContext(ctx, `
			INSERT INTO line_items (id, invoice_id, description, quantity, unit_price, total)
			VALUES (?, ?, ?, ?, ?, ?)
		`,
			item.ID,
			item.InvoiceID,
			item.Description,
			item.Quantity.String(),
			item.UnitPrice.String(),
			item.Total.String(),
		)
		if err != nil {
			r.logger.Error("Failed to create line item",
				zap.String("invoice_id", inv.ID),
				zap.Error(err))
			return fmt.Errorf("failed to create line item: %w", err)
		}
	}

	return nil
}

// GetByID fetches one invoice with its line items, or nil if absent
func (r *InvoiceRepository) GetByID(ctx context.Context, id string) (*models.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = ?`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	defer rows.Close()

	invoices, err := collectInvoices(rows)
	if err != nil {
		return nil, err
	}
	if len(invoices) == 0 {
		return nil, nil
	}

	inv := invoices[0]
	items, err := r.lineItems(ctx, inv.ID)
	if err != nil {
		return nil, err
	}
	inv.LineItems = items
	return inv, nil
}

// List returns invoices ordered by date, newest first
func (r *InvoiceRepository) List(ctx context.Context, limit, offset int) ([]*models.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices ORDER BY date DESC, parsed_at DESC LIMIT ? OFFSET ?`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	return collectInvoices(rows)
}

// ListAll returns every invoice, newest first. Used by exports.
func (r *InvoiceRepository) ListAll(ctx context.Context) ([]*models.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices ORDER BY date DESC, parsed_at DESC`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	return collectInvoices(rows)
}

// Delete removes an invoice; line items go with it via the cascade
func (r *InvoiceRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Executor(ctx).ExecContext(ctx, `DELETE FROM invoices WHERE id = ?`, id)
	if err != nil {
		r.logger.Error("Failed to delete invoice", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete invoice: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *InvoiceRepository) lineItems(ctx context.Context, invoiceID string) ([]models.LineItem, error) {
	rows, err := r.db.Executor(ctx).QueryContext(ctx, `
		SELECT id, invoice_id, description, quantity, unit_price, total
		FROM line_items
		WHERE invoice_id = ?
	`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list line items: %w", err)
	}
	defer rows.Close()

	var items []models.LineItem
	for rows.Next() {
		var item models.LineItem
		var quantity, unitPrice sql.NullString
		var total string
		if err := rows.Scan(&item.ID, &item.InvoiceID, &item.Description, &quantity, &unitPrice, &total); err != nil {
			return nil, fmt.Errorf("failed to scan line item: %w", err)
		}
		if quantity.Valid {
			if item.Quantity, err = decimal.NewFromString(quantity.String); err != nil {
				return nil, fmt.Errorf("invalid line item quantity: %w", err)
			}
		}
		if unitPrice.Valid {
			if item.UnitPrice, err = decimal.NewFromString(unitPrice.String); err != nil {
				return nil, fmt.Errorf("invalid line item unit price: %w", err)
			}
		}
		if item.Total, err = decimal.NewFromString(total); err != nil {
			return nil, fmt.Errorf("invalid line item total: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func collectInvoices(rows *sql.Rows) ([]*models.Invoice, error) {
	var invoices []*models.Invoice
	for rows.Next() {
		var inv models.Invoice
		var invoiceNumber, purchaser, parserVersion sql.NullString
		var confidence sql.NullFloat64
		var totalAmount string

		if err := rows.Scan(
			&inv.ID,
			&inv.VendorName,
			&inv.VendorNormalized,
			&invoiceNumber,
			&inv.Date,
			&totalAmount,
			&inv.Category,
			&purchaser,
			&inv.IsRecurring,
			&inv.PDFPath,
			&inv.PDFHash,
			&inv.ParsedAt,
			&confidence,
			&inv.ParserUsed,
			&parserVersion,
		); err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}

		inv.InvoiceNumber = invoiceNumber.String
		inv.Purchaser = purchaser.String
		inv.ParserVersion = parserVersion.String
		inv.ConfidenceScore = confidence.Float64

		amount, err := decimal.NewFromString(totalAmount)
		if err != nil {
			return nil, fmt.Errorf("invalid total_amount for invoice %s: %w", inv.ID, err)
		}
		inv.TotalAmount = amount

		invoices = append(invoices, &inv)
	}
	return invoices, rows.Err()
}
