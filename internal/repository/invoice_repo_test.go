package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kevinshaw/invoice-intel/internal/models"
)

func sampleInvoice() *models.Invoice {
	return &models.Invoice{
		VendorName:       "ACME Corp",
		VendorNormalized: "Acme",
		InvoiceNumber:    "INV-42",
		Date:             day("2025-07-01"),
		TotalAmount:      decimal.RequireFromString("250.00"),
		Category:         "Other",
		IsRecurring:      false,
		PDFPath:          "/uploads/inv42.pdf",
		PDFHash:          "deadbeef",
		ParsedAt:         time.Now().UTC(),
		ConfidenceScore:  0.95,
		ParserUsed:       models.ParserAI,
		ParserVersion:    models.ParserVersion,
		LineItems: []models.LineItem{
			{Description: "Widgets", Quantity: decimal.NewFromInt(10), UnitPrice: decimal.RequireFromString("25"), Total: decimal.RequireFromString("250")},
		},
	}
}

func TestInvoice_CreateAndGet(t *testing.T) {
	repo := NewInvoiceRepository(newTestDB(t), zap.NewNop())
	ctx := context.Background()

	inv := sampleInvoice()
	require.NoError(t, repo.Create(ctx, inv))
	require.NotEmpty(t, inv.ID)

	got, err := repo.GetByID(ctx, inv.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Acme", got.VendorNormalized)
	assert.Equal(t, "INV-42", got.InvoiceNumber)
	assert.Equal(t, "250", got.TotalAmount.String())
	require.Len(t, got.LineItems, 1)
	assert.Equal(t, "Widgets", got.LineItems[0].Description)
	assert.Equal(t, inv.ID, got.LineItems[0].InvoiceID)
}

func TestInvoice_DeleteCascadesLineItems(t *testing.T) {
	db := newTestDB(t)
	repo := NewInvoiceRepository(db, zap.NewNop())
	ctx := context.Background()

	inv := sampleInvoice()
	require.NoError(t, repo.Create(ctx, inv))
	require.NoError(t, repo.Delete(ctx, inv.ID))

	got, err := repo.GetByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM line_items`).Scan(&count))
	assert.Zero(t, count, "line items must be destroyed with their invoice")
}

func TestInvoice_DeleteMissing(t *testing.T) {
	repo := NewInvoiceRepository(newTestDB(t), zap.NewNop())
	assert.ErrorIs(t, repo.Delete(context.Background(), "no-such-id"), sql.ErrNoRows)
}

func TestInvoice_ListNewestFirst(t *testing.T) {
	repo := NewInvoiceRepository(newTestDB(t), zap.NewNop())
	ctx := context.Background()

	older := sampleInvoice()
	older.Date = day("2025-01-01")
	newer := sampleInvoice()
	newer.Date = day("2025-08-01")
	require.NoError(t, repo.Create(ctx, older))
	require.NoError(t, repo.Create(ctx, newer))

	list, err := repo.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
