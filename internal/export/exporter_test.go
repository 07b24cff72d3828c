package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/kevinshaw/invoice-intel/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

func sampleInvoices() []*models.Invoice {
	return []*models.Invoice{
		{
			ID:               "inv-1",
			VendorName:       "Amazon Web Services, Inc.",
			VendorNormalized: "Amazon Web Services",
			InvoiceNumber:    "AWS-1443021",
			Date:             time.Date(2025, 10, 31, 0, 0, 0, 0, time.UTC),
			TotalAmount:      decimal.RequireFromString("1204.50"),
			Category:         "Software/SaaS",
			IsRecurring:      true,
			ParserUsed:       models.ParserTemplate,
			ConfidenceScore:  models.ConfidenceTemplateMatch,
		},
		{
			ID:               "inv-2",
			VendorName:       "Initech",
			VendorNormalized: "Initech",
			Date:             time.Date(2025, 11, 2, 0, 0, 0, 0, time.UTC),
			TotalAmount:      decimal.RequireFromString("42.00"),
			Category:         "Other",
			ParserUsed:       models.ParserAI,
			ConfidenceScore:  models.ConfidenceAIExtraction,
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	exporter := NewExporter(zap.NewNop())

	require.NoError(t, exporter.WriteCSV(&buf, sampleInvoices()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, columns, records[0])
	assert.Equal(t, "Amazon Web Services", records[1][2])
	assert.Equal(t, "1204.5", records[1][5])
	assert.Equal(t, "2025-11-02", records[2][4])
	assert.Equal(t, "false", records[2][8])
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	exporter := NewExporter(zap.NewNop())

	require.NoError(t, exporter.WriteCSV(&buf, nil))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	exporter := NewExporter(zap.NewNop())

	require.NoError(t, exporter.WriteXLSX(&buf, sampleInvoices()))

	file, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer file.Close()

	rows, err := file.GetRows("Invoices")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "ID", rows[0][0])
	assert.Equal(t, "inv-1", rows[1][0])
	assert.Equal(t, "Initech", rows[2][1])
}
