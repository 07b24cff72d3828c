package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/kevinshaw/invoice-intel/internal/models"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

var columns = []string{
	"ID", "Vendor", "Normalized Vendor", "Invoice Number", "Date",
	"Total Amount", "Category", "Purchaser", "Recurring", "Parser", "Confidence",
}

// Exporter renders invoice lists as CSV or XLSX downloads
type Exporter struct {
	logger *zap.Logger
}

func NewExporter(logger *zap.Logger) *Exporter {
	return &Exporter{logger: logger}
}

// WriteCSV streams invoices as CSV
func (e *Exporter) WriteCSV(w io.Writer, invoices []*models.Invoice) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(columns); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, inv := range invoices {
		row := []string{
			inv.ID,
			inv.VendorName,
			inv.VendorNormalized,
			inv.InvoiceNumber,
			inv.Date.Format(dateLayout),
			inv.TotalAmount.String(),
			inv.Category,
			inv.Purchaser,
			strconv.FormatBool(inv.IsRecurring),
			inv.ParserUsed,
			strconv.FormatFloat(inv.ConfidenceScore, 'f', 2, 64),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteXLSX renders invoices into a single-sheet workbook
func (e *Exporter) WriteXLSX(w io.Writer, invoices []*models.Invoice) error {
	file := excelize.NewFile()
	defer func() {
		if err := file.Close(); err != nil {
			e.logger.Warn("Failed to close workbook", zap.Error(err))
		}
	}()

	const sheet = "Invoices"
	index, err := file.NewSheet(sheet)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	file.SetActiveSheet(index)
	if err := file.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to drop default sheet: %w", err)
	}

	for col, name := range columns {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("failed to address header cell: %w", err)
		}
		if err := file.SetCellValue(sheet, cell, name); err != nil {
			return fmt.Errorf("failed to write header cell: %w", err)
		}
	}

	for i, inv := range invoices {
		amount, _ := inv.TotalAmount.Float64()
		values := []interface{}{
			inv.ID,
			inv.VendorName,
			inv.VendorNormalized,
			inv.InvoiceNumber,
			inv.Date.Format(dateLayout),
			amount,
			inv.Category,
			inv.Purchaser,
			inv.IsRecurring,
			inv.ParserUsed,
			inv.ConfidenceScore,
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return fmt.Errorf("failed to address cell: %w", err)
			}
			if err := file.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("failed to write cell: %w", err)
			}
		}
	}

	if _, err := file.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
