package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kevinshaw/invoice-intel/pkg/database"
)

// MonthlyTotal is spend aggregated over one calendar month
type MonthlyTotal struct {
	Year  int     `json:"year"`
	Month int     `json:"month"`
	Total float64 `json:"total"`
	Count int64   `json:"count"`
}

// CategoryTotal is spend aggregated over one invoice category
type CategoryTotal struct {
	Category string  `json:"category"`
	Total    float64 `json:"total"`
	Count    int64   `json:"count"`
}

// Summary holds store-wide headline numbers
type Summary struct {
	TotalSpent    float64 `json:"total_spent"`
	InvoiceCount  int64   `json:"invoice_count"`
	VendorCount   int64   `json:"vendor_count"`
	AverageAmount float64 `json:"average_amount"`
}

// AnalyticsRepository answers aggregate questions over persisted invoices.
// Aggregates are computed in SQL as floating point, which is fine for
// reporting; exact decimal arithmetic lives in the vendor aggregates.
type AnalyticsRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewAnalyticsRepository creates a new analytics repository
func NewAnalyticsRepository(db *database.DB, logger *zap.Logger) *AnalyticsRepository {
	return &AnalyticsRepository{
		db:     db,
		logger: logger,
	}
}

// MonthlyTotals returns per-month spend, oldest month first
func (r *AnalyticsRepository) MonthlyTotals(ctx context.Context) ([]MonthlyTotal, error) {
	query := `
		SELECT CAST(strftime('%Y', date) AS INTEGER) AS year,
		       CAST(strftime('%m', date) AS INTEGER) AS month,
		       SUM(CAST(total_amount AS REAL)) AS total,
		       COUNT(*) AS count
		FROM invoices
		GROUP BY year, month
		ORDER BY year, month
	`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query monthly totals: %w", err)
	}
	defer rows.Close()

	var totals []MonthlyTotal
	for rows.Next() {
		var t MonthlyTotal
		if err := rows.Scan(&t.Year, &t.Month, &t.Total, &t.Count); err != nil {
			return nil, fmt.Errorf("failed to scan monthly total: %w", err)
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

// CategoryTotals returns per-category spend, highest first
func (r *AnalyticsRepository) CategoryTotals(ctx context.Context) ([]CategoryTotal, error) {
	query := `
		SELECT category,
		       SUM(CAST(total_amount AS REAL)) AS total,
		       COUNT(*) AS count
		FROM invoices
		GROUP BY category
		ORDER BY total DESC
	`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query category totals: %w", err)
	}
	defer rows.Close()

	var totals []CategoryTotal
	for rows.Next() {
		var t CategoryTotal
		if err := rows.Scan(&t.Category, &t.Total, &t.Count); err != nil {
			return nil, fmt.Errorf("failed to scan category total: %w", err)
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

// Summary returns headline spend numbers across the whole store
func (r *AnalyticsRepository) Summary(ctx context.Context) (*Summary, error) {
	query := `
		SELECT COALESCE(SUM(CAST(total_amount AS REAL)), 0),
		       COUNT(*),
		       COALESCE(AVG(CAST(total_amount AS REAL)), 0),
		       (SELECT COUNT(*) FROM vendors)
		FROM invoices
	`

	var s Summary
	err := r.db.Executor(ctx).QueryRowContext(ctx, query).Scan(
		&s.TotalSpent,
		&s.InvoiceCount,
		&s.AverageAmount,
		&s.VendorCount,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query summary: %w", err)
	}
	return &s, nil
}
