package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kevinshaw/invoice-intel/internal/models"
	"github.com/kevinshaw/invoice-intel/internal/vendors"
	"github.com/kevinshaw/invoice-intel/pkg/database"
)

// VendorRepository persists canonical vendor identities and their running
// aggregates.
type VendorRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewVendorRepository creates a new vendor repository
func NewVendorRepository(db *database.DB, logger *zap.Logger) *VendorRepository {
	return &VendorRepository{
		db:     db,
		logger: logger,
	}
}

const vendorColumns = `id, name, normalized_name, category, total_spent, invoice_count, first_seen, last_seen`

// GetByNormalizedName fetches a vendor identity, or nil if unseen
func (r *VendorRepository) GetByNormalizedName(ctx context.Context, normalizedName string) (*models.Vendor, error) {
	query := `SELECT ` + vendorColumns + ` FROM vendors WHERE normalized_name = ?`

	v, err := scanVendor(r.db.Executor(ctx).QueryRowContext(ctx, query, normalizedName))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get vendor",
			zap.String("normalized_name", normalizedName),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get vendor: %w", err)
	}
	return v, nil
}

// NormalizedNames returns every canonical vendor name in the store
func (r *VendorRepository) NormalizedNames(ctx context.Context) ([]string, error) {
	rows, err := r.db.Executor(ctx).QueryContext(ctx, `SELECT normalized_name FROM vendors ORDER BY normalized_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list vendor names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan vendor name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// List returns all vendors ordered by total spend, highest first
func (r *VendorRepository) List(ctx context.Context) ([]*models.Vendor, error) {
	query := `SELECT ` + vendorColumns + ` FROM vendors ORDER BY CAST(total_spent AS REAL) DESC`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list vendors: %w", err)
	}
	defer rows.Close()

	return collectVendors(rows)
}

// TopBySpend returns the highest-spend vendors, at most limit of them
func (r *VendorRepository) TopBySpend(ctx context.Context, limit int) ([]*models.Vendor, error) {
	query := `SELECT ` + vendorColumns + ` FROM vendors ORDER BY CAST(total_spent AS REAL) DESC LIMIT ?`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list top vendors: %w", err)
	}
	defer rows.Close()

	return collectVendors(rows)
}

// UpdateStats folds one sighting into the vendor's aggregates inside a
// transaction: first sighting creates the identity with an inferred
// category; subsequent sightings add to total_spent, bump invoice_count and
// widen the seen interval. The read-modify-write runs under a single
// transaction so concurrent updates for the same identity cannot lose an
// increment.
func (r *VendorRepository) UpdateStats(ctx context.Context, normalizedName string, amount decimal.Decimal, occurredOn time.Time) error {
	occurredOn = occurredOn.UTC().Truncate(24 * time.Hour)

	return r.db.WithTransaction(ctx, func(ctx context.Context) error {
		existing, err := r.GetByNormalizedName(ctx, normalizedName)
		if err != nil {
			return err
		}

		if existing == nil {
			query := `
				INSERT INTO vendors (id, name, normalized_name, category, total_spent, invoice_count, first_seen, last_seen)
				VALUES (?, ?, ?, ?, ?, 1, ?, ?)
			`
			_, err := r.db.Executor(ctx).ExecContext(ctx, query,
				uuid.NewString(),
				normalizedName,
				normalizedName,
				vendors.InferCategory(normalizedName),
				amount.String(),
				occurredOn,
				occurredOn,
			)
			if err != nil {
				r.logger.Error("Failed to create vendor",
					zap.String("normalized_name", normalizedName),
					zap.Error(err))
				return fmt.Errorf("failed to create vendor: %w", err)
			}
			return nil
		}

		firstSeen := existing.FirstSeen
		if occurredOn.Before(firstSeen) {
			firstSeen = occurredOn
		}
		lastSeen := existing.LastSeen
		if occurredOn.After(lastSeen) {
			lastSeen = occurredOn
		}

		query := `
			UPDATE vendors
			SET total_spent = ?, invoice_count = invoice_count + 1, first_seen = ?, last_seen = ?
			WHERE normalized_name = ?
		`
		_, err = r.db.Executor(ctx).ExecContext(ctx, query,
			existing.TotalSpent.Add(amount).String(),
			firstSeen,
			lastSeen,
			normalizedName,
		)
		if err != nil {
			r.logger.Error("Failed to update vendor stats",
				zap.String("normalized_name", normalizedName),
				zap.Error(err))
			return fmt.Errorf("failed to update vendor stats: %w", err)
		}
		return nil
	})
}

func scanVendor(row *sql.Row) (*models.Vendor, error) {
	var v models.Vendor
	var category sql.NullString
	var totalSpent string
	if err := row.Scan(
		&v.ID,
		&v.Name,
		&v.NormalizedName,
		&category,
		&totalSpent,
		&v.InvoiceCount,
		&v.FirstSeen,
		&v.LastSeen,
	); err != nil {
		return nil, err
	}

	v.Category = category.String
	spent, err := decimal.NewFromString(totalSpent)
	if err != nil {
		return nil, fmt.Errorf("invalid total_spent for vendor %s: %w", v.NormalizedName, err)
	}
	v.TotalSpent = spent
	return &v, nil
}

func collectVendors(rows *sql.Rows) ([]*models.Vendor, error) {
	var vendors []*models.Vendor
	for rows.Next() {
		var v models.Vendor
		var category sql.NullString
		var totalSpent string
		if err := rows.Scan(
			&v.ID,
			&v.Name,
			&v.NormalizedName,
			&category,
			&totalSpent,
			&v.InvoiceCount,
			&v.FirstSeen,
			&v.LastSeen,
		); err != nil {
			return nil, fmt.Errorf("failed to scan vendor: %w", err)
		}
		v.Category = category.String
		spent, err := decimal.NewFromString(totalSpent)
		if err != nil {
			return nil, fmt.Errorf("invalid total_spent for vendor %s: %w", v.NormalizedName, err)
		}
		v.TotalSpent = spent
		vendors = append(vendors, &v)
	}
	return vendors, rows.Err()
}
