package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kevinshaw/invoice-intel/internal/models"
	"github.com/kevinshaw/invoice-intel/pkg/database"
)

// ParseCacheRepository is the content-addressable store of extraction
// results, keyed by content hash plus parser version. Entries are
// insert-once: a key is written at most one meaningful time, so a lookup
// returns the same payload on every read.
type ParseCacheRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewParseCacheRepository creates a new parse cache repository
func NewParseCacheRepository(db *database.DB, logger *zap.Logger) *ParseCacheRepository {
	return &ParseCacheRepository{
		db:     db,
		logger: logger,
	}
}

// Lookup fetches the cached entry for (hash, version), or nil on a miss
func (r *ParseCacheRepository) Lookup(ctx context.Context, contentHash, parserVersion string) (*models.ParseCacheEntry, error) {
	query := `
		SELECT cache_key, extracted_data, confidence, parser_used, timestamp
		FROM parse_cache
		WHERE cache_key = ?
	`

	key := models.CacheKey(contentHash, parserVersion)

	var entry models.ParseCacheEntry
	var rawData string
	var confidence sql.NullFloat64
	err := r.db.Executor(ctx).QueryRowContext(ctx, query, key).Scan(
		&entry.CacheKey,
		&rawData,
		&confidence,
		&entry.ParserUsed,
		&entry.Timestamp,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to look up parse cache entry",
			zap.String("cache_key", key),
			zap.Error(err))
		return nil, fmt.Errorf("failed to look up parse cache entry: %w", err)
	}

	if err := json.Unmarshal([]byte(rawData), &entry.Data); err != nil {
		return nil, fmt.Errorf("failed to decode cached payload for %s: %w", key, err)
	}
	entry.Confidence = confidence.Float64

	return &entry, nil
}

// Store inserts a cache entry for (hash, version). An existing entry is left
// untouched: concurrent writers racing on the same key converge on a single
// surviving entry, and since the key is derived from content both payloads
// are identical anyway.
func (r *ParseCacheRepository) Store(ctx context.Context, contentHash, parserVersion string, data models.ExtractedData, confidence float64, parserUsed string) error {
	query := `
		INSERT OR IGNORE INTO parse_cache (cache_key, extracted_data, confidence, parser_used, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`

	key := models.CacheKey(contentHash, parserVersion)

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode cache payload: %w", err)
	}

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		key,
		string(payload),
		confidence,
		parserUsed,
		time.Now().UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to store parse cache entry",
			zap.String("cache_key", key),
			zap.Error(err))
		return fmt.Errorf("failed to store parse cache entry: %w", err)
	}

	if n, _ := result.RowsAffected(); n == 0 {
		r.logger.Debug("Parse cache entry already present", zap.String("cache_key", key))
	}

	return nil
}
