package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kevinshaw/invoice-intel/internal/models"
	"github.com/kevinshaw/invoice-intel/pkg/database"
)

// ConversationRepository stores chat exchanges
type ConversationRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewConversationRepository creates a new conversation repository
func NewConversationRepository(db *database.DB, logger *zap.Logger) *ConversationRepository {
	return &ConversationRepository{
		db:     db,
		logger: logger,
	}
}

// Create saves one chat exchange
func (r *ConversationRepository) Create(ctx context.Context, conv *models.Conversation) error {
	query := `
		INSERT INTO conversations (id, query, response, model_used, completion_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Executor(ctx).ExecContext(ctx, query,
		conv.ID,
		conv.Query,
		conv.Response,
		conv.ModelUsed,
		conv.CompletionID,
		conv.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to save conversation",
			zap.String("id", conv.ID),
			zap.Error(err))
		return fmt.Errorf("failed to save conversation: %w", err)
	}

	return nil
}

// ListRecent returns the most recent conversations, newest first
func (r *ConversationRepository) ListRecent(ctx context.Context, limit int) ([]*models.Conversation, error) {
	query := `
		SELECT id, query, response, model_used, completion_id, created_at
		FROM conversations
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var conversations []*models.Conversation
	for rows.Next() {
		var conv models.Conversation
		if err := rows.Scan(
			&conv.ID,
			&conv.Query,
			&conv.Response,
			&conv.ModelUsed,
			&conv.CompletionID,
			&conv.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		conversations = append(conversations, &conv)
	}

	return conversations, rows.Err()
}
