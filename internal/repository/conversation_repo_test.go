package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kevinshaw/invoice-intel/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestConversation_CreateAndListRecent(t *testing.T) {
	db := newTestDB(t)
	repo := NewConversationRepository(db, zap.NewNop())
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, q := range []string{"total spend?", "top vendor?", "biggest invoice?"} {
		conv := &models.Conversation{
			ID:           uuid.NewString(),
			Query:        q,
			Response:     "answer " + q,
			ModelUsed:    "gpt-4o-mini",
			CompletionID: "chatcmpl-" + q,
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, repo.Create(ctx, conv))
	}

	recent, err := repo.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)

	// Newest first
	assert.Equal(t, "biggest invoice?", recent[0].Query)
	assert.Equal(t, "top vendor?", recent[1].Query)
	assert.Equal(t, "gpt-4o-mini", recent[0].ModelUsed)
	assert.Equal(t, "chatcmpl-biggest invoice?", recent[0].CompletionID)
}

func TestConversation_ListRecentEmpty(t *testing.T) {
	db := newTestDB(t)
	repo := NewConversationRepository(db, zap.NewNop())

	recent, err := repo.ListRecent(context.Background(), 50)
	require.NoError(t, err)
	assert.Empty(t, recent)
}
