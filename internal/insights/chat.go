package insights

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kevinshaw/invoice-intel/internal/models"
	"github.com/kevinshaw/invoice-intel/internal/repository"
	"go.uber.org/zap"
)

const (
	recentInvoiceLimit = 20
	topVendorLimit     = 10
)

// Chatter answers a natural-language question given prepared context text.
// The second return value is the provider's completion ID for the run.
type Chatter interface {
	Chat(ctx context.Context, contextText, query string) (answer, completionID string, err error)
	Model() string
}

// ConversationStore persists chat exchanges
type ConversationStore interface {
	Create(ctx context.Context, conv *models.Conversation) error
	ListRecent(ctx context.Context, limit int) ([]*models.Conversation, error)
}

// AnalyticsSource supplies the aggregate numbers woven into chat context
type AnalyticsSource interface {
	Summary(ctx context.Context) (*repository.Summary, error)
	CategoryTotals(ctx context.Context) ([]repository.CategoryTotal, error)
}

// VendorSource supplies per-vendor aggregates
type VendorSource interface {
	TopBySpend(ctx context.Context, limit int) ([]*models.Vendor, error)
}

// InvoiceSource supplies recent invoices
type InvoiceSource interface {
	List(ctx context.Context, limit, offset int) ([]*models.Invoice, error)
}

// Service answers questions about stored invoices by building a compact
// textual snapshot of the data and handing it to the model together with the
// user's question. The model never queries the database itself.
type Service struct {
	chatter       Chatter
	analytics     AnalyticsSource
	vendors       VendorSource
	invoices      InvoiceSource
	conversations ConversationStore
	logger        *zap.Logger
}

func NewService(chatter Chatter, analytics AnalyticsSource, vendors VendorSource, invoices InvoiceSource, conversations ConversationStore, logger *zap.Logger) *Service {
	return &Service{
		chatter:       chatter,
		analytics:     analytics,
		vendors:       vendors,
		invoices:      invoices,
		conversations: conversations,
		logger:        logger,
	}
}

// Ask answers one question about the invoice data and saves the exchange
func (s *Service) Ask(ctx context.Context, query string) (*models.Conversation, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query must not be empty")
	}

	contextText, err := s.buildContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build chat context: %w", err)
	}

	answer, completionID, err := s.chatter.Chat(ctx, contextText, query)
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}

	conv := &models.Conversation{
		ID:           uuid.NewString(),
		Query:        query,
		Response:     answer,
		ModelUsed:    s.chatter.Model(),
		CompletionID: completionID,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.conversations.Create(ctx, conv); err != nil {
		// The answer is already in hand; losing one history row is not
		// worth failing the request over.
		s.logger.Warn("Failed to save conversation", zap.Error(err))
	}

	s.logger.Info("Chat answered",
		zap.Int("query_len", len(query)),
		zap.String("completion_id", completionID))
	return conv, nil
}

// History returns the most recent saved exchanges, newest first
func (s *Service) History(ctx context.Context, limit int) ([]*models.Conversation, error) {
	return s.conversations.ListRecent(ctx, limit)
}

func (s *Service) buildContext(ctx context.Context) (string, error) {
	var b strings.Builder

	summary, err := s.analytics.Summary(ctx)
	if err != nil {
		return "", err
	}
	fmt.Fprintf(&b, "OVERVIEW\nTotal spent: %.2f across %d invoices from %d vendors (average %.2f)\n\n",
		summary.TotalSpent, summary.InvoiceCount, summary.VendorCount, summary.AverageAmount)

	categories, err := s.analytics.CategoryTotals(ctx)
	if err != nil {
		return "", err
	}
	if len(categories) > 0 {
		b.WriteString("SPEND BY CATEGORY\n")
		for _, c := range categories {
			fmt.Fprintf(&b, "- %s: %.2f (%d invoices)\n", c.Category, c.Total, c.Count)
		}
		b.WriteString("\n")
	}

	vendors, err := s.vendors.TopBySpend(ctx, topVendorLimit)
	if err != nil {
		return "", err
	}
	if len(vendors) > 0 {
		b.WriteString("TOP VENDORS BY SPEND\n")
		for _, v := range vendors {
			fmt.Fprintf(&b, "- %s (%s): total %s over %d invoices\n",
				v.NormalizedName, v.Category, v.TotalSpent.String(), v.InvoiceCount)
		}
		b.WriteString("\n")
	}

	invoices, err := s.invoices.List(ctx, recentInvoiceLimit, 0)
	if err != nil {
		return "", err
	}
	if len(invoices) > 0 {
		b.WriteString("RECENT INVOICES\n")
		for _, inv := range invoices {
			fmt.Fprintf(&b, "- %s | %s | %s | %s\n",
				inv.Date.Format("2006-01-02"), inv.VendorNormalized,
				inv.TotalAmount.String(), inv.Category)
		}
	}

	return b.String(), nil
}
