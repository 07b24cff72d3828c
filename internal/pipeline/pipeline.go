package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kevinshaw/invoice-intel/internal/ai"
	"github.com/kevinshaw/invoice-intel/internal/fingerprint"
	"github.com/kevinshaw/invoice-intel/internal/models"
	"github.com/kevinshaw/invoice-intel/internal/template"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TextExtractor pulls the text layer out of a document
type TextExtractor interface {
	ExtractText(path string) (string, error)
}

// Extractor is the AI-backed extraction strategy
type Extractor interface {
	ExtractInvoice(ctx context.Context, docText string) (*models.ExtractedData, error)
	GenerateTemplate(ctx context.Context, prompt string) (string, error)
}

// TemplateStore loads and persists vendor parsing templates
type TemplateStore interface {
	LoadAll() []*template.Template
	Exists(vendorName string) bool
	Save(vendorName, body string) bool
}

// CacheStore is the content-addressed parse cache
type CacheStore interface {
	Lookup(ctx context.Context, contentHash, parserVersion string) (*models.ParseCacheEntry, error)
	Store(ctx context.Context, contentHash, parserVersion string, data models.ExtractedData, confidence float64, parserUsed string) error
}

// InvoiceStore persists finished invoices
type InvoiceStore interface {
	Create(ctx context.Context, inv *models.Invoice) error
}

// VendorStats maintains per-vendor aggregates
type VendorStats interface {
	UpdateStats(ctx context.Context, normalizedName string, amount decimal.Decimal, occurredOn time.Time) error
}

// VendorResolver maps raw vendor strings to canonical identities
type VendorResolver interface {
	Normalize(ctx context.Context, rawName string) string
}

// TxRunner runs a function inside a single database transaction
type TxRunner interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Result is what one pipeline run produces
type Result struct {
	Invoice    *models.Invoice
	ParserUsed string
	Confidence float64
	CacheHit   bool
}

// Pipeline drives a document from file path to persisted invoice: fingerprint,
// cache lookup, template-then-AI extraction, validation, and a single
// transaction covering the invoice row, vendor aggregates, and cache entry.
type Pipeline struct {
	text      TextExtractor
	extractor Extractor
	templates TemplateStore
	cache     CacheStore
	invoices  InvoiceStore
	vendors   VendorStats
	resolver  VendorResolver
	tx        TxRunner
	version   string
	logger    *zap.Logger
}

func New(
	text TextExtractor,
	extractor Extractor,
	templates TemplateStore,
	cache CacheStore,
	invoices InvoiceStore,
	vendors VendorStats,
	resolver VendorResolver,
	tx TxRunner,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		text:      text,
		extractor: extractor,
		templates: templates,
		cache:     cache,
		invoices:  invoices,
		vendors:   vendors,
		resolver:  resolver,
		tx:        tx,
		version:   models.ParserVersion,
		logger:    logger,
	}
}

// Run processes one document end to end
func (p *Pipeline) Run(ctx context.Context, pdfPath string) (*Result, error) {
	hash, err := fingerprint.File(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("failed to fingerprint document: %w", err)
	}

	entry, err := p.cache.Lookup(ctx, hash, p.version)
	if err != nil {
		return nil, fmt.Errorf("cache lookup failed: %w", err)
	}

	var (
		data       *models.ExtractedData
		parserUsed string
		confidence float64
	)
	cacheHit := entry != nil
	if cacheHit {
		payload := entry.Data
		data = &payload
		parserUsed = entry.ParserUsed
		confidence = entry.Confidence
		p.logger.Info("Parse cache hit",
			zap.String("hash", hash),
			zap.String("parser", parserUsed))
	} else {
		data, parserUsed, confidence, err = p.extract(ctx, pdfPath)
		if err != nil {
			return nil, err
		}
	}

	inv := p.buildInvoice(ctx, data, pdfPath, hash, parserUsed, confidence)

	err = p.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := p.invoices.Create(ctx, inv); err != nil {
			return err
		}
		if err := p.vendors.UpdateStats(ctx, inv.VendorNormalized, inv.TotalAmount, inv.Date); err != nil {
			return err
		}
		if cacheHit {
			return nil
		}
		return p.cache.Store(ctx, hash, p.version, *data, confidence, parserUsed)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to persist extraction: %w", err)
	}

	p.logger.Info("Invoice processed",
		zap.String("invoice_id", inv.ID),
		zap.String("vendor", inv.VendorNormalized),
		zap.String("parser", parserUsed),
		zap.Bool("cache_hit", cacheHit))

	return &Result{
		Invoice:    inv,
		ParserUsed: parserUsed,
		Confidence: confidence,
		CacheHit:   cacheHit,
	}, nil
}

// extract runs the strategy chain: templates first, then the AI extractor.
// An AI success additionally kicks off best-effort template generation so the
// next invoice from the same vendor can skip the model call.
func (p *Pipeline) extract(ctx context.Context, pdfPath string) (*models.ExtractedData, string, float64, error) {
	docText, err := p.text.ExtractText(pdfPath)
	if err != nil {
		return nil, "", 0, fmt.Errorf("text extraction failed: %w", err)
	}

	if data, err := p.tryTemplates(docText); err == nil {
		p.logger.Info("Template extraction succeeded", zap.String("vendor", data.Vendor))
		return data, models.ParserTemplate, models.ConfidenceTemplateMatch, nil
	}

	data, err := p.extractor.ExtractInvoice(ctx, docText)
	if err != nil {
		return nil, "", 0, fmt.Errorf("all extraction strategies failed: %w", err)
	}
	if !data.Valid() {
		return nil, "", 0, fmt.Errorf("all extraction strategies failed: %w", ErrValidationFailed)
	}

	p.generateTemplate(ctx, docText, data)

	return data, models.ParserAI, models.ConfidenceAIExtraction, nil
}

// tryTemplates applies the first matching template whose output validates.
// A template that matches but yields invalid data is skipped, not fatal.
func (p *Pipeline) tryTemplates(docText string) (*models.ExtractedData, error) {
	for _, tpl := range p.templates.LoadAll() {
		if !tpl.Matches(docText) {
			continue
		}
		data, ok := tpl.Apply(docText)
		if !ok || !data.Valid() {
			p.logger.Debug("Template matched but produced invalid data",
				zap.String("issuer", tpl.Issuer))
			continue
		}
		return data, nil
	}
	return nil, ErrNoMatch
}

// generateTemplate asks the model to write a template for a vendor seen via
// AI extraction. Failures are logged and swallowed; the invoice is already
// extracted and nothing downstream depends on the template existing.
func (p *Pipeline) generateTemplate(ctx context.Context, docText string, data *models.ExtractedData) {
	vendorName := strings.TrimSpace(data.Vendor)
	if vendorName == "" || vendorName == models.UnknownVendor {
		return
	}
	if p.templates.Exists(vendorName) {
		p.logger.Debug("Template already on disk", zap.String("vendor", vendorName))
		return
	}

	body, err := p.extractor.GenerateTemplate(ctx, ai.BuildTemplatePrompt(docText, data))
	if err != nil {
		p.logger.Warn("Template generation failed",
			zap.String("vendor", vendorName),
			zap.Error(err))
		return
	}
	if p.templates.Save(vendorName, body) {
		p.logger.Info("Generated template", zap.String("vendor", vendorName))
	}
}

// buildInvoice turns a validated payload into a persistable invoice. The
// extracted date falls back to today when absent or unparseable, and the
// category is forced into the closed set.
func (p *Pipeline) buildInvoice(ctx context.Context, data *models.ExtractedData, pdfPath, hash, parserUsed string, confidence float64) *models.Invoice {
	date, ok := data.ParseDate()
	if !ok {
		date = time.Now().UTC().Truncate(24 * time.Hour)
	}

	inv := &models.Invoice{
		VendorName:       data.Vendor,
		VendorNormalized: p.resolver.Normalize(ctx, data.Vendor),
		InvoiceNumber:    data.InvoiceNumber,
		Date:             date,
		TotalAmount:      data.TotalAmount,
		Category:         normalizeCategory(data.Category),
		Purchaser:        data.Purchaser,
		IsRecurring:      data.IsRecurring,
		PDFPath:          pdfPath,
		PDFHash:          hash,
		ParsedAt:         time.Now().UTC(),
		ConfidenceScore:  confidence,
		ParserUsed:       parserUsed,
		ParserVersion:    p.version,
	}
	for _, li := range data.LineItems {
		inv.LineItems = append(inv.LineItems, models.LineItem{
			Description: li.Description,
			Quantity:    li.Quantity,
			UnitPrice:   li.UnitPrice,
			Total:       li.Total,
		})
	}
	return inv
}

func normalizeCategory(category string) string {
	for _, c := range models.InvoiceCategories {
		if strings.EqualFold(category, c) {
			return c
		}
	}
	return models.DefaultCategory
}
