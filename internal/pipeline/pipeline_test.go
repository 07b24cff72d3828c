package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kevinshaw/invoice-intel/internal/models"
	"github.com/kevinshaw/invoice-intel/internal/template"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockTextExtractor struct {
	mock.Mock
}

func (m *MockTextExtractor) ExtractText(path string) (string, error) {
	args := m.Called(path)
	return args.String(0), args.Error(1)
}

type MockExtractor struct {
	mock.Mock
}

func (m *MockExtractor) ExtractInvoice(ctx context.Context, docText string) (*models.ExtractedData, error) {
	args := m.Called(ctx, docText)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ExtractedData), args.Error(1)
}

func (m *MockExtractor) GenerateTemplate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

type MockTemplateStore struct {
	mock.Mock
}

func (m *MockTemplateStore) LoadAll() []*template.Template {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]*template.Template)
}

func (m *MockTemplateStore) Exists(vendorName string) bool {
	return m.Called(vendorName).Bool(0)
}

func (m *MockTemplateStore) Save(vendorName, body string) bool {
	return m.Called(vendorName, body).Bool(0)
}

type MockCacheStore struct {
	mock.Mock
}

func (m *MockCacheStore) Lookup(ctx context.Context, contentHash, parserVersion string) (*models.ParseCacheEntry, error) {
	args := m.Called(ctx, contentHash, parserVersion)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ParseCacheEntry), args.Error(1)
}

func (m *MockCacheStore) Store(ctx context.Context, contentHash, parserVersion string, data models.ExtractedData, confidence float64, parserUsed string) error {
	args := m.Called(ctx, contentHash, parserVersion, data, confidence, parserUsed)
	return args.Error(0)
}

type MockInvoiceStore struct {
	mock.Mock
}

func (m *MockInvoiceStore) Create(ctx context.Context, inv *models.Invoice) error {
	return m.Called(ctx, inv).Error(0)
}

type MockVendorStats struct {
	mock.Mock
}

func (m *MockVendorStats) UpdateStats(ctx context.Context, normalizedName string, amount decimal.Decimal, occurredOn time.Time) error {
	return m.Called(ctx, normalizedName, amount, occurredOn).Error(0)
}

// identityResolver echoes the raw vendor name back
type identityResolver struct{}

func (identityResolver) Normalize(_ context.Context, rawName string) string { return rawName }

// passthroughTx runs the callback directly, no transaction
type passthroughTx struct{}

func (passthroughTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fixture struct {
	text      *MockTextExtractor
	extractor *MockExtractor
	templates *MockTemplateStore
	cache     *MockCacheStore
	invoices  *MockInvoiceStore
	vendors   *MockVendorStats
	pipeline  *Pipeline
	pdfPath   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	path := filepath.Join(t.TempDir(), "invoice.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 stub"), 0o644))

	f := &fixture{
		text:      new(MockTextExtractor),
		extractor: new(MockExtractor),
		templates: new(MockTemplateStore),
		cache:     new(MockCacheStore),
		invoices:  new(MockInvoiceStore),
		vendors:   new(MockVendorStats),
		pdfPath:   path,
	}
	f.pipeline = New(
		f.text, f.extractor, f.templates, f.cache,
		f.invoices, f.vendors, identityResolver{}, passthroughTx{},
		zap.NewNop(),
	)
	return f
}

const awsTemplateBody = `
issuer: Amazon Web Services
keywords:
  - Amazon Web Services
fields:
  amount: 'TOTAL DUE[:\s]+\$?([\d,]+\.\d{2})'
options:
  category: Software/SaaS
`

const awsDocText = "Amazon Web Services, Inc.\nTOTAL DUE: $1,204.50\n"

func parseTemplate(t *testing.T, body string) *template.Template {
	t.Helper()
	tpl, err := template.Parse([]byte(body))
	require.NoError(t, err)
	return tpl
}

func validData() *models.ExtractedData {
	return &models.ExtractedData{
		Vendor:      "Initech",
		Date:        "10/31/2025",
		TotalAmount: decimal.RequireFromString("42.00"),
		Category:    "Software/SaaS",
	}
}

func TestRun_CacheHitSkipsExtraction(t *testing.T) {
	f := newFixture(t)

	entry := &models.ParseCacheEntry{
		Data:       *validData(),
		Confidence: models.ConfidenceAIExtraction,
		ParserUsed: models.ParserAI,
	}
	f.cache.On("Lookup", mock.Anything, mock.Anything, models.ParserVersion).Return(entry, nil)
	f.invoices.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.vendors.On("UpdateStats", mock.Anything, "Initech", mock.Anything, mock.Anything).Return(nil)

	result, err := f.pipeline.Run(context.Background(), f.pdfPath)
	require.NoError(t, err)

	assert.True(t, result.CacheHit)
	assert.Equal(t, models.ParserAI, result.ParserUsed)
	f.text.AssertNotCalled(t, "ExtractText", mock.Anything)
	f.extractor.AssertNotCalled(t, "ExtractInvoice", mock.Anything, mock.Anything)
	f.cache.AssertNotCalled(t, "Store", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRun_TemplateStrategyWins(t *testing.T) {
	f := newFixture(t)

	f.cache.On("Lookup", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
	f.text.On("ExtractText", f.pdfPath).Return(awsDocText, nil)
	f.templates.On("LoadAll").Return([]*template.Template{parseTemplate(t, awsTemplateBody)})
	f.invoices.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.vendors.On("UpdateStats", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.cache.On("Store", mock.Anything, mock.Anything, models.ParserVersion, mock.Anything, models.ConfidenceTemplateMatch, models.ParserTemplate).Return(nil)

	result, err := f.pipeline.Run(context.Background(), f.pdfPath)
	require.NoError(t, err)

	assert.False(t, result.CacheHit)
	assert.Equal(t, models.ParserTemplate, result.ParserUsed)
	assert.Equal(t, "Amazon Web Services", result.Invoice.VendorName)
	assert.Equal(t, "1204.5", result.Invoice.TotalAmount.String())
	f.extractor.AssertNotCalled(t, "ExtractInvoice", mock.Anything, mock.Anything)
}

func TestRun_FallsBackToAIAndGeneratesTemplate(t *testing.T) {
	f := newFixture(t)

	// Template matches the document but its amount pattern finds nothing,
	// so the strategy chain must continue to the AI extractor.
	docText := "Amazon Web Services statement, no figures here"

	f.cache.On("Lookup", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
	f.text.On("ExtractText", f.pdfPath).Return(docText, nil)
	f.templates.On("LoadAll").Return([]*template.Template{parseTemplate(t, awsTemplateBody)})
	f.extractor.On("ExtractInvoice", mock.Anything, docText).Return(validData(), nil)
	f.templates.On("Exists", "Initech").Return(false)
	f.extractor.On("GenerateTemplate", mock.Anything, mock.Anything).Return("issuer: Initech", nil)
	f.templates.On("Save", "Initech", "issuer: Initech").Return(true)
	f.invoices.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.vendors.On("UpdateStats", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.cache.On("Store", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, models.ParserAI).Return(nil)

	result, err := f.pipeline.Run(context.Background(), f.pdfPath)
	require.NoError(t, err)

	assert.Equal(t, models.ParserAI, result.ParserUsed)
	f.extractor.AssertNumberOfCalls(t, "GenerateTemplate", 1)
	f.templates.AssertNumberOfCalls(t, "Save", 1)
}

func TestRun_TemplateGenerationSkippedWhenPresent(t *testing.T) {
	f := newFixture(t)

	f.cache.On("Lookup", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
	f.text.On("ExtractText", f.pdfPath).Return("nothing recognizable", nil)
	f.templates.On("LoadAll").Return(nil)
	f.extractor.On("ExtractInvoice", mock.Anything, mock.Anything).Return(validData(), nil)
	f.templates.On("Exists", "Initech").Return(true)
	f.invoices.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.vendors.On("UpdateStats", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.cache.On("Store", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	_, err := f.pipeline.Run(context.Background(), f.pdfPath)
	require.NoError(t, err)

	f.extractor.AssertNotCalled(t, "GenerateTemplate", mock.Anything, mock.Anything)
}

func TestRun_NoTemplateForUnknownVendor(t *testing.T) {
	f := newFixture(t)

	data := validData()
	data.Vendor = models.UnknownVendor

	f.cache.On("Lookup", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
	f.text.On("ExtractText", f.pdfPath).Return("illegible scan", nil)
	f.templates.On("LoadAll").Return(nil)
	f.extractor.On("ExtractInvoice", mock.Anything, mock.Anything).Return(data, nil)
	f.invoices.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.vendors.On("UpdateStats", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.cache.On("Store", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	_, err := f.pipeline.Run(context.Background(), f.pdfPath)
	require.NoError(t, err)

	f.extractor.AssertNotCalled(t, "GenerateTemplate", mock.Anything, mock.Anything)
	f.templates.AssertNotCalled(t, "Exists", mock.Anything)
}

func TestRun_AIResultFailsValidation(t *testing.T) {
	f := newFixture(t)

	data := validData()
	data.TotalAmount = decimal.Zero

	f.cache.On("Lookup", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
	f.text.On("ExtractText", f.pdfPath).Return("garbage", nil)
	f.templates.On("LoadAll").Return(nil)
	f.extractor.On("ExtractInvoice", mock.Anything, mock.Anything).Return(data, nil)

	_, err := f.pipeline.Run(context.Background(), f.pdfPath)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidationFailed)
	f.invoices.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.cache.AssertNotCalled(t, "Store", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRun_PersistFailureSkipsCacheStore(t *testing.T) {
	f := newFixture(t)

	f.cache.On("Lookup", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
	f.text.On("ExtractText", f.pdfPath).Return("garbage", nil)
	f.templates.On("LoadAll").Return(nil)
	f.extractor.On("ExtractInvoice", mock.Anything, mock.Anything).Return(validData(), nil)
	f.templates.On("Exists", "Initech").Return(true)
	f.invoices.On("Create", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	_, err := f.pipeline.Run(context.Background(), f.pdfPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to persist extraction")
	f.cache.AssertNotCalled(t, "Store", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRun_MissingFile(t *testing.T) {
	f := newFixture(t)

	_, err := f.pipeline.Run(context.Background(), filepath.Join(t.TempDir(), "absent.pdf"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fingerprint")
}

func TestBuildInvoice_CategoryForcedIntoClosedSet(t *testing.T) {
	f := newFixture(t)

	data := validData()
	data.Category = "Snacks & Vibes"
	data.Date = "not a date"

	inv := f.pipeline.buildInvoice(context.Background(), data, "a.pdf", "hash", models.ParserAI, 0.95)
	assert.Equal(t, models.DefaultCategory, inv.Category)
	assert.WithinDuration(t, time.Now().UTC(), inv.Date, 48*time.Hour)
}
