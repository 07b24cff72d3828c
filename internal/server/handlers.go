package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kevinshaw/invoice-intel/internal/models"
	"github.com/kevinshaw/invoice-intel/internal/repository"
	"go.uber.org/zap"
)

// JobService enqueues documents and reports job state
type JobService interface {
	Submit(ctx context.Context, pdfPath string) (string, error)
	Status(ctx context.Context, jobID string) (*models.ProcessingJob, error)
}

// InvoiceStore reads and deletes persisted invoices
type InvoiceStore interface {
	List(ctx context.Context, limit, offset int) ([]*models.Invoice, error)
	ListAll(ctx context.Context) ([]*models.Invoice, error)
	GetByID(ctx context.Context, id string) (*models.Invoice, error)
	Delete(ctx context.Context, id string) error
}

// VendorStore reads vendor aggregates
type VendorStore interface {
	List(ctx context.Context) ([]*models.Vendor, error)
	TopBySpend(ctx context.Context, limit int) ([]*models.Vendor, error)
}

// AnalyticsStore answers aggregate queries
type AnalyticsStore interface {
	Summary(ctx context.Context) (*repository.Summary, error)
	MonthlyTotals(ctx context.Context) ([]repository.MonthlyTotal, error)
	CategoryTotals(ctx context.Context) ([]repository.CategoryTotal, error)
}

// Exporter renders invoice downloads
type Exporter interface {
	WriteCSV(w io.Writer, invoices []*models.Invoice) error
	WriteXLSX(w io.Writer, invoices []*models.Invoice) error
}

// ChatService answers questions about the stored data
type ChatService interface {
	Ask(ctx context.Context, query string) (*models.Conversation, error)
	History(ctx context.Context, limit int) ([]*models.Conversation, error)
}

// Response is the uniform API envelope
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Handlers holds all HTTP request handlers
type Handlers struct {
	jobs      JobService
	invoices  InvoiceStore
	vendors   VendorStore
	analytics AnalyticsStore
	exporter  Exporter
	chat      ChatService
	uploadDir string
	logger    *zap.Logger
}

func NewHandlers(
	jobs JobService,
	invoices InvoiceStore,
	vendors VendorStore,
	analytics AnalyticsStore,
	exporter Exporter,
	chat ChatService,
	uploadDir string,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		jobs:      jobs,
		invoices:  invoices,
		vendors:   vendors,
		analytics: analytics,
		exporter:  exporter,
		chat:      chat,
		uploadDir: uploadDir,
		logger:    logger,
	}
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"version":   models.ParserVersion,
		},
	})
}

// UploadInvoice handles POST /api/invoices/upload. The document is stored
// and a job is queued; extraction happens asynchronously.
func (h *Handlers) UploadInvoice(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "missing file field"})
		return
	}
	if !strings.EqualFold(filepath.Ext(file.Filename), ".pdf") {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "only PDF uploads are accepted"})
		return
	}

	name := fmt.Sprintf("%s_%s", uuid.NewString(), filepath.Base(file.Filename))
	dest := filepath.Join(h.uploadDir, name)
	if err := c.SaveUploadedFile(file, dest); err != nil {
		h.logger.Error("Failed to store upload", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to store upload"})
		return
	}

	jobID, err := h.jobs.Submit(c.Request.Context(), dest)
	if err != nil {
		h.logger.Error("Failed to enqueue job", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to enqueue job"})
		return
	}

	c.JSON(http.StatusAccepted, Response{
		Success: true,
		Data:    gin.H{"job_id": jobID, "status": models.JobStatusQueued},
	})
}

// GetJob handles GET /api/jobs/:id
func (h *Handlers) GetJob(c *gin.Context) {
	job, err := h.jobs.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logger.Error("Failed to load job", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to load job"})
		return
	}
	if job == nil {
		c.JSON(http.StatusNotFound, Response{Success: false, Error: "job not found"})
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: job})
}

// ListInvoices handles GET /api/invoices
func (h *Handlers) ListInvoices(c *gin.Context) {
	limit := queryInt(c, "limit", 20)
	offset := queryInt(c, "offset", 0)
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	invoices, err := h.invoices.List(c.Request.Context(), limit, offset)
	if err != nil {
		h.logger.Error("Failed to list invoices", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to retrieve invoices"})
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: invoices})
}

// GetInvoice handles GET /api/invoices/:id
func (h *Handlers) GetInvoice(c *gin.Context) {
	inv, err := h.invoices.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logger.Error("Failed to load invoice", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to load invoice"})
		return
	}
	if inv == nil {
		c.JSON(http.StatusNotFound, Response{Success: false, Error: "invoice not found"})
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: inv})
}

// DeleteInvoice handles DELETE /api/invoices/:id
func (h *Handlers) DeleteInvoice(c *gin.Context) {
	err := h.invoices.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, Response{Success: false, Error: "invoice not found"})
			return
		}
		h.logger.Error("Failed to delete invoice", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to delete invoice"})
		return
	}

	c.JSON(http.StatusOK, Response{Success: true})
}

// ListVendors handles GET /api/vendors
func (h *Handlers) ListVendors(c *gin.Context) {
	vendors, err := h.vendors.List(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list vendors", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to retrieve vendors"})
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: vendors})
}

// TopVendors handles GET /api/vendors/top
func (h *Handlers) TopVendors(c *gin.Context) {
	limit := queryInt(c, "limit", 10)
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	vendors, err := h.vendors.TopBySpend(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to rank vendors", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to retrieve vendors"})
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: vendors})
}

// AnalyticsSummary handles GET /api/analytics/summary
func (h *Handlers) AnalyticsSummary(c *gin.Context) {
	summary, err := h.analytics.Summary(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to compute summary", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to compute summary"})
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: summary})
}

// AnalyticsMonthly handles GET /api/analytics/monthly
func (h *Handlers) AnalyticsMonthly(c *gin.Context) {
	totals, err := h.analytics.MonthlyTotals(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to compute monthly totals", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to compute monthly totals"})
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: totals})
}

// AnalyticsCategories handles GET /api/analytics/categories
func (h *Handlers) AnalyticsCategories(c *gin.Context) {
	totals, err := h.analytics.CategoryTotals(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to compute category totals", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to compute category totals"})
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: totals})
}

// ExportCSV handles GET /api/export/csv
func (h *Handlers) ExportCSV(c *gin.Context) {
	invoices, err := h.invoices.ListAll(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to load invoices for export", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to export invoices"})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="invoices.csv"`)
	c.Header("Content-Type", "text/csv")
	if err := h.exporter.WriteCSV(c.Writer, invoices); err != nil {
		h.logger.Error("CSV export failed", zap.Error(err))
	}
}

// ExportXLSX handles GET /api/export/xlsx
func (h *Handlers) ExportXLSX(c *gin.Context) {
	invoices, err := h.invoices.ListAll(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to load invoices for export", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to export invoices"})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="invoices.xlsx"`)
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := h.exporter.WriteXLSX(c.Writer, invoices); err != nil {
		h.logger.Error("XLSX export failed", zap.Error(err))
	}
}

// ChatRequest is the body of POST /api/chat
type ChatRequest struct {
	Query string `json:"query" binding:"required"`
}

// Chat handles POST /api/chat
func (h *Handlers) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "query is required"})
		return
	}

	conv, err := h.chat.Ask(c.Request.Context(), req.Query)
	if err != nil {
		h.logger.Error("Chat failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to answer question"})
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: gin.H{
		"answer":          conv.Response,
		"model":           conv.ModelUsed,
		"completion_id":   conv.CompletionID,
		"conversation_id": conv.ID,
	}})
}

// ChatHistory handles GET /api/chat/history
func (h *Handlers) ChatHistory(c *gin.Context) {
	limit := queryInt(c, "limit", 50)

	conversations, err := h.chat.History(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to load chat history", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to load chat history"})
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: conversations})
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
