package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/owlinhq/invoice-reconciler/internal/application/port"
	"github.com/owlinhq/invoice-reconciler/internal/application/service"
	"github.com/owlinhq/invoice-reconciler/internal/domain/entity"
	"github.com/owlinhq/invoice-reconciler/internal/report"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	reconcileService service.ReconcileService
	logger           Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(reconcileService service.ReconcileService, logger Logger) *Handlers {
	return &Handlers{
		reconcileService: reconcileService,
		logger:           logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// SummaryRequest represents query parameters for the matching summary
type SummaryRequest struct {
	State  string `form:"state"`
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
}

// RebuildRequest represents the rebuild trigger parameters
type RebuildRequest struct {
	Days int `form:"days" json:"days"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   "1.0.0",
		},
	})
}

// GetSummary handles GET /api/v1/matching/summary
func (h *Handlers) GetSummary(c *gin.Context) {
	var req SummaryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid query parameters",
		})
		return
	}

	switch req.State {
	case "", "all", "matched", "partial", "unmatched":
	default:
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   fmt.Sprintf("unknown state %q", req.State),
		})
		return
	}

	if req.Limit <= 0 || req.Limit > 200 {
		req.Limit = 50
	}
	if req.Offset < 0 {
		req.Offset = 0
	}

	summary, err := h.reconcileService.GetSummary(c.Request.Context(), req.State, req.Limit, req.Offset)
	if err != nil {
		h.logger.Error("Failed to get matching summary", "error", err)
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "failed to retrieve matching summary",
		})
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: summary})
}

// exportPageSize is the page size used when draining pairs for export.
const exportPageSize = 200

// ExportSummary handles GET /api/v1/matching/summary/export. The export
// covers every pair, paging through the summary until exhausted.
func (h *Handlers) ExportSummary(c *gin.Context) {
	summary := &entity.MatchingSummary{}
	for offset := 0; ; offset += exportPageSize {
		page, err := h.reconcileService.GetSummary(c.Request.Context(), "all", exportPageSize, offset)
		if err != nil {
			h.logger.Error("Failed to get summary for export", "error", err)
			c.JSON(http.StatusInternalServerError, Response{
				Success: false,
				Error:   "failed to retrieve matching summary",
			})
			return
		}
		if offset == 0 {
			summary.Totals = page.Totals
		}
		summary.Pairs = append(summary.Pairs, page.Pairs...)
		if len(page.Pairs) < exportPageSize {
			break
		}
	}

	workbook, err := report.NewSummaryWorkbook(summary)
	if err != nil {
		h.logger.Error("Failed to build summary workbook", "error", err)
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "failed to build export",
		})
		return
	}
	defer workbook.Close()

	filename := fmt.Sprintf("matching_summary_%s.xlsx", time.Now().UTC().Format("20060102_150405"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := workbook.Write(c.Writer); err != nil {
		h.logger.Error("Failed to write summary workbook", "error", err)
	}
}

// TriggerRebuild handles POST /api/v1/matching/rebuild
func (h *Handlers) TriggerRebuild(c *gin.Context) {
	var req RebuildRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid query parameters",
		})
		return
	}
	if req.Days == 0 && c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, Response{
				Success: false,
				Error:   "invalid request body",
			})
			return
		}
	}

	result, err := h.reconcileService.RebuildMatching(c.Request.Context(), req.Days)
	if err != nil {
		h.logger.Error("Matching rebuild failed", "error", err)
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "matching rebuild failed",
		})
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// GetPair handles GET /api/v1/matching/pairs/:invoice_id
func (h *Handlers) GetPair(c *gin.Context) {
	idStr := c.Param("invoice_id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid invoice ID",
		})
		return
	}

	pair, err := h.reconcileService.GetPairForInvoice(c.Request.Context(), id)
	if errors.Is(err, port.ErrNotFound) {
		c.JSON(http.StatusNotFound, Response{
			Success: false,
			Error:   "no matching pair for invoice",
		})
		return
	}
	if err != nil {
		h.logger.Error("Failed to get matching pair", "invoice_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "failed to retrieve matching pair",
		})
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: pair})
}
