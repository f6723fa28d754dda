package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prasenjit/go-mockserver/internal/config"
	"github.com/prasenjit/go-mockserver/internal/logging"
	"github.com/prasenjit/go-mockserver/internal/matcher"
	"github.com/prasenjit/go-mockserver/internal/metrics"
	"github.com/prasenjit/go-mockserver/internal/mockfile"
	"github.com/prasenjit/go-mockserver/internal/models"
	"github.com/prasenjit/go-mockserver/internal/parser"
	"github.com/prasenjit/go-mockserver/internal/proxy"
	"github.com/prasenjit/go-mockserver/internal/registry"
	"github.com/prasenjit/go-mockserver/internal/requestlog"
	"github.com/prasenjit/go-mockserver/internal/stats"
	"github.com/prasenjit/go-mockserver/internal/storage"
	"github.com/prasenjit/go-mockserver/internal/template"
)

const (
	maxImportBytes = 20 << 20
	// persisted history is filtered over this many newest records
	maxPersistedScan = 10000
)

// Deps are the collaborators shared by the router and handlers
type Deps struct {
	Config    *config.Config
	Registry  *registry.Registry
	Engine    *proxy.Engine
	Generator *template.Generator
	Stats     *stats.Collector
	Requests  *requestlog.Service
	Metrics   *metrics.Metrics
	Store     storage.Storage
	Logger    *slog.Logger
}

// Handler handles admin API requests
type Handler struct {
	cfg       *config.Config
	registry  *registry.Registry
	engine    *proxy.Engine
	generator *template.Generator
	stats     *stats.Collector
	requests  *requestlog.Service
	metrics   *metrics.Metrics
	store     storage.Storage
	parser    *parser.Parser
	logger    *slog.Logger
}

// NewHandler creates a new API handler
func NewHandler(d Deps) *Handler {
	cfg := d.Config
	if cfg == nil {
		cfg = config.Default()
	}
	return &Handler{
		cfg:       cfg,
		registry:  d.Registry,
		engine:    d.Engine,
		generator: d.Generator,
		stats:     d.Stats,
		requests:  d.Requests,
		metrics:   d.Metrics,
		store:     d.Store,
		parser:    parser.NewParser(),
		logger:    logging.OrNop(d.Logger),
	}
}

// ListMocks returns all mocks in registration order
func (h *Handler) ListMocks(c *gin.Context) {
	mocks := h.registry.List()

	method := strings.ToUpper(c.Query("method"))
	path := c.Query("path")
	if method == "" && path == "" {
		c.JSON(http.StatusOK, mocks)
		return
	}

	result := make([]models.Mock, 0, len(mocks))
	for _, m := range mocks {
		if method != "" && m.Method != method {
			continue
		}
		if path != "" && !strings.Contains(m.Path, path) {
			continue
		}
		result = append(result, m)
	}
	c.JSON(http.StatusOK, result)
}

// CreateMock registers a new mock
func (h *Handler) CreateMock(c *gin.Context) {
	var input models.Mock
	if err := c.ShouldBindJSON(&input); err != nil {
		h.metrics.ConfigChange("create", "invalid")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.registry.Create(c.Request.Context(), input)
	if err != nil {
		h.writeRegistryError(c, "create", err)
		return
	}

	h.metrics.ConfigChange("create", "ok")
	c.JSON(http.StatusCreated, created)
}

// GetMock returns a single mock
func (h *Handler) GetMock(c *gin.Context) {
	mock, err := h.registry.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Mock not found"})
		return
	}

	c.JSON(http.StatusOK, mock)
}

// UpdateMock replaces a mock
func (h *Handler) UpdateMock(c *gin.Context) {
	var input models.Mock
	if err := c.ShouldBindJSON(&input); err != nil {
		h.metrics.ConfigChange("update", "invalid")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := h.registry.Update(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		h.writeRegistryError(c, "update", err)
		return
	}

	h.metrics.ConfigChange("update", "ok")
	c.JSON(http.StatusOK, updated)
}

// DeleteMock removes a mock
func (h *Handler) DeleteMock(c *gin.Context) {
	if err := h.registry.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.writeRegistryError(c, "delete", err)
		return
	}

	h.metrics.ConfigChange("delete", "ok")
	c.JSON(http.StatusOK, gin.H{"message": "Mock deleted"})
}

func (h *Handler) writeRegistryError(c *gin.Context, operation string, err error) {
	var conflict *registry.ConflictError
	switch {
	case errors.As(err, &conflict):
		h.metrics.ConfigChange(operation, "conflict")
		c.JSON(http.StatusConflict, gin.H{
			"error":         err.Error(),
			"conflictsWith": conflict.Existing,
		})
	case errors.Is(err, registry.ErrInvalidMock):
		h.metrics.ConfigChange(operation, "invalid")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, registry.ErrNotFound):
		h.metrics.ConfigChange(operation, "not_found")
		c.JSON(http.StatusNotFound, gin.H{"error": "Mock not found"})
	default:
		h.metrics.ConfigChange(operation, "error")
		h.logger.Error("mock operation failed", "operation", operation, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
	}
}

// TestMock runs the matcher for a described request without serving it
func (h *Handler) TestMock(c *gin.Context) {
	var req matcher.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Method == "" || req.Path == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "method and path are required"})
		return
	}

	req.Method = strings.ToUpper(req.Method)
	headers := make(map[string]string, len(req.Headers))
	for k, v := range req.Headers {
		headers[strings.ToLower(k)] = v
	}
	req.Headers = headers

	c.JSON(http.StatusOK, h.engine.Match(req))
}

type previewRequest struct {
	Method  string            `json:"method"`
	Path    string            `json:"path"`
	Headers map[string]string `json:"headers"`
	Query   map[string]string `json:"query"`
	Body    json.RawMessage   `json:"body"`
}

type previewInput struct {
	MockID   string          `json:"mockId"`
	Response json.RawMessage `json:"response"`
	Request  previewRequest  `json:"request"`
}

// PreviewMock expands a response template, from a stored mock or inline
func (h *Handler) PreviewMock(c *gin.Context) {
	var input previewInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var mock models.Mock
	switch {
	case input.MockID != "":
		m, err := h.registry.Get(input.MockID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Mock not found"})
			return
		}
		mock = m
	case len(input.Response) > 0:
		mock = models.Mock{Response: input.Response}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "mockId or response is required"})
		return
	}

	headers := make(map[string]string, len(input.Request.Headers))
	for k, v := range input.Request.Headers {
		headers[strings.ToLower(k)] = v
	}
	req := &template.Request{
		Method:  strings.ToUpper(input.Request.Method),
		Path:    input.Request.Path,
		Headers: headers,
		Query:   input.Request.Query,
		Body:    input.Request.Body,
	}

	result, err := h.engine.Preview(&mock, req)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

type importResult struct {
	Title     string               `json:"title"`
	Version   string               `json:"version"`
	Imported  []models.Mock        `json:"imported"`
	Skipped   []string             `json:"skipped,omitempty"`
	Conflicts []models.MockSummary `json:"conflicts,omitempty"`
	Invalid   []string             `json:"invalid,omitempty"`
}

// ImportMocks creates mocks from an OpenAPI 3 document in the request body
func (h *Handler) ImportMocks(c *gin.Context) {
	content, err := io.ReadAll(io.LimitReader(c.Request.Body, maxImportBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	dynamic, _ := strconv.ParseBool(c.DefaultQuery("dynamic", "false"))
	parsed, err := h.parser.Parse(content, parser.Options{
		BasePath: c.Query("basePath"),
		Dynamic:  dynamic,
	})
	if err != nil {
		h.metrics.ConfigChange("import", "invalid")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result := importResult{
		Title:    parsed.Title,
		Version:  parsed.Version,
		Imported: []models.Mock{},
		Skipped:  parsed.Skipped,
	}
	for _, m := range parsed.Mocks {
		created, err := h.registry.Create(c.Request.Context(), m)
		var conflict *registry.ConflictError
		switch {
		case err == nil:
			result.Imported = append(result.Imported, created)
		case errors.As(err, &conflict):
			result.Conflicts = append(result.Conflicts, m.Summary())
		default:
			result.Invalid = append(result.Invalid, m.Method+" "+m.Path+": "+err.Error())
		}
	}

	h.metrics.ConfigChange("import", "ok")
	h.logger.Info("imported OpenAPI document",
		"title", parsed.Title, "imported", len(result.Imported), "conflicts", len(result.Conflicts))
	c.JSON(http.StatusCreated, result)
}

// ExportMocks writes all mocks as JSON or YAML
func (h *Handler) ExportMocks(c *gin.Context) {
	format := strings.ToLower(c.DefaultQuery("format", mockfile.FormatJSON))
	if format == "yml" {
		format = mockfile.FormatYAML
	}
	data, err := mockfile.Encode(h.registry.List(), format)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contentType := "application/json; charset=utf-8"
	if format != mockfile.FormatJSON {
		contentType = "application/yaml; charset=utf-8"
	}
	c.Header("Content-Disposition", "attachment; filename=mocks."+format)
	c.Data(http.StatusOK, contentType, data)
}

// ListPlaceholders returns the placeholder catalogue grouped by category
func (h *Handler) ListPlaceholders(c *gin.Context) {
	c.JSON(http.StatusOK, h.generator.AvailablePlaceholders())
}

// HealthCheck returns health status
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"storage":   h.registry.StorageInfo(),
		"mocks":     h.registry.Count(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// GetConfig returns the public part of the running configuration
func (h *Handler) GetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"apiPrefix": h.cfg.Server.APIPrefix,
		"storage":   h.registry.StorageInfo(),
		"analytics": gin.H{
			"enabled":    h.cfg.Analytics.Enabled,
			"maxRecords": h.cfg.Analytics.MaxRecords,
			"persist":    h.cfg.Analytics.Persist,
		},
		"metrics": gin.H{
			"enabled": h.cfg.Metrics.Enabled,
			"path":    h.cfg.Metrics.Path,
		},
		"telemetry": gin.H{
			"enabled":  h.cfg.Telemetry.Enabled,
			"exporter": h.cfg.Telemetry.Exporter,
		},
	})
}

// GetAnalytics returns the analytics summary
func (h *Handler) GetAnalytics(c *gin.Context) {
	c.JSON(http.StatusOK, h.stats.Summary(h.registry.Count()))
}

// GetMockAnalytics returns statistics for one mock
func (h *Handler) GetMockAnalytics(c *gin.Context) {
	stat := h.stats.MockStats(c.Param("id"))
	if stat == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No statistics available"})
		return
	}

	c.JSON(http.StatusOK, stat)
}

// ResetAnalytics clears all aggregated statistics
func (h *Handler) ResetAnalytics(c *gin.Context) {
	h.stats.Reset()
	c.JSON(http.StatusOK, gin.H{"message": "Analytics reset"})
}

// ListRequests returns captured requests, newest first
func (h *Handler) ListRequests(c *gin.Context) {
	filter := &models.RequestFilter{
		Method: c.Query("method"),
		Path:   c.Query("path"),
		MockID: c.Query("mockId"),
		Limit:  100,
	}

	if v := c.Query("matched"); v != "" {
		matched, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "matched must be true or false"})
			return
		}
		filter.Matched = &matched
	}
	if v := c.Query("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be an RFC3339 timestamp"})
			return
		}
		filter.Since = since
	}
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			filter.Limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			filter.Offset = n
		}
	}

	persisted, _ := strconv.ParseBool(c.Query("persisted"))
	if !persisted {
		c.JSON(http.StatusOK, h.requests.Requests(filter))
		return
	}

	reader, ok := h.store.(storage.HistoryReader)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "storage does not keep request records"})
		return
	}
	records, err := reader.RecentRequests(c.Request.Context(), maxPersistedScan)
	if err != nil {
		h.logger.Error("failed to read persisted requests", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read persisted requests"})
		return
	}
	c.JSON(http.StatusOK, pageRecords(records, filter))
}

// pageRecords applies filter to records that are already newest first
func pageRecords(records []models.RequestRecord, filter *models.RequestFilter) []models.RequestRecord {
	result := make([]models.RequestRecord, 0)
	skipped := 0
	for i := range records {
		if !filter.Matches(&records[i]) {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		result = append(result, records[i])
		if filter.Limit > 0 && len(result) >= filter.Limit {
			break
		}
	}
	return result
}

// GetRequest returns a single captured request
func (h *Handler) GetRequest(c *gin.Context) {
	rec := h.requests.Request(c.Param("id"))
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Request not found"})
		return
	}

	c.JSON(http.StatusOK, rec)
}

// ClearRequests clears captured requests. With persisted=true the storage
// backend's request history is purged as well.
func (h *Handler) ClearRequests(c *gin.Context) {
	h.requests.Clear()

	purge, _ := strconv.ParseBool(c.Query("persisted"))
	if !purge {
		c.JSON(http.StatusOK, gin.H{"message": "Requests cleared"})
		return
	}

	purger, ok := h.store.(storage.Purger)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"message": "Requests cleared", "purged": 0})
		return
	}
	n, err := purger.PurgeRequests(c.Request.Context(), time.Now())
	if err != nil {
		h.logger.Error("failed to purge persisted requests", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to purge persisted requests"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Requests cleared", "purged": n})
}
