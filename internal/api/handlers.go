package api

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/qps-sweep/qps-sweep/internal/sweep"
)

// Request/Response types

// ErrorResponse is the standard error response
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// HealthResponse is the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services,omitempty"`
}

// ReadyResponse is the readiness check response
type ReadyResponse struct {
	Ready     bool      `json:"ready"`
	Timestamp time.Time `json:"timestamp"`
}

// StartSweepRequest is the request to start a sweep
type StartSweepRequest struct {
	Model     string   `json:"model" binding:"required"`
	BaseURL   string   `json:"base_url" binding:"required,url"`
	OutputKey string   `json:"output_key" binding:"required"`
	QPSValues []string `json:"qps_values" binding:"required,min=1,dive,required"`
}

// ListSweepsQuery defines query parameters for listing sweeps
type ListSweepsQuery struct {
	Limit int `form:"limit"`
}

// Handlers

func (s *Server) handleHealth(c *gin.Context) {
	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Services:  make(map[string]string),
	}

	if s.store != nil {
		response.Services["store"] = "ok"
	}
	if id, running := s.manager.Running(); running {
		response.Services["sweep"] = "running:" + id
	} else {
		response.Services["sweep"] = "idle"
	}

	if !s.ready.Load() {
		response.Status = "unavailable"
		response.Services["ready"] = "false"
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}

	response.Services["ready"] = "true"
	c.JSON(http.StatusOK, response)
}

func (s *Server) handleReady(c *gin.Context) {
	response := ReadyResponse{
		Ready:     s.ready.Load(),
		Timestamp: time.Now(),
	}

	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}

	c.JSON(http.StatusOK, response)
}

// handleListSweeps lists recent sweeps
func (s *Server) handleListSweeps(c *gin.Context) {
	var query ListSweepsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:     "invalid query parameters: " + err.Error(),
			RequestID: c.GetString("request_id"),
		})
		return
	}

	limit := query.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	sweeps, err := s.store.ListRecentSweeps(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:     "failed to fetch sweeps: " + err.Error(),
			RequestID: c.GetString("request_id"),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sweeps": sweeps,
		"count":  len(sweeps),
	})
}

// handleGetSweep retrieves one sweep with its runs
func (s *Server) handleGetSweep(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	sw, err := s.store.GetSweep(ctx, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:     "failed to fetch sweep: " + err.Error(),
			RequestID: c.GetString("request_id"),
		})
		return
	}
	if sw == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:     "sweep not found: " + sanitizeInput(id, 128),
			RequestID: c.GetString("request_id"),
		})
		return
	}

	runs, err := s.store.ListRuns(ctx, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:     "failed to fetch runs: " + err.Error(),
			RequestID: c.GetString("request_id"),
		})
		return
	}

	summary, err := s.store.GetRunSummary(ctx, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:     "failed to fetch run summary: " + err.Error(),
			RequestID: c.GetString("request_id"),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sweep":   sw,
		"runs":    runs,
		"summary": summary,
	})
}

// handleStartSweep starts a new sweep in the background
func (s *Server) handleStartSweep(c *gin.Context) {
	var req StartSweepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:     "invalid request: " + sanitizeValidationError(err),
			RequestID: c.GetString("request_id"),
		})
		return
	}

	plan := sweep.Plan{
		Model:     req.Model,
		BaseURL:   req.BaseURL,
		OutputKey: req.OutputKey,
		QPSValues: req.QPSValues,
	}
	sw, err := s.manager.Start(plan)
	if err != nil {
		status := http.StatusInternalServerError
		if strings.Contains(err.Error(), "already running") {
			status = http.StatusConflict
		}
		c.JSON(status, ErrorResponse{
			Error:     "failed to start sweep: " + err.Error(),
			RequestID: c.GetString("request_id"),
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"sweep": sw,
	})
}

// handleCancelSweep cancels a running sweep
func (s *Server) handleCancelSweep(c *gin.Context) {
	id := c.Param("id")
	if err := s.manager.Cancel(id); err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:     "sweep not running: " + sanitizeInput(id, 128),
			RequestID: c.GetString("request_id"),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "cancelled",
	})
}

// Helpers

// sanitizeInput strips control characters from user input echoed back in
// responses, and truncates it.
func sanitizeInput(s string, maxLen int) string {
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	return strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, s)
}

// sanitizeValidationError converts internal field names to JSON field names
// in validation error messages.
func sanitizeValidationError(err error) string {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err.Error()
	}

	var messages []string
	for _, fe := range validationErrs {
		jsonFieldName := toSnakeCase(fe.Field())
		switch fe.Tag() {
		case "required":
			messages = append(messages, fmt.Sprintf("%s is required", jsonFieldName))
		case "url":
			messages = append(messages, fmt.Sprintf("%s must be a valid URL", jsonFieldName))
		case "min":
			messages = append(messages, fmt.Sprintf("%s must have at least %s entries", jsonFieldName, fe.Param()))
		default:
			messages = append(messages, fmt.Sprintf("%s failed validation (%s)", jsonFieldName, fe.Tag()))
		}
	}
	return strings.Join(messages, "; ")
}

// toSnakeCase converts a PascalCase or camelCase string to snake_case
func toSnakeCase(s string) string {
	fieldMappings := map[string]string{
		"Model":     "model",
		"BaseURL":   "base_url",
		"OutputKey": "output_key",
		"QPSValues": "qps_values",
	}
	if mapped, ok := fieldMappings[s]; ok {
		return mapped
	}
	re := regexp.MustCompile("([a-z0-9])([A-Z])")
	return strings.ToLower(re.ReplaceAllString(s, "${1}_${2}"))
}
