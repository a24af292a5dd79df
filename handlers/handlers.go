package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"complaint-service/models"

	"github.com/apex/log"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ComplaintService is the complaint write/read surface used by the handlers.
type ComplaintService interface {
	AddComplaint(ctx context.Context, req *models.CreateComplaintRequest, country string) (*models.Complaint, error)
	GetComplaint(ctx context.Context, id string) (*models.Complaint, error)
	ListComplaints(ctx context.Context, page, size int) ([]models.Complaint, error)
	UpdateComplaint(ctx context.Context, id, content string) (*models.Complaint, error)
}

// CountryResolver resolves the submitter's network address to a country name.
type CountryResolver interface {
	CountryByIP(ctx context.Context, ip string) string
}

// Handlers contains all HTTP handlers
type Handlers struct {
	service  ComplaintService
	resolver CountryResolver
}

// NewHandlers creates a new handlers instance
func NewHandlers(service ComplaintService, resolver CountryResolver) *Handlers {
	return &Handlers{
		service:  service,
		resolver: resolver,
	}
}

// SetupRouter builds the gin router with all service routes
func SetupRouter(h *Handlers) *gin.Engine {
	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type"},
		AllowOrigins:     []string{"*"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	v1 := router.Group("/api/v1")
	v1.POST("/complaints", h.AddComplaint)
	v1.GET("/complaints", h.ListComplaints)
	v1.GET("/complaints/:id", h.GetComplaint)
	v1.PUT("/complaints/:id", h.UpdateComplaint)

	router.GET("/health", h.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}

// AddComplaint handles a new complaint submission
func (h *Handlers) AddComplaint(c *gin.Context) {
	var req models.CreateComplaintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	country := h.resolver.CountryByIP(c.Request.Context(), clientIP(c))

	complaint, err := h.service.AddComplaint(c.Request.Context(), &req, country)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, complaint)
}

// GetComplaint retrieves a complaint by ID
func (h *Handlers) GetComplaint(c *gin.Context) {
	id, ok := complaintID(c)
	if !ok {
		return
	}

	complaint, err := h.service.GetComplaint(c.Request.Context(), id)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, complaint)
}

// ListComplaints returns a page of complaints, most recently created first
func (h *Handlers) ListComplaints(c *gin.Context) {
	page := intQuery(c, "page", 0)
	size := intQuery(c, "size", 0)

	complaints, err := h.service.ListComplaints(c.Request.Context(), page, size)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, complaints)
}

// UpdateComplaint replaces the content of an existing complaint
func (h *Handlers) UpdateComplaint(c *gin.Context) {
	id, ok := complaintID(c)
	if !ok {
		return
	}

	var req models.UpdateComplaintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	complaint, err := h.service.UpdateComplaint(c.Request.Context(), id, req.Content)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, complaint)
}

// Health is the health check endpoint
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "complaint-service",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func complaintID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid complaint id"})
		return "", false
	}
	return id, true
}

// clientIP prefers the first hop of X-Forwarded-For, the address the original
// client presented to the outermost proxy, over the direct connection address.
func clientIP(c *gin.Context) string {
	if fwd := c.GetHeader("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	return c.ClientIP()
}

func intQuery(c *gin.Context, key string, defaultValue int) int {
	value := c.Query(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return defaultValue
	}
	return n
}

func renderError(c *gin.Context, err error) {
	var creationErr *models.CreationFailedError
	var updateErr *models.UpdateFailedError

	switch {
	case errors.Is(err, models.ErrComplaintNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: err.Error()})
	case errors.As(err, &creationErr), errors.As(err, &updateErr):
		log.Errorf("Complaint write failed: %v", err)
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
	default:
		log.Errorf("Unexpected error: %v", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "an unexpected error occurred"})
	}
}
