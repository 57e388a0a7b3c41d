package jobmanagement

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"speech-data-explorer/backend/internal/datastore"
)

// Handlers exposes a JobService over HTTP.
type Handlers struct {
	service *JobService
	logger  *zap.Logger
}

// NewHandlers creates the job handlers.
func NewHandlers(service *JobService, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{service: service, logger: logger}
}

// RegisterRoutes mounts the job routes on rg.
func (h *Handlers) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.CreateJobHandler)
	rg.GET("", h.ListJobsHandler)
	rg.GET("/:id", h.GetJobHandler)
	rg.GET("/:id/results", h.GetJobResultsHandler)
	rg.GET("/:id/report", h.GetJobReportHandler)
}

// CreateJobHandler creates and synchronously runs a batch job.
func (h *Handlers) CreateJobHandler(c *gin.Context) {
	var req CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload: " + err.Error()})
		return
	}

	job, err := h.service.CreateAndRunJob(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidRequest):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case job != nil && job.Status == datastore.StatusFailed:
			c.JSON(http.StatusAccepted, gin.H{
				"message": "Job initiated but failed during execution.",
				"job":     job,
				"detail":  err.Error(),
			})
		default:
			h.logger.Error("create job", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create or run job: " + err.Error()})
		}
		return
	}

	c.JSON(http.StatusCreated, job)
}

// GetJobHandler returns one evaluation job.
func (h *Handlers) GetJobHandler(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}
	job, err := h.service.GetJob(c.Request.Context(), id)
	if err != nil {
		h.writeLookupError(c, id, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// ListJobsHandler lists jobs, optionally filtered by job_type and capped
// by limit.
func (h *Handlers) ListJobsHandler(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	jobs, err := h.service.ListJobs(c.Request.Context(), c.Query("job_type"), limit)
	if err != nil {
		h.logger.Error("list jobs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list jobs: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, jobs)
}

// GetJobResultsHandler returns the per-utterance rows of a job.
func (h *Handlers) GetJobResultsHandler(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}
	results, err := h.service.GetJobResults(c.Request.Context(), id)
	if err != nil {
		h.writeLookupError(c, id, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

// GetJobReportHandler streams the archived JSON report of a job.
func (h *Handlers) GetJobReportHandler(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}
	reader, size, err := h.service.OpenJobReport(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrArchiveDisabled) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		h.writeLookupError(c, id, err)
		return
	}
	defer reader.Close()

	c.Header("Content-Type", "application/json")
	c.Header("Content-Length", strconv.FormatInt(size, 10))
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, reader); err != nil {
		h.logger.Warn("stream report", zap.Int64("job_id", id), zap.Error(err))
	}
}

func (h *Handlers) writeLookupError(c *gin.Context, id int64, err error) {
	if errors.Is(err, datastore.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("Job with ID %d not found", id)})
		return
	}
	h.logger.Error("job lookup", zap.Int64("job_id", id), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve job: " + err.Error()})
}

func jobID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid job ID format"})
		return 0, false
	}
	return id, true
}
