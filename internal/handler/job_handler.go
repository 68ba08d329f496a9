package handler

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/printlab/printlab-api/internal/models"
	"github.com/printlab/printlab-api/internal/service"
	appErrors "github.com/printlab/printlab-api/pkg/errors"
	"github.com/printlab/printlab-api/pkg/response"
)

// JobHandler exposes print job endpoints.
type JobHandler struct {
	jobs      *service.JobService
	lifecycle *service.LifecycleService
}

// NewJobHandler constructs a job handler.
func NewJobHandler(jobs *service.JobService, lifecycle *service.LifecycleService) *JobHandler {
	return &JobHandler{jobs: jobs, lifecycle: lifecycle}
}

type rejectRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type assignRequest struct {
	PrinterID string `json:"printer_id"`
}

type completeRequest struct {
	ActualHours *float64 `json:"actual_hours"`
	ActualCost  *float64 `json:"actual_cost"`
}

type failRequest struct {
	ErrorMessage string `json:"error_message" binding:"required"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// Create godoc
// @Summary Submit a print job
// @Description Uploads a model file with its print parameters. The job starts in PENDING.
// @Tags Jobs
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Param file formData file true "Model file"
// @Param material formData string true "Material"
// @Param material_weight_g formData number true "Estimated material weight in grams"
// @Param estimated_hours formData number true "Estimated print hours"
// @Success 201 {object} response.Envelope
// @Router /jobs [post]
func (h *JobHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CreateJobRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "model file is required"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to read upload"))
		return
	}
	defer file.Close()

	job, err := h.jobs.Create(c.Request.Context(), actor.ID, req, fileHeader.Filename, fileHeader.Size, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, job)
}

// List godoc
// @Summary List print jobs
// @Description Students see their own jobs; staff see everything.
// @Tags Jobs
// @Produce json
// @Security BearerAuth
// @Param status query string false "Filter by status"
// @Param userId query string false "Filter by owner (staff only)"
// @Param printerId query string false "Filter by printer"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /jobs [get]
func (h *JobHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var filter models.JobFilter
	filter.UserID = c.Query("userId")
	filter.PrinterID = c.Query("printerId")
	if status := c.Query("status"); status != "" {
		filter.Status = models.JobStatus(status)
		if !filter.Status.Valid() {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", status)))
			return
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	jobs, pagination, err := h.jobs.List(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, jobs, pagination)
}

// Get godoc
// @Summary Get a print job
// @Tags Jobs
// @Produce json
// @Security BearerAuth
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /jobs/{id} [get]
func (h *JobHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	job, err := h.jobs.Get(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// Review godoc
// @Summary Take a pending job under review
// @Tags Lifecycle
// @Produce json
// @Security BearerAuth
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /jobs/{id}/review [post]
func (h *JobHandler) Review(c *gin.Context) {
	h.transition(c, service.TransitionRequest{Target: models.JobStatusUnderReview})
}

// Approve godoc
// @Summary Approve a reviewed job
// @Description Estimates the cost and checks the owner's balance and job cap.
// @Tags Lifecycle
// @Produce json
// @Security BearerAuth
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /jobs/{id}/approve [post]
func (h *JobHandler) Approve(c *gin.Context) {
	h.transition(c, service.TransitionRequest{Target: models.JobStatusApproved})
}

// Reject godoc
// @Summary Reject a job under review
// @Tags Lifecycle
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Job ID"
// @Param payload body rejectRequest true "Rejection reason"
// @Success 200 {object} response.Envelope
// @Router /jobs/{id}/reject [post]
func (h *JobHandler) Reject(c *gin.Context) {
	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "rejection reason is required"))
		return
	}
	h.transition(c, service.TransitionRequest{Target: models.JobStatusRejected, Reason: req.Reason})
}

// Assign godoc
// @Summary Assign an approved job to a printer
// @Description With printer_id the given printer is validated and reserved; without it the
// least-loaded compatible printer is picked automatically.
// @Tags Lifecycle
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Job ID"
// @Param payload body assignRequest false "Optional explicit printer"
// @Success 200 {object} response.Envelope
// @Router /jobs/{id}/assign [post]
func (h *JobHandler) Assign(c *gin.Context) {
	var req assignRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
	}
	h.transition(c, service.TransitionRequest{Target: models.JobStatusAssigned, PrinterID: req.PrinterID})
}

// Start godoc
// @Summary Start printing an assigned job
// @Tags Lifecycle
// @Produce json
// @Security BearerAuth
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /jobs/{id}/start [post]
func (h *JobHandler) Start(c *gin.Context) {
	h.transition(c, service.TransitionRequest{Target: models.JobStatusPrinting})
}

// Pause godoc
// @Summary Pause a printing job
// @Tags Lifecycle
// @Produce json
// @Security BearerAuth
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /jobs/{id}/pause [post]
func (h *JobHandler) Pause(c *gin.Context) {
	h.transition(c, service.TransitionRequest{Target: models.JobStatusPaused})
}

// Resume godoc
// @Summary Resume a paused job
// @Tags Lifecycle
// @Produce json
// @Security BearerAuth
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /jobs/{id}/resume [post]
func (h *JobHandler) Resume(c *gin.Context) {
	h.transition(c, service.TransitionRequest{Target: models.JobStatusPrinting})
}

// Complete godoc
// @Summary Complete a job
// @Description Debits the owner exactly once, releases the printer slot and books print hours.
// @Tags Lifecycle
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Job ID"
// @Param payload body completeRequest false "Actual usage"
// @Success 200 {object} response.Envelope
// @Router /jobs/{id}/complete [post]
func (h *JobHandler) Complete(c *gin.Context) {
	var req completeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
	}
	h.transition(c, service.TransitionRequest{
		Target:      models.JobStatusCompleted,
		ActualHours: req.ActualHours,
		ActualCost:  req.ActualCost,
	})
}

// Fail godoc
// @Summary Mark a job as failed
// @Tags Lifecycle
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Job ID"
// @Param payload body failRequest true "Failure description"
// @Success 200 {object} response.Envelope
// @Router /jobs/{id}/fail [post]
func (h *JobHandler) Fail(c *gin.Context) {
	var req failRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "error_message is required"))
		return
	}
	h.transition(c, service.TransitionRequest{Target: models.JobStatusFailed, ErrorMessage: req.ErrorMessage})
}

// Cancel godoc
// @Summary Cancel a job
// @Description Owners may cancel while the job is not yet printing; admins at any non-terminal point.
// @Tags Lifecycle
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Job ID"
// @Param payload body cancelRequest false "Cancellation reason"
// @Success 200 {object} response.Envelope
// @Router /jobs/{id}/cancel [post]
func (h *JobHandler) Cancel(c *gin.Context) {
	var req cancelRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
	}
	h.transition(c, service.TransitionRequest{Target: models.JobStatusCancelled, Reason: req.Reason})
}

// Receipt godoc
// @Summary Download the PDF receipt of a completed job
// @Tags Jobs
// @Produce application/pdf
// @Security BearerAuth
// @Param id path string true "Job ID"
// @Success 200 {file} binary
// @Router /jobs/{id}/receipt [get]
func (h *JobHandler) Receipt(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	data, err := h.jobs.Receipt(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=receipt-%s.pdf", c.Param("id")))
	c.Data(http.StatusOK, "application/pdf", data)
}

// DownloadURL godoc
// @Summary Issue a signed download link for the model file
// @Tags Jobs
// @Produce json
// @Security BearerAuth
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /jobs/{id}/download [get]
func (h *JobHandler) DownloadURL(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	token, expiresAt, err := h.jobs.DownloadURL(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{
		"url":        "/api/v1/downloads?token=" + token,
		"expires_at": expiresAt,
	}, nil)
}

// Download godoc
// @Summary Stream a model file referenced by a signed token
// @Tags Jobs
// @Produce application/octet-stream
// @Param token query string true "Signed download token"
// @Success 200 {file} binary
// @Router /downloads [get]
func (h *JobHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	file, name, err := h.jobs.ResolveDownload(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", name))
	c.Header("Content-Type", "application/octet-stream")
	if _, err := io.Copy(c.Writer, file); err != nil {
		c.Abort()
	}
}

func (h *JobHandler) transition(c *gin.Context, req service.TransitionRequest) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	job, err := h.lifecycle.Transition(c.Request.Context(), c.Param("id"), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}
