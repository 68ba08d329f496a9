package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/printlab/printlab-api/internal/models"
	"github.com/printlab/printlab-api/internal/service"
	appErrors "github.com/printlab/printlab-api/pkg/errors"
	"github.com/printlab/printlab-api/pkg/response"
)

// PrinterHandler exposes printer fleet endpoints.
type PrinterHandler struct {
	service *service.PrinterService
}

// NewPrinterHandler constructs a printer handler.
func NewPrinterHandler(svc *service.PrinterService) *PrinterHandler {
	return &PrinterHandler{service: svc}
}

// Register godoc
// @Summary Register a printer
// @Tags Printers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.RegisterPrinterRequest true "Printer payload"
// @Success 201 {object} response.Envelope
// @Router /printers [post]
func (h *PrinterHandler) Register(c *gin.Context) {
	var req service.RegisterPrinterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	printer, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, printer)
}

// List godoc
// @Summary List printers
// @Tags Printers
// @Produce json
// @Security BearerAuth
// @Param status query string false "Filter by status"
// @Param material query string false "Filter by supported material"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /printers [get]
func (h *PrinterHandler) List(c *gin.Context) {
	var filter models.PrinterFilter
	if status := c.Query("status"); status != "" {
		filter.Status = models.PrinterStatus(status)
	}
	if material := c.Query("material"); material != "" {
		filter.Material = models.Material(material)
	}
	if page, err := strconv.Atoi(c.Query("page")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.Query("limit")); err == nil {
		filter.PageSize = size
	}

	printers, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, printers, pagination)
}

// Get godoc
// @Summary Get a printer
// @Tags Printers
// @Produce json
// @Security BearerAuth
// @Param id path string true "Printer ID"
// @Success 200 {object} response.Envelope
// @Router /printers/{id} [get]
func (h *PrinterHandler) Get(c *gin.Context) {
	printer, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, printer, nil)
}

// SetStatus godoc
// @Summary Set a printer's operational status
// @Description Moves an idle printer to AVAILABLE, MAINTENANCE or OUT_OF_SERVICE.
// @Tags Printers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Printer ID"
// @Param payload body service.SetPrinterStatusRequest true "Target status"
// @Success 200 {object} response.Envelope
// @Router /printers/{id}/status [put]
func (h *PrinterHandler) SetStatus(c *gin.Context) {
	var req service.SetPrinterStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	printer, err := h.service.SetStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, printer, nil)
}

// CompleteMaintenance godoc
// @Summary Record finished maintenance
// @Tags Printers
// @Produce json
// @Security BearerAuth
// @Param id path string true "Printer ID"
// @Success 200 {object} response.Envelope
// @Router /printers/{id}/maintenance [post]
func (h *PrinterHandler) CompleteMaintenance(c *gin.Context) {
	printer, err := h.service.CompleteMaintenance(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, printer, nil)
}
