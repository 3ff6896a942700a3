package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	appctx "github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/models"
)

// ShipmentProcessor runs one work item through the pipeline
type ShipmentProcessor interface {
	Process(ctx context.Context, item models.WorkItem) models.Result
}

// ShipmentHandler runs work items synchronously for operators.
type ShipmentHandler struct {
	processor ShipmentProcessor
	logger    ectologger.Logger
}

func NewShipmentHandler(processor ShipmentProcessor, logger ectologger.Logger) *ShipmentHandler {
	return &ShipmentHandler{
		processor: processor,
		logger:    logger,
	}
}

// Process runs one work item and returns its result
// POST /api/v1/shipments/process
func (h *ShipmentHandler) Process(c echo.Context) error {
	ctx := c.Request().Context()

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return BadRequest("failed to read request body")
	}

	item, err := models.ParseWorkItem(body)
	if err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx = appctx.SetCompanyID(ctx, item.CompanyID)
	result := h.processor.Process(ctx, *item)

	status := http.StatusOK
	if !result.OK {
		status = result.Kind().StatusCode()
		h.logger.WithContext(ctx).WithFields(map[string]any{
			"error_kind": result.Error,
			"failed_at":  result.FailedAt,
		}).Warn("Manual shipment run failed")
	}

	return c.JSON(status, result)
}

func (h *ShipmentHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/shipments/process", h.Process)
}
