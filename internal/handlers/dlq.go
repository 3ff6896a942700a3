package handlers

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	appctx "github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/redis"
)

// DeadLetterStore is the subset of the DLQ the admin API drives
type DeadLetterStore interface {
	List(ctx context.Context, count int64) ([]redis.DLQEntry, error)
	ListByCompany(ctx context.Context, companyID int64, count int64) ([]redis.DLQEntry, error)
	Get(ctx context.Context, messageID string) (*redis.DLQEntry, error)
	Delete(ctx context.Context, messageID string) error
	Count(ctx context.Context) (int64, error)
	Retry(ctx context.Context, messageID string, publisher redis.Republisher) error
}

// DLQHandler handles dead letter queue API requests
type DLQHandler struct {
	dlq       DeadLetterStore
	publisher redis.Republisher
	logger    ectologger.Logger
}

// NewDLQHandler creates a new DLQ handler. Retries are re-published through publisher.
func NewDLQHandler(dlq DeadLetterStore, publisher redis.Republisher, logger ectologger.Logger) *DLQHandler {
	return &DLQHandler{
		dlq:       dlq,
		publisher: publisher,
		logger:    logger,
	}
}

// DLQListResponse represents the response for listing DLQ entries
type DLQListResponse struct {
	Entries []redis.DLQEntry `json:"entries"`
	Count   int              `json:"count"`
	Total   int64            `json:"total"`
}

// List returns dead letter queue entries
// GET /api/v1/dlq
func (h *DLQHandler) List(c echo.Context) error {
	ctx := c.Request().Context()

	count, err := queryInt64(c, "count", 100)
	if err != nil {
		return err
	}
	companyID, err := queryInt64(c, "companyId", appctx.GetCompanyID(ctx))
	if err != nil {
		return err
	}

	var entries []redis.DLQEntry
	if companyID > 0 {
		entries, err = h.dlq.ListByCompany(ctx, companyID, count)
	} else {
		entries, err = h.dlq.List(ctx, count)
	}
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Failed to list DLQ entries")
		return err
	}
	if entries == nil {
		entries = []redis.DLQEntry{}
	}

	total, _ := h.dlq.Count(ctx)

	return c.JSON(http.StatusOK, DLQListResponse{
		Entries: entries,
		Count:   len(entries),
		Total:   total,
	})
}

// Get returns a specific DLQ entry
// GET /api/v1/dlq/:id
func (h *DLQHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()

	entry, err := h.dlq.Get(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, entry)
}

// Retry re-enqueues a DLQ entry
// POST /api/v1/dlq/:id/retry
func (h *DLQHandler) Retry(c echo.Context) error {
	ctx := c.Request().Context()
	messageID := c.Param("id")

	if err := h.dlq.Retry(ctx, messageID, h.publisher); err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Failed to retry DLQ entry")
		return err
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status":  "retried",
		"message": "Work item re-enqueued",
	})
}

// Delete removes a DLQ entry
// DELETE /api/v1/dlq/:id
func (h *DLQHandler) Delete(c echo.Context) error {
	ctx := c.Request().Context()

	if err := h.dlq.Delete(ctx, c.Param("id")); err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Failed to delete DLQ entry")
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Stats returns DLQ statistics
// GET /api/v1/dlq/stats
func (h *DLQHandler) Stats(c echo.Context) error {
	ctx := c.Request().Context()

	count, err := h.dlq.Count(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]int64{
		"total_entries": count,
	})
}

// RegisterRoutes registers the DLQ routes
func (h *DLQHandler) RegisterRoutes(g *echo.Group) {
	dlq := g.Group("/dlq")
	dlq.GET("", h.List)
	dlq.GET("/stats", h.Stats)
	dlq.GET("/:id", h.Get)
	dlq.POST("/:id/retry", h.Retry)
	dlq.DELETE("/:id", h.Delete)
}
