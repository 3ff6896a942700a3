package handlers

import (
	"net/http"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
)

// SchemaCache is the reflector's invalidation surface
type SchemaCache interface {
	Invalidate(companyID int64, table string)
	InvalidateCompany(companyID int64)
	InvalidateAll()
}

type SchemaHandler struct {
	cache  SchemaCache
	logger ectologger.Logger
}

func NewSchemaHandler(cache SchemaCache, logger ectologger.Logger) *SchemaHandler {
	return &SchemaHandler{
		cache:  cache,
		logger: logger,
	}
}

// InvalidateRequest scopes a schema cache invalidation. An empty request clears everything.
type InvalidateRequest struct {
	CompanyID int64  `json:"companyId" validate:"gte=0,required_with=Table"`
	Table     string `json:"table" validate:"omitempty,max=64"`
}

type InvalidateResponse struct {
	Scope     string `json:"scope"`
	CompanyID int64  `json:"companyId,omitempty"`
	Table     string `json:"table,omitempty"`
}

// Invalidate drops cached column sets so the next write re-reads the live schema
// POST /api/v1/schema/invalidate
func (h *SchemaHandler) Invalidate(c echo.Context) error {
	ctx := c.Request().Context()

	var req InvalidateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	res := InvalidateResponse{CompanyID: req.CompanyID, Table: req.Table}
	switch {
	case req.Table != "":
		h.cache.Invalidate(req.CompanyID, req.Table)
		res.Scope = "table"
	case req.CompanyID > 0:
		h.cache.InvalidateCompany(req.CompanyID)
		res.Scope = "company"
	default:
		h.cache.InvalidateAll()
		res.Scope = "all"
	}

	h.logger.WithContext(ctx).Infof("Invalidated schema cache: scope=%s company=%d table=%s", res.Scope, req.CompanyID, req.Table)
	return c.JSON(http.StatusOK, res)
}

func (h *SchemaHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/schema/invalidate", h.Invalidate)
}
