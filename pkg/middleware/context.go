package middleware

import (
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/context"
)

// HeaderCompanyID scopes an admin request to one company for logging
const HeaderCompanyID = "X-Company-ID"

func Context() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			req := c.Request()

			requestID := req.Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = uuid.New().String()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, requestID)

			ctx := req.Context()
			ctx = context.SetRequestID(ctx, requestID)
			ctx = context.SetMethod(ctx, req.Method)
			ctx = context.SetRoute(ctx, req.URL.Path)
			ctx = context.SetRemoteIP(ctx, c.RealIP())
			ctx = context.SetTransport(ctx, "http")

			if companyID, err := strconv.ParseInt(req.Header.Get(HeaderCompanyID), 10, 64); err == nil && companyID > 0 {
				ctx = context.SetCompanyID(ctx, companyID)
			}

			c.SetRequest(req.WithContext(ctx))

			return next(c)
		}
	}
}
