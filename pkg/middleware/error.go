package middleware

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/context"
	apperrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// HeaderErrorKind carries the error taxonomy kind of a failed admin request.
const HeaderErrorKind = "X-Error-Kind"

type ErrorResponse struct {
	Message   string         `json:"message"`
	RequestID string         `json:"request_id"`
	TraceID   string         `json:"trace_id"`
	Meta      map[string]any `json:"meta"`
}

// Error renders every handler error as an ErrorResponse.
func Error(logger ectologger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		ctx := c.Request().Context()
		if c.Response().Committed {
			logger.WithContext(ctx).WithError(err).Warn("error after response was committed")
			return
		}

		code, message, meta := resolve(err)
		entry := logger.WithContext(ctx).WithError(err).WithField("status", code)
		if code >= http.StatusInternalServerError {
			entry.Error("api is returning an error")
		} else {
			entry.Warn("api is returning an error")
		}

		if kind, ok := meta["error_kind"].(string); ok && kind != "" {
			c.Response().Header().Set(HeaderErrorKind, kind)
		}

		_ = c.JSON(code, ErrorResponse{
			Message:   message,
			RequestID: context.GetRequestID(ctx),
			TraceID:   tracing.GetTraceID(ctx),
			Meta:      meta,
		})
	}
}

// resolve maps domain, echo and ectoerror errors onto a status code, message and metadata.
func resolve(err error) (int, string, map[string]any) {
	if se, ok := apperrors.As(err); ok {
		err = se.ToHTTPError()
	}

	if httperror.IsHTTPError(err) {
		httperr := httperror.ToHTTPError(err)
		meta := httperr.Meta
		if meta == nil {
			meta = map[string]any{}
		}
		return httperror.GetStatusCode(err), httperr.Error(), meta
	}

	if he, ok := err.(*echo.HTTPError); ok {
		message := http.StatusText(he.Code)
		if msg, ok := he.Message.(string); ok {
			message = msg
		}
		return he.Code, message, map[string]any{}
	}

	return http.StatusInternalServerError, "Internal Server Error", map[string]any{}
}
