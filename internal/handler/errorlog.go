package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/sumire/providerlab/internal/domain"
)

const (
	defaultErrorLogLimit = 50
	maxErrorLogLimit     = 200
)

// ErrorLogReader lists stored error logs.
type ErrorLogReader interface {
	RecentErrors(ctx context.Context, limit int) ([]domain.ErrorLog, error)
	RecentUnknown(ctx context.Context, limit int) ([]domain.UnknownErrorLog, error)
}

// ErrorLogHandler exposes the error logs to the dashboard.
type ErrorLogHandler struct {
	logs ErrorLogReader
}

// NewErrorLogHandler creates a new ErrorLogHandler.
func NewErrorLogHandler(logs ErrorLogReader) *ErrorLogHandler {
	return &ErrorLogHandler{logs: logs}
}

// List returns the newest entries of the log selected by ?kind=.
func (h *ErrorLogHandler) List(c echo.Context) error {
	limit := defaultErrorLogLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxErrorLogLimit {
			return &domain.ValidationError{Field: "limit", Message: fmt.Sprintf("must be between 1 and %d", maxErrorLogLimit)}
		}
		limit = n
	}

	// Fetch one extra row to know whether the list was truncated.
	ctx := c.Request().Context()
	switch domain.ErrorLogKind(c.QueryParam("kind")) {
	case domain.ErrorLogKindError, "":
		logs, err := h.logs.RecentErrors(ctx, limit+1)
		if err != nil {
			return err
		}
		more := len(logs) > limit
		if more {
			logs = logs[:limit]
		}
		return JSONList(c, http.StatusOK, logs, PaginationMeta{Limit: limit, Count: len(logs), HasMore: more})
	case domain.ErrorLogKindUnknown:
		logs, err := h.logs.RecentUnknown(ctx, limit+1)
		if err != nil {
			return err
		}
		more := len(logs) > limit
		if more {
			logs = logs[:limit]
		}
		return JSONList(c, http.StatusOK, logs, PaginationMeta{Limit: limit, Count: len(logs), HasMore: more})
	default:
		return &domain.ValidationError{Field: "kind", Message: "must be error or unknown"}
	}
}
