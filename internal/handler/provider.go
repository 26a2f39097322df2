package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sumire/providerlab/internal/domain"
)

// ProviderStatuses is the provider status API consumed by ProviderHandler.
type ProviderStatuses interface {
	Get(ctx context.Context, name string) (*domain.Provider, error)
	List(ctx context.Context) ([]domain.Provider, error)
	ListByStatus(ctx context.Context, status string) ([]domain.Provider, error)
	Reset(ctx context.Context) (int64, error)
}

// ProviderHandler serves the provider status table.
type ProviderHandler struct {
	statuses ProviderStatuses
}

// NewProviderHandler creates a new ProviderHandler.
func NewProviderHandler(statuses ProviderStatuses) *ProviderHandler {
	return &ProviderHandler{statuses: statuses}
}

// List returns every provider, or only those with a column in ?status=.
func (h *ProviderHandler) List(c echo.Context) error {
	ctx := c.Request().Context()

	var (
		providers []domain.Provider
		err       error
	)
	if status := c.QueryParam("status"); status != "" {
		providers, err = h.statuses.ListByStatus(ctx, status)
	} else {
		providers, err = h.statuses.List(ctx)
	}
	if err != nil {
		return err
	}

	return JSON(c, http.StatusOK, providers)
}

// Get returns the status row of one provider: 400 for an unknown name, 404
// when the row is absent.
func (h *ProviderHandler) Get(c echo.Context) error {
	p, err := h.statuses.Get(c.Request().Context(), c.Param("name"))
	if err != nil {
		return err
	}
	return JSON(c, http.StatusOK, p)
}

// Reset sets every status column back to untested.
func (h *ProviderHandler) Reset(c echo.Context) error {
	n, err := h.statuses.Reset(c.Request().Context())
	if err != nil {
		return err
	}
	return JSON(c, http.StatusOK, map[string]int64{"reset": n})
}
