package handler

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// RouterConfig carries the handlers and settings the router is built from.
type RouterConfig struct {
	Auth         *AuthHandler
	Providers    *ProviderHandler
	ErrorLogs    *ErrorLogHandler
	Tokens       TokenValidator
	Logger       *slog.Logger
	AllowOrigins []string
}

// NewRouter builds the echo instance serving the API.
func NewRouter(cfg RouterConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = NewAppValidator()
	e.HTTPErrorHandler = HTTPErrorHandler

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(RequestLogger(cfg.Logger))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.AllowOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderAccept, echo.HeaderAuthorization, echo.HeaderContentType},
		ExposeHeaders:    []string{echo.HeaderXRequestID},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	e.GET("/health", func(c echo.Context) error {
		return JSON(c, http.StatusOK, map[string]string{"status": "ok"})
	})

	api := e.Group("/api/v1")
	protected := JWTAuth(cfg.Tokens)

	// Auth routes (public)
	auth := api.Group("/auth")
	auth.GET("/me", cfg.Auth.Me, protected)
	auth.GET("/:provider", cfg.Auth.Redirect)
	auth.GET("/:provider/callback", cfg.Auth.Callback)
	auth.POST("/:provider/refresh", cfg.Auth.RefreshProviderToken)
	auth.POST("/:provider/revoke", cfg.Auth.RevokeProviderToken)
	api.POST("/session/refresh", cfg.Auth.RefreshSession)

	providers := api.Group("/providers")
	providers.GET("", cfg.Providers.List)
	providers.POST("/reset", cfg.Providers.Reset, protected)
	providers.GET("/:name", cfg.Providers.Get)

	api.GET("/error-logs", cfg.ErrorLogs.List, protected)

	return e
}
