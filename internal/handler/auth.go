package handler

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"golang.org/x/oauth2"

	"github.com/sumire/providerlab/internal/domain"
	"github.com/sumire/providerlab/internal/oauth"
	"github.com/sumire/providerlab/internal/service"
)

const (
	stateCookie    = "oauth_state"
	verifierCookie = "oauth_verifier"
	flowCookieAge  = 600
)

// OAuthFlow runs the provider side of an OAuth flow.
type OAuthFlow interface {
	AuthCodeURL(name, state string) (authURL, verifier string, err error)
	Authorize(ctx context.Context, name, code, verifier string) (*oauth.AuthorizeResult, error)
	ReportCallbackError(ctx context.Context, name string, params map[string]any) error
	Refresh(ctx context.Context, name, refreshToken string) (*oauth2.Token, error)
	Revoke(ctx context.Context, name, token, tokenTypeHint string) error
}

// UserResolver maps provider identities to stored users.
type UserResolver interface {
	ResolveUser(ctx context.Context, provider string, identity map[string]any) (*domain.User, error)
	GetUser(ctx context.Context, subject string) (*domain.User, error)
}

// SessionIssuer issues and refreshes session tokens.
type SessionIssuer interface {
	Issue(subject string) (*service.TokenPair, error)
	Refresh(refreshToken string) (*service.TokenPair, error)
}

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	flow     OAuthFlow
	users    UserResolver
	sessions SessionIssuer
	secure   bool
}

// NewAuthHandler creates a new AuthHandler. secureCookies marks the flow
// cookies Secure and should be set when served over https.
func NewAuthHandler(flow OAuthFlow, users UserResolver, sessions SessionIssuer, secureCookies bool) *AuthHandler {
	return &AuthHandler{flow: flow, users: users, sessions: sessions, secure: secureCookies}
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type revokeRequest struct {
	Token         string `json:"token" validate:"required"`
	TokenTypeHint string `json:"token_type_hint" validate:"omitempty,oneof=access_token refresh_token"`
}

// Redirect sends the user to the provider's consent page.
func (h *AuthHandler) Redirect(c echo.Context) error {
	state, err := generateState()
	if err != nil {
		return err
	}

	authURL, verifier, err := h.flow.AuthCodeURL(c.Param("provider"), state)
	if err != nil {
		return err
	}

	c.SetCookie(h.flowCookie(stateCookie, state, flowCookieAge))
	if verifier != "" {
		c.SetCookie(h.flowCookie(verifierCookie, verifier, flowCookieAge))
	}
	return c.Redirect(http.StatusTemporaryRedirect, authURL)
}

// Callback handles the provider's redirect back to the dashboard.
func (h *AuthHandler) Callback(c echo.Context) error {
	if err := validateOAuthState(c); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	ctx := c.Request().Context()
	provider := c.Param("provider")
	query := c.QueryParams()

	var verifier string
	if cookie, err := c.Cookie(verifierCookie); err == nil {
		verifier = cookie.Value
	}
	c.SetCookie(h.flowCookie(stateCookie, "", -1))
	c.SetCookie(h.flowCookie(verifierCookie, "", -1))

	if reason := query.Get("error"); reason != "" {
		params := make(map[string]any, len(query))
		for k := range query {
			if k == "state" {
				continue
			}
			params[k] = query.Get(k)
		}
		if err := h.flow.ReportCallbackError(ctx, provider, params); err != nil {
			return err
		}
		return fmt.Errorf("%w: provider returned %s", domain.ErrUpstream, reason)
	}

	code := query.Get("code")
	if code == "" {
		return fmt.Errorf("%w: missing code parameter", domain.ErrInvalidInput)
	}

	result, err := h.flow.Authorize(ctx, provider, code, verifier)
	if err != nil {
		return err
	}

	user, err := h.users.ResolveUser(ctx, provider, result.Identity)
	if err != nil {
		return err
	}

	tokens, err := h.sessions.Issue(user.Subject)
	if err != nil {
		return err
	}

	return JSON(c, http.StatusOK, map[string]any{
		"user":           user,
		"tokens":         tokens,
		"provider_token": result.Token,
	})
}

// RefreshProviderToken exercises the provider's refresh grant.
func (h *AuthHandler) RefreshProviderToken(c echo.Context) error {
	var req refreshRequest
	if err := c.Bind(&req); err != nil {
		return fmt.Errorf("%w: invalid request body", domain.ErrInvalidInput)
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	token, err := h.flow.Refresh(c.Request().Context(), c.Param("provider"), req.RefreshToken)
	if err != nil {
		return err
	}
	return JSON(c, http.StatusOK, token)
}

// RevokeProviderToken exercises the provider's revocation endpoint.
func (h *AuthHandler) RevokeProviderToken(c echo.Context) error {
	var req revokeRequest
	if err := c.Bind(&req); err != nil {
		return fmt.Errorf("%w: invalid request body", domain.ErrInvalidInput)
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	if err := h.flow.Revoke(c.Request().Context(), c.Param("provider"), req.Token, req.TokenTypeHint); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the currently authenticated user.
func (h *AuthHandler) Me(c echo.Context) error {
	subject, ok := GetSubject(c)
	if !ok {
		return domain.ErrUnauthorized
	}

	user, err := h.users.GetUser(c.Request().Context(), subject)
	if err != nil {
		return err
	}

	return JSON(c, http.StatusOK, user)
}

// RefreshSession generates a new session token pair from a refresh token.
func (h *AuthHandler) RefreshSession(c echo.Context) error {
	var req refreshRequest
	if err := c.Bind(&req); err != nil {
		return fmt.Errorf("%w: invalid request body", domain.ErrInvalidInput)
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	tokens, err := h.sessions.Refresh(req.RefreshToken)
	if err != nil {
		return err
	}

	return JSON(c, http.StatusOK, tokens)
}

func (h *AuthHandler) flowCookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	}
}

func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func validateOAuthState(c echo.Context) error {
	cookie, err := c.Cookie(stateCookie)
	if err != nil {
		return fmt.Errorf("missing %s cookie", stateCookie)
	}

	queryState := c.QueryParam("state")
	if queryState == "" || queryState != cookie.Value {
		return fmt.Errorf("state mismatch")
	}

	return nil
}
