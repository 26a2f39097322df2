// Package oauth drives the OAuth 2.0 flows exercised by the dashboard and
// reports the outcome of every operation to a Reporter.
package oauth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/sumire/providerlab/internal/domain"
)

// Reporter receives the outcome of each OAuth operation.
type Reporter interface {
	Handle(ctx context.Context, ev domain.OperationEvent) error
}

// ProviderConfig describes the endpoints and credentials of one provider.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	ProfileURL   string
	RevokeURL    string
	RedirectURL  string
	Scopes       []string
	// AuthStyle is "header", "params" or empty for auto-detection.
	AuthStyle string
	// AuthParams are extra query parameters added to the authorization URL.
	AuthParams map[string]string
	PKCE       bool
	// SubjectField is the dotted path of the subject id in the identity
	// payload. Defaults to "sub", falling back to "id".
	SubjectField string
}

type provider struct {
	id           domain.ProviderID
	cfg          *oauth2.Config
	profileURL   string
	revokeURL    string
	authParams   map[string]string
	pkce         bool
	subjectField string
}

// Client runs OAuth flows against the configured providers.
type Client struct {
	providers  map[domain.ProviderID]*provider
	reporter   Reporter
	httpClient *http.Client
	log        *slog.Logger
}

// NewClient builds a Client. Every key of configs must be a supported
// provider identifier.
func NewClient(configs map[string]ProviderConfig, reporter Reporter, httpClient *http.Client, log *slog.Logger) (*Client, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if log == nil {
		log = slog.Default()
	}

	c := &Client{
		providers:  make(map[domain.ProviderID]*provider, len(configs)),
		reporter:   reporter,
		httpClient: httpClient,
		log:        log,
	}

	for name, pc := range configs {
		id, err := domain.ParseProviderID(name)
		if err != nil {
			return nil, err
		}
		if pc.AuthURL == "" || pc.TokenURL == "" {
			return nil, fmt.Errorf("provider %s: auth_url and token_url are required", id)
		}

		c.providers[id] = &provider{
			id: id,
			cfg: &oauth2.Config{
				ClientID:     pc.ClientID,
				ClientSecret: pc.ClientSecret,
				Endpoint: oauth2.Endpoint{
					AuthURL:   pc.AuthURL,
					TokenURL:  pc.TokenURL,
					AuthStyle: authStyle(pc.AuthStyle),
				},
				RedirectURL: pc.RedirectURL,
				Scopes:      pc.Scopes,
			},
			profileURL:   pc.ProfileURL,
			revokeURL:    pc.RevokeURL,
			authParams:   pc.AuthParams,
			pkce:         pc.PKCE,
			subjectField: pc.SubjectField,
		}
	}

	return c, nil
}

func authStyle(s string) oauth2.AuthStyle {
	switch strings.ToLower(s) {
	case "header":
		return oauth2.AuthStyleInHeader
	case "params":
		return oauth2.AuthStyleInParams
	}
	return oauth2.AuthStyleAutoDetect
}

// Configured reports whether the named provider has a configuration.
func (c *Client) Configured(name string) bool {
	_, err := c.lookup(name)
	return err == nil
}

func (c *Client) lookup(name string) (*provider, error) {
	id, err := domain.ParseProviderID(name)
	if err != nil {
		return nil, err
	}
	p, ok := c.providers[id]
	if !ok {
		return nil, fmt.Errorf("%w: provider %s is not configured", domain.ErrNotFound, id)
	}
	return p, nil
}

func (c *Client) withHTTPClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

func (c *Client) report(ctx context.Context, id domain.ProviderID, op domain.Operation, failure any) {
	ev := domain.OperationEvent{Provider: string(id), Operation: op, Err: failure}
	if err := c.reporter.Handle(ctx, ev); err != nil {
		c.log.Error("failed to report operation outcome",
			"provider", id,
			"operation", op,
			"error", err,
		)
	}
}
