package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/oauth2"

	"github.com/sumire/providerlab/internal/domain"
)

const maxErrorBody = 4 << 10

// HTTPError is returned when a provider endpoint answers with a non-success
// status.
type HTTPError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// AuthorizeResult is the outcome of a successful authorization callback.
type AuthorizeResult struct {
	Provider domain.ProviderID `json:"provider"`
	Token    *oauth2.Token     `json:"token"`
	Identity map[string]any    `json:"identity"`
}

// AuthCodeURL returns the authorization URL for state. When the provider
// uses PKCE the generated verifier is returned too and must be passed back
// to Authorize.
func (c *Client) AuthCodeURL(name, state string) (authURL, verifier string, err error) {
	p, err := c.lookup(name)
	if err != nil {
		return "", "", err
	}

	opts := make([]oauth2.AuthCodeOption, 0, len(p.authParams)+1)
	for k, v := range p.authParams {
		opts = append(opts, oauth2.SetAuthURLParam(k, v))
	}
	if p.pkce {
		verifier = oauth2.GenerateVerifier()
		opts = append(opts, oauth2.S256ChallengeOption(verifier))
	}

	return p.cfg.AuthCodeURL(state, opts...), verifier, nil
}

// Authorize exchanges code for a token and loads the user's identity. The
// authorize outcome is always reported; the profile outcome is reported when
// the provider has a profile endpoint.
func (c *Client) Authorize(ctx context.Context, name, code, verifier string) (*AuthorizeResult, error) {
	p, err := c.lookup(name)
	if err != nil {
		return nil, err
	}

	var opts []oauth2.AuthCodeOption
	if verifier != "" {
		opts = append(opts, oauth2.VerifierOption(verifier))
	}

	token, err := p.cfg.Exchange(c.withHTTPClient(ctx), code, opts...)
	c.report(ctx, p.id, domain.OperationAuthorize, err)
	if err != nil {
		return nil, fmt.Errorf("%w: %s token exchange: %v", domain.ErrUpstream, p.id, err)
	}

	if p.profileURL == "" || !p.id.Capabilities().ProfileEndpoint {
		return &AuthorizeResult{Provider: p.id, Token: token, Identity: tokenIdentity(p, token)}, nil
	}

	identity, err := c.fetchProfile(ctx, p, token)
	c.report(ctx, p.id, domain.OperationProfile, err)
	if err != nil {
		return nil, fmt.Errorf("%w: %s profile: %v", domain.ErrUpstream, p.id, err)
	}

	return &AuthorizeResult{Provider: p.id, Token: token, Identity: identity}, nil
}

// ReportCallbackError records an error the provider sent to the callback
// instead of an authorization code.
func (c *Client) ReportCallbackError(ctx context.Context, name string, params map[string]any) error {
	id, err := domain.ParseProviderID(name)
	if err != nil {
		return err
	}
	c.report(ctx, id, domain.OperationAuthorize, params)
	return nil
}

// Refresh exchanges a refresh token for a new token and reports the outcome.
func (c *Client) Refresh(ctx context.Context, name, refreshToken string) (*oauth2.Token, error) {
	p, err := c.lookup(name)
	if err != nil {
		return nil, err
	}

	src := p.cfg.TokenSource(c.withHTTPClient(ctx), &oauth2.Token{RefreshToken: refreshToken})
	token, err := src.Token()
	c.report(ctx, p.id, domain.OperationRefresh, err)
	if err != nil {
		return nil, fmt.Errorf("%w: %s refresh: %v", domain.ErrUpstream, p.id, err)
	}
	return token, nil
}

// Revoke revokes token at the provider's revocation endpoint and reports the
// outcome. Providers without a revocation endpoint return
// domain.ErrUnsupported and nothing is reported.
func (c *Client) Revoke(ctx context.Context, name, token, tokenTypeHint string) error {
	p, err := c.lookup(name)
	if err != nil {
		return err
	}
	if p.revokeURL == "" {
		return fmt.Errorf("%w: %s has no revocation endpoint", domain.ErrUnsupported, p.id)
	}

	err = c.revoke(ctx, p, token, tokenTypeHint)
	c.report(ctx, p.id, domain.OperationRevoke, err)
	if err != nil {
		return fmt.Errorf("%w: %s revoke: %v", domain.ErrUpstream, p.id, err)
	}
	return nil
}

func (c *Client) revoke(ctx context.Context, p *provider, token, hint string) error {
	form := url.Values{"token": {token}}
	if hint != "" {
		form.Set("token_type_hint", hint)
	}
	if p.cfg.Endpoint.AuthStyle == oauth2.AuthStyleInParams {
		form.Set("client_id", p.cfg.ClientID)
		form.Set("client_secret", p.cfg.ClientSecret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.revokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if p.cfg.Endpoint.AuthStyle != oauth2.AuthStyleInParams {
		req.SetBasicAuth(url.QueryEscape(p.cfg.ClientID), url.QueryEscape(p.cfg.ClientSecret))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &HTTPError{Op: "revoke", StatusCode: resp.StatusCode, Body: readErrorBody(resp.Body)}
	}
	return nil
}

func (c *Client) fetchProfile(ctx context.Context, p *provider, token *oauth2.Token) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.profileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	token.SetAuthHeader(req)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{Op: "profile", StatusCode: resp.StatusCode, Body: readErrorBody(resp.Body)}
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	var identity map[string]any
	if err := dec.Decode(&identity); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return identity, nil
}

// tokenIdentity builds an identity payload from the token response for
// providers that expose no profile endpoint.
func tokenIdentity(p *provider, token *oauth2.Token) map[string]any {
	identity := map[string]any{}
	for _, key := range append([]string{p.subjectField}, defaultSubjectFields...) {
		if key == "" {
			continue
		}
		if v := token.Extra(key); v != nil {
			identity[key] = v
		}
	}
	return identity
}

func readErrorBody(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	return strings.TrimSpace(string(b))
}

// defaultSubjectFields are tried in order when a provider has no
// subject_field configured.
var defaultSubjectFields = []string{"sub", "id", "userid", "user_id"}

// Subject extracts the subject id of provider from identity.
func (c *Client) Subject(id domain.ProviderID, identity map[string]any) (string, error) {
	fields := defaultSubjectFields
	if p, ok := c.providers[id]; ok && p.subjectField != "" {
		fields = []string{p.subjectField}
	}

	for _, field := range fields {
		v, ok := lookupPath(identity, field)
		if !ok {
			continue
		}
		if s, ok := stringify(v); ok && s != "" {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: no subject in identity (fields %s)", domain.ErrInvalidInput, strings.Join(fields, ", "))
}

func lookupPath(m map[string]any, path string) (any, bool) {
	var cur any = m
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func stringify(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case json.Number:
		return x.String(), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	}
	return "", false
}
