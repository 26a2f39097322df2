package domain

import (
	"fmt"
	"slices"
	"sort"
	"time"
)

// ProviderID identifies an OAuth provider known to the dashboard.
type ProviderID string

// Capabilities describes which parts of the OAuth flow a provider exposes.
type Capabilities struct {
	// ProfileEndpoint is false for providers that have no user profile
	// endpoint; profile success events for them are ignored.
	ProfileEndpoint bool
}

var defaultCapabilities = Capabilities{ProfileEndpoint: true}

var capabilityOverrides = map[ProviderID]Capabilities{
	"withings": {ProfileEndpoint: false},
}

var supportedProviders = []ProviderID{
	"42", "amazoncognito", "anilist", "apple", "atlassian", "auth0", "authentik",
	"autodesk", "battlenet", "bitbucket", "box", "bungie", "coinbase", "discord",
	"donationalerts", "dribbble", "dropbox", "epicgames", "etsy", "facebook",
	"figma", "gitea", "github", "gitlab", "google", "kakao", "keycloak", "kick",
	"lichess", "line", "linear", "linkedin", "mastodon", "mercadolibre",
	"mercadopago", "microsoftentraid", "myanimelist", "naver", "notion", "okta",
	"osu", "patreon", "polar", "reddit", "roblox", "salesforce", "shikimori",
	"slack", "spotify", "startgg", "strava", "synology", "tiktok", "tiltify",
	"tumblr", "twitch", "twitter", "vk", "withings", "workos", "yahoo", "yandex",
	"zoom",
}

func init() {
	sort.Slice(supportedProviders, func(i, j int) bool {
		return supportedProviders[i] < supportedProviders[j]
	})
}

// SupportedProviders returns every known provider identifier in sorted order.
func SupportedProviders() []ProviderID {
	return slices.Clone(supportedProviders)
}

// Valid reports whether p belongs to the supported provider set.
func (p ProviderID) Valid() bool {
	_, found := slices.BinarySearch(supportedProviders, p)
	return found
}

// Capabilities returns the capability record for p.
func (p ProviderID) Capabilities() Capabilities {
	if c, ok := capabilityOverrides[p]; ok {
		return c
	}
	return defaultCapabilities
}

// ParseProviderID validates raw against the supported provider set.
func ParseProviderID(raw string) (ProviderID, error) {
	id := ProviderID(raw)
	if !id.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidProvider, raw)
	}
	return id, nil
}

// Provider is the status row of one OAuth provider.
type Provider struct {
	Name            ProviderID `json:"name" db:"name"`
	AuthorizeStatus Status     `json:"authorize_status" db:"authorize_status"`
	ProfileStatus   Status     `json:"profile_status" db:"profile_status"`
	RefreshStatus   Status     `json:"refresh_status" db:"refresh_status"`
	RevokeStatus    Status     `json:"revoke_status" db:"revoke_status"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

// Status returns the value held by column c.
func (p Provider) Status(c Column) Status {
	switch c {
	case ColumnAuthorize:
		return p.AuthorizeStatus
	case ColumnProfile:
		return p.ProfileStatus
	case ColumnRefresh:
		return p.RefreshStatus
	case ColumnRevoke:
		return p.RevokeStatus
	}
	return ""
}

// WithStatus returns a copy of p with column c set to s.
func (p Provider) WithStatus(c Column, s Status) Provider {
	switch c {
	case ColumnAuthorize:
		p.AuthorizeStatus = s
	case ColumnProfile:
		p.ProfileStatus = s
	case ColumnRefresh:
		p.RefreshStatus = s
	case ColumnRevoke:
		p.RevokeStatus = s
	}
	p.UpdatedAt = time.Now()
	return p
}
