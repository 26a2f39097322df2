package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumire/providerlab/internal/config"
	"github.com/sumire/providerlab/internal/domain"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
database:
  driver: sqlite
  url: "file:` + filepath.Join(dir, "cli.db") + `"
logger:
  level: error
  output: stderr
auth:
  jwt_secret: test-secret
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestProvidersLifecycle(t *testing.T) {
	cfg := writeConfig(t)

	_, err := run(t, "migrate", "up", "--config", cfg)
	require.NoError(t, err)

	out, err := run(t, "migrate", "status", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "00001_init.sql")
	assert.Contains(t, out, "true")

	out, err = run(t, "providers", "seed", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "seeded")

	out, err = run(t, "providers", "seed", "--config", cfg)
	require.NoError(t, err)
	assert.Equal(t, "seeded 0 providers\n", out)

	out, err = run(t, "providers", "list", "--status", "untested", "--config", cfg)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, len(domain.SupportedProviders())+1)
	assert.Contains(t, out, "withings")

	out, err = run(t, "providers", "list", "--status", "failed", "--config", cfg)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 1)

	_, err = run(t, "providers", "list", "--status", "bogus", "--config", cfg)
	assert.Error(t, err)

	out, err = run(t, "providers", "reset", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "reset")

	_, err = run(t, "migrate", "down", "--config", cfg)
	require.NoError(t, err)
}

func TestMissingConfigFile(t *testing.T) {
	_, err := run(t, "providers", "list", "--config", filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestOAuthConfigsUseCallbackURL(t *testing.T) {
	cfg := config.Config{
		Server: config.ServerConfig{BaseURL: "http://localhost:8080/"},
		Providers: map[string]config.ProviderConfig{
			"github": {ClientID: "id", AuthURL: "https://github.com/login/oauth/authorize", TokenURL: "https://github.com/login/oauth/access_token", PKCE: true},
			"gitlab": {ClientID: "id", RedirectURL: "https://example.com/cb"},
		},
	}

	c := oauthConfigs(cfg)
	require.Len(t, c, 2)
	assert.Equal(t, "http://localhost:8080/api/v1/auth/github/callback", c["github"].RedirectURL)
	assert.Equal(t, "https://example.com/cb", c["gitlab"].RedirectURL)
	assert.True(t, c["github"].PKCE)
}

func TestIsHTTPS(t *testing.T) {
	assert.True(t, isHTTPS("https://lab.example.com"))
	assert.False(t, isHTTPS("http://localhost:8080"))
}
