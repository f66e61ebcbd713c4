package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
bot:
  token: "123:abc"
server:
  port: ":9090"
database:
  host: localhost
  port: 5432
  user: oasis
  name: oasis
redis:
  addr: localhost:6379
services:
  payment_api:
    base_url: http://localhost:8082
clerk:
  secret_key: sk_test
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFile_AppliesDefaults(t *testing.T) {
	cfg, v, err := LoadFile(writeConfig(t, minimalYAML), "test")
	require.NoError(t, err)
	require.NotNil(t, v)

	assert.Equal(t, "test", cfg.AppEnv)
	assert.Equal(t, DefaultUserAPI, cfg.Services.UserAPI.BaseURL)
	assert.Equal(t, DefaultPostAPI, cfg.Services.PostAPI.BaseURL)
	assert.Equal(t, "http://localhost:8082", cfg.Services.PaymentAPI.BaseURL)
	assert.Equal(t, DefaultTokenTemplate, cfg.Clerk.TokenTemplate)
	assert.Equal(t, 2*time.Second, cfg.Purchase.PollInterval)
	assert.Equal(t, 30, cfg.Purchase.MaxPollAttempts)
	assert.Equal(t, "polling", cfg.Bot.Mode)
}

func TestLoadFile_EnvOverride(t *testing.T) {
	t.Setenv("CLERK_SECRET_KEY", "sk_from_env")
	t.Setenv("PURCHASE_MAX_POLL_ATTEMPTS", "5")

	body := minimalYAML + `
purchase:
  max_poll_attempts: 30
`
	cfg, _, err := LoadFile(writeConfig(t, body), "test")
	require.NoError(t, err)

	assert.Equal(t, "sk_from_env", cfg.Clerk.SecretKey)
	assert.Equal(t, 5, cfg.Purchase.MaxPollAttempts)
}

func TestLoadFile_ValidationErrors(t *testing.T) {
	testCases := []struct {
		name string
		body string
	}{
		{
			name: "missing bot token",
			body: `
server: {port: ":9090"}
database: {host: h, port: 1, user: u, name: n}
redis: {addr: a}
services: {payment_api: {base_url: "http://p"}}
clerk: {secret_key: s}
`,
		},
		{
			name: "webhook without url",
			body: strings.Replace(minimalYAML, `token: "123:abc"`, "token: \"123:abc\"\n  mode: webhook", 1),
		},
		{
			name: "bad log level",
			body: minimalYAML + `
logger:
  level: loud
`,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := LoadFile(writeConfig(t, tc.body), "test")
			assert.Error(t, err)
		})
	}
}

func TestLoadFile_MissingFile(t *testing.T) {
	_, _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"), "test")
	assert.ErrorContains(t, err, "read config")
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "n"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=n sslmode=disable", cfg.DSN())
}
