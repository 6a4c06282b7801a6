package agentconfig

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sylo/internal/connection"
)

const baseURL = "https://gateway.test"

func fixedClock() func() time.Time {
	at := time.Date(2025, 3, 15, 14, 30, 0, 0, time.UTC)
	return func() time.Time { return at }
}

func seededStore(t *testing.T, userID string, services ...string) connection.Store {
	t.Helper()
	store := connection.NewMemoryStore()
	for _, svc := range services {
		require.NoError(t, store.Upsert(context.Background(), &connection.Connection{
			UserID:   userID,
			Service:  svc,
			Scopes:   []string{svc + ".read"},
			IsActive: true,
		}))
	}
	return store
}

func TestGenerateBuildsServiceEntries(t *testing.T) {
	gen := NewGenerator(seededStore(t, "u1", "gmail", "xero"), baseURL, WithClock(fixedClock()))

	cfg, err := gen.Generate(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, "1.0", cfg.MCPVersion)
	assert.Equal(t, "u1", cfg.Agent.UserID)
	assert.Equal(t, cfg.GeneratedAt.Add(24*time.Hour), cfg.ExpiresAt)

	require.Len(t, cfg.Services, 2)
	gmail := cfg.Services[0]
	assert.Equal(t, "gmail", gmail.Name)
	assert.Equal(t, "email", gmail.Type)
	assert.Equal(t, "active", gmail.Status)
	assert.Equal(t, baseURL+"/webhook/gmail/read", gmail.Endpoints.Read)
	assert.Equal(t, "hmac", gmail.Authentication.Type)
	assert.Equal(t, "{{WEBHOOK_SECRET}}", gmail.Authentication.Key)
	assert.Contains(t, gmail.Capabilities, "send_emails")
	assert.Equal(t, []string{"gmail.read"}, gmail.Scopes)

	assert.Equal(t, "accounting", cfg.Services[1].Type)

	assert.Equal(t, baseURL+"/context", cfg.Context.BaseURL)
	assert.Equal(t, "markdown", cfg.Context.Format)
	assert.Equal(t, baseURL+"/webhook", cfg.Webhooks.BaseURL)
	assert.Equal(t, "X-Signature", cfg.Webhooks.Authentication.Header)
	assert.Equal(t, 30000, cfg.Webhooks.TimeoutMs)
}

func TestGenerateUnknownServiceType(t *testing.T) {
	gen := NewGenerator(seededStore(t, "u1", "slack"), baseURL, WithClock(fixedClock()))

	cfg, err := gen.Generate(context.Background(), "u1")
	require.NoError(t, err)

	require.Len(t, cfg.Services, 1)
	assert.Equal(t, "unknown", cfg.Services[0].Type)
	assert.Empty(t, cfg.Services[0].Capabilities)
}

func TestGenerateNoConnections(t *testing.T) {
	gen := NewGenerator(connection.NewMemoryStore(), baseURL, WithClock(fixedClock()))

	cfg, err := gen.Generate(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, cfg.Services)
}

func TestValidateFreshManifest(t *testing.T) {
	gen := NewGenerator(seededStore(t, "u1", "asana"), baseURL, WithClock(fixedClock()))

	cfg, err := gen.Generate(context.Background(), "u1")
	require.NoError(t, err)

	v := gen.Validate(cfg)
	assert.True(t, v.Valid)
	assert.Empty(t, v.Errors)
	assert.Empty(t, v.Warnings)
}

func TestValidateFlagsProblems(t *testing.T) {
	gen := NewGenerator(connection.NewMemoryStore(), baseURL, WithClock(fixedClock()))

	cfg, err := gen.Generate(context.Background(), "u1")
	require.NoError(t, err)

	v := gen.Validate(cfg)
	assert.False(t, v.Valid)
	assert.Contains(t, v.Errors, "No services configured")
}

func TestValidateExpiry(t *testing.T) {
	gen := NewGenerator(seededStore(t, "u1", "gmail"), baseURL, WithClock(fixedClock()))

	cfg, err := gen.Generate(context.Background(), "u1")
	require.NoError(t, err)

	expired := *cfg
	expired.ExpiresAt = fixedClock()().Add(-time.Minute)
	v := gen.Validate(&expired)
	assert.Contains(t, v.Errors, "Configuration has expired")

	soon := *cfg
	soon.ExpiresAt = fixedClock()().Add(30 * time.Minute)
	v = gen.Validate(&soon)
	assert.True(t, v.Valid)
	assert.Contains(t, v.Warnings, "Configuration expires soon")
}
