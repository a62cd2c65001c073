package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("SESSION_TTL_SECS", "")
	t.Setenv("SESSION_TOKEN_TTL_SECS", "")
	t.Setenv("SESSION_STORE_PATH", "")
	t.Setenv("ALLOWED_ORIGINS", "")

	c := Load()
	assert.Equal(t, defaultPort, c.Port)
	assert.Equal(t, 86400*time.Second, c.SessionTTL)
	assert.Equal(t, time.Duration(1_209_600)*time.Second, c.SessionTokenTTL)
	assert.NotEmpty(t, c.AllowedOrigins)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("SESSION_TTL_SECS", "120")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")

	c := Load()
	assert.Equal(t, "9090", c.Port)
	assert.Equal(t, 120*time.Second, c.SessionTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, c.AllowedOrigins)
}
