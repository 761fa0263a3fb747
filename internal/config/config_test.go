package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("CLASSIFIER_TIMEOUT", "")
	t.Setenv("ESCALATION_BAN_THRESHOLD", "")

	cfg := Load()
	assert.Equal(t, "8787", cfg.Port)
	assert.Equal(t, 5*time.Second, cfg.ClassifierTimeout)
	assert.Equal(t, 4, cfg.EscalationBanThreshold)
	assert.Equal(t, "1:3,2:7,3:30", cfg.EscalationSuspendTiers)
	assert.True(t, cfg.RateLimitEnabled)
	assert.Empty(t, cfg.ClickHouseDSN)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("CLASSIFIER_TIMEOUT", "3")
	t.Setenv("RATE_LIMIT_ENABLED", "false")
	t.Setenv("STORE_BACKEND", "MEMORY")
	t.Setenv("TRACING_SAMPLE_RATE", "0.25")
	t.Setenv("ENV", "staging")

	cfg := Load()
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, 3*time.Second, cfg.ClassifierTimeout)
	assert.False(t, cfg.RateLimitEnabled)
	assert.Equal(t, "memory", cfg.StoreBackend)
	assert.Equal(t, 0.25, cfg.TracingSampleRate)
	assert.Equal(t, "staging", cfg.Environment)
}

func TestEnvHelpersFallBackOnInvalid(t *testing.T) {
	t.Setenv("X_DURATION", "soon")
	t.Setenv("X_INT", "many")
	t.Setenv("X_BOOL", "perhaps")

	assert.Equal(t, time.Minute, envDuration("X_DURATION", time.Minute))
	assert.Equal(t, 7, envInt("X_INT", 7))
	assert.True(t, envBool("X_BOOL", true))
}
