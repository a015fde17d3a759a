package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("REALTIME_BACKEND", "")
	t.Setenv("LIFECYCLE_SLA_HOURS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, RealtimeMemory, cfg.Realtime.Backend)
	assert.Equal(t, 48*time.Hour, cfg.Lifecycle.SLAWindow())
	assert.Equal(t, 48*time.Hour, cfg.Lifecycle.ReopenWindow())
	assert.Equal(t, 48*time.Hour, cfg.Lifecycle.AutoCloseAfter())
	assert.True(t, cfg.Lifecycle.EscalationEnabled)
	assert.Equal(t, 10, cfg.Notification.PageSize)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LIFECYCLE_SWEEP_INTERVAL", "30s")
	t.Setenv("LIFECYCLE_ESCALATION_ENABLED", "false")
	t.Setenv("REALTIME_BACKEND", "NATS")
	t.Setenv("NATS_URL", "nats://127.0.0.1:4222")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.Lifecycle.SweepInterval)
	assert.False(t, cfg.Lifecycle.EscalationEnabled)
	assert.Equal(t, RealtimeNATS, cfg.Realtime.Backend)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"zero sla", func(c *Config) { c.Lifecycle.SLAHours = 0 }, "lifecycle windows"},
		{"redis without addr", func(c *Config) { c.Realtime.Backend = RealtimeRedis }, "REDIS_ADDR"},
		{"unknown backend", func(c *Config) { c.Realtime.Backend = "kafka" }, "unknown REALTIME_BACKEND"},
		{"empty secret", func(c *Config) { c.Auth.JWTSecret = "" }, "AUTH_JWT_SECRET"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
	require.NoError(t, validConfig().Validate())
}

func validConfig() *Config {
	return &Config{
		Realtime: RealtimeConfig{Backend: RealtimeMemory},
		Auth:     AuthConfig{JWTSecret: "secret"},
		Lifecycle: LifecycleConfig{
			SLAHours:          48,
			ReopenWindowHours: 48,
			AutoCloseHours:    48,
			SweepInterval:     time.Minute,
		},
	}
}
