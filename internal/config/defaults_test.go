package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/deadline-agent/internal/domain/deadline"
	"github.com/turtacn/deadline-agent/internal/infrastructure/document"
)

func TestApplyDefaults_EmptyConfig(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	assert.Equal(t, DefaultHTTPHost, cfg.Server.HTTP.Host)
	assert.Equal(t, DefaultHTTPPort, cfg.Server.HTTP.Port)
	assert.Zero(t, cfg.Server.HTTP.RateLimitBurst, "burst stays unset while limiting is off")
	assert.Equal(t, DefaultGRPCPort, cfg.Server.GRPC.Port)
	assert.Equal(t, deadline.DefaultMaxRelativeDays, cfg.Engine.MaxRelativeDays)
	assert.Zero(t, cfg.Engine.HolidayFromYear, "no holiday range by default")
	assert.Zero(t, cfg.Engine.HolidayToYear)
	assert.Equal(t, DefaultCacheTTL, cfg.Cache.TTL)
	assert.Equal(t, DefaultRedisAddr, cfg.Cache.Redis.Addr)
	assert.Equal(t, "standalone", cfg.Cache.Redis.Mode)
	assert.Equal(t, int64(document.DefaultMaxBytes), cfg.Document.MaxBytes)
	assert.Equal(t, 52, cfg.Business.WeeksPerYear)
	assert.Equal(t, 75.0, cfg.Business.HourlyRate)
	assert.Equal(t, "gemini", cfg.AI.Model.Provider)
}

func TestApplyDefaults_PreserveExistingValues(t *testing.T) {
	cfg := &Config{}
	cfg.Server.HTTP.Port = 9999
	cfg.Business.HourlyRate = 90
	cfg.Logging.Level = "debug"
	ApplyDefaults(cfg)

	assert.Equal(t, 9999, cfg.Server.HTTP.Port)
	assert.Equal(t, 90.0, cfg.Business.HourlyRate)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestApplyDefaults_NilIsIgnored(t *testing.T) {
	assert.NotPanics(t, func() { ApplyDefaults(nil) })
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.Extraction.DateParserEnabled)
	assert.True(t, cfg.Extraction.AIFallbackEnabled)
	assert.True(t, cfg.Metrics.Enabled)
	assert.False(t, cfg.AI.Enabled)
}
