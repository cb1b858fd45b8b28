package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/deadline-agent/internal/domain/calendar"
	"github.com/turtacn/deadline-agent/internal/domain/deadline"
)

const validConfigYAML = `
server:
  http:
    host: "127.0.0.1"
    port: 8088
    rate_limit_rps: 5
  grpc:
    enabled: true
    port: 9099
engine:
  holiday_from_year: 2024
  holiday_to_year: 2026
  extra_holidays:
    - date: "2025-06-13"
      name: "Santo António"
  custom_rules:
    - id: imi
      label: "IMI payment"
      expression: 'text.contains("imi") && text.contains("pagamento")'
      kind: fixed_annual
      month: 5
      day: 31
      priority: high
      legal_basis: "CIMI art. 120.º"
extraction:
  ai_fallback_enabled: false
  max_batch_size: 50
ai:
  enabled: true
  model:
    provider: openai
    api_key: "sk-test"
  timeout: 5s
cache:
  enabled: true
  ttl: 2h
  redis:
    addr: "redis:6379"
messaging:
  enabled: true
  brokers: ["kafka-1:9092", "kafka-2:9092"]
logging:
  level: debug
  format: console
`

func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_FromFile_ValidConfig(t *testing.T) {
	cfg, err := Load(WithConfigPath(createTempConfigFile(t, validConfigYAML)))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8088", cfg.Server.HTTP.Addr())
	assert.Equal(t, 5.0, cfg.Server.HTTP.RateLimitRPS)
	assert.Equal(t, DefaultRateLimitBurst, cfg.Server.HTTP.RateLimitBurst)
	assert.True(t, cfg.Server.GRPC.Enabled)
	assert.Equal(t, 9099, cfg.Server.GRPC.Port)

	assert.Equal(t, 2024, cfg.Engine.HolidayFromYear)
	require.Len(t, cfg.Engine.CustomRules, 1)
	assert.Equal(t, "imi", cfg.Engine.CustomRules[0].ID)
	assert.Equal(t, deadline.KindFixedAnnual, cfg.Engine.CustomRules[0].Kind)

	assert.True(t, cfg.Extraction.DateParserEnabled, "unset switches keep their default")
	assert.False(t, cfg.Extraction.AIFallbackEnabled)
	assert.Equal(t, 50, cfg.Extraction.MaxBatchSize)

	assert.Equal(t, "openai", cfg.AI.Model.Provider)
	assert.Equal(t, 5*time.Second, cfg.AI.Timeout)
	assert.Equal(t, 2*time.Hour, cfg.Cache.TTL)
	assert.Equal(t, "redis:6379", cfg.Cache.Redis.Addr)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Messaging.Brokers)
	assert.Equal(t, "deadline.extract.requested", cfg.Messaging.Topics.Requested)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "deadline", cfg.Metrics.Namespace)
}

func TestEngineConfig_HolidaySet(t *testing.T) {
	cfg, err := Load(WithConfigPath(createTempConfigFile(t, validConfigYAML)))
	require.NoError(t, err)

	set, err := cfg.Engine.HolidaySet()
	require.NoError(t, err)
	assert.True(t, set.Contains(calendar.NewDate(2025, time.June, 13)))
	assert.Equal(t, "Santo António", set.Name(calendar.NewDate(2025, time.June, 13)))
	assert.True(t, set.Contains(calendar.NewDate(2025, time.June, 10)))
	assert.False(t, set.Contains(calendar.NewDate(2030, time.June, 10)), "outside the configured range")
}

func TestEngineConfig_HolidaySet_OpenRange(t *testing.T) {
	set, err := Default().Engine.HolidaySet()
	require.NoError(t, err)
	assert.True(t, set.Contains(calendar.NewDate(1999, time.December, 25)))
	assert.True(t, set.Contains(calendar.NewDate(2077, time.April, 25)))

	from := EngineConfig{HolidayFromYear: 2030}
	set, err = from.HolidaySet()
	require.NoError(t, err)
	assert.False(t, set.Contains(calendar.NewDate(2029, time.December, 25)))
	assert.True(t, set.Contains(calendar.NewDate(2090, time.December, 25)))

	to := EngineConfig{HolidayToYear: 2030}
	set, err = to.HolidaySet()
	require.NoError(t, err)
	assert.True(t, set.Contains(calendar.NewDate(2001, time.December, 25)))
	assert.False(t, set.Contains(calendar.NewDate(2031, time.December, 25)))
}

func TestLoad_FromFile_FileNotFound(t *testing.T) {
	_, err := Load(WithConfigPath(filepath.Join(t.TempDir(), "missing.yaml")))
	assert.ErrorIs(t, err, ErrConfigFileNotFound)
}

func TestLoad_FromFile_InvalidYAML(t *testing.T) {
	_, err := LoadFromFile(createTempConfigFile(t, "server: [unclosed"))
	assert.ErrorIs(t, err, ErrConfigParseError)
}

func TestLoad_ValidationFailures(t *testing.T) {
	tests := map[string]string{
		"port out of range":          "server:\n  http:\n    port: 70000\n",
		"inverted holiday range":     "engine:\n  holiday_from_year: 2030\n  holiday_to_year: 2020\n",
		"negative holiday year":      "engine:\n  holiday_to_year: -1\n",
		"bad extra holiday":          "engine:\n  extra_holidays:\n    - date: \"13/06/2025\"\n",
		"bad custom rule":            "engine:\n  custom_rules:\n    - id: x\n      expression: 'text.contains('\n      kind: business_days\n      days: 5\n",
		"duplicate custom rule":      "engine:\n  custom_rules:\n    - {id: x, expression: 'text.contains(\"a\")', kind: business_days, days: 5}\n    - {id: x, expression: 'text.contains(\"b\")', kind: business_days, days: 5}\n",
		"bad log level":              "logging:\n  level: verbose\n",
		"negative business figure":   "business:\n  hourly_rate: -1\n",
		"negative messaging retries": "messaging:\n  enabled: true\n  max_retries: -2\n",
		"grpc on http port":          "server:\n  grpc:\n    enabled: true\n    port: 8080\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadFromFile(createTempConfigFile(t, content))
			assert.ErrorIs(t, err, ErrConfigValidation)
		})
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("DEADLINE_SERVER_HTTP_PORT", "9191")
	t.Setenv("DEADLINE_AI_MODEL_API_KEY", "from-env")
	t.Setenv("DEADLINE_MESSAGING_BROKERS", "a:9092,b:9092")

	cfg, err := LoadFromFile(createTempConfigFile(t, validConfigYAML))
	require.NoError(t, err)
	assert.Equal(t, 9191, cfg.Server.HTTP.Port)
	assert.Equal(t, "from-env", cfg.AI.Model.APIKey)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Messaging.Brokers)
}

func TestLoad_Overrides(t *testing.T) {
	cfg, err := Load(
		WithConfigPath(createTempConfigFile(t, validConfigYAML)),
		WithOverrides(map[string]interface{}{"server.http.port": 7070, "logging.level": "warn"}),
	)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.HTTP.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoad_SearchPaths(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server:\n  http:\n    port: 8181\n"), 0o644))

	cfg, err := Load(WithSearchPaths(filepath.Join(dir, "missing"), dir))
	require.NoError(t, err)
	assert.Equal(t, 8181, cfg.Server.HTTP.Port)

	cfg, err = Load(WithSearchPaths(t.TempDir()))
	require.NoError(t, err, "no file in the search paths falls back to defaults")
	assert.Equal(t, DefaultHTTPPort, cfg.Server.HTTP.Port)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DEADLINE_LOGGING_LEVEL", "error")
	t.Setenv("DEADLINE_EXTRACTION_DATE_PARSER_ENABLED", "false")
	t.Setenv("DEADLINE_CACHE_ENABLED", "true")
	t.Setenv("DEADLINE_CACHE_REDIS_ADDR", "cache:6379")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Logging.Level)
	assert.False(t, cfg.Extraction.DateParserEnabled)
	assert.True(t, cfg.Extraction.AIFallbackEnabled)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, "cache:6379", cfg.Cache.Redis.Addr)
}

func TestMustLoad_Panics(t *testing.T) {
	assert.Panics(t, func() { MustLoad(WithConfigPath("/nonexistent/config.yaml")) })
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	path := createTempConfigFile(t, "logging:\n  level: info\n")

	changed := make(chan *Config, 4)
	require.NoError(t, Watch(path, func(c *Config) {
		select {
		case changed <- c:
		default:
		}
	}, nil))

	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0o644))

	select {
	case cfg := <-changed:
		assert.Equal(t, "debug", cfg.Logging.Level)
	case <-time.After(5 * time.Second):
		t.Fatal("config change was not observed")
	}
}

func TestWatch_MissingFile(t *testing.T) {
	err := Watch(filepath.Join(t.TempDir(), "nope.yaml"), func(*Config) {}, nil)
	assert.ErrorIs(t, err, ErrConfigFileNotFound)
}
