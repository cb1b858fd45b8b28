package deadline_llm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/turtacn/deadline-agent/internal/intelligence/common"
)

func TestNewConfig_Defaults(t *testing.T) {
	c := NewConfig()
	assert.False(t, c.Enabled)
	assert.Equal(t, DefaultTimeout, c.Timeout)
	assert.Equal(t, DefaultRequestsPerSecond, c.RequestsPerSecond)
	assert.Equal(t, DefaultBurst, c.Burst)
	assert.Equal(t, DefaultMaxInputChars, c.MaxInputChars)
	assert.Equal(t, common.ProviderGemini, c.Model.Provider)
	assert.NoError(t, c.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"disabled without key", func(c *Config) {}, false},
		{"enabled without key", func(c *Config) { c.Enabled = true }, true},
		{"enabled with key", func(c *Config) { c.Enabled = true; c.Model.APIKey = "k" }, false},
		{"enabled static", func(c *Config) {
			c.Enabled = true
			c.Model = common.ModelConfig{Provider: common.ProviderStatic}
		}, false},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, true},
		{"zero burst", func(c *Config) { c.Burst = 0 }, true},
		{"negative ttl", func(c *Config) { c.CacheTTL = -time.Second }, true},
		{"bad template", func(c *Config) { c.PromptTemplate = "{{" }, true},
		{"good template", func(c *Config) { c.PromptTemplate = "{{.Text}} {{.Reference}}" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewConfig()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
