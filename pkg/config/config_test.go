package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyagdi/PriceLess/pkg/validator"
)

type testConfig struct {
	Port     int           `env:"TEST_CFG_PORT" envDefault:"8080" validate:"gt=0,lte=65535"`
	Driver   string        `env:"TEST_CFG_DRIVER" envDefault:"memory" validate:"oneof=memory redis"`
	IdleTTL  time.Duration `env:"TEST_CFG_IDLE_TTL" envDefault:"30m"`
	Brokers  []string      `env:"TEST_CFG_BROKERS" envSeparator:","`
	Enabled  bool          `env:"TEST_CFG_ENABLED" envDefault:"false"`
	Required string        `env:"TEST_CFG_REQUIRED,required"`
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TEST_CFG_REQUIRED", "x")

	var cfg testConfig
	require.NoError(t, Load(&cfg))

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "memory", cfg.Driver)
	assert.Equal(t, 30*time.Minute, cfg.IdleTTL)
	assert.Empty(t, cfg.Brokers)
	assert.False(t, cfg.Enabled)
}

func TestLoad_FromEnvVars(t *testing.T) {
	t.Setenv("TEST_CFG_REQUIRED", "x")
	t.Setenv("TEST_CFG_PORT", "9090")
	t.Setenv("TEST_CFG_DRIVER", "redis")
	t.Setenv("TEST_CFG_IDLE_TTL", "90s")
	t.Setenv("TEST_CFG_BROKERS", "k1:9092,k2:9092")
	t.Setenv("TEST_CFG_ENABLED", "true")

	var cfg testConfig
	require.NoError(t, Load(&cfg))

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "redis", cfg.Driver)
	assert.Equal(t, 90*time.Second, cfg.IdleTTL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Brokers)
	assert.True(t, cfg.Enabled)
}

func TestLoad_MissingRequired(t *testing.T) {
	var cfg testConfig
	err := Load(&cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestLoad_InvalidValue(t *testing.T) {
	t.Setenv("TEST_CFG_REQUIRED", "x")
	t.Setenv("TEST_CFG_PORT", "not-a-number")

	var cfg testConfig
	assert.Error(t, Load(&cfg))
}

func TestLoad_FailsValidation(t *testing.T) {
	t.Setenv("TEST_CFG_REQUIRED", "x")
	t.Setenv("TEST_CFG_DRIVER", "cassandra")

	var cfg testConfig
	err := Load(&cfg)

	require.Error(t, err)
	var valErr *validator.ValidationError
	require.True(t, errors.As(err, &valErr))
	assert.Contains(t, valErr.Fields(), "Driver")
}

func TestLoadWithPrefix(t *testing.T) {
	t.Setenv("APP_TEST_CFG_REQUIRED", "x")
	t.Setenv("APP_TEST_CFG_PORT", "7000")
	t.Setenv("TEST_CFG_PORT", "1")

	var cfg testConfig
	require.NoError(t, LoadWithPrefix(&cfg, "APP_"))
	assert.Equal(t, 7000, cfg.Port)
}
