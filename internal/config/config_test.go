package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Environment: "development",
		Throttle: ThrottleConfig{
			Store:         "memory",
			SweepInterval: time.Hour,
		},
	}
}

func TestValidateAcceptsKnownStores(t *testing.T) {
	for _, store := range []string{"scylla", "redis", "memory"} {
		cfg := validConfig()
		cfg.Throttle.Store = store
		assert.NoError(t, cfg.Validate(), store)
	}
}

func TestValidateRejectsUnknownStore(t *testing.T) {
	cfg := validConfig()
	cfg.Throttle.Store = "postgres"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsMemoryStoreInProduction(t *testing.T) {
	cfg := validConfig()
	cfg.Environment = "production"
	cfg.Throttle.Store = "memory"
	assert.Error(t, cfg.Validate())

	cfg.Throttle.Store = "scylla"
	assert.NoError(t, cfg.Validate())
}

func TestValidateRequiresDomainForAutocert(t *testing.T) {
	cfg := validConfig()
	cfg.Server.EnableTLS = true
	cfg.Server.AutoCert = true
	assert.Error(t, cfg.Validate())

	cfg.Server.Domain = "throttle.velvetgalaxy.example"
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsNegativeSweepInterval(t *testing.T) {
	cfg := validConfig()
	cfg.Throttle.SweepInterval = -time.Minute
	assert.Error(t, cfg.Validate())

	// Zero disables the sweeper and is allowed.
	cfg.Throttle.SweepInterval = 0
	assert.NoError(t, cfg.Validate())
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("CFG_TEST_INT", "42")
	t.Setenv("CFG_TEST_BOOL", "true")
	t.Setenv("CFG_TEST_DURATION", "90s")
	t.Setenv("CFG_TEST_LIST", "a, b ,,c")

	assert.Equal(t, 42, getEnvInt("CFG_TEST_INT", 7))
	assert.Equal(t, 7, getEnvInt("CFG_TEST_MISSING", 7))
	assert.True(t, getEnvBool("CFG_TEST_BOOL", false))
	assert.Equal(t, 90*time.Second, getEnvDuration("CFG_TEST_DURATION", time.Minute))
	require.Equal(t, []string{"a", "b", "c"}, getEnvList("CFG_TEST_LIST", nil))
	assert.Equal(t, []string{"x"}, getEnvList("CFG_TEST_MISSING", []string{"x"}))
}

func TestDefaultStorePerEnvironment(t *testing.T) {
	assert.Equal(t, "scylla", defaultStore("production"))
	assert.Equal(t, "memory", defaultStore("development"))
	assert.Equal(t, "memory", defaultStore("staging"))
}
