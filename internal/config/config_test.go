package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"insurance-ledger/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "LEDGER_STORE", "LEDGER_FUNDS", "LEDGER_TREASURY", "LEDGER_TICK_DURATION", "SWEEP_WORKERS", "POSTGRES_RETRY_WAIT", "RABBITMQ_LEDGER_QUEUE", "RABBITMQ_RETRY_WAIT"} {
		t.Setenv(key, "")
	}
	cfg := New()

	assert.Equal(t, "8090", cfg.Port)
	assert.Equal(t, "postgres", cfg.StoreDriver)
	assert.Equal(t, "redis", cfg.FundsDriver)
	assert.Equal(t, "treasury", cfg.LedgerCfg.Treasury)
	assert.Equal(t, 10*time.Minute, cfg.LedgerCfg.TickDuration)
	assert.Equal(t, 2, cfg.SweepCfg.Workers)
	assert.Equal(t, 5*time.Second, cfg.PostgresCfg.RetryWait)
	assert.Equal(t, "ledger_events", cfg.RabbitMQCfg.Queue)
	assert.Equal(t, 2*time.Second, cfg.RabbitMQCfg.RetryWait)
}

func TestNew_EnvironmentOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("LEDGER_STORE", "memory")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("RABBITMQ_ENABLED", "false")
	t.Setenv("LEDGER_TICK_DURATION", "1m")
	t.Setenv("SWEEP_WORKERS", "not-a-number")

	cfg := New()

	assert.Equal(t, "9999", cfg.Port)
	assert.Equal(t, "memory", cfg.StoreDriver)
	assert.Equal(t, 3, cfg.RedisCfg.DB)
	assert.False(t, cfg.RabbitMQCfg.Enabled)
	assert.Equal(t, time.Minute, cfg.LedgerCfg.TickDuration)
	assert.Equal(t, 2, cfg.SweepCfg.Workers, "unparseable values fall back to the default")
}

// ============================================================================
// PARAMETER FILE TESTS
// ============================================================================

func writeParams(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "params.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadParameters_NoFileUsesDefaults(t *testing.T) {
	params, err := LoadParameters("")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultParameters(), params)
}

func TestLoadParameters_PartialOverride(t *testing.T) {
	path := writeParams(t, "min_premium: 25\nclaim_fee: 7\n")

	params, err := LoadParameters(path)
	require.NoError(t, err)

	expected := models.DefaultParameters()
	expected.MinPremium = 25
	expected.ClaimFee = 7
	assert.Equal(t, expected, params)
}

func TestLoadParameters_RejectsInvalidValues(t *testing.T) {
	path := writeParams(t, "max_discount: 20\ndiscount_rate: 30\n")

	_, err := LoadParameters(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "discount_rate 30 exceeds max_discount 20")
}

func TestLoadParameters_MalformedYAML(t *testing.T) {
	path := writeParams(t, "min_term: [oops\n")

	_, err := LoadParameters(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse parameters file")
}

func TestLoadParameters_MissingFile(t *testing.T) {
	_, err := LoadParameters(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
