package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Server.Port)
	assert.Equal(t, 0.5, cfg.Alerts.TrapMTDThreshold)
	assert.Equal(t, 30, cfg.Alerts.ExpiringWindowDays)
	assert.Equal(t, 100, cfg.Field.RacimosPorTanda)
	assert.Equal(t, 7, cfg.Field.TrapEvaluationDays)
	assert.Equal(t, 10*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, "America/Lima", cfg.Location().String())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("RACIMOS_POR_TANDA", "120")
	t.Setenv("ALERT_TRAP_MTD_THRESHOLD", "0.8")
	t.Setenv("QUEUE_BACKEND", "badger")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, 120, cfg.Field.RacimosPorTanda)
	assert.Equal(t, 0.8, cfg.Alerts.TrapMTDThreshold)
	assert.Equal(t, "badger", cfg.Queue.Backend)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fundo.yaml")
	require.NoError(t, os.WriteFile(path, []byte("field:\n  trap_evaluation_days: 14\n"), 0o600))
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, 14, cfg.Field.TrapEvaluationDays)
}

func TestValidateRejectsBadKnobs(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("TRAP_EVALUATION_DAYS", "0")
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TRAP_EVALUATION_DAYS")
}
