package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
name: test-gateway
host: 127.0.0.1
port: 8000
log_level: debug
auth:
  jwt_secret: secret
storage:
  db_type: sqlite
  db_path: test.db
instruments:
  - { symbol: AAPL, class: stock, base_price: 150.0 }
  - { symbol: BTC-USD, class: crypto, base_price: 45000.0 }
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// -----------------------------------------------------------------------------

func TestNewConfig_LoadsAndAppliesDefaults(t *testing.T) {
	cfg, err := NewConfig(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, "test-gateway", cfg.Name)
	assert.Equal(t, 8000, cfg.Port)
	assert.Len(t, cfg.Instruments, 2)

	// Omitted sections fall back to defaults
	assert.Equal(t, DefaultAuthTimeoutSeconds, cfg.Auth.AuthTimeoutSeconds)
	assert.Equal(t, DefaultUpdateIntervalSeconds, cfg.Simulator.UpdateIntervalSeconds)
	assert.Equal(t, DefaultMaxSubscriptions, cfg.Simulator.MaxSubscriptions)
	assert.Equal(t, DefaultHistoryDepth, cfg.Simulator.HistoryDepth)
	assert.Equal(t, DefaultRetentionDays, cfg.Storage.RetentionDays)
}

func TestNewConfig_MissingFile(t *testing.T) {
	_, err := NewConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestNewConfig_BadYAML(t *testing.T) {
	_, err := NewConfig(writeConfig(t, "name: [unclosed"))
	assert.Error(t, err)
}

func TestNewConfig_ValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing name", `
host: 127.0.0.1
port: 8000
auth: { jwt_secret: s }
storage: { db_type: sqlite, db_path: t.db }
instruments: [{ symbol: AAPL, class: stock, base_price: 150.0 }]
`},
		{"privileged port", `
name: x
host: 127.0.0.1
port: 80
auth: { jwt_secret: s }
storage: { db_type: sqlite, db_path: t.db }
instruments: [{ symbol: AAPL, class: stock, base_price: 150.0 }]
`},
		{"missing jwt secret", `
name: x
host: 127.0.0.1
port: 8000
storage: { db_type: sqlite, db_path: t.db }
instruments: [{ symbol: AAPL, class: stock, base_price: 150.0 }]
`},
		{"postgres without connection string", `
name: x
host: 127.0.0.1
port: 8000
auth: { jwt_secret: s }
storage: { db_type: postgres }
instruments: [{ symbol: AAPL, class: stock, base_price: 150.0 }]
`},
		{"no instruments", `
name: x
host: 127.0.0.1
port: 8000
auth: { jwt_secret: s }
storage: { db_type: sqlite, db_path: t.db }
`},
		{"duplicate symbols", `
name: x
host: 127.0.0.1
port: 8000
auth: { jwt_secret: s }
storage: { db_type: sqlite, db_path: t.db }
instruments:
  - { symbol: AAPL, class: stock, base_price: 150.0 }
  - { symbol: AAPL, class: etf, base_price: 150.0 }
`},
		{"unknown class", `
name: x
host: 127.0.0.1
port: 8000
auth: { jwt_secret: s }
storage: { db_type: sqlite, db_path: t.db }
instruments: [{ symbol: AAPL, class: bond, base_price: 150.0 }]
`},
		{"non-positive base price", `
name: x
host: 127.0.0.1
port: 8000
auth: { jwt_secret: s }
storage: { db_type: sqlite, db_path: t.db }
instruments: [{ symbol: AAPL, class: stock, base_price: 0 }]
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConfig(writeConfig(t, tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestConfig_SaveRoundTrip(t *testing.T) {
	cfg, err := NewConfig(writeConfig(t, validYAML))
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "saved.yaml")
	require.NoError(t, cfg.Save(out))

	reloaded, err := NewConfig(out)
	require.NoError(t, err)
	assert.Equal(t, cfg.Name, reloaded.Name)
	assert.Equal(t, cfg.Instruments, reloaded.Instruments)
}
