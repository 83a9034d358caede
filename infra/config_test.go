package infra

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const defaultTOML = `
[server]
host = "127.0.0.1"
port = 8080
workers = 4

[logging]
level = "info"
file_output = false
file_path = "logs/candlecast.log"

[[tokens.supported_tokens]]
symbol = "DOGE"
base_price = 0.15
volatility = 5.0

[[tokens.supported_tokens]]
symbol = "SHIB"
base_price = 0.00005
volatility = 8.0

[data_generation]
enabled = true
interval_ms = 100
volatility = 0.02
volume_range = [100.0, 1000.0]

[performance]
worker_threads = 4
websocket_heartbeat_interval = 5
client_timeout = 10
kline_retention_hours = 24
max_websocket_connections = 1000
sweep_interval_ms = 1000
`

func writeConfigDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

func TestLoadConfigDefaults(t *testing.T) {
	dir := writeConfigDir(t, map[string]string{"default.toml": defaultTOML})

	cfg, err := loadConfigFiles(dir, "development")
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr())
	assert.Equal(t, []string{"DOGE", "SHIB"}, cfg.Symbols())
	assert.Equal(t, 0.15, cfg.Tokens.SupportedTokens[0].BasePrice)
	assert.True(t, cfg.DataGeneration.Enabled)
	assert.Equal(t, 100*time.Millisecond, cfg.DataGeneration.Interval())
	assert.Equal(t, 5*time.Second, cfg.Performance.HeartbeatInterval())
	assert.Equal(t, 10*time.Second, cfg.Performance.ClientTimeoutInterval())
	assert.Equal(t, time.Second, cfg.Performance.SweepInterval())
	assert.Equal(t, 24, cfg.Performance.KlineRetentionHours)
	assert.Equal(t, 1000, cfg.Performance.MaxWebsocketConnections)
}

func TestLoadConfigMergesEnvironmentFile(t *testing.T) {
	dir := writeConfigDir(t, map[string]string{
		"default.toml": defaultTOML,
		"production.toml": `
[server]
port = 9090

[logging]
level = "warn"
file_output = true
file_path = "logs/prod.log"

[data_generation]
enabled = false

[database]
url = "postgres://ignored"

[cache]
url = "redis://ignored"
`,
	})

	cfg, err := loadConfigFiles(dir, "production")
	require.NoError(t, err)

	// overridden keys
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.True(t, cfg.Logging.FileOutput)
	assert.False(t, cfg.DataGeneration.Enabled)
	// untouched keys keep their defaults
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Len(t, cfg.Tokens.SupportedTokens, 2)
}

func TestLoadConfigMissingEnvironmentFileIsFine(t *testing.T) {
	dir := writeConfigDir(t, map[string]string{"default.toml": defaultTOML})

	cfg, err := loadConfigFiles(dir, "staging")
	require.NoError(t, err)
	assert.Equal(t, "staging", cfg.Env)
}

func TestLoadConfigMissingDefaultFails(t *testing.T) {
	_, err := loadConfigFiles(t.TempDir(), "development")
	require.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server: ServerConfig{Host: "127.0.0.1", Port: 8080},
			Tokens: TokensConfig{SupportedTokens: []TokenConfig{{Symbol: "DOGE", BasePrice: 0.15, Volatility: 5}}},
			DataGeneration: DataGenerationConfig{
				Enabled: true, IntervalMs: 100, Volatility: 0.02, VolumeRange: []float64{100, 1000},
			},
			Performance: PerformanceConfig{
				WorkerThreads: 4, WebsocketHeartbeatInterval: 5, ClientTimeout: 10,
				KlineRetentionHours: 24, MaxWebsocketConnections: 1000,
			},
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Server.Port = 0 }},
		{"no tokens", func(c *Config) { c.Tokens.SupportedTokens = nil }},
		{"empty symbol", func(c *Config) { c.Tokens.SupportedTokens[0].Symbol = "" }},
		{"non-positive base price", func(c *Config) { c.Tokens.SupportedTokens[0].BasePrice = 0 }},
		{"volatility above one", func(c *Config) { c.DataGeneration.Volatility = 1.5 }},
		{"inverted volume range", func(c *Config) { c.DataGeneration.VolumeRange = []float64{1000, 100} }},
		{"short volume range", func(c *Config) { c.DataGeneration.VolumeRange = []float64{100} }},
		{"zero retention", func(c *Config) { c.Performance.KlineRetentionHours = 0 }},
		{"zero heartbeat", func(c *Config) { c.Performance.WebsocketHeartbeatInterval = 0 }},
		{"zero client timeout", func(c *Config) { c.Performance.ClientTimeout = 0 }},
		{"zero connection cap", func(c *Config) { c.Performance.MaxWebsocketConnections = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestConfigSkipsGenerationChecksWhenDisabled(t *testing.T) {
	cfg := &Config{
		Server:         ServerConfig{Port: 8080},
		Tokens:         TokensConfig{SupportedTokens: []TokenConfig{{Symbol: "DOGE", BasePrice: 0.15}}},
		DataGeneration: DataGenerationConfig{Enabled: false},
		Performance: PerformanceConfig{
			WebsocketHeartbeatInterval: 5, ClientTimeout: 10,
			KlineRetentionHours: 24, MaxWebsocketConnections: 1000,
		},
	}
	require.NoError(t, cfg.Validate())
}

func TestSweepIntervalDefaults(t *testing.T) {
	p := PerformanceConfig{}
	assert.Equal(t, time.Second, p.SweepInterval())
	p.SweepIntervalMs = 250
	assert.Equal(t, 250*time.Millisecond, p.SweepInterval())
}

func TestStatsSnapshot(t *testing.T) {
	s := NewStats()
	s.TradesProcessed.Add(3)
	s.EventsDropped.Add(1)
	s.SessionsActive.Add(2)
	s.SessionsActive.Add(-1)

	snap := s.Snapshot()
	assert.Equal(t, int64(3), snap["trades_processed"])
	assert.Equal(t, int64(1), snap["events_dropped"])
	assert.Equal(t, int64(1), snap["sessions_active"])
	assert.Equal(t, int64(0), snap["late_trade_drops"])
}
