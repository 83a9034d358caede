package infra

import (
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Bootstrap holds the knobs read from the environment before any config
// file: which environment to load and where the files live.
type Bootstrap struct {
	Env       string `envconfig:"APP_ENV" default:"development"`
	ConfigDir string `envconfig:"CONFIG_DIR" default:"./config"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// Workers is kept for deployments that still set it; the Go runtime
	// schedules request handling itself.
	Workers int `mapstructure:"workers"`
}

func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

type TokenConfig struct {
	Symbol     string  `mapstructure:"symbol"`
	BasePrice  float64 `mapstructure:"base_price"`
	Volatility float64 `mapstructure:"volatility"`
}

type TokensConfig struct {
	SupportedTokens []TokenConfig `mapstructure:"supported_tokens"`
}

type DataGenerationConfig struct {
	Enabled     bool      `mapstructure:"enabled"`
	IntervalMs  int       `mapstructure:"interval_ms"`
	Volatility  float64   `mapstructure:"volatility"`
	VolumeRange []float64 `mapstructure:"volume_range"`
}

func (d DataGenerationConfig) Interval() time.Duration {
	return time.Duration(d.IntervalMs) * time.Millisecond
}

type PerformanceConfig struct {
	WorkerThreads              int `mapstructure:"worker_threads"`
	WebsocketHeartbeatInterval int `mapstructure:"websocket_heartbeat_interval"`
	ClientTimeout              int `mapstructure:"client_timeout"`
	KlineRetentionHours        int `mapstructure:"kline_retention_hours"`
	MaxWebsocketConnections    int `mapstructure:"max_websocket_connections"`
	SweepIntervalMs            int `mapstructure:"sweep_interval_ms"`
}

func (p PerformanceConfig) HeartbeatInterval() time.Duration {
	return time.Duration(p.WebsocketHeartbeatInterval) * time.Second
}

func (p PerformanceConfig) ClientTimeoutInterval() time.Duration {
	return time.Duration(p.ClientTimeout) * time.Second
}

func (p PerformanceConfig) SweepInterval() time.Duration {
	if p.SweepIntervalMs <= 0 {
		return time.Second
	}
	return time.Duration(p.SweepIntervalMs) * time.Millisecond
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	FileOutput bool   `mapstructure:"file_output"`
	FilePath   string `mapstructure:"file_path"`
}

type Config struct {
	Env            string
	Server         ServerConfig         `mapstructure:"server"`
	Tokens         TokensConfig         `mapstructure:"tokens"`
	DataGeneration DataGenerationConfig `mapstructure:"data_generation"`
	Performance    PerformanceConfig    `mapstructure:"performance"`
	Logging        LoggingConfig        `mapstructure:"logging"`
}

// Symbols lists the configured token symbols in file order.
func (c *Config) Symbols() []string {
	symbols := make([]string, 0, len(c.Tokens.SupportedTokens))
	for _, t := range c.Tokens.SupportedTokens {
		symbols = append(symbols, t.Symbol)
	}
	return symbols
}

// LoadConfig resolves the environment and config directory, then loads the
// layered files. Explicit arguments win over .env and process environment;
// empty arguments fall back to them.
func LoadConfig(dir, env string) (*Config, error) {
	_ = godotenv.Load()

	var bs Bootstrap
	if err := envconfig.Process("", &bs); err != nil {
		return nil, errors.Wrap(err, "read bootstrap environment")
	}
	if dir == "" {
		dir = bs.ConfigDir
	}
	if env == "" {
		env = bs.Env
	}

	return loadConfigFiles(dir, env)
}

// loadConfigFiles reads <dir>/default.toml and merges <dir>/<env>.toml over
// it when that file exists. Sections the Config struct does not bind, such
// as the reserved database and cache blocks, are parsed and ignored.
func loadConfigFiles(dir, env string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")

	v.SetConfigFile(filepath.Join(dir, "default.toml"))
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, "read default config")
	}

	override := filepath.Join(dir, env+".toml")
	if _, err := os.Stat(override); err == nil {
		v.SetConfigFile(override)
		if err := v.MergeInConfig(); err != nil {
			return nil, errors.Wrapf(err, "merge %s config", env)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	cfg.Env = env

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "config for %s", env)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.Errorf("server.port %d out of range", c.Server.Port)
	}
	if len(c.Tokens.SupportedTokens) == 0 {
		return errors.New("tokens.supported_tokens must not be empty")
	}
	for _, t := range c.Tokens.SupportedTokens {
		if t.Symbol == "" {
			return errors.New("token symbol must not be empty")
		}
		if t.BasePrice <= 0 {
			return errors.Errorf("token %s base_price must be positive", t.Symbol)
		}
	}
	if c.DataGeneration.Enabled {
		if c.DataGeneration.IntervalMs <= 0 {
			return errors.New("data_generation.interval_ms must be positive")
		}
		if c.DataGeneration.Volatility < 0 || c.DataGeneration.Volatility > 1 {
			return errors.Errorf("data_generation.volatility %v outside [0, 1]", c.DataGeneration.Volatility)
		}
		if len(c.DataGeneration.VolumeRange) != 2 {
			return errors.New("data_generation.volume_range needs [min, max]")
		}
		if c.DataGeneration.VolumeRange[0] >= c.DataGeneration.VolumeRange[1] {
			return errors.Errorf("data_generation.volume_range min %v must stay below max %v",
				c.DataGeneration.VolumeRange[0], c.DataGeneration.VolumeRange[1])
		}
	}
	if c.Performance.KlineRetentionHours <= 0 {
		return errors.New("performance.kline_retention_hours must be positive")
	}
	if c.Performance.WebsocketHeartbeatInterval <= 0 {
		return errors.New("performance.websocket_heartbeat_interval must be positive")
	}
	if c.Performance.ClientTimeout <= 0 {
		return errors.New("performance.client_timeout must be positive")
	}
	if c.Performance.MaxWebsocketConnections <= 0 {
		return errors.New("performance.max_websocket_connections must be positive")
	}

	return nil
}
