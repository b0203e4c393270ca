// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"openbci-service/internal/board"
	"openbci-service/internal/model"
	"openbci-service/internal/protocol"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Security SecurityConfig `mapstructure:"security"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Board    BoardConfig    `mapstructure:"board"`
	Stream   StreamConfig   `mapstructure:"stream"`
	App      AppConfig      `mapstructure:"app"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// SecurityConfig represents security configuration
type SecurityConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// BoardConfig is the default board used by connect requests that leave
// fields out, and by auto_connect at startup
type BoardConfig struct {
	Type            string          `mapstructure:"type"`
	Port            string          `mapstructure:"port"`
	Simulate        bool            `mapstructure:"simulate"`
	AutoConnect     bool            `mapstructure:"auto_connect"`
	BaudRate        int             `mapstructure:"baud_rate"`
	WriteDelay      time.Duration   `mapstructure:"write_delay"`
	SettleDelay     time.Duration   `mapstructure:"settle_delay"`
	ResetDelay      time.Duration   `mapstructure:"reset_delay"`
	CloseGrace      time.Duration   `mapstructure:"close_grace"`
	ReadyMarker     string          `mapstructure:"ready_marker"`
	SampleRate      float64         `mapstructure:"sample_rate"`
	ImpedanceWindow int             `mapstructure:"impedance_window"`
	Verbose         bool            `mapstructure:"verbose"`
	Simulator       SimulatorConfig `mapstructure:"simulator"`
}

// SimulatorConfig tunes the synthetic board
type SimulatorConfig struct {
	LeadOffImpedance float64 `mapstructure:"lead_off_impedance"`
	NoiseAmplitude   float64 `mapstructure:"noise_amplitude"`
	LineNoise        bool    `mapstructure:"line_noise"`
	Speed            float64 `mapstructure:"speed"`
}

// StreamConfig controls websocket fan-out
type StreamConfig struct {
	ClientBuffer int           `mapstructure:"client_buffer"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PingInterval time.Duration `mapstructure:"ping_interval"`
}

// AppConfig represents application metadata
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// Load reads config.yaml from the given directories (or the default search
// path) and applies OPENBCI_SERVICE_* environment overrides. A missing file
// is not an error.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{".", "./config", "/etc/openbci-service"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	// Environment variable support
	v.SetEnvPrefix("OPENBCI_SERVICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8086")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("security.allowed_origins", []string{"*"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", true)

	// Board defaults
	v.SetDefault("board.type", string(model.BoardTypeDefault))
	v.SetDefault("board.port", "")
	v.SetDefault("board.simulate", true)
	v.SetDefault("board.auto_connect", false)
	v.SetDefault("board.baud_rate", protocol.DefaultBaudRate)
	v.SetDefault("board.write_delay", board.DefaultWriteDelay.String())
	v.SetDefault("board.settle_delay", board.DefaultSettleDelay.String())
	v.SetDefault("board.reset_delay", board.DefaultResetDelay.String())
	v.SetDefault("board.close_grace", board.DefaultCloseGrace.String())
	v.SetDefault("board.ready_marker", board.DefaultReadyMarker)
	v.SetDefault("board.sample_rate", 0)
	v.SetDefault("board.impedance_window", 256)
	v.SetDefault("board.verbose", false)
	v.SetDefault("board.simulator.lead_off_impedance", protocol.DefaultLeadOffImpedance)
	v.SetDefault("board.simulator.noise_amplitude", 0)
	v.SetDefault("board.simulator.line_noise", false)
	v.SetDefault("board.simulator.speed", 1)

	// Stream defaults
	v.SetDefault("stream.client_buffer", 512)
	v.SetDefault("stream.write_timeout", "5s")
	v.SetDefault("stream.ping_interval", "30s")

	// App defaults
	v.SetDefault("app.name", "openbci-service")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", false)
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Server.Host == "" {
		return fmt.Errorf("server.host is required")
	}
	if config.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}

	validEnvs := []string{"development", "staging", "production", "test"}
	if !contains(validEnvs, config.App.Environment) {
		return fmt.Errorf("app.environment must be one of: %v", validEnvs)
	}

	validLevels := []string{"debug", "info", "warn", "error", "fatal"}
	if !contains(validLevels, config.Logging.Level) {
		return fmt.Errorf("logging.level must be one of: %v", validLevels)
	}

	if _, err := model.ParseBoardType(config.Board.Type); err != nil {
		return fmt.Errorf("board.type: %w", err)
	}
	if config.Board.AutoConnect && config.Board.Port == "" && !config.Board.Simulate {
		return fmt.Errorf("board.port is required when auto_connect is set without simulate")
	}
	if config.Board.ReadyMarker == "" {
		return fmt.Errorf("board.ready_marker must not be empty")
	}
	if config.Board.ImpedanceWindow < 16 {
		return fmt.Errorf("board.impedance_window must be at least 16, got %d", config.Board.ImpedanceWindow)
	}
	if config.Stream.ClientBuffer <= 0 {
		return fmt.Errorf("stream.client_buffer must be positive")
	}

	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// BoardOptions maps the board section onto engine options. The logger is
// left for the caller.
func (c *Config) BoardOptions() board.Options {
	bt, _ := model.ParseBoardType(c.Board.Type)
	return board.Options{
		BoardType:       bt,
		Simulate:        c.Board.Simulate,
		Port:            c.Board.Port,
		BaudRate:        c.Board.BaudRate,
		WriteDelay:      c.Board.WriteDelay,
		SettleDelay:     c.Board.SettleDelay,
		ResetDelay:      c.Board.ResetDelay,
		CloseGrace:      c.Board.CloseGrace,
		ReadyMarker:     c.Board.ReadyMarker,
		SampleRate:      c.Board.SampleRate,
		ImpedanceWindow: c.Board.ImpedanceWindow,
		Verbose:         c.Board.Verbose,
		Simulator: protocol.SimulatorConfig{
			LeadOffImpedance: c.Board.Simulator.LeadOffImpedance,
			NoiseAmplitude:   c.Board.Simulator.NoiseAmplitude,
			LineNoise:        c.Board.Simulator.LineNoise,
			Speed:            c.Board.Simulator.Speed,
		},
	}
}

// GetServerAddr returns the server address
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// IsProduction checks if the environment is production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDebugEnabled checks if debug mode is enabled
func (c *Config) IsDebugEnabled() bool {
	return c.App.Debug || c.App.Environment == "development"
}
