package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"openbci-service/internal/model"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.GetServerAddr() != "0.0.0.0:8086" {
		t.Errorf("GetServerAddr() = %q", cfg.GetServerAddr())
	}
	if cfg.Board.BaudRate != 115200 {
		t.Errorf("Board.BaudRate = %d, want 115200", cfg.Board.BaudRate)
	}
	if cfg.Board.WriteDelay != 50*time.Millisecond {
		t.Errorf("Board.WriteDelay = %v, want 50ms", cfg.Board.WriteDelay)
	}
	if cfg.Board.ReadyMarker != "$$$" {
		t.Errorf("Board.ReadyMarker = %q", cfg.Board.ReadyMarker)
	}
	if !cfg.Board.Simulate {
		t.Error("Board.Simulate default = false, want true")
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := `
server:
  port: "9000"
board:
  type: daisy
  port: /dev/ttyUSB0
  simulate: false
  write_delay: 20ms
  simulator:
    speed: 4
logging:
  level: debug
`
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("OPENBCI_SERVICE_BOARD_PORT", "tcp://192.168.4.1:3000")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != "9000" {
		t.Errorf("Server.Port = %q, want 9000", cfg.Server.Port)
	}
	if cfg.Board.Port != "tcp://192.168.4.1:3000" {
		t.Errorf("Board.Port = %q, want env override", cfg.Board.Port)
	}

	opts := cfg.BoardOptions()
	if opts.BoardType != model.BoardTypeDaisy {
		t.Errorf("BoardType = %q, want daisy", opts.BoardType)
	}
	if opts.Simulate {
		t.Error("Simulate = true, want false")
	}
	if opts.WriteDelay != 20*time.Millisecond {
		t.Errorf("WriteDelay = %v, want 20ms", opts.WriteDelay)
	}
	if opts.Simulator.Speed != 4 {
		t.Errorf("Simulator.Speed = %v, want 4", opts.Simulator.Speed)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown board type", func(c *Config) { c.Board.Type = "octopus" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"bad environment", func(c *Config) { c.App.Environment = "moon" }},
		{"auto connect without port", func(c *Config) {
			c.Board.AutoConnect = true
			c.Board.Simulate = false
			c.Board.Port = ""
		}},
		{"empty marker", func(c *Config) { c.Board.ReadyMarker = "" }},
		{"tiny window", func(c *Config) { c.Board.ImpedanceWindow = 4 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(t.TempDir())
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			tt.mutate(cfg)
			if err := validate(cfg); err == nil {
				t.Error("validate accepted invalid config")
			}
		})
	}
}
