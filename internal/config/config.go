package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

const (
	DefaultBaudRate = 115200
	DefaultLogLevel = "info"
)

// Config holds all companion-app configuration.
type Config struct {
	DefaultFamily  string `json:"default_family,omitempty"`
	SerialPort     string `json:"serial_port,omitempty"`
	SerialBaudRate int    `json:"serial_baud_rate,omitempty"`
	ArduinoCLIPath string `json:"arduino_cli_path,omitempty"`
	// SettleDelayMS overrides the post-disconnect settling delay.
	// 0 keeps the platform default; negative disables the delay.
	SettleDelayMS     int    `json:"settle_delay_ms,omitempty"`
	ExtraCompileFlags string `json:"extra_compile_flags,omitempty"`
	LogLevel          string `json:"log_level,omitempty"`
}

// Defaults returns a Config with default values.
func Defaults() Config {
	return Config{
		SerialBaudRate: DefaultBaudRate,
		LogLevel:       DefaultLogLevel,
	}
}

// GlobalDir returns the per-user configuration directory.
func GlobalDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "eblocks"), nil
}

// Load reads and merges global and project configs.
// Order: defaults → global (~/.config/eblocks/config.json) → project
// (<projectDir>/.eblocks/config.json).
func Load(projectDir string) Config {
	cfg := Defaults()

	if dir, err := GlobalDir(); err == nil {
		mergeFromFile(&cfg, filepath.Join(dir, "config.json"))
	}

	if projectDir != "" {
		mergeFromFile(&cfg, filepath.Join(projectDir, ".eblocks", "config.json"))
	}

	return cfg
}

// Save writes the config to the project .eblocks/config.json by default,
// or to the global config if global is true.
func Save(cfg Config, projectDir string, global bool) error {
	var dir string
	if global {
		d, err := GlobalDir()
		if err != nil {
			return err
		}
		dir = d
	} else {
		dir = filepath.Join(projectDir, ".eblocks")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0o644)
}

func mergeFromFile(cfg *Config, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}

	var fileCfg Config
	if err := json.Unmarshal(data, &fileCfg); err != nil {
		return
	}

	if fileCfg.DefaultFamily != "" {
		cfg.DefaultFamily = fileCfg.DefaultFamily
	}
	if fileCfg.SerialPort != "" {
		cfg.SerialPort = fileCfg.SerialPort
	}
	if fileCfg.SerialBaudRate != 0 {
		cfg.SerialBaudRate = fileCfg.SerialBaudRate
	}
	if fileCfg.ArduinoCLIPath != "" {
		cfg.ArduinoCLIPath = fileCfg.ArduinoCLIPath
	}
	if fileCfg.SettleDelayMS != 0 {
		cfg.SettleDelayMS = fileCfg.SettleDelayMS
	}
	if fileCfg.ExtraCompileFlags != "" {
		cfg.ExtraCompileFlags = fileCfg.ExtraCompileFlags
	}
	if fileCfg.LogLevel != "" {
		cfg.LogLevel = fileCfg.LogLevel
	}
}
