// Package config loads runtime settings from flags, environment and an
// optional YAML file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/lowaak/smart-trainer/live-session/internal/session"
)

// EnvPrefix prefixes every environment override, e.g. LIVESESSION_MQTT_BROKER.
const EnvPrefix = "LIVESESSION"

type Config struct {
	FTP         int         `mapstructure:"ftp"`
	Sport       string      `mapstructure:"sport"`
	Training    int         `mapstructure:"training"`
	Synthetic   bool        `mapstructure:"synthetic"`
	MockSensors bool        `mapstructure:"mock_sensors"`
	UI          bool        `mapstructure:"ui"`
	ExportDir   string      `mapstructure:"export_dir"`
	BLE         BLEConfig   `mapstructure:"ble"`
	Store       StoreConfig `mapstructure:"store"`
	MQTT        MQTTConfig  `mapstructure:"mqtt"`
	HTTP        HTTPConfig  `mapstructure:"http"`
	Log         LogConfig   `mapstructure:"log"`
}

type BLEConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	ScanTimeout time.Duration `mapstructure:"scan_timeout"`
}

type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// MQTTConfig is disabled when Broker is empty.
type MQTTConfig struct {
	Broker   string `mapstructure:"broker"`
	Topic    string `mapstructure:"topic"`
	ClientID string `mapstructure:"client_id"`
}

// HTTPConfig is disabled when Addr is empty.
type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"ftp":              "ftp",
	"sport":            "sport",
	"training":         "training",
	"synthetic":        "synthetic",
	"mock-sensors":     "mock_sensors",
	"ui":               "ui",
	"export-dir":       "export_dir",
	"ble":              "ble.enabled",
	"ble-scan-timeout": "ble.scan_timeout",
	"db":               "store.path",
	"mqtt-broker":      "mqtt.broker",
	"mqtt-topic":       "mqtt.topic",
	"mqtt-client-id":   "mqtt.client_id",
	"http-addr":        "http.addr",
	"log-file":         "log.file",
	"log-max-size":     "log.max_size_mb",
	"log-max-backups":  "log.max_backups",
	"log-max-age":      "log.max_age_days",
}

// NewFlagSet declares every flag with its default value.
func NewFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("config", "", "path to a YAML config file")

	fs.Int("ftp", session.DefaultFTP, "functional threshold power in watts")
	fs.String("sport", session.SportCycling, "sport type: CYCLING, RUNNING or SWIMMING")
	fs.Int("training", 0, "index of the built-in training to load")
	fs.Bool("synthetic", false, "generate synthetic metrics instead of reading sensors")
	fs.Bool("mock-sensors", false, "feed encoded notifications from simulated sensors")
	fs.Bool("ui", true, "show the terminal dashboard")
	fs.String("export-dir", "", "directory for FIT exports of finished sessions")

	fs.Bool("ble", true, "connect to Bluetooth sensors")
	fs.Duration("ble-scan-timeout", 30*time.Second, "how long to scan for sensors")

	fs.String("db", "live-session.db", "SQLite database path")

	fs.String("mqtt-broker", "", "MQTT broker URL, empty disables publishing")
	fs.String("mqtt-topic", "smart-trainer/live-session", "MQTT topic prefix")
	fs.String("mqtt-client-id", "live-session", "MQTT client id")

	fs.String("http-addr", "127.0.0.1:8080", "HTTP listen address, empty disables the API")

	fs.String("log-file", "live-session.log", "log file path")
	fs.Int("log-max-size", 10, "log file size in megabytes before rotation")
	fs.Int("log-max-backups", 3, "rotated log files to keep")
	fs.Int("log-max-age", 28, "days to keep rotated log files")
	return fs
}

// Load parses args and resolves every key with the precedence flag, then
// environment, then config file, then flag default.
func Load(args []string) (*Config, error) {
	fs := NewFlagSet("live-session")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	v := viper.New()
	for flagName, key := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(flagName)); err != nil {
			return nil, fmt.Errorf("binding flag %s: %w", flagName, err)
		}
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path, _ := fs.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.Sport = strings.ToUpper(cfg.Sport)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.FTP <= 0 {
		return fmt.Errorf("ftp must be positive, got %d", c.FTP)
	}
	switch c.Sport {
	case session.SportCycling, session.SportRunning, session.SportSwimming:
	default:
		return fmt.Errorf("unknown sport %q", c.Sport)
	}
	if _, err := session.TrainingByIndex(c.Training); err != nil {
		return err
	}
	if c.Synthetic && c.MockSensors {
		return fmt.Errorf("synthetic and mock_sensors are mutually exclusive")
	}
	if c.BLE.ScanTimeout <= 0 {
		return fmt.Errorf("ble.scan_timeout must be positive")
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store.path is required")
	}
	return nil
}
