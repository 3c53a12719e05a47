package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowaak/smart-trainer/live-session/internal/session"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, session.DefaultFTP, cfg.FTP)
	assert.Equal(t, session.SportCycling, cfg.Sport)
	assert.Equal(t, 0, cfg.Training)
	assert.False(t, cfg.Synthetic)
	assert.False(t, cfg.MockSensors)
	assert.True(t, cfg.UI)
	assert.Empty(t, cfg.ExportDir)
	assert.True(t, cfg.BLE.Enabled)
	assert.Equal(t, 30*time.Second, cfg.BLE.ScanTimeout)
	assert.Equal(t, "live-session.db", cfg.Store.Path)
	assert.Empty(t, cfg.MQTT.Broker)
	assert.Equal(t, "smart-trainer/live-session", cfg.MQTT.Topic)
	assert.Equal(t, "live-session", cfg.MQTT.ClientID)
	assert.Equal(t, "127.0.0.1:8080", cfg.HTTP.Addr)
	assert.Equal(t, LogConfig{File: "live-session.log", MaxSizeMB: 10, MaxBackups: 3, MaxAgeDays: 28}, cfg.Log)
}

func TestLoad_FlagOverride(t *testing.T) {
	cfg, err := Load([]string{
		"--ftp", "280",
		"--sport", "running",
		"--training", "2",
		"--synthetic",
		"--ui=false",
		"--ble=false",
		"--ble-scan-timeout", "5s",
		"--mqtt-broker", "tcp://localhost:1883",
		"--http-addr", "",
		"--log-max-backups", "7",
	})
	require.NoError(t, err)

	assert.Equal(t, 280, cfg.FTP)
	assert.Equal(t, session.SportRunning, cfg.Sport)
	assert.Equal(t, 2, cfg.Training)
	assert.True(t, cfg.Synthetic)
	assert.False(t, cfg.UI)
	assert.False(t, cfg.BLE.Enabled)
	assert.Equal(t, 5*time.Second, cfg.BLE.ScanTimeout)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	assert.Empty(t, cfg.HTTP.Addr)
	assert.Equal(t, 7, cfg.Log.MaxBackups)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("LIVESESSION_FTP", "310")
	t.Setenv("LIVESESSION_MQTT_BROKER", "tcp://broker:1883")
	t.Setenv("LIVESESSION_STORE_PATH", "/tmp/sessions.db")

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, 310, cfg.FTP)
	assert.Equal(t, "tcp://broker:1883", cfg.MQTT.Broker)
	assert.Equal(t, "/tmp/sessions.db", cfg.Store.Path)
}

func TestLoad_FlagBeatsEnv(t *testing.T) {
	t.Setenv("LIVESESSION_FTP", "310")

	cfg, err := Load([]string{"--ftp", "190"})
	require.NoError(t, err)
	assert.Equal(t, 190, cfg.FTP)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := writeConfig(t, `
ftp: 265
sport: SWIMMING
mock_sensors: true
ble:
  enabled: false
  scan_timeout: 12s
mqtt:
  broker: tcp://10.0.0.2:1883
  topic: gym/bike1
log:
  file: /var/log/live-session.log
`)

	cfg, err := Load([]string{"--config", path})
	require.NoError(t, err)

	assert.Equal(t, 265, cfg.FTP)
	assert.Equal(t, session.SportSwimming, cfg.Sport)
	assert.True(t, cfg.MockSensors)
	assert.False(t, cfg.BLE.Enabled)
	assert.Equal(t, 12*time.Second, cfg.BLE.ScanTimeout)
	assert.Equal(t, "tcp://10.0.0.2:1883", cfg.MQTT.Broker)
	assert.Equal(t, "gym/bike1", cfg.MQTT.Topic)
	assert.Equal(t, "/var/log/live-session.log", cfg.Log.File)
	// Keys absent from the file keep their defaults
	assert.Equal(t, "live-session.db", cfg.Store.Path)
}

func TestLoad_EnvBeatsConfigFile(t *testing.T) {
	path := writeConfig(t, "ftp: 265\n")
	t.Setenv("LIVESESSION_FTP", "300")

	cfg, err := Load([]string{"--config", path})
	require.NoError(t, err)
	assert.Equal(t, 300, cfg.FTP)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	_, err := Load([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")})
	assert.ErrorContains(t, err, "reading config file")
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"zero ftp", []string{"--ftp", "0"}, "ftp must be positive"},
		{"unknown sport", []string{"--sport", "rowing"}, `unknown sport "ROWING"`},
		{"training out of range", []string{"--training", "99"}, "training index 99 out of range"},
		{"synthetic with mock sensors", []string{"--synthetic", "--mock-sensors"}, "mutually exclusive"},
		{"empty store path", []string{"--db", ""}, "store.path is required"},
		{"unknown flag", []string{"--nope"}, "parsing flags"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.args)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestLoad_Help(t *testing.T) {
	_, err := Load([]string{"--help"})
	assert.True(t, errors.Is(err, pflag.ErrHelp))
}

func TestFlagKeys_AllDeclared(t *testing.T) {
	fs := NewFlagSet("test")
	for flagName := range flagKeys {
		assert.NotNil(t, fs.Lookup(flagName), flagName)
	}
}
