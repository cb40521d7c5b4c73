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
	cfg := Load()
	assert.Equal(t, SourceSerial, cfg.Source)
	assert.Equal(t, 230400, cfg.Baud)
	assert.Equal(t, 100*time.Millisecond, cfg.Transmit)
	assert.Empty(t, cfg.RedisAddr)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DAQ_SOURCE", "replay")
	t.Setenv("DAQ_REPLAY_FILE", "/tmp/run.bin")
	t.Setenv("DAQ_TRANSMIT_MS", "250")
	t.Setenv("DAQ_OUTPUTS", "3, 10")
	t.Setenv("DAQ_AUTOSTART", "true")
	t.Setenv("REDIS_DB", "2")

	cfg := Load()
	assert.Equal(t, SourceReplay, cfg.Source)
	assert.Equal(t, "/tmp/run.bin", cfg.ReplayFile)
	assert.Equal(t, 250*time.Millisecond, cfg.Transmit)
	assert.Equal(t, []uint16{3, 10}, cfg.Outputs)
	assert.True(t, cfg.AutoStart)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.NoError(t, cfg.Validate())
}

func TestMalformedEnvFailsValidation(t *testing.T) {
	t.Setenv("DAQ_OUTPUTS", "3,x")
	t.Setenv("DAQ_AUTOSTART", "maybe")

	cfg := Load()
	assert.Empty(t, cfg.Outputs)
	assert.False(t, cfg.AutoStart)

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DAQ_OUTPUTS")
	assert.Contains(t, err.Error(), `DAQ_AUTOSTART "maybe"`)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daq.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
source: tcp
tcp_addr: ":9100"
poll_interval: 2ms
outputs: [3]
redis_addr: "localhost:6379"
`), 0o644))
	t.Setenv("DAQ_TCP_ADDR", ":9200")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, SourceTCP, cfg.Source)
	assert.Equal(t, ":9200", cfg.TCPAddr)
	assert.Equal(t, 2*time.Millisecond, cfg.Poll)
	assert.Equal(t, []uint16{3}, cfg.Outputs)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, time.Second, cfg.Retry, "defaults fill what the file omits")
}

func TestLoadFileErrors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("source: [unterminated"), 0o644))
	_, err = LoadFile(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		mod  func(*Config)
		msg  string
	}{
		{"unknown source", func(c *Config) { c.Source = "usb" }, `unknown source "usb"`},
		{"serial without port", func(c *Config) { c.SerialPort = "" }, "needs a port"},
		{"bad baud", func(c *Config) { c.Baud = 0 }, "invalid baud"},
		{"tcp without addr", func(c *Config) { c.Source, c.TCPAddr = SourceTCP, "" }, "listen address"},
		{"replay without file", func(c *Config) { c.Source = SourceReplay }, "capture file"},
		{"zero poll", func(c *Config) { c.Poll = 0 }, "poll_interval"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaults()
			tc.mod(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.msg)
		})
	}
}

func TestParseIDs(t *testing.T) {
	ids, err := parseIDs("1,,2 ,65535")
	require.NoError(t, err)
	assert.Equal(t, []uint16{1, 2, 65535}, ids)

	_, err = parseIDs("70000")
	assert.Error(t, err)
}
