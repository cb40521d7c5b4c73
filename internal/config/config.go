package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	SourceSerial = "serial"
	SourceTCP    = "tcp"
	SourceReplay = "replay"
)

type Config struct {
	Source       string `yaml:"source"`
	SerialPort   string `yaml:"serial_port"`
	Baud         int    `yaml:"baud"`
	TCPAddr      string `yaml:"tcp_addr"`
	ReplayFile   string `yaml:"replay_file"`
	RegistryFile string `yaml:"registry_file"`
	CaptureDir   string `yaml:"capture_dir"`

	MetricsPort string `yaml:"metrics_port"`
	GRPCPort    string `yaml:"grpc_port"`
	RedisAddr   string `yaml:"redis_addr"`
	RedisDB     int    `yaml:"redis_db"`

	Transmit time.Duration `yaml:"transmit_interval"`
	Poll     time.Duration `yaml:"poll_interval"`
	Retry    time.Duration `yaml:"retry_interval"`
	Publish  time.Duration `yaml:"publish_interval"`

	// Outputs are registry IDs whose values this host sends to the controller.
	Outputs   []uint16 `yaml:"outputs"`
	AutoStart bool     `yaml:"autostart"`
	LogLevel  string   `yaml:"log_level"`

	// envErrs holds environment values that failed to parse; Validate reports them.
	envErrs []error
}

func defaults() Config {
	return Config{
		Source:      SourceSerial,
		SerialPort:  "/dev/ttyACM0",
		Baud:        230400,
		TCPAddr:     ":8001",
		MetricsPort: "9000",
		GRPCPort:    "50051",
		Transmit:    100 * time.Millisecond,
		Poll:        5 * time.Millisecond,
		Retry:       time.Second,
		Publish:     500 * time.Millisecond,
		LogLevel:    "info",
	}
}

// Load reads the configuration from the environment.
func Load() Config {
	cfg := defaults()
	applyEnv(&cfg)
	return cfg
}

// LoadFile reads path over the defaults. Environment variables still win.
func LoadFile(path string) (Config, error) {
	cfg := defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(c *Config) {
	c.Source = getEnv("DAQ_SOURCE", c.Source)
	c.SerialPort = getEnv("DAQ_SERIAL_PORT", c.SerialPort)
	c.Baud = getEnvInt("DAQ_BAUD", c.Baud)
	c.TCPAddr = getEnv("DAQ_TCP_ADDR", c.TCPAddr)
	c.ReplayFile = getEnv("DAQ_REPLAY_FILE", c.ReplayFile)
	c.RegistryFile = getEnv("DAQ_REGISTRY_FILE", c.RegistryFile)
	c.CaptureDir = getEnv("DAQ_CAPTURE_DIR", c.CaptureDir)
	c.MetricsPort = getEnv("METRICS_PORT", c.MetricsPort)
	c.GRPCPort = getEnv("GRPC_PORT", c.GRPCPort)
	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.RedisDB = getEnvInt("REDIS_DB", c.RedisDB)
	c.Transmit = getEnvMillis("DAQ_TRANSMIT_MS", c.Transmit)
	c.Poll = getEnvMillis("DAQ_POLL_MS", c.Poll)
	c.Retry = getEnvMillis("DAQ_RETRY_MS", c.Retry)
	c.Publish = getEnvMillis("DAQ_PUBLISH_MS", c.Publish)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	if v := os.Getenv("DAQ_AUTOSTART"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			c.envErrs = append(c.envErrs, fmt.Errorf("DAQ_AUTOSTART %q: not a boolean", v))
		} else {
			c.AutoStart = b
		}
	}
	if v := os.Getenv("DAQ_OUTPUTS"); v != "" {
		ids, err := parseIDs(v)
		if err != nil {
			c.envErrs = append(c.envErrs, fmt.Errorf("DAQ_OUTPUTS: %w", err))
		} else {
			c.Outputs = ids
		}
	}
}

// Validate reports every problem with c at once.
func (c Config) Validate() error {
	errs := append([]error(nil), c.envErrs...)
	switch c.Source {
	case SourceSerial:
		if c.SerialPort == "" {
			errs = append(errs, errors.New("serial source needs a port"))
		}
		if c.Baud <= 0 {
			errs = append(errs, fmt.Errorf("invalid baud rate %d", c.Baud))
		}
	case SourceTCP:
		if c.TCPAddr == "" {
			errs = append(errs, errors.New("tcp source needs a listen address"))
		}
	case SourceReplay:
		if c.ReplayFile == "" {
			errs = append(errs, errors.New("replay source needs a capture file"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown source %q", c.Source))
	}
	for name, d := range map[string]time.Duration{
		"transmit_interval": c.Transmit,
		"poll_interval":     c.Poll,
		"retry_interval":    c.Retry,
		"publish_interval":  c.Publish,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return fallback
}

func getEnvMillis(key string, fallback time.Duration) time.Duration {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return time.Duration(n) * time.Millisecond
	}
	return fallback
}

func parseIDs(s string) ([]uint16, error) {
	var out []uint16
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.ParseUint(part, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("output id %q: %w", part, err)
		}
		out = append(out, uint16(n))
	}
	return out, nil
}
