package core

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"go_irimager/irimager"
)

// Transport names accepted by IRIMAGER_TRANSPORT.
const (
	TransportUSB = "usb"
	TransportTCP = "tcp"
)

// Config holds all configuration values.
//
// Values are layered: defaults, then the optional YAML file, then
// environment variables (which may come from .env via godotenv).
type Config struct {
	// Native SDK
	SDKPath    string `yaml:"sdk_path"`
	Transport  string `yaml:"transport"`
	XMLConfig  string `yaml:"xml_config"`
	FormatsDef string `yaml:"formats_def"`
	SDKLogFile string `yaml:"sdk_log_file"`

	// TCP daemon
	TCPHost      string `yaml:"tcp_host"`
	TCPPort      int    `yaml:"tcp_port"`
	LaunchDaemon bool   `yaml:"launch_daemon"`

	// Camera settings applied after connect; empty leaves the SDK default
	Palette     string `yaml:"palette"`
	ShutterMode string `yaml:"shutter_mode"`

	// Capture loop
	CaptureIntervalMS int    `yaml:"capture_interval_ms"`
	MaxRetries        int    `yaml:"max_retries"`
	OutputDir         string `yaml:"output_dir"`
	SaveThermal       bool   `yaml:"save_thermal"`
	SavePalette       bool   `yaml:"save_palette"`
	SnapshotScale     int    `yaml:"snapshot_scale"`

	// Capture store; empty DatabasePath disables it
	DatabasePath  string `yaml:"database_path"`
	RetentionDays int    `yaml:"retention_days"`

	// Live view; empty address disables it
	LiveViewAddr         string `yaml:"liveview_addr"`
	LiveViewPasswordHash string `yaml:"liveview_password_hash"`

	// Logging
	LogFile  string `yaml:"log_file"`
	LogLevel string `yaml:"log_level"`
	DevMode  bool   `yaml:"dev_mode"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	return &Config{
		Transport:         TransportUSB,
		TCPHost:           "localhost",
		TCPPort:           irimager.DefaultTCPPort,
		CaptureIntervalMS: 1000,
		MaxRetries:        3,
		OutputDir:         "captures",
		SaveThermal:       true,
		SavePalette:       true,
		SnapshotScale:     1,
		DatabasePath:      "captures/captures.db",
		RetentionDays:     30,
		LogFile:           "irimager.log",
		LogLevel:          "info",
	}
}

// LoadConfig builds a Config from defaults, the YAML file at path (skipped
// when path is empty) and the environment, then validates it.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return ErrConfigFile(path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	// An empty file decodes to io.EOF and means "no overrides".
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return ErrConfigFile(path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	overrideString(&c.SDKPath, "IRIMAGER_SDK_PATH")
	overrideString(&c.Transport, "IRIMAGER_TRANSPORT")
	overrideString(&c.XMLConfig, "IRIMAGER_XML_CONFIG")
	overrideString(&c.FormatsDef, "IRIMAGER_FORMATS_DEF")
	overrideString(&c.SDKLogFile, "IRIMAGER_SDK_LOG")

	overrideString(&c.TCPHost, "IRIMAGER_TCP_HOST")
	overrideInt(&c.TCPPort, "IRIMAGER_TCP_PORT")
	overrideBool(&c.LaunchDaemon, "IRIMAGER_LAUNCH_DAEMON")

	overrideString(&c.Palette, "IRIMAGER_PALETTE")
	overrideString(&c.ShutterMode, "IRIMAGER_SHUTTER_MODE")

	overrideInt(&c.CaptureIntervalMS, "IRIMAGER_CAPTURE_INTERVAL_MS")
	overrideInt(&c.MaxRetries, "IRIMAGER_MAX_RETRIES")
	overrideString(&c.OutputDir, "IRIMAGER_OUTPUT_DIR")
	overrideBool(&c.SaveThermal, "IRIMAGER_SAVE_THERMAL")
	overrideBool(&c.SavePalette, "IRIMAGER_SAVE_PALETTE")
	overrideInt(&c.SnapshotScale, "IRIMAGER_SNAPSHOT_SCALE")

	overrideString(&c.DatabasePath, "IRIMAGER_DB_PATH")
	overrideInt(&c.RetentionDays, "IRIMAGER_RETENTION_DAYS")

	overrideString(&c.LiveViewAddr, "IRIMAGER_LIVEVIEW_ADDR")
	overrideString(&c.LiveViewPasswordHash, "IRIMAGER_LIVEVIEW_PASSWORD_HASH")

	overrideString(&c.LogFile, "IRIMAGER_LOG_FILE")
	overrideString(&c.LogLevel, "IRIMAGER_LOG_LEVEL")
	overrideBool(&c.DevMode, "DEV_MODE")

	c.Transport = strings.ToLower(c.Transport)
}

// Validate checks every field and returns the first problem as a
// *ConfigError.
func (c *Config) Validate() error {
	if c.SDKPath == "" {
		return ErrMissingConfig("IRIMAGER_SDK_PATH")
	}
	if c.Transport != TransportUSB && c.Transport != TransportTCP {
		return ErrInvalidValue("IRIMAGER_TRANSPORT", c.Transport, "'usb' or 'tcp'")
	}
	if c.TCPPort < 1 || c.TCPPort > 65535 {
		return ErrInvalidValue("IRIMAGER_TCP_PORT", strconv.Itoa(c.TCPPort), "a port between 1 and 65535")
	}
	if _, _, err := c.PaletteSetting(); err != nil {
		return err
	}
	if _, _, err := c.ShutterSetting(); err != nil {
		return err
	}
	if c.CaptureIntervalMS <= 0 {
		return ErrInvalidValue("IRIMAGER_CAPTURE_INTERVAL_MS", strconv.Itoa(c.CaptureIntervalMS), "a positive number of milliseconds")
	}
	if c.MaxRetries < 0 {
		return ErrInvalidValue("IRIMAGER_MAX_RETRIES", strconv.Itoa(c.MaxRetries), "zero or more")
	}
	if c.SnapshotScale < 1 || c.SnapshotScale > 8 {
		return ErrInvalidValue("IRIMAGER_SNAPSHOT_SCALE", strconv.Itoa(c.SnapshotScale), "a factor between 1 and 8")
	}
	if c.RetentionDays < 0 {
		return ErrInvalidValue("IRIMAGER_RETENTION_DAYS", strconv.Itoa(c.RetentionDays), "zero (keep forever) or more days")
	}
	return nil
}

// PaletteSetting parses Palette. ok is false when no palette is configured.
func (c *Config) PaletteSetting() (p irimager.Palette, ok bool, err error) {
	if c.Palette == "" {
		return 0, false, nil
	}
	p, err = irimager.ParsePalette(c.Palette)
	if err != nil {
		return 0, false, ErrInvalidPalette(c.Palette)
	}
	return p, true, nil
}

// ShutterSetting parses ShutterMode. ok is false when no mode is configured.
func (c *Config) ShutterSetting() (m irimager.ShutterMode, ok bool, err error) {
	if c.ShutterMode == "" {
		return 0, false, nil
	}
	m, err = irimager.ParseShutterMode(c.ShutterMode)
	if err != nil {
		return 0, false, ErrInvalidValue("IRIMAGER_SHUTTER_MODE", c.ShutterMode, "'auto' or 'manual'")
	}
	return m, true, nil
}

// USBConfig returns the paths for irimager.ConnectUSB.
func (c *Config) USBConfig() irimager.USBConfig {
	return irimager.USBConfig{
		XMLConfig:  c.XMLConfig,
		FormatsDef: c.FormatsDef,
		LogFile:    c.SDKLogFile,
	}
}

// CaptureInterval returns CaptureIntervalMS as a duration.
func (c *Config) CaptureInterval() time.Duration {
	return time.Duration(c.CaptureIntervalMS) * time.Millisecond
}

// Describe returns a one-line summary safe for logs.
func (c *Config) Describe() string {
	target := "usb"
	if c.Transport == TransportTCP {
		target = fmt.Sprintf("tcp://%s:%d", c.TCPHost, c.TCPPort)
	}
	return fmt.Sprintf("sdk=%s transport=%s interval=%s output=%s", c.SDKPath, target, c.CaptureInterval(), c.OutputDir)
}
