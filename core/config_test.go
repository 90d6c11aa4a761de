package core

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go_irimager/irimager"
)

// clearConfigEnv unsets every variable LoadConfig reads so the host
// environment cannot leak into a test.
func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"IRIMAGER_SDK_PATH", "IRIMAGER_TRANSPORT", "IRIMAGER_XML_CONFIG",
		"IRIMAGER_FORMATS_DEF", "IRIMAGER_SDK_LOG", "IRIMAGER_TCP_HOST",
		"IRIMAGER_TCP_PORT", "IRIMAGER_LAUNCH_DAEMON", "IRIMAGER_PALETTE",
		"IRIMAGER_SHUTTER_MODE", "IRIMAGER_CAPTURE_INTERVAL_MS",
		"IRIMAGER_MAX_RETRIES", "IRIMAGER_OUTPUT_DIR", "IRIMAGER_SAVE_THERMAL",
		"IRIMAGER_SAVE_PALETTE", "IRIMAGER_SNAPSHOT_SCALE", "IRIMAGER_DB_PATH",
		"IRIMAGER_RETENTION_DAYS", "IRIMAGER_LIVEVIEW_ADDR",
		"IRIMAGER_LIVEVIEW_PASSWORD_HASH", "IRIMAGER_LOG_FILE",
		"IRIMAGER_LOG_LEVEL", "DEV_MODE",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "irimager.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("IRIMAGER_SDK_PATH", "/opt/irimager/libirimager.so")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}

	if cfg.Transport != TransportUSB {
		t.Errorf("Transport = %q, want usb", cfg.Transport)
	}
	if cfg.TCPHost != "localhost" || cfg.TCPPort != irimager.DefaultTCPPort {
		t.Errorf("TCP = %s:%d, want localhost:%d", cfg.TCPHost, cfg.TCPPort, irimager.DefaultTCPPort)
	}
	if cfg.CaptureInterval() != time.Second {
		t.Errorf("CaptureInterval() = %v, want 1s", cfg.CaptureInterval())
	}
	if cfg.MaxRetries != 3 || cfg.RetentionDays != 30 || cfg.SnapshotScale != 1 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if !cfg.SaveThermal || !cfg.SavePalette {
		t.Error("both snapshot kinds should be saved by default")
	}
	if _, ok, _ := cfg.PaletteSetting(); ok {
		t.Error("no palette should be configured by default")
	}
}

func TestLoadConfig_MissingSDKPath(t *testing.T) {
	clearConfigEnv(t)

	_, err := LoadConfig("")
	if GetErrorCode(err) != ErrCodeMissingConfig {
		t.Fatalf("LoadConfig() error = %v, want %s", err, ErrCodeMissingConfig)
	}
}

func TestLoadConfig_YAMLThenEnv(t *testing.T) {
	clearConfigEnv(t)
	path := writeYAML(t, `
sdk_path: /usr/lib/libirimager.so
transport: tcp
tcp_host: 192.168.0.10
tcp_port: 1400
palette: iron
shutter_mode: manual
capture_interval_ms: 250
`)
	// DOING: override one YAML value from the environment
	// EXPECT: env wins, every other YAML value survives
	t.Setenv("IRIMAGER_TCP_PORT", "1500")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}

	if cfg.Transport != TransportTCP || cfg.TCPHost != "192.168.0.10" {
		t.Errorf("transport = %s %s", cfg.Transport, cfg.TCPHost)
	}
	if cfg.TCPPort != 1500 {
		t.Errorf("TCPPort = %d, want 1500 from env", cfg.TCPPort)
	}
	if p, ok, _ := cfg.PaletteSetting(); !ok || p != irimager.PaletteIron {
		t.Errorf("PaletteSetting() = %v, %v", p, ok)
	}
	if m, ok, _ := cfg.ShutterSetting(); !ok || m != irimager.ShutterManual {
		t.Errorf("ShutterSetting() = %v, %v", m, ok)
	}
	if cfg.CaptureInterval() != 250*time.Millisecond {
		t.Errorf("CaptureInterval() = %v", cfg.CaptureInterval())
	}
}

func TestLoadConfig_EmptyYAML(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("IRIMAGER_SDK_PATH", "/opt/libirimager.so")

	if _, err := LoadConfig(writeYAML(t, "")); err != nil {
		t.Errorf("empty YAML file should load, got %v", err)
	}
}

func TestLoadConfig_FileErrors(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("IRIMAGER_SDK_PATH", "/opt/libirimager.so")

	tests := []struct {
		name string
		path string
	}{
		{"missing file", filepath.Join(t.TempDir(), "nope.yaml")},
		{"unknown key", writeYAML(t, "sdk_pth: typo\n")},
		{"bad syntax", writeYAML(t, "tcp_port: [1\n")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(tt.path)
			if GetErrorCode(err) != ErrCodeConfigFile {
				t.Errorf("LoadConfig() error = %v, want %s", err, ErrCodeConfigFile)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		c := DefaultConfig()
		c.SDKPath = "/opt/libirimager.so"
		return c
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		code   string
	}{
		{"valid", func(c *Config) {}, ""},
		{"bad transport", func(c *Config) { c.Transport = "serial" }, ErrCodeInvalidValue},
		{"port zero", func(c *Config) { c.TCPPort = 0 }, ErrCodeInvalidValue},
		{"port too big", func(c *Config) { c.TCPPort = 70000 }, ErrCodeInvalidValue},
		{"palette name", func(c *Config) { c.Palette = "rainbow_hi" }, ""},
		{"palette id", func(c *Config) { c.Palette = "11" }, ""},
		{"palette unknown", func(c *Config) { c.Palette = "sepia" }, ErrCodeInvalidPalette},
		{"palette out of range", func(c *Config) { c.Palette = "12" }, ErrCodeInvalidPalette},
		{"shutter unknown", func(c *Config) { c.ShutterMode = "sometimes" }, ErrCodeInvalidValue},
		{"interval zero", func(c *Config) { c.CaptureIntervalMS = 0 }, ErrCodeInvalidValue},
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }, ErrCodeInvalidValue},
		{"scale too big", func(c *Config) { c.SnapshotScale = 9 }, ErrCodeInvalidValue},
		{"negative retention", func(c *Config) { c.RetentionDays = -1 }, ErrCodeInvalidValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if got := GetErrorCode(err); got != tt.code {
				t.Errorf("Validate() = %v, want code %q", err, tt.code)
			}
		})
	}
}

func TestConfig_USBConfig(t *testing.T) {
	c := DefaultConfig()
	c.XMLConfig, c.FormatsDef, c.SDKLogFile = "cam.xml", "Formats.def", "sdk.log"

	want := irimager.USBConfig{XMLConfig: "cam.xml", FormatsDef: "Formats.def", LogFile: "sdk.log"}
	if got := c.USBConfig(); got != want {
		t.Errorf("USBConfig() = %+v, want %+v", got, want)
	}
}

func TestConfig_Describe(t *testing.T) {
	c := DefaultConfig()
	c.SDKPath = "lib.so"
	c.Transport = TransportTCP
	c.LiveViewPasswordHash = "$2a$10$secret"

	got := c.Describe()
	if want := "tcp://localhost:1337"; !strings.Contains(got, want) {
		t.Errorf("Describe() = %q, should contain %q", got, want)
	}
	if strings.Contains(got, "$2a$") {
		t.Errorf("Describe() leaked the password hash: %q", got)
	}
}
