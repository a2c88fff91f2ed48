package snag

import (
	"fmt"
	"net/url"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/charliek/snag/render"
)

// Buffer and capture defaults
const (
	// DefaultMaxConsoleLogs is the console buffer capacity
	DefaultMaxConsoleLogs = 100

	// DefaultMaxNetworkLogs is the network buffer capacity
	DefaultMaxNetworkLogs = 50

	// DefaultMaxUserActions is the user action buffer capacity
	DefaultMaxUserActions = 50

	// DefaultMaxBodyBytes is the capture cap for one request or response body
	DefaultMaxBodyBytes = 10000
)

// Screenshot and submission defaults
const (
	// DefaultRendererEndpoint is the DevTools endpoint probed for screenshots
	DefaultRendererEndpoint = "http://127.0.0.1:9222"

	// DefaultScreenshotWidth is the rendered viewport width
	DefaultScreenshotWidth = 1280

	// DefaultScreenshotHeight is the rendered viewport height
	DefaultScreenshotHeight = 800

	// DefaultSubmitTimeout is the timeout for report submissions
	DefaultSubmitTimeout = 30 * time.Second
)

// Position names a screen corner for the launcher form and badge fragment.
type Position string

const (
	PositionTopLeft     Position = "top-left"
	PositionTopRight    Position = "top-right"
	PositionBottomLeft  Position = "bottom-left"
	PositionBottomRight Position = "bottom-right"
)

func validPosition(p Position) bool {
	switch p {
	case PositionTopLeft, PositionTopRight, PositionBottomLeft, PositionBottomRight:
		return true
	}
	return false
}

// Config is the top-level snag configuration.
type Config struct {
	// ProjectKey identifies the project at the ingestion endpoint. Required.
	ProjectKey string `yaml:"project_key"`

	// Endpoint is the ingestion URL reports are POSTed to. Required.
	Endpoint string `yaml:"endpoint"`

	// AppURL identifies the embedding application in reports. Defaults to
	// app://<binary name>; SetPage updates it at runtime.
	AppURL string `yaml:"app_url"`

	// EnvFile optionally names a dotenv file consulted for SNAG_* overrides.
	EnvFile string `yaml:"env_file"`

	// LogLevel controls the engine's own diagnostics (zerolog level names).
	LogLevel string `yaml:"log_level"`

	Capture    CaptureConfig    `yaml:"capture"`
	Screenshot ScreenshotConfig `yaml:"screenshot"`
	Launcher   LauncherConfig   `yaml:"launcher"`
	Reporter   ReporterConfig   `yaml:"reporter"`

	// Timeout bounds one submission round trip.
	Timeout time.Duration `yaml:"-"`

	// Renderer overrides screenshot rendering. When nil the DevTools
	// endpoint is probed instead.
	Renderer render.Renderer `yaml:"-"`
}

// CaptureConfig holds per-category interception toggles and buffer ceilings.
// Zero ceilings mean "use the default"; only negative values fail validation.
type CaptureConfig struct {
	Console *bool `yaml:"console,omitempty"` // nil = enabled
	Network *bool `yaml:"network,omitempty"` // nil = enabled
	Actions *bool `yaml:"actions,omitempty"` // nil = enabled

	MaxConsoleLogs int `yaml:"max_console_logs"`
	MaxNetworkLogs int `yaml:"max_network_logs"`
	MaxUserActions int `yaml:"max_user_actions"`
	MaxBodyBytes   int `yaml:"max_body_bytes"`
}

// ConsoleEnabled reports whether console interception should be installed.
func (c CaptureConfig) ConsoleEnabled() bool {
	return c.Console == nil || *c.Console
}

// NetworkEnabled reports whether network interception should be installed.
func (c CaptureConfig) NetworkEnabled() bool {
	return c.Network == nil || *c.Network
}

// ActionsEnabled reports whether action recording should be installed.
func (c CaptureConfig) ActionsEnabled() bool {
	return c.Actions == nil || *c.Actions
}

// ScreenshotConfig controls snapshot rasterization. Zero dimensions mean
// "use the default"; only negative values fail validation.
type ScreenshotConfig struct {
	Enabled          *bool  `yaml:"enabled,omitempty"` // nil = enabled
	RendererEndpoint string `yaml:"renderer_endpoint"`
	Width            int    `yaml:"width"`
	Height           int    `yaml:"height"`
}

// ScreenshotEnabled reports whether submissions attempt a screenshot.
func (c ScreenshotConfig) ScreenshotEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// LauncherConfig controls the interactive capture form and badge fragment.
type LauncherConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Position Position `yaml:"position"`
}

// ReporterConfig is the default reporter identity attached to submissions
// when the operator leaves those fields blank.
type ReporterConfig struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
}

// rawConfig is used for initial YAML parsing so duration fields can be
// written as strings like "30s".
type rawConfig struct {
	ProjectKey string           `yaml:"project_key"`
	Endpoint   string           `yaml:"endpoint"`
	AppURL     string           `yaml:"app_url"`
	EnvFile    string           `yaml:"env_file"`
	LogLevel   string           `yaml:"log_level"`
	Capture    CaptureConfig    `yaml:"capture"`
	Screenshot ScreenshotConfig `yaml:"screenshot"`
	Launcher   LauncherConfig   `yaml:"launcher"`
	Reporter   ReporterConfig   `yaml:"reporter"`
	Timeout    string           `yaml:"timeout"`
}

// Load reads a configuration file, applies environment overrides, and
// validates the result.
func Load(path string) (*Config, error) {
	// First check if file exists
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("checking config file: %w", err)
	}

	// Config files carry the project key; refuse world-writable ones.
	if err := CheckFilePermissions(path); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config, err := parse(data)
	if err != nil {
		return nil, err
	}

	fileEnv, err := loadEnvFile(config.EnvFile)
	if err != nil {
		return nil, err
	}
	applyEnvOverrides(config, fileEnv)

	if err := Validate(config); err != nil {
		return nil, err
	}
	return config, nil
}

// Parse parses configuration from YAML bytes and validates it. Environment
// overrides are a Load concern and are not applied here.
func Parse(data []byte) (*Config, error) {
	config, err := parse(data)
	if err != nil {
		return nil, err
	}
	if err := Validate(config); err != nil {
		return nil, err
	}
	return config, nil
}

func parse(data []byte) (*Config, error) {
	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing yaml: %w", err)
	}

	config := &Config{
		ProjectKey: raw.ProjectKey,
		Endpoint:   raw.Endpoint,
		AppURL:     raw.AppURL,
		EnvFile:    raw.EnvFile,
		LogLevel:   raw.LogLevel,
		Capture:    raw.Capture,
		Screenshot: raw.Screenshot,
		Launcher:   raw.Launcher,
		Reporter:   raw.Reporter,
	}

	if raw.Timeout != "" {
		d, err := time.ParseDuration(raw.Timeout)
		if err != nil {
			return nil, fmt.Errorf("parsing timeout: %w", err)
		}
		config.Timeout = d
	}

	config.applyDefaults()
	return config, nil
}

// applyDefaults fills zero values with the documented defaults. Toggle
// pointers stay nil; the *Enabled accessors treat nil as enabled.
func (c *Config) applyDefaults() {
	if c.Capture.MaxConsoleLogs == 0 {
		c.Capture.MaxConsoleLogs = DefaultMaxConsoleLogs
	}
	if c.Capture.MaxNetworkLogs == 0 {
		c.Capture.MaxNetworkLogs = DefaultMaxNetworkLogs
	}
	if c.Capture.MaxUserActions == 0 {
		c.Capture.MaxUserActions = DefaultMaxUserActions
	}
	if c.Capture.MaxBodyBytes == 0 {
		c.Capture.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.Screenshot.RendererEndpoint == "" {
		c.Screenshot.RendererEndpoint = DefaultRendererEndpoint
	}
	if c.Screenshot.Width == 0 {
		c.Screenshot.Width = DefaultScreenshotWidth
	}
	if c.Screenshot.Height == 0 {
		c.Screenshot.Height = DefaultScreenshotHeight
	}
	if c.Launcher.Position == "" {
		c.Launcher.Position = PositionBottomRight
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultSubmitTimeout
	}
	if c.LogLevel == "" {
		c.LogLevel = zerolog.LevelErrorValue
	}
}

// Validate checks the configuration for errors. All problems are collected
// into a single ErrInvalidConfig.
func Validate(config *Config) error {
	var errs []string

	if config.ProjectKey == "" {
		errs = append(errs, "project_key: required")
	}

	if config.Endpoint == "" {
		errs = append(errs, "endpoint: required")
	} else if u, err := url.Parse(config.Endpoint); err != nil || u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("endpoint: must be an absolute http(s) URL, got %q", config.Endpoint))
	}

	if config.Capture.MaxConsoleLogs < 0 {
		errs = append(errs, "capture.max_console_logs: must not be negative")
	}
	if config.Capture.MaxNetworkLogs < 0 {
		errs = append(errs, "capture.max_network_logs: must not be negative")
	}
	if config.Capture.MaxUserActions < 0 {
		errs = append(errs, "capture.max_user_actions: must not be negative")
	}
	if config.Capture.MaxBodyBytes < 0 {
		errs = append(errs, "capture.max_body_bytes: must not be negative")
	}

	if config.Screenshot.Width < 0 || config.Screenshot.Height < 0 {
		errs = append(errs, "screenshot: width and height must not be negative")
	}

	if config.Launcher.Position != "" && !validPosition(config.Launcher.Position) {
		errs = append(errs, fmt.Sprintf("launcher.position: unknown position %q", config.Launcher.Position))
	}

	if config.LogLevel != "" {
		if _, err := zerolog.ParseLevel(config.LogLevel); err != nil {
			errs = append(errs, fmt.Sprintf("log_level: %v", err))
		}
	}

	if config.Timeout < 0 {
		errs = append(errs, "timeout: must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}
	return nil
}

// loadEnvFile reads a dotenv file and returns the variables as a map.
func loadEnvFile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("env file not found: %s", path)
	}
	env, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("reading env file %s: %w", path, err)
	}
	return env, nil
}

// applyEnvOverrides overlays SNAG_* variables onto the config. The process
// environment wins over env_file values.
func applyEnvOverrides(config *Config, fileEnv map[string]string) {
	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := fileEnv[key]
		return v, ok
	}

	if v, ok := lookup("SNAG_PROJECT_KEY"); ok {
		config.ProjectKey = v
	}
	if v, ok := lookup("SNAG_ENDPOINT"); ok {
		config.Endpoint = v
	}
	if v, ok := lookup("SNAG_RENDERER_ENDPOINT"); ok {
		config.Screenshot.RendererEndpoint = v
	}
	if v, ok := lookup("SNAG_LOG_LEVEL"); ok {
		config.LogLevel = v
	}
}

// FindConfigFile searches for a config file in standard locations.
func FindConfigFile() (string, error) {
	candidates := []string{
		"snag.yaml",
		"snag.yml",
		".snag.yaml",
		".snag.yml",
	}

	for _, name := range candidates {
		if _, err := os.Stat(name); err == nil {
			return name, nil
		}
	}

	return "", fmt.Errorf("%w (tried: %v)", ErrConfigNotFound, candidates)
}

// CheckFilePermissions checks if a file has secure permissions. On
// Unix-like systems it verifies the file is not world-writable.
func CheckFilePermissions(path string) error {
	// Skip permission check on Windows
	if runtime.GOOS == "windows" {
		return nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("checking file permissions: %w", err)
	}

	if info.Mode().Perm()&0002 != 0 {
		return fmt.Errorf("config file %s has insecure permissions: world-writable files can be modified by any user. Please run: chmod o-w %s", path, path)
	}

	return nil
}
